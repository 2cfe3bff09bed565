package pubsub

import (
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/attestate/leafsync/metrics"
)

const subsystem = "pubsub"

var (
	peersAdded = metrics.NewCounter(
		"peers_added",
		subsystem,
		"Number of gossip peers added per protocol",
		[]string{"protocol"},
	)
	// processedMessagesDuration in nanoseconds to process a message. Labeled by topic and result.
	processedMessagesDuration = metrics.NewHistogramWithBuckets(
		"processed_messages_duration",
		subsystem,
		"Duration in nanoseconds to process a message",
		[]string{"topic", "result"},
		prometheus.ExponentialBuckets(1_000_000, 4, 10),
	)
	messagesBytes = metrics.NewCounter(
		"messages_bytes",
		subsystem,
		"Total amount of payload bytes by topic and stage",
		[]string{"topic", "stage"},
	)
	messagesCount = metrics.NewCounter(
		"messages_count",
		subsystem,
		"Total number of messages by topic and stage",
		[]string{"topic", "stage"},
	)
)

// tracer implements pubsub.RawTracer and exports payload counters.
type tracer struct{}

var _ pubsub.RawTracer = tracer{}

func newTracer() tracer { return tracer{} }

func observe(msg *pubsub.Message, stage string) {
	if msg.Topic == nil {
		return
	}
	messagesBytes.WithLabelValues(*msg.Topic, stage).Add(float64(len(msg.Data)))
	messagesCount.WithLabelValues(*msg.Topic, stage).Inc()
}

func (tracer) AddPeer(_ peer.ID, proto protocol.ID) {
	peersAdded.WithLabelValues(string(proto)).Inc()
}

func (tracer) ValidateMessage(msg *pubsub.Message) {
	observe(msg, "received")
}

func (tracer) DeliverMessage(msg *pubsub.Message) {
	observe(msg, "delivered")
}

func (tracer) RejectMessage(msg *pubsub.Message, _ string) {
	observe(msg, "rejected")
}

func (tracer) DuplicateMessage(msg *pubsub.Message) {
	observe(msg, "duplicate")
}

func (tracer) RemovePeer(peer.ID)                   {}
func (tracer) Join(string)                          {}
func (tracer) Leave(string)                         {}
func (tracer) Graft(peer.ID, string)                {}
func (tracer) Prune(peer.ID, string)                {}
func (tracer) ThrottlePeer(peer.ID)                 {}
func (tracer) RecvRPC(*pubsub.RPC)                  {}
func (tracer) SendRPC(*pubsub.RPC, peer.ID)         {}
func (tracer) DropRPC(*pubsub.RPC, peer.ID)         {}
func (tracer) UndeliverableMessage(*pubsub.Message) {}
