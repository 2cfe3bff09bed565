package pubsub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/zap"
)

// ErrValidationReject is returned by a handler for malformed messages. Such
// messages are not relayed and count against the peer that sent them.
// Other errors only stop the message from being relayed.
var ErrValidationReject = errors.New("validation reject")

// PubSub publishes and receives messages on topics.
type PubSub interface {
	Register(topic string, handler GossipHandler, opts ...pubsub.ValidatorOpt)
	Publish(ctx context.Context, topic string, msg []byte) error
	ProtocolPeers(protocol string) []peer.ID
}

// GossipPubSub is a wrapper around gossip protocol.
type GossipPubSub struct {
	logger *zap.Logger
	pubsub *pubsub.PubSub
	host   host.Host

	mu     sync.RWMutex
	topics map[string]*pubsub.Topic
}

var _ PubSub = &GossipPubSub{}

// Register handler for topic. The handler runs as a topic validator, it is
// called for local messages as well.
func (ps *GossipPubSub) Register(topic string, handler GossipHandler, opts ...pubsub.ValidatorOpt) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if _, exist := ps.topics[topic]; exist {
		ps.logger.Panic("already registered a topic", zap.String("topic", topic))
	}
	err := ps.pubsub.RegisterTopicValidator(
		topic,
		func(ctx context.Context, _ peer.ID, msg *pubsub.Message) pubsub.ValidationResult {
			start := time.Now()
			err := handler(ctx, msg.GetFrom(), msg.Data)
			processedMessagesDuration.WithLabelValues(topic, castResult(err)).
				Observe(float64(time.Since(start)))
			if err != nil {
				ps.logger.Debug("topic validation failed",
					zap.String("topic", topic),
					zap.Stringer("from", msg.GetFrom()),
					zap.Error(err),
				)
			}
			switch {
			case errors.Is(err, ErrValidationReject):
				return pubsub.ValidationReject
			case err != nil:
				return pubsub.ValidationIgnore
			default:
				return pubsub.ValidationAccept
			}
		},
		opts...)
	if err != nil {
		ps.logger.Panic("failed to register topic validator", zap.String("topic", topic), zap.Error(err))
	}
	topich, err := ps.pubsub.Join(topic)
	if err != nil {
		ps.logger.Panic("failed to join a topic", zap.String("topic", topic), zap.Error(err))
	}
	ps.topics[topic] = topich
	if _, err := topich.Relay(); err != nil {
		ps.logger.Panic("failed to enable relay for topic",
			zap.String("topic", topic),
			zap.Error(err),
		)
	}
}

// Publish message to the topic.
func (ps *GossipPubSub) Publish(ctx context.Context, topic string, msg []byte) error {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	topich := ps.topics[topic]
	if topich == nil {
		ps.logger.Panic("Publish is called before Register", zap.String("topic", topic))
	}
	if err := topich.Publish(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish to topic %v: %w", topic, err)
	}
	return nil
}

// ProtocolPeers returns list of peers that are communicating in a given protocol.
func (ps *GossipPubSub) ProtocolPeers(protocol string) []peer.ID {
	return ps.pubsub.ListPeers(protocol)
}

func castResult(err error) string {
	switch {
	case errors.Is(err, ErrValidationReject):
		return "reject"
	case err != nil:
		return "ignore"
	default:
		return "accept"
	}
}
