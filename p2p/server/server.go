// Package server serves one request per libp2p stream. Requests and responses
// are varint length-prefixed frames.
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/attestate/leafsync/codec"
)

var (
	// ErrNotConnected is returned when peer is not connected.
	ErrNotConnected = errors.New("peer is not connected")
	// ErrNoResponse is returned when the peer closed the stream without
	// writing a response.
	ErrNoResponse = errors.New("stream closed without response")
)

// Host is the part of the libp2p host used by the server.
type Host interface {
	SetStreamHandler(protocol.ID, network.StreamHandler)
	NewStream(context.Context, peer.ID, ...protocol.ID) (network.Stream, error)
	Network() network.Network
}

// Opt is a type to configure a server.
type Opt func(s *Server)

// WithTimeout configures the deadline of a stream, for both sides of a
// request.
func WithTimeout(timeout time.Duration) Opt {
	return func(s *Server) {
		s.timeout = timeout
	}
}

// WithLog configures logger for the server.
func WithLog(log *zap.Logger) Opt {
	return func(s *Server) {
		s.logger = log
	}
}

// WithRequestSizeLimit bounds the size of a request frame.
func WithRequestSizeLimit(limit int) Opt {
	return func(s *Server) {
		s.requestLimit = limit
	}
}

// WithResponseSizeLimit bounds the size of a response frame.
func WithResponseSizeLimit(limit int) Opt {
	return func(s *Server) {
		s.responseLimit = limit
	}
}

// WithMetrics will enable metrics collection in the server.
func WithMetrics() Opt {
	return func(s *Server) {
		s.metrics = newTracker(s.protocol)
	}
}

// WithQueueSize parametrize number of message that will be kept in queue
// and eventually processed by server. Otherwise stream is closed immediately.
//
// Defaults to 1000.
func WithQueueSize(size int) Opt {
	return func(s *Server) {
		s.queueSize = size
	}
}

// WithRequestsPerInterval parametrizes server rate limit to limit maximum amount of bandwidth
// that this handler can consume.
//
// Defaults to 100 requests per second.
func WithRequestsPerInterval(n int, interval time.Duration) Opt {
	return func(s *Server) {
		s.requestsPerInterval = n
		s.interval = interval
	}
}

// Handler is a handler to be defined by the application. A nil response
// closes the stream without writing anything, as does an error.
type Handler func(ctx context.Context, pid peer.ID, req []byte) ([]byte, error)

// Server for the Handler.
type Server struct {
	logger              *zap.Logger
	protocol            string
	handler             Handler
	timeout             time.Duration
	requestLimit        int
	responseLimit       int
	queueSize           int
	requestsPerInterval int
	interval            time.Duration

	metrics *tracker // metrics can be nil

	h Host
}

// New server for the handler.
func New(h Host, proto string, handler Handler, opts ...Opt) *Server {
	srv := &Server{
		logger:              zap.NewNop(),
		protocol:            proto,
		handler:             handler,
		h:                   h,
		timeout:             25 * time.Second,
		requestLimit:        codec.DefaultFrameLimit,
		responseLimit:       codec.DefaultFrameLimit,
		queueSize:           1000,
		requestsPerInterval: 100,
		interval:            time.Second,
	}
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}

// Protocol returns the protocol id served.
func (s *Server) Protocol() string {
	return s.protocol
}

type request struct {
	stream   network.Stream
	received time.Time
}

// Run serves streams until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	limit := rate.NewLimiter(rate.Every(s.interval/time.Duration(s.requestsPerInterval)), s.requestsPerInterval)
	queue := make(chan request, s.queueSize)
	if s.metrics != nil {
		s.metrics.targetQueue.Set(float64(s.queueSize))
		s.metrics.targetRps.Set(float64(limit.Limit()))
	}
	s.h.SetStreamHandler(protocol.ID(s.protocol), func(stream network.Stream) {
		select {
		case queue <- request{stream: stream, received: time.Now()}:
			if s.metrics != nil {
				s.metrics.queue.Set(float64(len(queue)))
				s.metrics.accepted.Inc()
			}
		default:
			if s.metrics != nil {
				s.metrics.dropped.Inc()
			}
			stream.Reset()
		}
	})

	var eg errgroup.Group
	eg.SetLimit(s.queueSize)
	for {
		select {
		case <-ctx.Done():
			eg.Wait()
			return nil
		case req := <-queue:
			if s.metrics != nil {
				s.metrics.inQueueLatency.Observe(time.Since(req.received).Seconds())
			}
			if err := limit.Wait(ctx); err != nil {
				req.stream.Reset()
				eg.Wait()
				return nil
			}
			eg.Go(func() error {
				ok := s.queueHandler(ctx, req.stream)
				if s.metrics != nil {
					s.metrics.serverLatency.Observe(time.Since(req.received).Seconds())
					if ok {
						s.metrics.completed.Inc()
					} else {
						s.metrics.failed.Inc()
					}
				}
				return nil
			})
		}
	}
}

func (s *Server) queueHandler(ctx context.Context, stream network.Stream) bool {
	defer stream.Close()
	pid := stream.Conn().RemotePeer()
	logger := s.logger.With(
		zap.String("protocol", s.protocol),
		zap.Stringer("remotePeer", pid),
		zap.Stringer("remoteMultiaddr", stream.Conn().RemoteMultiaddr()),
	)
	_ = stream.SetDeadline(time.Now().Add(s.timeout))
	req, err := codec.ReadMessage(bufio.NewReader(stream), s.requestLimit)
	if errors.Is(err, codec.ErrFrameTooLarge) {
		logger.Warn("request limit overflow", zap.Int("limit", s.requestLimit), zap.Error(err))
		stream.Reset()
		return false
	}
	if err != nil {
		logger.Debug("error reading request", zap.Error(err))
		return false
	}
	start := time.Now()
	resp, err := s.handler(ctx, pid, req)
	if err != nil {
		logger.Debug("handler reported error", zap.Error(err))
		return false
	}
	if resp != nil {
		if err := codec.WriteFrame(stream, resp); err != nil {
			logger.Debug("error writing response", zap.Error(err))
			return false
		}
	}
	logger.Debug("protocol handler execution time", zap.Duration("duration", time.Since(start)))
	return true
}

// Request sends req to the peer and returns every non-empty frame the peer
// wrote before closing the stream. The request completes when the peer closes
// the stream, so a peer that does not respond has still processed the
// request when Request returns.
func (s *Server) Request(ctx context.Context, pid peer.ID, req []byte) ([][]byte, error) {
	start := time.Now()
	resp, err := s.request(ctx, pid, req)
	took := time.Since(start).Seconds()
	switch {
	case s.metrics == nil:
	case err != nil:
		s.metrics.clientFailed.Inc()
		s.metrics.clientLatencyFailure.Observe(took)
	default:
		s.metrics.clientSucceeded.Inc()
		s.metrics.clientLatency.Observe(took)
	}
	s.logger.Debug("request execution time",
		zap.String("protocol", s.protocol),
		zap.Stringer("peer", pid),
		zap.Float64("seconds", took),
		zap.Error(err),
	)
	return resp, err
}

func (s *Server) request(ctx context.Context, pid peer.ID, req []byte) ([][]byte, error) {
	if len(req) > s.requestLimit {
		return nil, fmt.Errorf("request length (%d) is longer than limit %d", len(req), s.requestLimit)
	}
	if s.h.Network().Connectedness(pid) != network.Connected {
		return nil, fmt.Errorf("%w: %s", ErrNotConnected, pid)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	stream, err := s.h.NewStream(
		network.WithNoDial(ctx, "existing connection"),
		pid,
		protocol.ID(s.protocol),
	)
	if err != nil {
		return nil, fmt.Errorf("open stream to %s: %w", pid, err)
	}
	defer stream.Close()
	stop := context.AfterFunc(ctx, func() { stream.Reset() })
	defer stop()
	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.SetDeadline(deadline)
	}

	if err := codec.WriteFrame(stream, req); err != nil {
		return nil, fmt.Errorf("peer %s address %s: %w", pid, stream.Conn().RemoteMultiaddr(), err)
	}
	if err := stream.CloseWrite(); err != nil {
		return nil, fmt.Errorf("peer %s close write: %w", pid, err)
	}
	resp, err := codec.ReadFrames(stream, s.responseLimit)
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", ctx.Err(), err)
		}
		return nil, fmt.Errorf("peer %s read response: %w", pid, err)
	}
	return resp, nil
}

// NumAcceptedRequests returns the number of accepted requests for this server.
// It is used for testing.
func (s *Server) NumAcceptedRequests() int {
	if s.metrics == nil {
		return -1
	}
	m := &dto.Metric{}
	if err := s.metrics.accepted.Write(m); err != nil {
		panic("failed to get metric: " + err.Error())
	}
	return int(m.Counter.GetValue())
}
