package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fornellas/slogxt/log"

	"github.com/fornellas/stabctl/protocol"
	"github.com/fornellas/stabctl/transport"
)

// Stream is a long lived sequence of records started by a start{Kind}Stream command. While it
// is active it owns the connection.
type Stream struct {
	client    *Client
	kind      protocol.StreamKind
	transport *transport.Transport
	onRecord  func(protocol.Record)
	stopping  atomic.Bool
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
	err       error
}

func (s *Stream) Kind() protocol.StreamKind {
	return s.kind
}

// Done is closed when the reader exits.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Err returns why the stream ended: nil when stopped or cancelled. Only valid after Done is
// closed.
func (s *Stream) Err() error {
	return s.err
}

// Stop asks the reader to exit at its next read boundary, sends the stop command when the kind
// has one, and waits for the reader. If ctx is done first, the reader is cancelled.
func (s *Stream) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		logger := log.MustLogger(ctx)
		logger.Info("Stopping stream", "kind", s.kind)
		s.stopping.Store(true)
		if cmd, ok := protocol.EncodeStopStream(s.kind); ok && !s.transport.Closed() {
			logger.Debug("Sending", "command", cmd.Text)
			if err := s.transport.Write(cmd.Line()); err != nil {
				logger.Warn("Failed to send stop command", "command", cmd.Text, "err", err)
			}
		}
	})
	select {
	case <-s.done:
	case <-ctx.Done():
		s.cancel()
		<-s.done
	}
	return s.err
}

//gocyclo:ignore
func (s *Stream) read(ctx context.Context) error {
	logger := log.MustLogger(ctx)
	shape := s.kind.Shape()
	for {
		if s.stopping.Load() {
			return nil
		}
		line, err := s.transport.ReadLine(ctx, s.client.options.StreamPollInterval)
		if err != nil {
			if errors.Is(err, transport.ErrTimeout) {
				continue
			}
			if errors.Is(err, transport.ErrLineTooLong) {
				logger.Warn("Skipping line", "err", err)
				continue
			}
			if s.stopping.Load() || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: %w", ErrConnection, err)
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		logger.Debug("Received", "line", line)

		record := protocol.Decode(shape, line)
		if _, ok := record.(*protocol.Unrecognized); ok {
			logger.Warn("Skipping unrecognized line", "line", line)
			continue
		}
		s.client.record(record)
		if s.onRecord != nil {
			s.onRecord(record)
		}
	}
}

func (s *Stream) run(ctx context.Context) {
	ctx, logger := log.MustWithGroupAttrs(ctx, "Stream", "kind", s.kind)
	defer close(s.done)

	s.err = s.read(ctx)

	// Lines of the stream may still be in flight, so the connection is not reused: a clean end
	// leaves the client Disconnected and the next request reconnects.
	c := s.client
	c.stateMu.Lock()
	if c.stream == s {
		c.stream = nil
	}
	c.stateMu.Unlock()
	if s.err != nil {
		c.fault(ctx, s.transport, s.err)
	} else {
		logger.Info("Recycling connection")
		c.stateMu.Lock()
		if c.transport == s.transport {
			c.transport = nil
			c.recycled = true
			c.setStateLocked(ctx, StateDisconnected)
		}
		c.stateMu.Unlock()
		if err := s.transport.Close(); err != nil {
			logger.Debug("Failed to close transport", "err", err)
		}
	}
	logger.Debug("Finished", "err", s.err)
}

// StartStream sends the start command and reads records in the background until Stop, Close, ctx
// cancellation or a connection error. Each record updates the cache, is published to record
// subscribers and is passed to onRecord, which may be nil. Unrecognized lines are logged and
// skipped.
func (c *Client) StartStream(
	ctx context.Context, kind protocol.StreamKind, onRecord func(protocol.Record),
) (*Stream, error) {
	if !c.options.Grammar.SupportsStreams() {
		return nil, fmt.Errorf("%w: %s stream with %s grammar", ErrUnsupported, kind, c.options.Grammar)
	}

	c.requestMu.Lock()
	defer c.requestMu.Unlock()

	cmd := protocol.EncodeStartStream(kind)
	ctx, logger := log.MustWithGroupAttrs(ctx, "StartStream", "command", cmd.Text)

	// ShapeNone gets the current transport, or ErrStreamActive below.
	c.stateMu.Lock()
	active := c.stream
	c.stateMu.Unlock()
	if active != nil {
		return nil, fmt.Errorf("%w: %s stream", ErrStreamActive, active.Kind())
	}
	t, err := c.acquire(ctx, protocol.Command{Text: cmd.Text, Expect: protocol.ShapeNone})
	if err != nil {
		return nil, err
	}

	logger.Debug("Sending")
	if err := t.Write(cmd.Line()); err != nil {
		c.fault(ctx, t, err)
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	s := &Stream{
		client:    c,
		kind:      kind,
		transport: t,
		onRecord:  onRecord,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	c.stateMu.Lock()
	c.stream = s
	c.stateMu.Unlock()

	go func() {
		defer cancel()
		s.run(streamCtx)
	}()

	logger.Info("Stream started")
	return s, nil
}
