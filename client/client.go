// Package client implements a polling client for the stabilizer: one request in flight at a
// time, background streams, a connection state machine and a cache of the last known device
// state.
package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fornellas/slogxt/log"
	"go.bug.st/serial"

	"github.com/fornellas/stabctl/broker"
	"github.com/fornellas/stabctl/protocol"
	"github.com/fornellas/stabctl/transport"
)

var (
	DefaultTimeout            = 3 * time.Second
	DefaultStreamPollInterval = 250 * time.Millisecond
	DefaultBaudRate           = 38400
)

// DefaultMode is 38400 8N1.
func DefaultMode() *serial.Mode {
	return &serial.Mode{
		BaudRate: DefaultBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

type Options struct {
	// Firmware variant; defaults to protocol.GrammarWiFi.
	Grammar protocol.Grammar
	// How long to wait for a response.
	Timeout time.Duration
	// Serial mode used when opening the port.
	Mode *serial.Mode
	// How often the stream reader checks whether it was asked to stop.
	StreamPollInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.Grammar == "" {
		o.Grammar = protocol.GrammarWiFi
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Mode == nil {
		o.Mode = DefaultMode()
	}
	if o.StreamPollInterval <= 0 {
		o.StreamPollInterval = DefaultStreamPollInterval
	}
	return o
}

type Client struct {
	openPortFn transport.OpenPortFn
	options    Options

	// serializes requests, connect and disconnect
	requestMu sync.Mutex

	// guards the fields below; never held while doing I/O
	stateMu   sync.Mutex
	state     State
	transport *transport.Transport
	stream    *Stream
	closed    bool
	// Disconnected by a stream ending rather than by Disconnect; the next request reconnects.
	recycled bool

	stateBroker  *broker.Broker[State]
	recordBroker *broker.Broker[protocol.Record]

	lastFilterParameters  atomic.Pointer[protocol.FilterParameters]
	lastChannelReading    atomic.Pointer[protocol.ChannelReading]
	lastOrientationSample atomic.Pointer[protocol.OrientationSample]
}

func New(openPortFn transport.OpenPortFn, options Options) *Client {
	return &Client{
		openPortFn:   openPortFn,
		options:      options.withDefaults(),
		stateBroker:  broker.NewBroker[State](),
		recordBroker: broker.NewBroker[protocol.Record](),
	}
}

func (c *Client) Grammar() protocol.Grammar {
	return c.options.Grammar
}

func (c *Client) State() State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

// SubscribeState returns a channel that receives every state transition.
func (c *Client) SubscribeState(name string, size int) <-chan State {
	return c.stateBroker.Subscribe(name, size)
}

// SubscribeRecords returns a channel that receives every successfully decoded record, from
// requests and streams alike.
func (c *Client) SubscribeRecords(name string, size int) <-chan protocol.Record {
	return c.recordBroker.Subscribe(name, size)
}

func (c *Client) LastFilterParameters() (protocol.FilterParameters, bool) {
	if p := c.lastFilterParameters.Load(); p != nil {
		return *p, true
	}
	return protocol.FilterParameters{}, false
}

func (c *Client) LastChannelReading() (protocol.ChannelReading, bool) {
	if r := c.lastChannelReading.Load(); r != nil {
		return *r, true
	}
	return protocol.ChannelReading{}, false
}

func (c *Client) LastOrientationSample() (protocol.OrientationSample, bool) {
	if s := c.lastOrientationSample.Load(); s != nil {
		return *s, true
	}
	return protocol.OrientationSample{}, false
}

func (c *Client) setStateLocked(ctx context.Context, state State) {
	if c.state == state {
		return
	}
	log.MustLogger(ctx).Info("State change", "from", c.state, "to", state)
	c.state = state
	if err := c.stateBroker.Publish(state); err != nil && !errors.Is(err, broker.ErrNoSubscribers) {
		panic(fmt.Sprintf("bug: unexpected broker error: %s", err))
	}
}

// record updates the cache and publishes the record to subscribers.
func (c *Client) record(record protocol.Record) {
	switch r := record.(type) {
	case *protocol.FilterParameters:
		p := *r
		c.lastFilterParameters.Store(&p)
	case *protocol.ChannelReading:
		cr := *r
		c.lastChannelReading.Store(&cr)
	case *protocol.OrientationSample:
		s := *r
		c.lastOrientationSample.Store(&s)
	}
	if err := c.recordBroker.Publish(record); err != nil && !errors.Is(err, broker.ErrNoSubscribers) {
		panic(fmt.Sprintf("bug: unexpected broker error: %s", err))
	}
}

// fault marks the client Faulted if t is still the current transport, and closes t.
func (c *Client) fault(ctx context.Context, t *transport.Transport, cause error) {
	logger := log.MustLogger(ctx)
	c.stateMu.Lock()
	if c.transport == t {
		logger.Warn("Connection faulted", "err", cause)
		c.transport = nil
		c.setStateLocked(ctx, StateFaulted)
	}
	c.stateMu.Unlock()
	if err := t.Close(); err != nil {
		logger.Debug("Failed to close transport", "err", err)
	}
}

// Connect opens the connection: Disconnected / Faulted -> Connecting -> Connected. On failure
// the state goes back to what it was and ErrConnection is returned.
func (c *Client) Connect(ctx context.Context) error {
	c.requestMu.Lock()
	defer c.requestMu.Unlock()
	return c.connect(ctx)
}

func (c *Client) connect(ctx context.Context) error {
	ctx, logger := log.MustWithGroup(ctx, "Connect")

	c.stateMu.Lock()
	if c.closed {
		c.stateMu.Unlock()
		return ErrClosed
	}
	previous := c.state
	if previous == StateConnected {
		c.stateMu.Unlock()
		return nil
	}
	c.setStateLocked(ctx, StateConnecting)
	c.stateMu.Unlock()

	t, err := transport.Open(ctx, c.openPortFn, c.options.Mode)

	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if err != nil {
		c.setStateLocked(ctx, previous)
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	if c.closed {
		return errors.Join(ErrClosed, t.Close())
	}
	c.transport = t
	c.recycled = false
	c.setStateLocked(ctx, StateConnected)
	logger.Debug("Connected", "grammar", c.options.Grammar)
	return nil
}

// acquire returns the transport to use for a request, reconnecting if Faulted. requestMu must be
// held.
func (c *Client) acquire(ctx context.Context, cmd protocol.Command) (*transport.Transport, error) {
	c.stateMu.Lock()
	closed := c.closed
	state := c.state
	stream := c.stream
	t := c.transport
	recycled := c.recycled
	c.stateMu.Unlock()

	if closed {
		return nil, ErrClosed
	}
	if stream != nil {
		if cmd.Expect != protocol.ShapeNone {
			return nil, fmt.Errorf("%w: %s stream: can not send %#v", ErrStreamActive, stream.Kind(), cmd.Text)
		}
		return stream.transport, nil
	}

	if state == StateDisconnected && recycled {
		state = StateFaulted
	}
	switch state {
	case StateConnected:
		return t, nil
	case StateFaulted:
		if err := c.connect(ctx); err != nil {
			return nil, err
		}
		c.stateMu.Lock()
		defer c.stateMu.Unlock()
		return c.transport, nil
	default:
		return nil, ErrDisconnected
	}
}

// Request sends cmd and, unless it expects no response, waits for one non blank line within the
// configured timeout. Only one request is in flight at a time.
//
//gocyclo:ignore
func (c *Client) Request(ctx context.Context, cmd protocol.Command) (protocol.Record, error) {
	c.requestMu.Lock()
	defer c.requestMu.Unlock()

	ctx, logger := log.MustWithGroupAttrs(ctx, "Request", "command", cmd.Text, "expect", cmd.Expect)

	t, err := c.acquire(ctx, cmd)
	if err != nil {
		return nil, err
	}

	logger.Debug("Sending")
	if err := t.Write(cmd.Line()); err != nil {
		c.fault(ctx, t, err)
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	if cmd.Expect == protocol.ShapeNone {
		return nil, nil
	}

	deadline := time.Now().Add(c.options.Timeout)
	var line string
	for {
		// A non positive timeout would make ReadLine wait for ctx only.
		remaining := time.Until(deadline)
		if remaining <= 0 {
			err = transport.ErrTimeout
		} else {
			line, err = t.ReadLine(ctx, remaining)
		}
		if err != nil {
			if errors.Is(err, transport.ErrLineTooLong) {
				return nil, fmt.Errorf("%w: %w", ErrProtocol, err)
			}
			if errors.Is(err, transport.ErrTimeout) {
				c.fault(ctx, t, err)
				return nil, fmt.Errorf("%w: no response to %#v within %s", ErrTimeout, cmd.Text, c.options.Timeout)
			}
			c.fault(ctx, t, err)
			return nil, fmt.Errorf("%w: %w", ErrConnection, err)
		}
		if strings.TrimSpace(line) != "" {
			break
		}
	}
	logger.Debug("Received", "line", line)

	record := protocol.Decode(cmd.Expect, line)
	if unrecognized, ok := record.(*protocol.Unrecognized); ok {
		return nil, fmt.Errorf("%w: unexpected response to %#v: %#v", ErrProtocol, cmd.Text, unrecognized.Line)
	}
	if status, ok := record.(*protocol.StatusToken); ok {
		if err := status.Err(); err != nil {
			return record, err
		}
	}

	c.record(record)
	return record, nil
}

// Disconnect stops any active stream and closes the connection. The client can be connected
// again.
func (c *Client) Disconnect(ctx context.Context) error {
	var errs []error

	c.stateMu.Lock()
	stream := c.stream
	c.stateMu.Unlock()
	if stream != nil {
		if err := stream.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	c.requestMu.Lock()
	defer c.requestMu.Unlock()

	c.stateMu.Lock()
	t := c.transport
	c.transport = nil
	c.recycled = false
	c.setStateLocked(ctx, StateDisconnected)
	c.stateMu.Unlock()

	if t != nil {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close disconnects and closes all subscriber channels. It is idempotent.
func (c *Client) Close(ctx context.Context) error {
	c.stateMu.Lock()
	if c.closed {
		c.stateMu.Unlock()
		return nil
	}
	c.stateMu.Unlock()

	err := c.Disconnect(ctx)

	c.stateMu.Lock()
	c.closed = true
	c.stateMu.Unlock()

	c.stateBroker.Close()
	c.recordBroker.Close()
	return err
}
