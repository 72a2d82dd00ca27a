package client

import (
	"context"
	"fmt"

	"github.com/fornellas/stabctl/protocol"
)

func unexpectedRecord(cmd protocol.Command, record protocol.Record) error {
	return fmt.Errorf("%w: unexpected response to %#v: %#v", ErrProtocol, cmd.Text, record)
}

func (c *Client) requireGrammar(ok bool, what string) error {
	if !ok {
		return fmt.Errorf("%w: %s with %s grammar", ErrUnsupported, what, c.options.Grammar)
	}
	return nil
}

func (c *Client) requestFilterParameters(ctx context.Context, cmd protocol.Command) (protocol.FilterParameters, error) {
	record, err := c.Request(ctx, cmd)
	if err != nil {
		return protocol.FilterParameters{}, err
	}
	p, ok := record.(*protocol.FilterParameters)
	if !ok {
		return protocol.FilterParameters{}, unexpectedRecord(cmd, record)
	}
	return *p, nil
}

func (c *Client) requestStatus(ctx context.Context, cmd protocol.Command) error {
	record, err := c.Request(ctx, cmd)
	if err != nil {
		return err
	}
	if _, ok := record.(*protocol.StatusToken); !ok {
		return unexpectedRecord(cmd, record)
	}
	return nil
}

// GetFilterParameters reads the three coefficients from the device.
func (c *Client) GetFilterParameters(ctx context.Context) (protocol.FilterParameters, error) {
	if err := c.requireGrammar(c.options.Grammar != protocol.GrammarWiFiScalar, "get filter parameters"); err != nil {
		return protocol.FilterParameters{}, err
	}
	return c.requestFilterParameters(ctx, c.options.Grammar.GetCommand())
}

// SetFilter changes a single coefficient. The serial grammar can only set all three at once, so
// the other two come from the cache, or are queried first when the cache is empty.
func (c *Client) SetFilter(ctx context.Context, filter protocol.Filter, value float64) error {
	switch c.options.Grammar {
	case protocol.GrammarWiFi:
		cmd, err := protocol.EncodeSetFilter(filter, value)
		if err != nil {
			return err
		}
		if err := c.requestStatus(ctx, cmd); err != nil {
			return err
		}
		if p, ok := c.LastFilterParameters(); ok {
			p.Set(filter, value)
			c.lastFilterParameters.Store(&p)
		}
		return nil
	case protocol.GrammarSerial:
		p, ok := c.LastFilterParameters()
		if !ok {
			var err error
			p, err = c.QueryParameters(ctx)
			if err != nil {
				return err
			}
		}
		p.Set(filter, value)
		return c.SetParameters(ctx, p)
	default:
		return c.requireGrammar(false, "set filter")
	}
}

// PushFilterParameters sends all coefficients to the device without saving them. Call Save
// afterwards to persist.
func (c *Client) PushFilterParameters(ctx context.Context, p protocol.FilterParameters) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if c.options.Grammar == protocol.GrammarSerial {
		return c.SetParameters(ctx, p)
	}
	if err := c.requireGrammar(c.options.Grammar == protocol.GrammarWiFi, "push filter parameters"); err != nil {
		return err
	}
	for _, filter := range protocol.Filters {
		cmd, err := protocol.EncodeSetFilter(filter, p.Get(filter))
		if err != nil {
			return err
		}
		if err := c.requestStatus(ctx, cmd); err != nil {
			return fmt.Errorf("failed to set %s: %w", filter, err)
		}
	}
	c.lastFilterParameters.Store(&p)
	return nil
}

// Save persists the pushed parameters to the device non volatile storage.
func (c *Client) Save(ctx context.Context) error {
	cmd := c.options.Grammar.SaveCommand()
	if cmd.Expect == protocol.ShapeNone {
		_, err := c.Request(ctx, cmd)
		return err
	}
	return c.requestStatus(ctx, cmd)
}

// GetScalar reads the single value of single value firmware.
func (c *Client) GetScalar(ctx context.Context) (float64, error) {
	if err := c.requireGrammar(c.options.Grammar == protocol.GrammarWiFiScalar, "get scalar"); err != nil {
		return 0, err
	}
	cmd := c.options.Grammar.GetCommand()
	record, err := c.Request(ctx, cmd)
	if err != nil {
		return 0, err
	}
	v, ok := record.(*protocol.ScalarValue)
	if !ok {
		return 0, unexpectedRecord(cmd, record)
	}
	return v.Value, nil
}

func (c *Client) SetScalar(ctx context.Context, value float64) error {
	if err := c.requireGrammar(c.options.Grammar == protocol.GrammarWiFiScalar, "set scalar"); err != nil {
		return err
	}
	cmd, err := protocol.EncodeSetScalar(value)
	if err != nil {
		return err
	}
	return c.requestStatus(ctx, cmd)
}

func (c *Client) QueryParameters(ctx context.Context) (protocol.FilterParameters, error) {
	if err := c.requireGrammar(c.options.Grammar.SupportsMotionCommands(), "query parameters"); err != nil {
		return protocol.FilterParameters{}, err
	}
	return c.requestFilterParameters(ctx, protocol.EncodeQueryParameters())
}

func (c *Client) QueryOrientation(ctx context.Context) (protocol.OrientationSample, error) {
	if err := c.requireGrammar(c.options.Grammar.SupportsMotionCommands(), "query orientation"); err != nil {
		return protocol.OrientationSample{}, err
	}
	cmd := protocol.EncodeQueryOrientation()
	record, err := c.Request(ctx, cmd)
	if err != nil {
		return protocol.OrientationSample{}, err
	}
	s, ok := record.(*protocol.OrientationSample)
	if !ok {
		return protocol.OrientationSample{}, unexpectedRecord(cmd, record)
	}
	return *s, nil
}

// SetParameters sends all coefficients at once. The device does not acknowledge it, so the
// cache is updated optimistically.
func (c *Client) SetParameters(ctx context.Context, p protocol.FilterParameters) error {
	if err := c.requireGrammar(c.options.Grammar.SupportsMotionCommands(), "set parameters"); err != nil {
		return err
	}
	cmd, err := protocol.EncodeSetParameters(p)
	if err != nil {
		return err
	}
	if _, err := c.Request(ctx, cmd); err != nil {
		return err
	}
	c.lastFilterParameters.Store(&p)
	return nil
}

func (c *Client) sendMotionCommand(ctx context.Context, cmd protocol.Command, what string) error {
	if err := c.requireGrammar(c.options.Grammar.SupportsMotionCommands(), what); err != nil {
		return err
	}
	_, err := c.Request(ctx, cmd)
	return err
}

// Calibrate asks the device to recalibrate its sensor offsets. The device must be still.
func (c *Client) Calibrate(ctx context.Context) error {
	return c.sendMotionCommand(ctx, protocol.EncodeCalibrate(), "calibrate")
}

func (c *Client) ZeroYaw(ctx context.Context) error {
	return c.sendMotionCommand(ctx, protocol.EncodeZeroYaw(), "zero yaw")
}

func (c *Client) Flash(ctx context.Context) error {
	return c.sendMotionCommand(ctx, protocol.EncodeFlash(), "flash")
}

// EnterStandalone hands control back to the device; sent before disconnecting.
func (c *Client) EnterStandalone(ctx context.Context) error {
	return c.sendMotionCommand(ctx, protocol.EncodeStandalone(), "standalone")
}
