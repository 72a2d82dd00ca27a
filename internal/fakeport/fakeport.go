// Package fakeport implements an in memory, scripted serial.Port for tests.
package fakeport

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
)

var ErrNotSupported = errors.New("not supported")

// Responder is called with each line written to the port (without the trailing newline) and
// returns chunks to be fed back for reading.
type Responder func(line string) []string

// Port is a serial.Port backed by a channel of chunks to be read and a buffer of written bytes.
type Port struct {
	mu          sync.Mutex
	readCh      chan []byte
	pending     []byte
	written     bytes.Buffer
	writtenLine []byte
	readTimeout time.Duration
	closed      chan struct{}
	closeOnce   sync.Once
	responder   Responder
	WriteError  error
}

func NewPort(responder Responder) *Port {
	return &Port{
		readCh:      make(chan []byte, 1024),
		readTimeout: serial.NoTimeout,
		closed:      make(chan struct{}),
		responder:   responder,
	}
}

// Feed queues chunk to be returned by Read.
func (p *Port) Feed(chunks ...string) {
	for _, chunk := range chunks {
		p.readCh <- []byte(chunk)
	}
}

// Written returns all bytes written so far.
func (p *Port) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

// Closed reports whether Close was called.
func (p *Port) Closed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

func (p *Port) SetMode(mode *serial.Mode) error {
	return nil
}

// Read follows go.bug.st/serial semantics: on read timeout it returns 0, nil.
func (p *Port) Read(b []byte) (int, error) {
	p.mu.Lock()
	if len(p.pending) > 0 {
		n := copy(b, p.pending)
		p.pending = p.pending[n:]
		p.mu.Unlock()
		return n, nil
	}
	readTimeout := p.readTimeout
	p.mu.Unlock()

	var timeoutCh <-chan time.Time
	if readTimeout != serial.NoTimeout {
		timer := time.NewTimer(readTimeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case <-p.closed:
		return 0, io.EOF
	case chunk := <-p.readCh:
		p.mu.Lock()
		defer p.mu.Unlock()
		n := copy(b, chunk)
		p.pending = append(p.pending, chunk[n:]...)
		return n, nil
	case <-timeoutCh:
		return 0, nil
	}
}

func (p *Port) Write(b []byte) (int, error) {
	if p.Closed() {
		return 0, io.ErrClosedPipe
	}
	p.mu.Lock()
	if p.WriteError != nil {
		err := p.WriteError
		p.mu.Unlock()
		return 0, err
	}
	p.written.Write(b)
	var lines []string
	for _, c := range b {
		if c == '\n' {
			lines = append(lines, string(p.writtenLine))
			p.writtenLine = nil
			continue
		}
		p.writtenLine = append(p.writtenLine, c)
	}
	p.mu.Unlock()

	if p.responder != nil {
		for _, line := range lines {
			p.Feed(p.responder(line)...)
		}
	}
	return len(b), nil
}

func (p *Port) Drain() error {
	return nil
}

func (p *Port) ResetInputBuffer() error {
	return nil
}

func (p *Port) ResetOutputBuffer() error {
	return nil
}

func (p *Port) SetDTR(dtr bool) error {
	return ErrNotSupported
}

func (p *Port) SetRTS(rts bool) error {
	return ErrNotSupported
}

func (p *Port) GetModemStatusBits() (*serial.ModemStatusBits, error) {
	return nil, ErrNotSupported
}

func (p *Port) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readTimeout = t
	return nil
}

func (p *Port) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}

func (p *Port) Break(time.Duration) error {
	return ErrNotSupported
}
