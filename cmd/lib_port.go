package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fornellas/slogxt/log"
	"github.com/spf13/cobra"
	"go.bug.st/serial"

	"github.com/fornellas/stabctl/client"
	"github.com/fornellas/stabctl/protocol"
	"github.com/fornellas/stabctl/serialtcp"
	"github.com/fornellas/stabctl/transport"
)

var portName string
var defaultPortName = ""

var address string
var defaultAddress = "esp32.local:12345"

var baudRate int
var defaultBaudRate = client.DefaultBaudRate

var timeout time.Duration
var defaultTimeout = client.DefaultTimeout

var grammarName string
var defaultGrammarName = string(protocol.GrammarWiFi)

func AddPortFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&portName, "port-name", "p", defaultPortName, "Serial port name to open; takes precedence over --address")
	cmd.PersistentFlags().StringVarP(&address, "address", "a", defaultAddress, "TCP address to connect to (host:port)")
	cmd.PersistentFlags().IntVar(&baudRate, "baud-rate", defaultBaudRate, "Serial port baud rate")
	cmd.PersistentFlags().DurationVar(&timeout, "timeout", defaultTimeout, "Connect and response timeout")
	grammarNames := make([]string, len(protocol.Grammars))
	for i, grammar := range protocol.Grammars {
		grammarNames[i] = string(grammar)
	}
	cmd.PersistentFlags().StringVar(
		&grammarName, "grammar", defaultGrammarName,
		fmt.Sprintf("Firmware variant, one of: %s", strings.Join(grammarNames, ", ")),
	)
}

func GetMode() *serial.Mode {
	mode := client.DefaultMode()
	mode.BaudRate = baudRate
	return mode
}

// GetEndpoint describes where GetOpenPortFn connects to.
func GetEndpoint() string {
	if portName != "" {
		return portName
	}
	return address
}

func GetOpenPortFn() (transport.OpenPortFn, error) {
	if portName != "" {
		return func(ctx context.Context, mode *serial.Mode) (serial.Port, error) {
			log.MustLogger(ctx).Info("Opening serial port", "port-name", portName, "baud-rate", mode.BaudRate)
			return serial.Open(portName, mode)
		}, nil
	}

	if address != "" {
		return func(ctx context.Context, mode *serial.Mode) (serial.Port, error) {
			return serialtcp.TcpPortDial(ctx, address, timeout)
		}, nil
	}

	return nil, fmt.Errorf("either --port-name or --address must be set")
}

func GetClientOptions() (client.Options, error) {
	grammar, err := protocol.ParseGrammar(grammarName)
	if err != nil {
		return client.Options{}, err
	}
	return client.Options{
		Grammar: grammar,
		Timeout: timeout,
		Mode:    GetMode(),
	}, nil
}

// NewClient returns a connected client. Close must be called on it.
func NewClient(ctx context.Context) (*client.Client, error) {
	openPortFn, err := GetOpenPortFn()
	if err != nil {
		return nil, err
	}
	options, err := GetClientOptions()
	if err != nil {
		return nil, err
	}
	c := client.New(openPortFn, options)
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func init() {
	resetFlagsFns = append(resetFlagsFns, func() {
		portName = defaultPortName
		address = defaultAddress
		baudRate = defaultBaudRate
		timeout = defaultTimeout
		grammarName = defaultGrammarName
	})
}
