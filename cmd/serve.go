package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/fornellas/slogxt/log"
	"github.com/spf13/cobra"
	"go.bug.st/serial"
)

var listenAddress string
var defaultListenAddress = "127.0.0.1:12345"

func handleServeConnection(ctx context.Context, conn net.Conn, port string, mode *serial.Mode) error {
	logger := log.MustLogger(ctx)

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(true); err != nil {
			return fmt.Errorf("failed to set TCP no delay: %w", err)
		}
	}

	logger.Info("Opening serial port", "baud-rate", mode.BaudRate)
	serialPort, err := serial.Open(port, mode)
	if err != nil {
		return fmt.Errorf("failed to open: %s: %w", port, err)
	}

	errCh := make(chan error, 2)

	logger.Info("Copying I/O")
	go func() {
		_, err := io.Copy(conn, serialPort)
		errCh <- err
	}()

	go func() {
		_, err := io.Copy(serialPort, conn)
		errCh <- err
	}()

	pending := 2
	select {
	case err = <-errCh:
		pending--
	case <-ctx.Done():
		err = ctx.Err()
	}
	logger.Info("Closing connection")
	err = errors.Join(err, conn.Close())
	logger.Info("Closing port")
	err = errors.Join(err, serialPort.Close())
	logger.Info("Waiting for copy routines to return")
	for range pending {
		<-errCh
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose a stabilizer attached to a serial port over TCP.",
	Long:  "Opens the serial port and a TCP server, and pipes communication between both, one client at a time, so that other commands can use --address with a stabilizer attached to this host. There's NO security implemented, this can only be used in secure networks at your own risk.",
	Args:  cobra.NoArgs,
	Run: GetRunFn(func(cmd *cobra.Command, args []string) (err error) {
		ctx, logger := log.MustWithAttrs(
			cmd.Context(),
			"port-name", portName,
			"baud-rate", baudRate,
			"listen-address", listenAddress,
		)
		cmd.SetContext(ctx)

		logger.Info("Listening")
		var listenConfig net.ListenConfig
		listener, err := listenConfig.Listen(ctx, "tcp", listenAddress)
		if err != nil {
			return fmt.Errorf("failed to listen: %s: %w", listenAddress, err)
		}
		defer func() { err = errors.Join(err, listener.Close()) }()
		go func() {
			<-ctx.Done()
			listener.Close()
		}()

		for {
			logger.Info("Accepting connection")
			conn, err := listener.Accept()
			if err != nil {
				if ctx.Err() != nil {
					logger.Info("Stopped")
					return nil
				}
				logger.Error("Failed to accept connection", "err", err)
				continue
			}
			connCtx, connLogger := log.MustWithGroupAttrs(
				ctx,
				"Connection",
				"LocalAddr", conn.LocalAddr(),
				"RemoteAddr", conn.RemoteAddr(),
			)
			connLogger.Info("Accepted")

			if err := handleServeConnection(connCtx, conn, portName, GetMode()); err != nil {
				connLogger.Error("Failed to handle connection", "err", err)
			}
		}
	}),
}

func init() {
	ServeCmd.PersistentFlags().StringVarP(&portName, "port-name", "p", defaultPortName, "Serial port name to open")
	if err := ServeCmd.MarkPersistentFlagRequired("port-name"); err != nil {
		panic(err)
	}
	ServeCmd.PersistentFlags().IntVar(&baudRate, "baud-rate", defaultBaudRate, "Serial port baud rate")
	ServeCmd.PersistentFlags().StringVar(&listenAddress, "listen-address", defaultListenAddress, "TCP address to listen on (host:port)")

	RootCmd.AddCommand(ServeCmd)

	resetFlagsFns = append(resetFlagsFns, func() {
		listenAddress = defaultListenAddress
	})
}
