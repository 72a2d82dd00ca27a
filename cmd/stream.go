package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fornellas/slogxt/log"
	"github.com/spf13/cobra"

	"github.com/fornellas/stabctl/client"
	"github.com/fornellas/stabctl/protocol"
)

var streamCount int
var defaultStreamCount = 0

// followStream runs a stream until ctx is done, the stream ends, or count records were received
// when count is positive. Each record is passed to fn.
func followStream(
	ctx context.Context, c *client.Client, kind protocol.StreamKind, count int, fn func(protocol.Record) error,
) (err error) {
	var mu sync.Mutex
	var received int
	var fnErr error
	finished := make(chan struct{})
	var finishOnce sync.Once
	finish := func() { finishOnce.Do(func() { close(finished) }) }

	// The stream keeps reading until Stop, so the stop command goes out on a live connection.
	stream, err := c.StartStream(ctx, kind, func(record protocol.Record) {
		mu.Lock()
		defer mu.Unlock()
		if fnErr != nil || (count > 0 && received >= count) {
			return
		}
		if fnErr = fn(record); fnErr != nil {
			finish()
			return
		}
		received++
		if count > 0 && received >= count {
			finish()
		}
	})
	if err != nil {
		return err
	}

	select {
	case <-stream.Done():
	case <-finished:
	case <-ctx.Done():
	}

	stopCtx, stopCancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer stopCancel()
	err = stream.Stop(stopCtx)

	mu.Lock()
	defer mu.Unlock()
	return errors.Join(err, fnErr)
}

var StreamCmd = &cobra.Command{
	Use:   "stream pwm|cube",
	Short: "Start a stream and print its records.",
	Long:  "Start a PWM (channel percentages) or cube (orientation) stream and print each record, until interrupted or --count records were printed.",
	Args:  cobra.ExactArgs(1),
	Run: GetRunFn(func(cmd *cobra.Command, args []string) (err error) {
		ctx, logger := log.MustWithAttrs(
			cmd.Context(),
			"endpoint", GetEndpoint(),
			"kind", args[0],
			"count", streamCount,
			"output", outputValue,
		)
		cmd.SetContext(ctx)

		kind, err := protocol.ParseStreamKind(args[0])
		if err != nil {
			return err
		}

		w, err := outputValue.WriterCloser(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer func() { err = errors.Join(err, w.Close()) }()

		c, err := NewClient(ctx)
		if err != nil {
			return err
		}
		defer func() { err = errors.Join(err, c.Close(ctx)) }()

		logger.Info("Streaming")
		err = followStream(ctx, c, kind, streamCount, func(record protocol.Record) error {
			if err := WriteRecord(w, record); err != nil {
				return fmt.Errorf("failed to write record: %w", err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		logger.Info("Stream finished")
		return nil
	}),
}

func init() {
	AddPortFlags(StreamCmd)
	AddOutputFlags(StreamCmd)
	StreamCmd.Flags().IntVar(&streamCount, "count", defaultStreamCount, "Stop after this many records; 0 streams until interrupted")

	RootCmd.AddCommand(StreamCmd)

	resetFlagsFns = append(resetFlagsFns, func() {
		streamCount = defaultStreamCount
	})
}
