package main

import (
	"context"
	"errors"

	"github.com/fornellas/slogxt/log"
	"github.com/spf13/cobra"

	"github.com/fornellas/stabctl/client"
)

// newDeviceCmd returns a command that connects, calls fn and disconnects.
func newDeviceCmd(use, short string, fn func(*client.Client, context.Context) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		Run: GetRunFn(func(cmd *cobra.Command, args []string) (err error) {
			ctx, logger := log.MustWithAttrs(
				cmd.Context(),
				"endpoint", GetEndpoint(),
				"grammar", grammarName,
			)
			cmd.SetContext(ctx)

			c, err := NewClient(ctx)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, c.Close(ctx)) }()

			if err := fn(c, ctx); err != nil {
				return err
			}
			logger.Info("Done")
			return nil
		}),
	}
	AddPortFlags(cmd)
	RootCmd.AddCommand(cmd)
	return cmd
}

var SaveCmd = newDeviceCmd(
	"save", "Save the filter coefficients to the device non volatile storage.",
	(*client.Client).Save,
)

var CalibrateCmd = newDeviceCmd(
	"calibrate", "Recalibrate sensor offsets; the device must be still (serial grammar).",
	(*client.Client).Calibrate,
)

var ZeroYawCmd = newDeviceCmd(
	"zero-yaw", "Make the current heading the zero yaw (serial grammar).",
	(*client.Client).ZeroYaw,
)

var StandaloneCmd = newDeviceCmd(
	"standalone", "Return the device to standalone operation (serial grammar).",
	(*client.Client).EnterStandalone,
)
