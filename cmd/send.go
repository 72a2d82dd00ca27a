package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fornellas/slogxt/log"
	"github.com/spf13/cobra"

	"github.com/fornellas/stabctl/protocol"
)

var sendExpect string
var defaultSendExpect = protocol.ShapeStatus.String()

var SendCmd = &cobra.Command{
	Use:   "send command",
	Short: "Send a raw command and print the response.",
	Long:  "Send a raw command, such as on, off or blink for LED firmware, and print the decoded response. --expect tells the response shape; none sends without waiting for a response.",
	Args:  cobra.ExactArgs(1),
	Run: GetRunFn(func(cmd *cobra.Command, args []string) (err error) {
		ctx, logger := log.MustWithAttrs(
			cmd.Context(),
			"endpoint", GetEndpoint(),
			"command", args[0],
			"expect", sendExpect,
		)
		cmd.SetContext(ctx)

		shape, err := protocol.ParseShape(sendExpect)
		if err != nil {
			return err
		}
		command, err := protocol.NewCommand(args[0], shape)
		if err != nil {
			return err
		}

		c, err := NewClient(ctx)
		if err != nil {
			return err
		}
		defer func() { err = errors.Join(err, c.Close(ctx)) }()

		record, err := c.Request(ctx, command)
		if record != nil {
			if writeErr := WriteRecord(cmd.OutOrStdout(), record); writeErr != nil {
				return errors.Join(err, writeErr)
			}
		}
		if err != nil {
			return err
		}
		logger.Debug("Sent")
		return nil
	}),
}

func init() {
	AddPortFlags(SendCmd)
	AddFormatFlags(SendCmd)
	SendCmd.Flags().StringVar(
		&sendExpect, "expect", defaultSendExpect,
		fmt.Sprintf("Response shape, one of: %s", strings.Join(protocol.ShapeNames(), ", ")),
	)

	RootCmd.AddCommand(SendCmd)

	resetFlagsFns = append(resetFlagsFns, func() {
		sendExpect = defaultSendExpect
	})
}
