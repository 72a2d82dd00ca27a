package main

import (
	"errors"

	"github.com/fornellas/slogxt/log"
	"github.com/spf13/cobra"

	"github.com/fornellas/stabctl/protocol"
)

var GetCmd = &cobra.Command{
	Use:   "get",
	Short: "Read the filter coefficients from the device.",
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

		logger.Debug("Reading")
		var record protocol.Record
		switch c.Grammar() {
		case protocol.GrammarWiFiScalar:
			var value float64
			value, err = c.GetScalar(ctx)
			record = &protocol.ScalarValue{Value: value}
		default:
			var p protocol.FilterParameters
			p, err = c.GetFilterParameters(ctx)
			record = &p
		}
		if err != nil {
			return err
		}
		return WriteRecord(cmd.OutOrStdout(), record)
	}),
}

func init() {
	AddPortFlags(GetCmd)
	AddFormatFlags(GetCmd)

	RootCmd.AddCommand(GetCmd)
}
