package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/fornellas/slogxt/log"
	"github.com/spf13/cobra"

	"github.com/fornellas/stabctl/protocol"
)

var setSave bool
var defaultSetSave = false

var SetCmd = &cobra.Command{
	Use:   "set [accel|gyro|comp] value",
	Short: "Set a filter coefficient, within [0, 1].",
	Long:  "Set a filter coefficient, within [0, 1]. Single value firmware (--grammar wifi-scalar) takes only the value. The new value is not persisted unless --save is given or the save command is run.",
	Args:  cobra.RangeArgs(1, 2),
	Run: GetRunFn(func(cmd *cobra.Command, args []string) (err error) {
		ctx, logger := log.MustWithAttrs(
			cmd.Context(),
			"endpoint", GetEndpoint(),
			"grammar", grammarName,
			"args", args,
			"save", setSave,
		)
		cmd.SetContext(ctx)

		value, err := strconv.ParseFloat(args[len(args)-1], 64)
		if err != nil {
			return fmt.Errorf("invalid value: %#v: %w", args[len(args)-1], err)
		}

		c, err := NewClient(ctx)
		if err != nil {
			return err
		}
		defer func() { err = errors.Join(err, c.Close(ctx)) }()

		if c.Grammar() == protocol.GrammarWiFiScalar {
			if len(args) != 1 {
				return fmt.Errorf("%s grammar takes only the value", c.Grammar())
			}
			err = c.SetScalar(ctx, value)
		} else {
			if len(args) != 2 {
				return fmt.Errorf("missing filter name")
			}
			var filter protocol.Filter
			filter, err = protocol.ParseFilter(args[0])
			if err != nil {
				return err
			}
			err = c.SetFilter(ctx, filter, value)
		}
		if err != nil {
			return err
		}
		logger.Info("Set")

		if setSave {
			if err := c.Save(ctx); err != nil {
				return err
			}
			logger.Info("Saved")
		}
		return nil
	}),
}

func init() {
	AddPortFlags(SetCmd)
	SetCmd.Flags().BoolVar(&setSave, "save", defaultSetSave, "Save to the device non volatile storage after setting")

	RootCmd.AddCommand(SetCmd)

	resetFlagsFns = append(resetFlagsFns, func() {
		setSave = defaultSetSave
	})
}
