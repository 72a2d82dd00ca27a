package main

import (
	"github.com/fornellas/slogxt/log"
	"github.com/spf13/cobra"

	tuiMod "github.com/fornellas/stabctl/tui"
)

var tuiYawMode bool
var defaultTuiYawMode = false

var tuiBoard bool
var defaultTuiBoard = false

var TuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open a terminal control panel for the stabilizer.",
	Long:  "Shows connection state, lets the filter coefficients be read, applied and saved, and displays PWM channels and a live orientation cube. F2 toggles yaw, F3 toggles the cube shape and Ctrl+C exits.",
	Args:  cobra.NoArgs,
	Run: GetRunFn(func(cmd *cobra.Command, args []string) (err error) {
		ctx, _ := log.MustWithAttrs(
			cmd.Context(),
			"endpoint", GetEndpoint(),
			"grammar", grammarName,
			"timeout", timeout,
		)
		cmd.SetContext(ctx)

		openPortFn, err := GetOpenPortFn()
		if err != nil {
			return err
		}
		clientOptions, err := GetClientOptions()
		if err != nil {
			return err
		}

		tui := tuiMod.NewTui(openPortFn, clientOptions, &tuiMod.TuiOptions{
			Address:   GetEndpoint(),
			YawMode:   tuiYawMode,
			Board:     tuiBoard,
			AppLogger: logDebugFileLogger,
		})

		return tui.Run(ctx)
	}),
}

func init() {
	AddPortFlags(TuiCmd)

	TuiCmd.Flags().BoolVar(&tuiYawMode, "yaw", defaultTuiYawMode, "Rotate the cube by yaw too")
	TuiCmd.Flags().BoolVar(&tuiBoard, "board", defaultTuiBoard, "Draw a flat board instead of a cube")

	RootCmd.AddCommand(TuiCmd)

	resetFlagsFns = append(resetFlagsFns, func() {
		tuiYawMode = defaultTuiYawMode
		tuiBoard = defaultTuiBoard
	})
}
