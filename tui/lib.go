package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"

	"github.com/fornellas/stabctl/client"
	"github.com/fornellas/stabctl/cube"
	iFmt "github.com/fornellas/stabctl/internal/fmt"
	"github.com/fornellas/stabctl/protocol"
)

// acceptFilterValue accepts partial input of a number within [0, 1].
func acceptFilterValue(textToCheck string, lastChar rune) bool {
	if textToCheck == "" || textToCheck == "." {
		return true
	}
	value, err := strconv.ParseFloat(textToCheck, 64)
	if err != nil {
		return false
	}
	return value >= protocol.FilterMin && value <= protocol.FilterMax
}

func sprintFilterValue(value float64) string {
	return iFmt.SprintFixed(value, protocol.SetFilterPrecision)
}

func sprintFloat(value float64, decimal uint) string {
	return fmt.Sprintf("[%s]%s[-]", tcell.ColorOrange, iFmt.SprintFloat(value, decimal))
}

func sprintAngle(value float64) string {
	return sprintFloat(value, 1)
}

func getStateColor(state client.State) tcell.Color {
	switch state {
	case client.StateConnected:
		return tcell.ColorGreen
	case client.StateConnecting:
		return tcell.ColorYellow
	case client.StateFaulted:
		return tcell.ColorRed
	default:
		return tcell.ColorGray
	}
}

func sprintState(state client.State) string {
	return fmt.Sprintf("[%s]%s[-]", getStateColor(state), state)
}

func getAutopilotColor(autopilot protocol.Autopilot) tcell.Color {
	switch autopilot {
	case protocol.AutopilotOn:
		return tcell.ColorGreen
	case protocol.AutopilotOff:
		return tcell.ColorRed
	default:
		return tcell.ColorYellow
	}
}

// sprintBar draws a horizontal bar of width cells for a percentage.
func sprintBar(percent, width int) string {
	filled := percent * width / protocol.ChannelMax
	return fmt.Sprintf(
		"[%s]%s[-][%s]%s[-]",
		tcell.ColorGreen, strings.Repeat("█", filled),
		tcell.ColorGray, strings.Repeat("░", width-filled),
	)
}

func getCubeColor(color cube.Color) tcell.Color {
	switch color {
	case cube.ColorGreen:
		return tcell.ColorGreen
	case cube.ColorOrange:
		return tcell.ColorOrange
	case cube.ColorRed:
		return tcell.ColorRed
	case cube.ColorYellow:
		return tcell.ColorYellow
	case cube.ColorBlue:
		return tcell.ColorBlue
	case cube.ColorMagenta:
		return tcell.ColorFuchsia
	default:
		return tcell.ColorDefault
	}
}
