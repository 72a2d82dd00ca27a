package fmt

import (
	"fmt"
	"strings"
)

// SprintFloat formats value with at most decimal digits, trimming trailing zeros. Used for display.
func SprintFloat(value float64, decimal uint) string {
	var floatStr string
	if decimal > 0 {
		floatStr = SprintFixed(value, decimal)
		floatStr = strings.TrimRight(strings.TrimRight(floatStr, "0"), ".")
		if floatStr == "-0" {
			floatStr = "0"
		}
	} else {
		floatStr = fmt.Sprintf("%.0f", value)
	}
	return floatStr
}

// SprintFixed formats value with exactly decimal digits. The device parses set commands with a
// fixed textual precision, so wire values must never be trimmed.
func SprintFixed(value float64, decimal uint) string {
	floatFormat := fmt.Sprintf("%%.%df", decimal)
	return fmt.Sprintf(floatFormat, value)
}

// SprintPercent formats a 0-100 integer percentage.
func SprintPercent(value int) string {
	return fmt.Sprintf("%3d%%", value)
}
