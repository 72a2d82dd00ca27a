package fmt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSprintFloat(t *testing.T) {
	for _, tc := range []struct {
		value    float64
		decimal  uint
		expected string
	}{
		{0.256, 3, "0.256"},
		{0.5, 3, "0.5"},
		{1, 3, "1"},
		{-0.0001, 3, "0"},
		{12.5, 0, "12"},
	} {
		require.Equal(t, tc.expected, SprintFloat(tc.value, tc.decimal), "%v %d", tc.value, tc.decimal)
	}
}

func TestSprintFixed(t *testing.T) {
	require.Equal(t, "0.500", SprintFixed(0.5, 3))
	require.Equal(t, "0.0800", SprintFixed(0.08, 4))
	require.Equal(t, "0.26", SprintFixed(0.256, 2))
}
