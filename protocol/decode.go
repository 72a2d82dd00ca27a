package protocol

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var paramsPrefix = "params:"
var noSignal = "No signal"
var statusTokenRegexp = regexp.MustCompile(`^[A-Z][A-Za-z0-9_]*$`)

func splitFloats(line string) ([]float64, bool) {
	fields := strings.Split(line, ",")
	values := make([]float64, len(fields))
	for i, field := range fields {
		value, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
			return nil, false
		}
		values[i] = value
	}
	return values, true
}

func decodeFilterParameters(line string) Record {
	values, ok := splitFloats(line)
	if !ok || len(values) != 3 {
		return &Unrecognized{Line: line}
	}
	p := &FilterParameters{
		Accel:         values[0],
		Gyro:          values[1],
		Complementary: values[2],
	}
	if p.Validate() != nil {
		return &Unrecognized{Line: line}
	}
	return p
}

func decodeScalar(line string) Record {
	values, ok := splitFloats(line)
	if !ok || len(values) != 1 {
		return &Unrecognized{Line: line}
	}
	return &ScalarValue{Value: values[0]}
}

func decodeChannels(line string) Record {
	if strings.Contains(line, noSignal) {
		return &ChannelReading{NoSignal: true}
	}
	fields := strings.Split(line, ",")
	if len(fields) > ChannelCount {
		return &Unrecognized{Line: line}
	}
	channelReading := &ChannelReading{}
	for i, field := range fields {
		value, err := strconv.ParseInt(strings.TrimSpace(field), 10, 64)
		if err != nil {
			if !errors.Is(err, strconv.ErrRange) {
				return &Unrecognized{Line: line}
			}
			// ParseInt returns the nearest limit on overflow.
		}
		channelReading.Channels[i] = int(min(max(value, ChannelMin), ChannelMax))
	}
	return channelReading
}

func decodeOrientation(line string) Record {
	values, ok := splitFloats(line)
	if !ok || len(values) < 2 || len(values) > 3 {
		return &Unrecognized{Line: line}
	}
	orientationSample := &OrientationSample{
		Roll:  values[0],
		Pitch: values[1],
	}
	if len(values) == 3 {
		orientationSample.Yaw = values[2]
		orientationSample.HasYaw = true
	}
	return orientationSample
}

func decodeStatus(line string) Record {
	if !statusTokenRegexp.MatchString(line) {
		return &Unrecognized{Line: line}
	}
	return &StatusToken{Token: line}
}

// Decode parses a line received in response to a command that expects shape. It never fails:
// lines that do not match are returned as *Unrecognized and the caller decides what to do.
// Lines prefixed with "params:" describe themselves and always decode as *FilterParameters.
func Decode(shape Shape, line string) Record {
	line = strings.TrimSpace(line)

	if rest, ok := strings.CutPrefix(line, paramsPrefix); ok {
		return decodeFilterParameters(rest)
	}

	switch shape {
	case ShapeFilterParameters:
		return decodeFilterParameters(line)
	case ShapeScalar:
		return decodeScalar(line)
	case ShapeChannels:
		return decodeChannels(line)
	case ShapeOrientation:
		return decodeOrientation(line)
	case ShapeStatus:
		return decodeStatus(line)
	default:
		return &Unrecognized{Line: line}
	}
}
