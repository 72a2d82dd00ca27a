package protocol

import (
	"fmt"
	"strings"

	iFmt "github.com/fornellas/stabctl/internal/fmt"
)

// Shape is the response grammar expected after a command.
type Shape int

const (
	// No response.
	ShapeNone Shape = iota
	// OK, OK_<mode>, SAVED_<mode> or an error token.
	ShapeStatus
	// a,g,c or params:a,g,c
	ShapeFilterParameters
	// A single float.
	ShapeScalar
	// p1[,p2[,p3[,ap]]] or "No signal".
	ShapeChannels
	// roll,pitch[,yaw]
	ShapeOrientation
)

var shapeNamesMap = map[Shape]string{
	ShapeNone:             "none",
	ShapeStatus:           "status",
	ShapeFilterParameters: "params",
	ShapeScalar:           "scalar",
	ShapeChannels:         "channels",
	ShapeOrientation:      "orientation",
}

func ParseShape(name string) (Shape, error) {
	for shape, shapeName := range shapeNamesMap {
		if shapeName == name {
			return shape, nil
		}
	}
	return 0, fmt.Errorf("unknown response shape: %#v", name)
}

func ShapeNames() []string {
	return []string{"none", "status", "params", "scalar", "channels", "orientation"}
}

func (s Shape) String() string {
	if name, ok := shapeNamesMap[s]; ok {
		return name
	}
	return fmt.Sprintf("Unknown (%d)", int(s))
}

// Command is a line sent to the device, with the shape of its response.
type Command struct {
	Text   string
	Expect Shape
}

// NewCommand validates text is a single line command.
func NewCommand(text string, expect Shape) (Command, error) {
	if text == "" {
		return Command{}, fmt.Errorf("command must not be empty")
	}
	if strings.ContainsAny(text, "\r\n") {
		return Command{}, fmt.Errorf("command must be single line string: %#v", text)
	}
	return Command{Text: text, Expect: expect}, nil
}

// Line returns the newline terminated wire form.
func (c Command) Line() []byte {
	return append([]byte(c.Text), '\n')
}

func (c Command) String() string {
	return c.Text
}

// StreamKind identifies a long lived response sequence.
type StreamKind string

const (
	StreamKindPWM  StreamKind = "PWM"
	StreamKindCube StreamKind = "Cube"
)

func ParseStreamKind(name string) (StreamKind, error) {
	switch strings.ToLower(name) {
	case "pwm":
		return StreamKindPWM, nil
	case "cube":
		return StreamKindCube, nil
	}
	return "", fmt.Errorf("unknown stream kind: %#v", name)
}

// Shape of each record of the stream.
func (k StreamKind) Shape() Shape {
	switch k {
	case StreamKindPWM:
		return ShapeChannels
	case StreamKindCube:
		return ShapeOrientation
	default:
		panic(fmt.Sprintf("bug: unexpected stream kind: %#v", k))
	}
}

const (
	// Decimal digits for setX commands.
	SetFilterPrecision uint = 3
	// Decimal digits for the single value set command.
	SetScalarPrecision uint = 2
	// Decimal digits for the serial p command.
	SetParametersPrecision uint = 4
)

func EncodeGet() Command {
	return Command{Text: "get", Expect: ShapeFilterParameters}
}

// EncodeSetFilter encodes set{Letter}{value}, eg: setA0.256.
func EncodeSetFilter(filter Filter, value float64) (Command, error) {
	if _, ok := filterLettersMap[filter]; !ok {
		return Command{}, fmt.Errorf("unknown filter: %#v", filter)
	}
	if err := validateFilterValue(filter, value); err != nil {
		return Command{}, err
	}
	return Command{
		Text:   fmt.Sprintf("set%c%s", filter.Letter(), iFmt.SprintFixed(value, SetFilterPrecision)),
		Expect: ShapeStatus,
	}, nil
}

// EncodeSetScalar encodes set{value} for single value firmware.
func EncodeSetScalar(value float64) (Command, error) {
	if err := validateFilterValue(FilterAccel, value); err != nil {
		return Command{}, err
	}
	return Command{
		Text:   fmt.Sprintf("set%s", iFmt.SprintFixed(value, SetScalarPrecision)),
		Expect: ShapeStatus,
	}, nil
}

func EncodeSave() Command {
	return Command{Text: "save", Expect: ShapeStatus}
}

func EncodeStartStream(kind StreamKind) Command {
	return Command{Text: fmt.Sprintf("start%sStream", kind), Expect: kind.Shape()}
}

// EncodeStopStream returns false when the device has no stop command for the stream kind.
func EncodeStopStream(kind StreamKind) (Command, bool) {
	if kind != StreamKindCube {
		return Command{}, false
	}
	return Command{Text: fmt.Sprintf("stop%sStream", kind), Expect: ShapeNone}, true
}

func EncodeQueryParameters() Command {
	return Command{Text: "?", Expect: ShapeFilterParameters}
}

func EncodeQueryOrientation() Command {
	return Command{Text: ".", Expect: ShapeOrientation}
}

// EncodeSetParameters encodes all coefficients at once: p0.3000,0.0800,0.7000.
func EncodeSetParameters(parameters FilterParameters) (Command, error) {
	if err := parameters.Validate(); err != nil {
		return Command{}, err
	}
	return Command{
		Text: fmt.Sprintf(
			"p%s,%s,%s",
			iFmt.SprintFixed(parameters.Accel, SetParametersPrecision),
			iFmt.SprintFixed(parameters.Gyro, SetParametersPrecision),
			iFmt.SprintFixed(parameters.Complementary, SetParametersPrecision),
		),
		Expect: ShapeNone,
	}, nil
}

func EncodeCalibrate() Command {
	return Command{Text: "c", Expect: ShapeNone}
}

func EncodeZeroYaw() Command {
	return Command{Text: "z", Expect: ShapeNone}
}

func EncodeFlash() Command {
	return Command{Text: "f", Expect: ShapeNone}
}

// EncodeStandalone tells the device to resume standalone operation; sent before exiting.
func EncodeStandalone() Command {
	return Command{Text: "x", Expect: ShapeNone}
}
