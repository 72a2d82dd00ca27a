package protocol

import (
	"fmt"
	"strings"

	iFmt "github.com/fornellas/stabctl/internal/fmt"
)

// Record is a decoded line received from the device.
type Record interface {
	String() string
}

// Filter identifies one of the filter coefficients.
type Filter int

const (
	FilterAccel Filter = iota
	FilterGyro
	FilterComplementary
)

var Filters = []Filter{FilterAccel, FilterGyro, FilterComplementary}

var filterNamesMap = map[Filter]string{
	FilterAccel:         "accel",
	FilterGyro:          "gyro",
	FilterComplementary: "comp",
}

var filterLettersMap = map[Filter]byte{
	FilterAccel:         'A',
	FilterGyro:          'G',
	FilterComplementary: 'C',
}

// ParseFilter accepts accel, gyro, comp / complementary or their first letter, in any case.
func ParseFilter(name string) (Filter, error) {
	switch strings.ToLower(name) {
	case "a", "accel", "accelerometer":
		return FilterAccel, nil
	case "g", "gyro", "gyroscope":
		return FilterGyro, nil
	case "c", "comp", "complementary":
		return FilterComplementary, nil
	}
	return 0, fmt.Errorf("unknown filter: %#v", name)
}

func (f Filter) String() string {
	if name, ok := filterNamesMap[f]; ok {
		return name
	}
	return fmt.Sprintf("Unknown (%d)", int(f))
}

// Letter is the character that identifies the filter in set commands.
func (f Filter) Letter() byte {
	return filterLettersMap[f]
}

const (
	FilterMin = 0.0
	FilterMax = 1.0
)

// FilterParameters holds the three filter coefficients, each within [FilterMin, FilterMax].
type FilterParameters struct {
	Accel         float64 `json:"accel"`
	Gyro          float64 `json:"gyro"`
	Complementary float64 `json:"complementary"`
}

func (p *FilterParameters) Get(filter Filter) float64 {
	switch filter {
	case FilterAccel:
		return p.Accel
	case FilterGyro:
		return p.Gyro
	case FilterComplementary:
		return p.Complementary
	default:
		panic(fmt.Sprintf("bug: unexpected filter: %#v", filter))
	}
}

func (p *FilterParameters) Set(filter Filter, value float64) {
	switch filter {
	case FilterAccel:
		p.Accel = value
	case FilterGyro:
		p.Gyro = value
	case FilterComplementary:
		p.Complementary = value
	default:
		panic(fmt.Sprintf("bug: unexpected filter: %#v", filter))
	}
}

func validateFilterValue(filter Filter, value float64) error {
	if value < FilterMin || value > FilterMax || value != value {
		return fmt.Errorf("%s filter value %v out of range [%v, %v]", filter, value, FilterMin, FilterMax)
	}
	return nil
}

// Validate checks all coefficients are within range.
func (p *FilterParameters) Validate() error {
	for _, filter := range Filters {
		if err := validateFilterValue(filter, p.Get(filter)); err != nil {
			return err
		}
	}
	return nil
}

func (p *FilterParameters) String() string {
	return fmt.Sprintf(
		"accel=%s gyro=%s comp=%s",
		iFmt.SprintFixed(p.Accel, 3), iFmt.SprintFixed(p.Gyro, 3), iFmt.SprintFixed(p.Complementary, 3),
	)
}

// ScalarValue is the single float returned by get on single value firmware.
type ScalarValue struct {
	Value float64 `json:"value"`
}

func (v *ScalarValue) String() string {
	return iFmt.SprintFixed(v.Value, 2)
}

// ChannelCount is the canonical number of channels in a ChannelReading. The last channel is
// the autopilot flag.
const ChannelCount = 4

const (
	ChannelMin = 0
	ChannelMax = 100
)

type Autopilot int

const (
	AutopilotUnknown Autopilot = iota
	AutopilotOff
	AutopilotOn
)

func (a Autopilot) String() string {
	switch a {
	case AutopilotOff:
		return "OFF"
	case AutopilotOn:
		return "ON"
	default:
		return "Unknown"
	}
}

// ChannelReading is one sample of per channel PWM duty percentages.
type ChannelReading struct {
	Channels [ChannelCount]int `json:"channels"`
	NoSignal bool              `json:"no_signal"`
}

// Autopilot interprets the autopilot channel: 0-10 is off, 90-100 is on.
func (r *ChannelReading) Autopilot() Autopilot {
	value := r.Channels[ChannelCount-1]
	switch {
	case value <= 10:
		return AutopilotOff
	case value >= 90:
		return AutopilotOn
	default:
		return AutopilotUnknown
	}
}

func (r *ChannelReading) String() string {
	if r.NoSignal {
		return "No signal"
	}
	values := make([]string, len(r.Channels))
	for i, v := range r.Channels {
		values[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(values, ",")
}

// OrientationSample holds angles in degrees. The device sends roll first, then pitch, then
// (optionally) yaw.
type OrientationSample struct {
	Roll   float64 `json:"roll"`
	Pitch  float64 `json:"pitch"`
	Yaw    float64 `json:"yaw"`
	HasYaw bool    `json:"has_yaw"`
}

func (s *OrientationSample) String() string {
	str := fmt.Sprintf("roll=%s pitch=%s", iFmt.SprintFixed(s.Roll, 2), iFmt.SprintFixed(s.Pitch, 2))
	if s.HasYaw {
		str += fmt.Sprintf(" yaw=%s", iFmt.SprintFixed(s.Yaw, 2))
	}
	return str
}

var (
	statusOk          = "OK"
	statusOkPrefix    = "OK_"
	statusSavedPrefix = "SAVED_"
)

// StatusToken is a single word acknowledgement: OK, OK_<mode> or SAVED_<mode> on success.
type StatusToken struct {
	Token string `json:"token"`
}

func (s *StatusToken) String() string {
	return s.Token
}

// Mode returns the mode suffix of OK_<mode> and SAVED_<mode> tokens.
func (s *StatusToken) Mode() string {
	if strings.HasPrefix(s.Token, statusOkPrefix) {
		return s.Token[len(statusOkPrefix):]
	}
	if strings.HasPrefix(s.Token, statusSavedPrefix) {
		return s.Token[len(statusSavedPrefix):]
	}
	return ""
}

// Saved is true for SAVED_<mode> tokens.
func (s *StatusToken) Saved() bool {
	return strings.HasPrefix(s.Token, statusSavedPrefix)
}

// Err returns a *DeviceError if the token is not a success token.
func (s *StatusToken) Err() error {
	if s.Token == statusOk ||
		strings.HasPrefix(s.Token, statusOkPrefix) ||
		strings.HasPrefix(s.Token, statusSavedPrefix) {
		return nil
	}
	return &DeviceError{Token: s.Token}
}

// DeviceError is an explicit non OK status returned by the device.
type DeviceError struct {
	Token string
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device error: %s", e.Token)
}

// Unrecognized is a line that does not match the expected shape.
type Unrecognized struct {
	Line string
}

func (u *Unrecognized) String() string {
	return u.Line
}
