package protocol

import (
	"fmt"
)

// Grammar pins the firmware variant in use. Variants share commands but differ in response
// grammar and nothing on the wire tells them apart, so it must be chosen per deployment.
type Grammar string

const (
	// get / setX / save over TCP, with PWM and cube streams.
	GrammarWiFi Grammar = "wifi"
	// Single value firmware: get returns one float, set{v}.
	GrammarWiFiScalar Grammar = "wifi-scalar"
	// Serial firmware: ?, p, f, ., c, z and x.
	GrammarSerial Grammar = "serial"
)

var Grammars = []Grammar{GrammarWiFi, GrammarWiFiScalar, GrammarSerial}

func ParseGrammar(name string) (Grammar, error) {
	for _, grammar := range Grammars {
		if string(grammar) == name {
			return grammar, nil
		}
	}
	return "", fmt.Errorf("unknown grammar: %#v", name)
}

// GetCommand reads the device parameters.
func (g Grammar) GetCommand() Command {
	switch g {
	case GrammarWiFiScalar:
		return Command{Text: "get", Expect: ShapeScalar}
	case GrammarSerial:
		return EncodeQueryParameters()
	default:
		return EncodeGet()
	}
}

// SaveCommand persists pushed parameters to the device non volatile storage.
func (g Grammar) SaveCommand() Command {
	if g == GrammarSerial {
		return EncodeFlash()
	}
	return EncodeSave()
}

// SupportsStreams is true for variants with startXStream commands.
func (g Grammar) SupportsStreams() bool {
	return g == GrammarWiFi
}

// SupportsMotionCommands is true for variants with calibrate, zero yaw and standalone commands.
func (g Grammar) SupportsMotionCommands() bool {
	return g == GrammarSerial
}
