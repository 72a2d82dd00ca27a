package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fornellas/stabctl/protocol"
)

type OutputValue struct {
	path string
}

func NewOutputValue() *OutputValue {
	return &OutputValue{}
}

func (o *OutputValue) String() string {
	if len(o.path) > 0 {
		return o.path
	}
	return "(STDOUT)"
}

func (o *OutputValue) Set(value string) error {
	o.path = value
	return nil
}

func (o *OutputValue) Reset() {
	o.path = ""
}

func (o *OutputValue) Type() string {
	return "[path]"
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error {
	return nil
}

// WriterCloser opens the output path, or wraps stdout when none was given.
func (o *OutputValue) WriterCloser(stdout io.Writer) (io.WriteCloser, error) {
	if len(o.path) > 0 {
		return os.OpenFile(o.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(0644))
	}
	return nopWriteCloser{Writer: stdout}, nil
}

var outputValue = NewOutputValue()

var outputJSON bool
var defaultOutputJSON = false

func AddOutputFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().VarP(outputValue, "output", "o", "Path to output to, default is to stdout")
	AddFormatFlags(cmd)
}

func AddFormatFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolVar(&outputJSON, "json", defaultOutputJSON, "Print records as JSON lines")
}

// WriteRecord writes a record in the selected format, one per line.
func WriteRecord(w io.Writer, record protocol.Record) error {
	if outputJSON {
		return json.NewEncoder(w).Encode(record)
	}
	_, err := fmt.Fprintln(w, record.String())
	return err
}

func init() {
	resetFlagsFns = append(resetFlagsFns, func() {
		outputValue.Reset()
		outputJSON = defaultOutputJSON
	})
}
