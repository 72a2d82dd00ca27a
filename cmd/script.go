package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/fornellas/slogxt/log"
	"github.com/spf13/cobra"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/fornellas/stabctl/client"
	"github.com/fornellas/stabctl/protocol"
)

// scriptSymbols binds the stabctl package, as seen by scripts, to a connected client.
func scriptSymbols(ctx context.Context, c *client.Client, stdout io.Writer) interp.Exports {
	return interp.Exports{
		"stabctl/stabctl": {
			"FilterParameters":  reflect.ValueOf((*protocol.FilterParameters)(nil)),
			"ChannelReading":    reflect.ValueOf((*protocol.ChannelReading)(nil)),
			"OrientationSample": reflect.ValueOf((*protocol.OrientationSample)(nil)),

			"Context": reflect.ValueOf(func() context.Context {
				return ctx
			}),
			"Println": reflect.ValueOf(func(a ...any) {
				fmt.Fprintln(stdout, a...)
			}),
			"Grammar": reflect.ValueOf(func() string {
				return string(c.Grammar())
			}),
			"Get": reflect.ValueOf(func() (protocol.FilterParameters, error) {
				return c.GetFilterParameters(ctx)
			}),
			"Set": reflect.ValueOf(func(filter string, value float64) error {
				f, err := protocol.ParseFilter(filter)
				if err != nil {
					return err
				}
				return c.SetFilter(ctx, f, value)
			}),
			"Push": reflect.ValueOf(func(p protocol.FilterParameters) error {
				return c.PushFilterParameters(ctx, p)
			}),
			"GetValue": reflect.ValueOf(func() (float64, error) {
				return c.GetScalar(ctx)
			}),
			"SetValue": reflect.ValueOf(func(value float64) error {
				return c.SetScalar(ctx, value)
			}),
			"Save": reflect.ValueOf(func() error {
				return c.Save(ctx)
			}),
			"Orientation": reflect.ValueOf(func() (protocol.OrientationSample, error) {
				return c.QueryOrientation(ctx)
			}),
			"Calibrate": reflect.ValueOf(func() error {
				return c.Calibrate(ctx)
			}),
			"ZeroYaw": reflect.ValueOf(func() error {
				return c.ZeroYaw(ctx)
			}),
			"Send": reflect.ValueOf(func(text string) (string, error) {
				command, err := protocol.NewCommand(text, protocol.ShapeStatus)
				if err != nil {
					return "", err
				}
				record, err := c.Request(ctx, command)
				if record == nil {
					return "", err
				}
				return record.String(), err
			}),
			"Stream": reflect.ValueOf(func(kind string, count int, fn func(string) error) error {
				streamKind, err := protocol.ParseStreamKind(kind)
				if err != nil {
					return err
				}
				return followStream(ctx, c, streamKind, count, func(record protocol.Record) error {
					return fn(record.String())
				})
			}),
		},
	}
}

var ScriptCmd = &cobra.Command{
	Use:   "script path",
	Short: "Execute a Go script against the device.",
	Long:  "Interprets a Go script with the standard library and a stabctl package bound to the connected device, eg:\n\n\tpackage main\n\n\timport \"stabctl\"\n\n\tfunc main() {\n\t\tp, err := stabctl.Get()\n\t\tif err != nil {\n\t\t\tpanic(err)\n\t\t}\n\t\tstabctl.Println(p.Accel)\n\t}",
	Args:  cobra.ExactArgs(1),
	Run: GetRunFn(func(cmd *cobra.Command, args []string) (err error) {
		path := args[0]

		ctx, logger := log.MustWithAttrs(
			cmd.Context(),
			"endpoint", GetEndpoint(),
			"path", path,
		)
		cmd.SetContext(ctx)

		c, err := NewClient(ctx)
		if err != nil {
			return err
		}
		defer func() { err = errors.Join(err, c.Close(ctx)) }()

		interpreter := interp.New(interp.Options{
			Stdout: cmd.OutOrStdout(),
			Stderr: cmd.ErrOrStderr(),
		})
		if err := interpreter.Use(stdlib.Symbols); err != nil {
			return err
		}
		if err := interpreter.Use(scriptSymbols(ctx, c, cmd.OutOrStdout())); err != nil {
			return err
		}

		logger.Info("Running")
		if _, err := interpreter.EvalPathWithContext(ctx, path); err != nil {
			return err
		}

		return nil
	}),
}

func init() {
	AddPortFlags(ScriptCmd)

	RootCmd.AddCommand(ScriptCmd)
}
