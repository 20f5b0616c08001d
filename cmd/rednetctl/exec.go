package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rednet-io/rednet-go/internal/channel"
)

func execCmd(flags *globalFlags) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "exec <command> [args...]",
		Short: "Run a command through the handler channel",
		Long: `Open the handler channel, send a command/execute envelope and print the
first "handler" frame that comes back.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := newAPI(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			conn, err := a.Handler.ConnectWS()
			if err != nil {
				return err
			}

			replies := make(chan channel.Envelope, 1)
			if err := a.Handler.OnMessage(func(env channel.Envelope) error {
				select {
				case replies <- env:
				default:
				}
				return nil
			}); err != nil {
				return err
			}

			if err := a.Handler.ExecuteCommand(args[0], args[1:]); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			select {
			case env := <-replies:
				printEnvelope(env)
			case <-ctx.Done():
				stats := conn.Stats()
				return fmt.Errorf("no reply within %s (state %s, %d frames sent)", timeout, stats.State, stats.FramesSent)
			}

			if c := a.Handler.DisconnectWS(); c != nil {
				waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer waitCancel()
				c.Wait(waitCtx)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "how long to wait for a reply")

	return cmd
}

// printEnvelope prints a frame header and its indented data.
func printEnvelope(env channel.Envelope) {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Printf("[%s]", env.Type)
	if env.Action != "" {
		yellow.Printf(" %s", env.Action)
	}
	if env.ID != "" {
		fmt.Printf(" id=%s", env.ID)
	}
	fmt.Println()

	if len(env.Data) == 0 {
		return
	}
	var pretty any
	if err := json.Unmarshal(env.Data, &pretty); err != nil {
		fmt.Printf("  %s\n", env.Data)
		return
	}
	out, _ := json.MarshalIndent(pretty, "  ", "  ")
	fmt.Printf("  %s\n", out)
}
