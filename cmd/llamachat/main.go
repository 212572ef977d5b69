// Command llamachat is a terminal chat client for Llama models served by
// inference.net, with function calling through built-in and MCP tools.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/thearyanag/llamachat/pkg/llamachat"
)

// version is overridden at build time with -ldflags "-X main.version=…".
var version = "dev"

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	model      string
	debug      bool
	plain      bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdin, os.Stdout).ExecuteContext(ctx); err != nil && !isInterrupt(err) {
		fmt.Fprintf(os.Stderr, "llamachat: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree reading from in and writing to out.
func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "llamachat",
		Short: "Chat with Llama models on inference.net",
		Long: `llamachat keeps a conversation with a Llama model and lets the model call
functions: the built-in roll and current_time, plus every tool offered by the
configured MCP servers.

Commands:
  chat     Start an interactive session
  ask      Send a single message and print the reply
  models   List the known model identifiers`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(in)
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "config file (default: ./llamachat.yaml when present)")
	pf.StringVar(&opts.model, "model", "", "model identifier or alias (1b, 3b, 8b, 70b)")
	pf.BoolVar(&opts.debug, "debug", false, "log requests and write a JSON dump of every exchange")
	pf.BoolVar(&opts.plain, "plain", false, "print replies as plain text instead of rendered markdown")

	root.AddCommand(newChatCmd(opts))
	root.AddCommand(newAskCmd(opts))
	root.AddCommand(newModelsCmd())
	return root
}

func newChatCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := setup(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer s.Close()
			return runREPL(cmd.Context(), s, cmd.OutOrStdout())
		},
	}
}

func newAskCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <message...>",
		Short: "Send one message and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := setup(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer s.Close()

			reply, err := s.client.Chat(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.render(reply))
			return nil
		},
	}
}

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the known model identifiers and their aliases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printModels(cmd.OutOrStdout(), "")
			return nil
		},
	}
}

// printModels writes one line per known model, marking current and the
// default.
func printModels(w io.Writer, current llamachat.Model) {
	for _, m := range llamachat.KnownModels() {
		var marks []string
		if m == llamachat.DefaultModel {
			marks = append(marks, "default")
		}
		if m == current {
			marks = append(marks, "current")
		}
		line := fmt.Sprintf("%-4s %s", m.Alias(), m)
		if len(marks) > 0 {
			line += " " + dimStyle.Render("("+strings.Join(marks, ", ")+")")
		}
		fmt.Fprintln(w, line)
	}
	if current != "" && !current.IsKnown() {
		fmt.Fprintf(w, "     %s %s\n", current, dimStyle.Render("(current, custom)"))
	}
}

// isInterrupt reports whether err comes from a signal cancelling the
// session. Interrupted sessions are not failures.
func isInterrupt(err error) bool {
	return errors.Is(err, context.Canceled)
}
