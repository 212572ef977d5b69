package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/thearyanag/llamachat/internal/mcp"
	"github.com/thearyanag/llamachat/pkg/types"
)

// historyFileName is the liner input history kept in the user config dir.
const historyFileName = "llamachat_history"

const helpText = `/history    show the conversation so far
/reset      clear the conversation
/functions  list callable functions and MCP tool statistics
/backends   show backend circuit states
/tokens     estimate the tokens the next request will carry
/model      show the model in use
/help       show this help
/exit       leave`

// runREPL reads lines until /exit, EOF or Ctrl+C. Lines starting with "/"
// are commands; everything else is sent to the model.
func runREPL(ctx context.Context, s *session, out io.Writer) error {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	defer line.Close()

	histPath := historyPath()
	if f, err := os.Open(histPath); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.OpenFile(histPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
			_, _ = line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Fprintf(out, "%s %s\n", promptStyle.Render("llamachat"), dimStyle.Render(string(s.client.Model())))
	fmt.Fprintln(out, dimStyle.Render("Type /help for commands."))

	for {
		if ctx.Err() != nil {
			return nil
		}
		input, err := line.Prompt("you> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				return nil
			}
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			if quit := handleCommand(s, out, input); quit {
				return nil
			}
			continue
		}

		reply, err := s.client.Chat(ctx, input)
		if err != nil {
			fmt.Fprintf(out, "%s %v\n", errorStyle.Render("error:"), err)
			continue
		}
		fmt.Fprintln(out, s.render(reply))
	}
}

// handleCommand runs one slash command and reports whether the session
// should end.
func handleCommand(s *session, out io.Writer, input string) bool {
	cmd, _, _ := strings.Cut(input, " ")
	switch strings.ToLower(cmd) {
	case "/exit", "/quit":
		return true
	case "/help":
		fmt.Fprintln(out, helpText)
	case "/reset":
		s.client.Reset()
		fmt.Fprintln(out, dimStyle.Render("Conversation cleared."))
	case "/history":
		printHistory(out, s.client.History())
	case "/functions":
		var stats []mcp.ToolStats
		if s.host != nil {
			stats = s.host.Stats()
		}
		printFunctions(out, s.client.Registry().Names(), stats)
	case "/backends":
		if s.failover == nil {
			fmt.Fprintln(out, dimStyle.Render("No fallbacks configured."))
			break
		}
		for _, st := range s.failover.Status() {
			fmt.Fprintf(out, "%s %s\n", st.Name, dimStyle.Render("("+st.State.String()+")"))
		}
	case "/tokens":
		n, err := s.client.CountTokens()
		if err != nil {
			fmt.Fprintf(out, "%s %v\n", errorStyle.Render("error:"), err)
			break
		}
		fmt.Fprintf(out, "~%d tokens\n", n)
	case "/model":
		printModels(out, s.client.Model())
	default:
		fmt.Fprintf(out, "%s unknown command %s (try /help)\n", errorStyle.Render("error:"), cmd)
	}
	return false
}

func printHistory(out io.Writer, history []types.Message) {
	if len(history) == 0 {
		fmt.Fprintln(out, dimStyle.Render("No messages yet."))
		return
	}
	for _, m := range history {
		switch m.Role {
		case types.RoleUser:
			fmt.Fprintf(out, "%s %s\n", userStyle.Render("you:"), m.Content)
		case types.RoleAssistant:
			if len(m.ToolCalls) > 0 {
				for _, tc := range m.ToolCalls {
					fmt.Fprintf(out, "%s %s(%s)\n", toolStyle.Render("call:"), tc.Name, tc.Arguments)
				}
				continue
			}
			fmt.Fprintf(out, "%s %s\n", assistantStyle.Render("assistant:"), m.Content)
		case types.RoleTool:
			fmt.Fprintf(out, "%s %s\n", toolStyle.Render("result:"), m.Content)
		}
	}
}

// printFunctions lists every registered function; MCP tools carry their
// server and call statistics.
func printFunctions(out io.Writer, names []string, stats []mcp.ToolStats) {
	if len(names) == 0 {
		fmt.Fprintln(out, dimStyle.Render("No functions registered."))
		return
	}
	byName := make(map[string]mcp.ToolStats, len(stats))
	for _, st := range stats {
		byName[st.Name] = st
	}
	for _, name := range names {
		st, ok := byName[name]
		if !ok {
			fmt.Fprintf(out, "%s %s\n", name, dimStyle.Render("(built-in)"))
			continue
		}
		fmt.Fprintf(out, "%s %s\n", name, dimStyle.Render(fmt.Sprintf(
			"(mcp:%s, %d calls, p50 %dms, p99 %dms, %.0f%% errors)",
			st.Server, st.Calls, st.P50Ms, st.P99Ms, st.ErrorRate*100)))
	}
}

// historyPath returns the input history file, falling back to the temp dir
// when no user config dir is available.
func historyPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, historyFileName)
}
