// Package console is the operator terminal: list sessions, kick players,
// manage operators and broadcast messages.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Versifine/warden/internal/logger"
	"github.com/Versifine/warden/internal/server"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/term"
)

const (
	prompt         = "> "
	commandTimeout = 2 * time.Second
)

// Controller is the part of the server the console drives.
type Controller interface {
	Sessions(ctx context.Context) ([]server.SessionInfo, error)
	Kick(ctx context.Context, target, message string) error
	SetOperator(ctx context.Context, name string, op bool) error
	Say(ctx context.Context, text string) error
}

type Console struct {
	ctrl Controller
	stop func()
}

// New builds a console. stop, when non-nil, is called by the stop command.
func New(ctrl Controller, stop func()) *Console {
	return &Console{ctrl: ctrl, stop: stop}
}

// Start reads commands from stdin until ctx is cancelled or stdin closes.
// On a TTY it switches to raw mode and uses line editing.
func (c *Console) Start(ctx context.Context) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return c.Serve(ctx, os.Stdin, os.Stdout)
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("set terminal raw mode: %w", err)
	}
	defer func() {
		_ = term.Restore(fd, oldState)
		fmt.Print("\r\n")
	}()

	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{os.Stdin, os.Stdout}, prompt)
	if w, h, err := term.GetSize(fd); err == nil {
		_ = t.SetSize(w, h)
	}
	log := logger.Component("console")
	log.Info().Msg("console started, type help for commands")

	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := t.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read console input: %w", err)
		}
		if c.Execute(ctx, line, t) {
			return nil
		}
	}
}

// Serve runs commands read line by line from r, writing replies to w.
func (c *Console) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		if c.Execute(ctx, scanner.Text(), w) {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read console input: %w", err)
	}
	return nil
}

// Execute runs one command line and reports whether the console should exit.
func (c *Console) Execute(ctx context.Context, line string, w io.Writer) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	switch parts[0] {
	case "help":
		printHelp(w)
	case "list":
		c.list(ctx, w)
	case "kick":
		if len(parts) < 2 {
			fmt.Fprint(w, "usage: kick <name|id> [reason]\n")
			return false
		}
		if err := c.ctrl.Kick(ctx, parts[1], strings.Join(parts[2:], " ")); err != nil {
			fmt.Fprintf(w, "kick failed: %v\n", err)
			return false
		}
		fmt.Fprintf(w, "kicked %s\n", parts[1])
	case "op", "deop":
		if len(parts) != 2 {
			fmt.Fprintf(w, "usage: %s <name>\n", parts[0])
			return false
		}
		grant := parts[0] == "op"
		if err := c.ctrl.SetOperator(ctx, parts[1], grant); err != nil {
			fmt.Fprintf(w, "%s failed: %v\n", parts[0], err)
			return false
		}
		if grant {
			fmt.Fprintf(w, "%s is now an operator\n", parts[1])
		} else {
			fmt.Fprintf(w, "%s is no longer an operator\n", parts[1])
		}
	case "say":
		if len(parts) < 2 {
			fmt.Fprint(w, "usage: say <text>\n")
			return false
		}
		if err := c.ctrl.Say(ctx, strings.Join(parts[1:], " ")); err != nil {
			fmt.Fprintf(w, "say failed: %v\n", err)
		}
	case "stop":
		fmt.Fprint(w, "stopping server\n")
		if c.stop != nil {
			c.stop()
		}
		return true
	default:
		fmt.Fprintf(w, "unknown command: %s (try help)\n", parts[0])
	}
	return false
}

func (c *Console) list(ctx context.Context, w io.Writer) {
	sessions, err := c.ctrl.Sessions(ctx)
	if err != nil {
		fmt.Fprintf(w, "list failed: %v\n", err)
		return
	}
	if len(sessions) == 0 {
		fmt.Fprint(w, "no sessions\n")
		return
	}
	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"Name", "Phase", "Remote", "Ping", "Op", "Session"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)
	for _, s := range sessions {
		name := s.Name
		if name == "" {
			name = "-"
		}
		tw.Append([]string{name, s.Phase, s.Remote, fmt.Sprintf("%dms", s.LatencyMS), yesNo(s.Operator), s.ID.String()})
	}
	tw.Render()
}

func printHelp(w io.Writer) {
	fmt.Fprint(w, "commands:\n")
	fmt.Fprint(w, "  list                    show live sessions\n")
	fmt.Fprint(w, "  kick <name|id> [reason] disconnect a player\n")
	fmt.Fprint(w, "  op <name>               grant operator\n")
	fmt.Fprint(w, "  deop <name>             revoke operator\n")
	fmt.Fprint(w, "  say <text>              broadcast a server message\n")
	fmt.Fprint(w, "  stop                    shut the server down\n")
	fmt.Fprint(w, "  help\n")
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
