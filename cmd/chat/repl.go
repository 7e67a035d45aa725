package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"threadline/internal/domain/models/chat"
	"threadline/internal/session"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorBlue   = "\033[34m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

const helpText = `Commands:
  /new                   start a new conversation
  /list                  list active conversations
  /archived              list archived conversations (/back to leave)
  /open <n|id>           open a conversation
  /archive <n|id>        archive a conversation
  /delete <n|id>         delete a conversation
  /rename <n|id> <title> rename a conversation
  /refresh               reload history from the gateway
  /health                check the gateway
  /retry                 retry the connection
  /help                  show this help
  /quit                  exit
Anything else is sent to the current conversation.`

type repl struct {
	client  *session.Client
	scanner *bufio.Scanner
	out     io.Writer
	logger  *slog.Logger
}

func newREPL(client *session.Client, in io.Reader, out io.Writer, logger *slog.Logger) *repl {
	return &repl{
		client:  client,
		scanner: bufio.NewScanner(in),
		out:     out,
		logger:  logger,
	}
}

func (r *repl) printf(color, format string, args ...any) {
	fmt.Fprintf(r.out, color+format+colorReset+"\n", args...)
}

func (r *repl) readLine() (string, bool) {
	if !r.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(r.scanner.Text()), true
}

func (r *repl) run(ctx context.Context, userID string) error {
	r.printf(colorCyan, "threadline chat")
	for userID == "" {
		fmt.Fprint(r.out, "User ID: ")
		line, ok := r.readLine()
		if !ok {
			return nil
		}
		userID = line
	}

	if err := r.client.Authenticate(ctx, userID); err != nil {
		r.report(err)
	}
	r.printf(colorBlue, "Signed in as %s. Type /help for commands.", r.client.Snapshot().UserID)
	r.listConversations()

	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(r.out, r.prompt())
		line, ok := r.readLine()
		if !ok {
			return nil
		}
		if line == "" {
			continue
		}
		if !r.dispatch(ctx, line) {
			r.logger.Info("chat client exiting")
			r.printf(colorGreen, "Goodbye!")
			return nil
		}
	}
}

func (r *repl) prompt() string {
	snap := r.client.Snapshot()
	if snap.ShowArchived {
		return "[archive]> "
	}
	if id := snap.Selection.CurrentConversationID; id != "" {
		for _, c := range snap.Active {
			if c.ID == id {
				return "[" + c.Title + "]> "
			}
		}
	}
	return "> "
}

// dispatch runs one input line and reports whether the loop continues.
func (r *repl) dispatch(ctx context.Context, line string) bool {
	if !strings.HasPrefix(line, "/") {
		r.send(ctx, line)
		return true
	}

	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	r.logger.Debug("command", "name", cmd)

	switch cmd {
	case "/quit", "/exit":
		return false
	case "/help":
		fmt.Fprintln(r.out, helpText)
	case "/new":
		if _, err := r.client.NewConversation(ctx); err != nil {
			r.report(err)
			return true
		}
		r.printf(colorGreen, "Started a new conversation.")
	case "/list":
		r.client.HideArchived()
		r.listConversations()
	case "/archived":
		r.client.ShowArchived()
		r.listConversations()
	case "/back":
		r.client.HideArchived()
		r.listConversations()
	case "/open":
		r.withTarget(rest, func(id string) {
			var err error
			if r.client.Snapshot().ShowArchived {
				err = r.client.OpenArchived(ctx, id)
			} else {
				err = r.client.SelectConversation(ctx, id)
			}
			if err != nil {
				r.report(err)
				return
			}
			r.printThread()
		})
	case "/archive":
		r.withTarget(rest, func(id string) {
			if err := r.client.ArchiveConversation(id); err != nil {
				r.report(err)
				return
			}
			r.printf(colorGreen, "Archived.")
		})
	case "/delete":
		r.withTarget(rest, func(id string) {
			if err := r.client.DeleteConversation(ctx, id); err != nil {
				r.report(err)
				return
			}
			r.printf(colorGreen, "Deleted.")
		})
	case "/rename":
		ref, title, _ := strings.Cut(rest, " ")
		r.withTarget(ref, func(id string) {
			if err := r.client.EditTitle(id, title); err != nil {
				r.report(err)
				return
			}
			r.printf(colorGreen, "Renamed.")
		})
	case "/refresh":
		if err := r.client.FetchHistory(ctx); err != nil {
			r.report(err)
			return true
		}
		r.listConversations()
	case "/health":
		if err := r.client.CheckHealth(ctx); err != nil {
			r.report(err)
			return true
		}
		r.printf(colorGreen, "Gateway is healthy.")
	case "/retry":
		if err := r.client.RetryConnection(ctx); err != nil {
			r.report(err)
			return true
		}
		r.printf(colorGreen, "Reconnected.")
	default:
		r.printf(colorYellow, "Unknown command %s. Type /help.", cmd)
	}
	return true
}

func (r *repl) send(ctx context.Context, text string) {
	r.client.SetInput(text)
	r.printf(colorGray, "sending...")
	msg, err := r.client.Submit(ctx)
	if err != nil {
		r.report(err)
		return
	}
	for _, turn := range msg.History {
		if turn.Role == chat.RoleAssistant {
			r.printf(colorCyan, "assistant: %s", turn.Content)
		}
	}
}

// withTarget resolves ref (a list number or a conversation id) in the
// current view and runs fn with the id.
func (r *repl) withTarget(ref string, fn func(id string)) {
	if ref == "" {
		r.printf(colorYellow, "Which conversation? Give a list number or id.")
		return
	}
	snap := r.client.Snapshot()
	list := snap.Active
	if snap.ShowArchived {
		list = snap.Archived
	}
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(list) {
			r.printf(colorYellow, "No conversation #%d.", n)
			return
		}
		fn(list[n-1].ID)
		return
	}
	fn(ref)
}

func (r *repl) listConversations() {
	snap := r.client.Snapshot()
	list, label := snap.Active, "Conversations"
	if snap.ShowArchived {
		list, label = snap.Archived, "Archived"
	}

	fmt.Fprintln(r.out, strings.Repeat("─", 40))
	r.printf(colorCyan, "%s (%d)", label, len(list))
	if len(list) == 0 {
		r.printf(colorGray, "  none")
		return
	}
	for i, c := range list {
		marker := " "
		if c.ID == snap.Selection.SelectedConversationID {
			marker = "*"
		}
		fmt.Fprintf(r.out, "%s %2d. %s %s%s  %s%s\n",
			marker, i+1, c.Title,
			colorGray, c.Timestamp.Local().Format("Jan 2 15:04"), preview(c.LastMessage), colorReset)
	}
}

func (r *repl) printThread() {
	snap := r.client.Snapshot()
	if len(snap.Thread) == 0 {
		r.printf(colorGray, "(no messages yet)")
		return
	}
	for _, msg := range snap.Thread {
		for _, turn := range msg.History {
			color := colorReset
			if turn.Role == chat.RoleAssistant {
				color = colorCyan
			}
			r.printf(color, "%s: %s", turn.Role, turn.Content)
		}
	}
}

func (r *repl) report(err error) {
	var userErr *session.UserError
	if errors.As(err, &userErr) {
		r.printf(colorRed, "%s", userErr.Message)
		if userErr.Retryable {
			r.printf(colorYellow, "Use /retry to reconnect.")
		}
	} else {
		r.printf(colorRed, "%v", err)
	}
	r.logger.Debug("command failed", "error", err)
}

func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	const limit = 48
	if runes := []rune(s); len(runes) > limit {
		return string(runes[:limit-1]) + "…"
	}
	return s
}
