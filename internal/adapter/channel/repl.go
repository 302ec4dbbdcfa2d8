package channel

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/saurav-sabu/RepoScribe/internal/adapter/tui/theme"
	"github.com/saurav-sabu/RepoScribe/internal/adapter/tui/uxerror"
	"github.com/saurav-sabu/RepoScribe/internal/domain"
	"github.com/saurav-sabu/RepoScribe/internal/usecase/multiagent"
)

const maxLineBytes = 1 << 20

// REPLConfig controls a REPL session.
type REPLConfig struct {
	SessionID string
	Prompt    string
	// Renderer formats replies; nil prints raw Markdown.
	Renderer Renderer
	// Markers wraps each reply in ResponseStartMarker/ResponseEndMarker.
	Markers bool
}

// REPL reads one utterance per line and prints one reply per turn.
type REPL struct {
	team   Team
	in     io.Reader
	cfg    REPLConfig
	logger *slog.Logger

	mu  sync.Mutex // serializes writes to out
	out io.Writer
}

// NewREPL creates a REPL bound to one session.
func NewREPL(team Team, in io.Reader, out io.Writer, cfg REPLConfig, logger *slog.Logger) *REPL {
	if cfg.Prompt == "" {
		cfg.Prompt = "you> "
	}
	if cfg.Renderer == nil {
		cfg.Renderer = PlainRenderer{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &REPL{team: team, in: in, out: out, cfg: cfg, logger: logger}
}

// WatchEvents prints worker progress for this REPL's session until the
// returned function is called.
func (r *REPL) WatchEvents(bus domain.EventBus) func() {
	return bus.SubscribeAll(func(_ context.Context, ev domain.Event) {
		if ev.SessionID != r.cfg.SessionID {
			return
		}
		if line := activityLine(ev); line != "" {
			r.println(theme.Dim.Render(line))
		}
	})
}

func activityLine(ev domain.Event) string {
	switch ev.Type {
	case domain.EventWorkerDispatched, domain.EventWorkerCompleted, domain.EventWorkerFailed:
		var p domain.WorkerEventPayload
		if json.Unmarshal(ev.Payload, &p) != nil {
			return ""
		}
		switch ev.Type {
		case domain.EventWorkerDispatched:
			return fmt.Sprintf("  %s %s working%s", theme.SymbolArrowR, p.WorkerID, theme.SymbolEllipsis)
		case domain.EventWorkerCompleted:
			return fmt.Sprintf("  %s %s done", theme.SymbolSuccess, p.WorkerID)
		default:
			return fmt.Sprintf("  %s %s failed: %s", theme.SymbolError, p.WorkerID, p.Error)
		}
	case domain.EventGateOpened:
		var p domain.GateEventPayload
		if json.Unmarshal(ev.Payload, &p) != nil {
			return ""
		}
		return fmt.Sprintf("  %s %s awaits confirmation", theme.SymbolGate, p.WorkerID)
	}
	return ""
}

// Run loops until /quit, end of input, or ctx is done.
func (r *REPL) Run(ctx context.Context) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r.in)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-done:
				return
			}
		}
		scanErr <- sc.Err()
	}()

	r.println(theme.Bold.Render(theme.SymbolBot) + theme.TextMuted.Render("  session "+r.cfg.SessionID+", type /help for commands"))
	for {
		r.print(r.cfg.Prompt)
		select {
		case <-ctx.Done():
			r.println("")
			return nil
		case line, ok := <-lines:
			if !ok {
				r.println("")
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if quit := r.handleLine(ctx, line); quit {
				return nil
			}
		}
	}
}

func (r *REPL) handleLine(ctx context.Context, line string) (quit bool) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return false
	case strings.HasPrefix(line, "/"):
		return r.command(ctx, strings.ToLower(strings.Fields(line)[0]))
	default:
		r.turn(ctx, line)
		return false
	}
}

func (r *REPL) turn(ctx context.Context, text string) {
	reply, err := r.team.Handle(ctx, r.cfg.SessionID, text)
	if reply == nil {
		r.printError(err)
		return
	}

	body := r.cfg.Renderer.Render(reply.Markdown())
	if r.cfg.Markers {
		body = ResponseStartMarker + "\n" + body + "\n" + ResponseEndMarker
	}
	r.println(body)
	if err != nil {
		r.logger.Warn("turn not persisted", "session", r.cfg.SessionID, "error", err)
		r.println(theme.TextWarning.Render(theme.SymbolWarning + " this turn could not be saved: " + err.Error()))
	}
}

func (r *REPL) command(ctx context.Context, cmd string) (quit bool) {
	switch cmd {
	case "/quit", "/exit":
		r.println("Goodbye!")
		return true
	case "/help":
		r.println(helpREPL)
	case "/reset":
		if err := r.team.Reset(ctx, r.cfg.SessionID); err != nil {
			r.printError(err)
			return false
		}
		r.println(theme.TextSuccess.Render(theme.SymbolSuccess) + " Session cleared.")
	case "/history":
		r.history(ctx)
	case "/status":
		r.status(ctx)
	default:
		r.println(fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd))
	}
	return false
}

func (r *REPL) history(ctx context.Context) {
	turns, err := r.team.History(ctx, r.cfg.SessionID)
	if err != nil {
		r.printError(err)
		return
	}
	if len(turns) == 0 {
		r.println(theme.TextMuted.Render("No turns yet."))
		return
	}
	var sb strings.Builder
	for i, t := range turns {
		if i > 0 {
			sb.WriteString("\n")
		}
		label := theme.UserLabel.Render(theme.SymbolUser)
		if t.Speaker == domain.SpeakerAssistant {
			label = theme.BotLabel.Render(theme.SymbolBot)
		}
		fmt.Fprintf(&sb, "%s %s\n%s\n", theme.Timestamp.Render(t.Timestamp.Format("15:04:05")), label, t.Text)
	}
	r.println(strings.TrimRight(sb.String(), "\n"))
}

func (r *REPL) status(ctx context.Context) {
	snap, err := r.team.Snapshot(ctx, r.cfg.SessionID)
	if err != nil {
		r.printError(err)
		return
	}
	r.println(FormatSnapshot(snap))
}

// FormatSnapshot renders a session snapshot as a short report.
func FormatSnapshot(snap multiagent.Snapshot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Session:    %s\n", snap.SessionID)
	fmt.Fprintf(&sb, "State:      %s\n", snap.State)
	repo := "none"
	if snap.Repository.URL != "" {
		repo = snap.Repository.URL
		if snap.Repository.Loaded {
			repo += " (loaded)"
		} else {
			repo += " (not loaded)"
		}
	}
	fmt.Fprintf(&sb, "Repository: %s\n", repo)
	fmt.Fprintf(&sb, "Confirmed:  %s\n", joinOrNone(snap.Confirmed))
	pending := make([]string, 0, len(snap.Pending))
	for _, g := range snap.Pending {
		pending = append(pending, g.WorkerID)
	}
	fmt.Fprintf(&sb, "Pending:    %s\n", joinOrNone(pending))
	fmt.Fprintf(&sb, "Deferred:   %s", joinOrNone(snap.Deferred))
	return sb.String()
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

func (r *REPL) printError(err error) {
	r.println(theme.TextError.Render(uxerror.Humanize(err).Render()))
}

func (r *REPL) print(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = io.WriteString(r.out, s)
}

func (r *REPL) println(s string) {
	r.print(s + "\n")
}
