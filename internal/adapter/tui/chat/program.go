package chat

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
)

// Run starts the full-screen program and blocks until it exits. Events for
// deps.SessionID on bus are forwarded into the UI; bus may be nil.
func Run(ctx context.Context, deps Deps, bus domain.EventBus, opts ...tea.ProgramOption) error {
	model := NewModel(deps)
	sessionID := model.deps.SessionID

	opts = append([]tea.ProgramOption{
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	}, opts...)
	p := tea.NewProgram(model, opts...)

	if bus != nil {
		unsub := bus.SubscribeAll(func(_ context.Context, ev domain.Event) {
			if ev.SessionID == sessionID {
				p.Send(EventMsg{Event: ev})
			}
		})
		defer unsub()
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
