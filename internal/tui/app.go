package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/preservica-tools/preservica-upload/internal/events"
)

// Run shows the interface until the operator quits or ctx is cancelled.
// Events published on bus are forwarded to the program.
func Run(ctx context.Context, opts Options, bus *events.EventBus) error {
	model := New(ctx, opts)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	forwardEvents(bus.SubscribeAll(), program)

	if _, err := program.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("terminal UI failed: %w", err)
	}
	return nil
}

// forwardEvents relays events to the program until ch is closed. Send is
// safe from any goroutine and returns immediately once the program exits.
func forwardEvents(ch <-chan events.Event, program *tea.Program) {
	go func() {
		for ev := range ch {
			program.Send(eventMsg{event: ev})
		}
	}()
}
