package tui

import (
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"scanstream/internal/session"
)

// ContainerID names the terminal as a capture container.
const ContainerID = "terminal"

// Surface shows a live session in the terminal. Inserting it starts a
// bubbletea program fed by session events; removing it quits the program.
type Surface struct {
	// Stop and Torch back the "q" and "t" keys.
	Stop  func()
	Torch func(bool) error

	events  <-chan session.Event
	options []tea.ProgramOption

	mu      sync.Mutex
	program *tea.Program
	done    chan struct{}
}

func NewSurface(events <-chan session.Event, options ...tea.ProgramOption) *Surface {
	return &Surface{events: events, options: options}
}

func (s *Surface) HasContainer(id string) bool {
	return id == ContainerID
}

func (s *Surface) InsertCaptureSurface(id string) error {
	if !s.HasContainer(id) {
		return fmt.Errorf("unknown container %q", id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.program != nil {
		return fmt.Errorf("capture surface already inserted")
	}

	model := NewModel(s.events)
	model.onQuit = s.Stop
	model.onTorch = s.Torch

	program := tea.NewProgram(model, s.options...)
	done := make(chan struct{})
	go func() {
		_, _ = program.Run()
		close(done)
	}()
	s.program, s.done = program, done
	return nil
}

// RemoveCaptureSurface quits the program and waits for it to restore the
// terminal.
func (s *Surface) RemoveCaptureSurface() {
	s.mu.Lock()
	program, done := s.program, s.done
	s.program, s.done = nil, nil
	s.mu.Unlock()
	if program == nil {
		return
	}
	program.Quit()
	<-done
}
