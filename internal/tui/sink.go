package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"quizload/internal/runner"
)

// Sink forwards runner events to a tea program without blocking the
// reporter. Ticks are dropped while the program lags; level events never are.
type Sink struct {
	ch   chan runner.Event
	send func(tea.Msg)
	done chan struct{}
}

// NewSink starts forwarding to send, normally (*tea.Program).Send.
func NewSink(send func(tea.Msg)) *Sink {
	s := &Sink{
		ch:   make(chan runner.Event, 64),
		send: send,
		done: make(chan struct{}),
	}
	go s.forward()
	return s
}

func (s *Sink) forward() {
	defer close(s.done)
	for e := range s.ch {
		s.send(EventMsg{Event: e})
	}
}

func (s *Sink) Publish(e runner.Event) {
	if _, ok := e.(runner.Tick); ok {
		select {
		case s.ch <- e:
		default:
		}
		return
	}
	s.ch <- e
}

// Close flushes pending events. Publish must not be called afterwards.
func (s *Sink) Close() {
	close(s.ch)
	<-s.done
}
