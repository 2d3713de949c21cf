package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"officeapp/internal/update"
)

const defaultSpinnerInterval = 120 * time.Millisecond

type spinnerEvent struct {
	stage      update.Stage
	percent    int
	hasPercent bool
}

// textSpinner renders progress on a single rewritten line. It is used for
// plain output where a full bubbletea program is unwanted.
type textSpinner struct {
	writer        io.Writer
	delay         time.Duration
	frameInterval time.Duration
	frames        []rune

	events chan spinnerEvent
	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once

	mu       sync.Mutex
	current  spinnerEvent
	frameIdx int
}

func newTextSpinner(w io.Writer, delay time.Duration) *textSpinner {
	return newCustomTextSpinner(w, delay, defaultSpinnerInterval)
}

func newCustomTextSpinner(w io.Writer, delay, frameInterval time.Duration) *textSpinner {
	if w == nil {
		w = io.Discard
	}
	sp := &textSpinner{
		writer:        w,
		delay:         delay,
		frameInterval: frameInterval,
		frames:        []rune{'|', '/', '-', '\\'},
		events:        make(chan spinnerEvent, 8),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
		current:       spinnerEvent{stage: update.StageDownloading},
	}
	go sp.loop()
	return sp
}

// Stage implements progressReporter.
func (s *textSpinner) Stage(stage update.Stage) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.current.stage = stage
	ev := s.current
	s.mu.Unlock()
	s.send(ev)
}

// Progress implements progressReporter.
func (s *textSpinner) Progress(percent int) {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.current.hasPercent && s.current.percent == percent {
		s.mu.Unlock()
		return
	}
	s.current.percent = percent
	s.current.hasPercent = true
	ev := s.current
	s.mu.Unlock()
	s.send(ev)
}

func (s *textSpinner) send(ev spinnerEvent) {
	select {
	case <-s.stopCh:
		return
	default:
	}
	select {
	case s.events <- ev:
	default:
	}
}

// Stop implements progressReporter.
func (s *textSpinner) Stop() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		close(s.stopCh)
		<-s.doneCh
	})
}

func (s *textSpinner) loop() {
	defer close(s.doneCh)

	var delayCh <-chan time.Time
	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		delayCh = timer.C
	}

	ticker := time.NewTicker(s.frameInterval)
	defer ticker.Stop()

	var current spinnerEvent
	hasEvent := false
	visible := s.delay == 0

	for {
		select {
		case <-s.stopCh:
			if visible && hasEvent {
				s.clearLine()
			}
			return
		case ev := <-s.events:
			current = ev
			hasEvent = true
			if visible {
				s.render(current)
			}
		case <-ticker.C:
			if visible && hasEvent {
				s.render(current)
			}
		case <-delayCh:
			delayCh = nil
			visible = true
			if hasEvent {
				s.render(current)
			}
		}
	}
}

func (s *textSpinner) render(ev spinnerEvent) {
	_, _ = fmt.Fprintf(s.writer, "\r\033[2K%c %s", s.nextFrame(), formatSpinnerMessage(ev))
}

func (s *textSpinner) clearLine() {
	_, _ = fmt.Fprint(s.writer, "\r\033[2K")
}

func (s *textSpinner) nextFrame() rune {
	frame := s.frames[s.frameIdx%len(s.frames)]
	s.frameIdx++
	return frame
}

func formatSpinnerMessage(ev spinnerEvent) string {
	label := stageLabel(ev.stage)
	if ev.hasPercent && ev.stage == update.StageDownloading {
		return fmt.Sprintf("%s... %d%%", label, ev.percent)
	}
	return label + "..."
}
