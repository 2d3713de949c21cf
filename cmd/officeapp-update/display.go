package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"officeapp/internal/update"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
)

// Colors - a nice purple/magenta theme
var (
	primaryColor   = lipgloss.Color("#7D56F4")
	secondaryColor = lipgloss.Color("#FF79C6")
	dimColor       = lipgloss.Color("#6272A4")
	textColor      = lipgloss.Color("#F8F8F2")
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(secondaryColor)

	statusStyle = lipgloss.NewStyle().
			Foreground(textColor)

	countStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	containerStyle = lipgloss.NewStyle().
			Padding(1, 2)
)

// progressReporter receives stage transitions and download progress for one run.
type progressReporter interface {
	Stage(stage update.Stage)
	Progress(percent int)
	Stop()
}

type nopReporter struct{}

func (nopReporter) Stage(update.Stage) {}
func (nopReporter) Progress(int)       {}
func (nopReporter) Stop()              {}

// newReporter picks the inline progress bar for rich output and the
// single-line spinner for plain output.
func newReporter(w io.Writer, format, version string, maxBytes int64, onInterrupt func()) progressReporter {
	title := fmt.Sprintf("Updating OfficeApp to %s (limit %s)", version, humanize.IBytes(uint64(maxBytes)))
	if strings.EqualFold(strings.TrimSpace(format), "plain") {
		return newTextSpinner(w, 0)
	}
	return NewProgressDisplay(w, title, onInterrupt)
}

// downloadModel is the bubbletea model for the download screen
type downloadModel struct {
	spinner  spinner.Model
	progress progress.Model

	title      string
	stage      update.Stage
	percent    int
	hasPercent bool

	width int
	ready bool
	done  bool

	onInterrupt func()

	// Channel to receive updates from the goroutine running the update
	updates chan displayUpdate
}

type displayUpdate struct {
	stage      update.Stage
	setStage   bool
	percent    int
	setPercent bool
	done       bool
}

type displayMsg displayUpdate

func newDownloadModel(title string, onInterrupt func()) *downloadModel {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = spinnerStyle

	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)

	return &downloadModel{
		spinner:     s,
		progress:    p,
		title:       title,
		stage:       update.StageDownloading,
		onInterrupt: onInterrupt,
		updates:     make(chan displayUpdate, 16),
	}
}

func (m *downloadModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.waitForUpdate(),
	)
}

func (m *downloadModel) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		return displayMsg(<-m.updates)
	}
}

func (m *downloadModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.ready = true
		return m, nil

	case displayMsg:
		if msg.done {
			m.done = true
			return m, tea.Quit
		}
		if msg.setStage {
			m.stage = msg.stage
		}
		var cmds []tea.Cmd
		if msg.setPercent {
			m.percent = msg.percent
			m.hasPercent = true
			cmds = append(cmds, m.progress.SetPercent(float64(msg.percent)/100))
		}
		cmds = append(cmds, m.waitForUpdate())
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd

	case tea.KeyMsg:
		// Raw mode swallows SIGINT, so ctrl+c cancels the run from here.
		if msg.String() == "ctrl+c" {
			if m.onInterrupt != nil {
				m.onInterrupt()
			}
			return m, nil
		}
	}

	return m, nil
}

func (m *downloadModel) View() string {
	if !m.ready {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.fit(m.title)))
	b.WriteString("\n")

	if m.hasPercent && m.stage == update.StageDownloading {
		b.WriteString(m.progress.View())
		b.WriteString("\n")
		b.WriteString(countStyle.Render(m.fit(fmt.Sprintf("%s %d%%", stageLabel(m.stage), m.percent))))
	} else {
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
		b.WriteString(statusStyle.Render(m.fit(stageLabel(m.stage))))
	}

	return containerStyle.Render(b.String())
}

// fit truncates s to the usable width inside the container padding.
func (m *downloadModel) fit(s string) string {
	limit := m.width - 6
	if m.width <= 0 || limit <= 0 {
		return s
	}
	return ansi.Truncate(s, limit, "…")
}

// Send updates to the model
func (m *downloadModel) sendUpdate(u displayUpdate) {
	select {
	case m.updates <- u:
	default:
		// Drop if channel is full
	}
}

// ProgressDisplay wraps the bubbletea program that renders a download.
type ProgressDisplay struct {
	program *tea.Program
	model   *downloadModel
	writer  io.Writer
	done    chan struct{}

	mu          sync.Mutex
	stopped     bool
	lastPercent int
}

// NewProgressDisplay starts an inline progress display on w.
func NewProgressDisplay(w io.Writer, title string, onInterrupt func()) *ProgressDisplay {
	return newProgressDisplay(w, title, onInterrupt)
}

func newProgressDisplay(w io.Writer, title string, onInterrupt func(), extra ...tea.ProgramOption) *ProgressDisplay {
	model := newDownloadModel(title, onInterrupt)

	opts := append([]tea.ProgramOption{
		tea.WithOutput(w),
		tea.WithoutSignalHandler(), // We handle signals ourselves
	}, extra...)
	program := tea.NewProgram(model, opts...)

	d := &ProgressDisplay{
		program:     program,
		model:       model,
		writer:      w,
		done:        make(chan struct{}),
		lastPercent: -1,
	}

	go func() {
		_, _ = program.Run()
		close(d.done)
	}()

	// Give the program a moment to start
	time.Sleep(10 * time.Millisecond)

	return d
}

// Stage implements progressReporter.
func (d *ProgressDisplay) Stage(stage update.Stage) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.model.sendUpdate(displayUpdate{stage: stage, setStage: true})
}

// Progress implements progressReporter. Repeated percentages are not resent.
func (d *ProgressDisplay) Progress(percent int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || percent == d.lastPercent {
		return
	}
	d.lastPercent = percent
	d.model.sendUpdate(displayUpdate{percent: percent, setPercent: true})
}

// Stop stops the display and waits briefly for it to exit.
func (d *ProgressDisplay) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	d.mu.Unlock()

	// Sent straight to the program so a full update buffer cannot drop it.
	go d.program.Send(displayMsg{done: true})

	select {
	case <-d.done:
	case <-time.After(500 * time.Millisecond):
		d.program.Kill()
	}

	// Clear the line
	_, _ = fmt.Fprint(d.writer, "\r\033[K")
}

func stageLabel(stage update.Stage) string {
	switch stage {
	case update.StageIdle:
		return "Waiting"
	case update.StageChecking:
		return "Checking for updates"
	case update.StageNoUpdate:
		return "Up to date"
	case update.StageUpdateAvailable:
		return "Update available"
	case update.StageDeclined:
		return "Declined"
	case update.StageDownloading:
		return "Downloading"
	case update.StageDownloadFailed:
		return "Download failed"
	case update.StageCancelled:
		return "Cancelled"
	case update.StageDownloaded:
		return "Verifying"
	case update.StageVerifyFailed:
		return "Verification failed"
	case update.StageVerified:
		return "Recording version"
	case update.StageFinalized:
		return "Done"
	default:
		return "Working"
	}
}
