package output

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// stopTimeout bounds how long Stop waits for the program to exit.
const stopTimeout = 2 * time.Second

// ProgressView shows embedding progress while a lease is processed.
// Update may be called from several goroutines.
type ProgressView interface {
	Start(ctx context.Context)
	Update(done, total int)
	Stop()
}

// NewProgressView returns a live view when out is a color terminal, and a
// view that prints nothing otherwise.
func NewProgressView(out io.Writer, title string) ProgressView {
	if f, ok := out.(*os.File); ok && ColorEnabled(out) {
		return &tuiView{out: f, model: newEmbedModel(title)}
	}
	return nopView{}
}

type nopView struct{}

func (nopView) Start(context.Context) {}
func (nopView) Update(int, int)       {}
func (nopView) Stop()                 {}

type tuiView struct {
	mu      sync.Mutex
	out     *os.File
	model   embedModel
	program *tea.Program
	done    chan struct{}
}

func (v *tuiView) Start(ctx context.Context) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.program != nil {
		return
	}

	// No input: stdin stays free for the question loop.
	v.program = tea.NewProgram(v.model,
		tea.WithOutput(v.out),
		tea.WithInput(nil),
		tea.WithContext(ctx),
		tea.WithoutSignalHandler(),
	)
	v.done = make(chan struct{})
	go func() {
		defer close(v.done)
		_, _ = v.program.Run()
	}()
}

func (v *tuiView) Update(done, total int) {
	v.mu.Lock()
	p := v.program
	v.mu.Unlock()
	if p != nil {
		p.Send(progressMsg{done: done, total: total})
	}
}

func (v *tuiView) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.program == nil {
		return
	}
	v.program.Send(finishMsg{})
	select {
	case <-v.done:
	case <-time.After(stopTimeout):
		v.program.Kill()
	}
	v.program = nil
}

type progressMsg struct{ done, total int }

type finishMsg struct{}

// embedModel renders "⣾ Embedding chunks ███░░ 12/40".
type embedModel struct {
	title    string
	done     int
	total    int
	finished bool
	spinner  spinner.Model
	bar      progress.Model
}

func newEmbedModel(title string) embedModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime))

	bar := progress.New(
		progress.WithSolidFill(ColorLime),
		progress.WithWidth(30),
		progress.WithoutPercentage(),
	)

	return embedModel{title: title, spinner: s, bar: bar}
}

func (m embedModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m embedModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressMsg:
		// Batches finish out of order; keep the highest count.
		m.done = max(m.done, msg.done)
		m.total = msg.total
		return m, nil

	case finishMsg:
		m.finished = true
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.bar.Width = max(min(msg.Width-len(m.title)-20, 50), 10)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View clears the line once finished so the summary prints cleanly.
func (m embedModel) View() string {
	if m.finished {
		return ""
	}
	if m.total == 0 {
		return fmt.Sprintf("%s %s...", m.spinner.View(), m.title)
	}
	pct := float64(m.done) / float64(m.total)
	return fmt.Sprintf("%s %s %s %d/%d", m.spinner.View(), m.title, m.bar.ViewAs(pct), m.done, m.total)
}
