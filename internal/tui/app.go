package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lotas/mailvox/internal/bridge"
	"github.com/lotas/mailvox/internal/client"
	"github.com/lotas/mailvox/internal/extract"
	"github.com/lotas/mailvox/internal/player"
	"github.com/lotas/mailvox/internal/types"
	"github.com/lotas/mailvox/internal/widget"
)

// --- Messages ---

type tickMsg time.Time

type pageMsg bridge.PageMsg

type requestDoneMsg struct {
	identity string
	result   types.SpeechResult
	err      error
}

type playerEventMsg player.Event

type downloadDoneMsg struct {
	path string
	err  error
}

// Sampler re-reads the message page each tick: a saved HTML file or a URL.
// It returns the page URL (for identity derivation) and the markup.
type Sampler func() (pageURL, html string, err error)

// --- Model ---

// Model is the widget surface: it owns the state machine, executes its
// effects, and renders the control.
type Model struct {
	machine  *widget.Machine
	detector *widget.Detector
	client   *client.Client
	play     player.Handle

	sampler Sampler        // nil in live mode
	srv     *bridge.Server // nil in sampler mode

	downloadDir string
	status      string
	width       int
}

// NewModel builds the widget model. Exactly one of sampler/srv should be
// set; with both nil the widget just renders Idle forever.
func NewModel(c *client.Client, play player.Handle, sampler Sampler, srv *bridge.Server, downloadDir string) Model {
	return Model{
		machine:     widget.NewMachine(),
		detector:    widget.NewDetector(),
		client:      c,
		play:        play,
		sampler:     sampler,
		srv:         srv,
		downloadDir: downloadDir,
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tick(), waitPlayer(m.play)}
	if m.srv != nil {
		cmds = append(cmds, waitPage(m.srv))
	}
	return tea.Batch(cmds...)
}

// --- Commands ---

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitPage(srv *bridge.Server) tea.Cmd {
	return func() tea.Msg {
		return pageMsg(<-srv.Pages())
	}
}

func waitPlayer(p player.Handle) tea.Cmd {
	return func() tea.Msg {
		return playerEventMsg(<-p.Events())
	}
}

func startRequest(c *client.Client, eff widget.StartRequest) tea.Cmd {
	return func() tea.Msg {
		result, err := c.Summarize(context.Background(), eff.Message)
		return requestDoneMsg{identity: eff.Identity, result: result, err: err}
	}
}

func startPlayback(p player.Handle, url string) tea.Cmd {
	return func() tea.Msg {
		if err := p.Play(url); err != nil {
			return playerEventMsg(player.Event{Kind: player.Failed, Err: err})
		}
		return nil
	}
}

func download(url, dir string) tea.Cmd {
	return func() tea.Msg {
		path, err := player.Download(nil, url, dir)
		return downloadDoneMsg{path: path, err: err}
	}
}

// apply feeds one event to the machine and turns the resulting effects into
// commands and immediate player calls.
func (m *Model) apply(ev widget.Event) []tea.Cmd {
	var cmds []tea.Cmd
	for _, eff := range m.machine.Apply(ev) {
		switch e := eff.(type) {
		case widget.StartRequest:
			cmds = append(cmds, startRequest(m.client, e))
		case widget.StartPlayback:
			cmds = append(cmds, startPlayback(m.play, e.URL))
		case widget.PausePlayback:
			m.play.Pause()
		case widget.ResumePlayback:
			m.play.Resume()
		case widget.StopPlayback:
			m.play.Stop()
		}
	}
	return cmds
}

// observe runs one page sample through the debounced change detector.
func (m *Model) observe(pageURL, html string) []tea.Cmd {
	doc, err := extract.ParseString(html)
	if err != nil {
		return nil
	}
	msg := doc.Extract()
	identity := extract.Identity(pageURL, msg)
	if ev, changed := m.detector.Observe(identity, msg); changed {
		return m.apply(ev)
	}
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ", "enter":
			return m, tea.Batch(m.apply(widget.Clicked{})...)
		case "d":
			if m.machine.Downloadable() && m.machine.Result().AudioFile != "" {
				m.status = "downloading..."
				return m, download(m.machine.Result().AudioFile, m.downloadDir)
			}
		}
		return m, nil

	case tickMsg:
		cmds := []tea.Cmd{tick()}
		cmds = append(cmds, m.apply(widget.Progress{Fraction: m.play.Position()})...)
		if m.sampler != nil {
			if pageURL, html, err := m.sampler(); err == nil {
				cmds = append(cmds, m.observe(pageURL, html)...)
			}
		}
		m.pushState()
		return m, tea.Batch(cmds...)

	case pageMsg:
		cmds := m.observe(msg.URL, msg.HTML)
		cmds = append(cmds, waitPage(m.srv))
		return m, tea.Batch(cmds...)

	case requestDoneMsg:
		cmds := m.apply(widget.RequestDone{Identity: msg.identity, Result: msg.result, Err: msg.err})
		m.pushState()
		return m, tea.Batch(cmds...)

	case playerEventMsg:
		var ev widget.Event
		switch player.Event(msg).Kind {
		case player.Ready:
			ev = widget.AudioReady{}
		case player.Ended:
			ev = widget.AudioEnded{}
		case player.Failed:
			ev = widget.AudioFailed{Err: player.Event(msg).Err}
		}
		cmds := m.apply(ev)
		cmds = append(cmds, waitPlayer(m.play))
		m.pushState()
		return m, tea.Batch(cmds...)

	case downloadDoneMsg:
		if msg.err != nil {
			m.status = "download failed: " + msg.err.Error()
		} else {
			m.status = "saved " + msg.path
		}
		return m, nil
	}

	return m, nil
}

// pushState mirrors the widget state to the extension, if one is connected.
func (m *Model) pushState() {
	if m.srv == nil {
		return
	}
	m.srv.Send(bridge.StateMsg{
		Type:     "state",
		State:    m.machine.State().String(),
		Progress: m.machine.Progress(),
		Notice:   m.machine.Notice(),
	})
}
