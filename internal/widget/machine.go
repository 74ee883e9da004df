package widget

import (
	"errors"

	"github.com/lotas/mailvox/internal/applog"
	"github.com/lotas/mailvox/internal/client"
	"github.com/lotas/mailvox/internal/types"
)

// Event is an input to the machine: user clicks, change detection, backend
// completion, or audio playback events. Events are the only way state moves.
type Event interface{ event() }

// Clicked is the user activating the widget control.
type Clicked struct{}

// PageChanged reports that the visible message (by identity) changed.
// Delivering it twice with the same identity is a no-op.
type PageChanged struct {
	Identity string
	Message  types.ExtractedMessage
}

// RequestDone delivers the outcome of a summarize call. Identity is the
// message identity captured when the request started; a completion for a
// message no longer on screen is discarded.
type RequestDone struct {
	Identity string
	Result   types.SpeechResult
	Err      error
}

// AudioReady reports the audio handle finished loading. Playback starts
// eagerly, so this is informational.
type AudioReady struct{}

// AudioEnded reports end of stream.
type AudioEnded struct{}

// AudioFailed reports a playback failure after an audio URL was obtained.
type AudioFailed struct{ Err error }

// Progress reports playback position as a fraction. Observational only;
// it participates in no transition.
type Progress struct{ Fraction float64 }

func (Clicked) event()     {}
func (PageChanged) event() {}
func (RequestDone) event() {}
func (AudioReady) event()  {}
func (AudioEnded) event()  {}
func (AudioFailed) event() {}
func (Progress) event()    {}

// Effect is an action the caller must carry out after a transition. The
// machine itself never performs I/O.
type Effect interface{ effect() }

// StartRequest asks the caller to invoke the summary client for Message,
// tagging the eventual RequestDone with Identity.
type StartRequest struct {
	Identity string
	Message  types.ExtractedMessage
}

// StartPlayback loads and plays the audio at URL on the shared handle.
type StartPlayback struct{ URL string }

// PausePlayback pauses the current handle.
type PausePlayback struct{}

// ResumePlayback resumes a paused handle.
type ResumePlayback struct{}

// StopPlayback stops and releases the current handle.
type StopPlayback struct{}

func (StartRequest) effect()   {}
func (StartPlayback) effect()  {}
func (PausePlayback) effect()  {}
func (ResumePlayback) effect() {}
func (StopPlayback) effect()   {}

// NoticeUnreadable is shown when extraction produced nothing usable.
const NoticeUnreadable = "could not read this email"

// NoticeNoAudio is shown when a summary arrived without playable audio.
const NoticeNoAudio = "summary ready, audio unavailable"

// Machine is the widget state machine. It owns the widget state, the cached
// SpeechResult, and the current message identity; all transitions run
// synchronously in the caller's event loop, so no locking is needed.
type Machine struct {
	state    types.State
	identity string
	message  types.ExtractedMessage
	result   types.SpeechResult
	progress float64
	download bool
	notice   string
}

// NewMachine returns a machine in Idle with no message.
func NewMachine() *Machine {
	return &Machine{state: types.Idle}
}

func (m *Machine) State() types.State         { return m.state }
func (m *Machine) Identity() string           { return m.identity }
func (m *Machine) Result() types.SpeechResult { return m.result }
func (m *Machine) Progress() float64          { return m.progress }
func (m *Machine) Downloadable() bool         { return m.download }
func (m *Machine) Notice() string             { return m.notice }

// Apply runs one transition and returns the effects the caller must execute,
// in order. Unlisted event/state pairs are no-ops.
func (m *Machine) Apply(ev Event) []Effect {
	switch e := ev.(type) {
	case Clicked:
		return m.onClick()
	case PageChanged:
		return m.onPageChanged(e)
	case RequestDone:
		return m.onRequestDone(e)
	case AudioEnded:
		if m.state == types.Playing {
			m.transition(types.Idle)
			m.progress = 0
			// Download action stays visible until the message changes.
		}
	case AudioFailed:
		applog.Error("widget.audio", e.Err, "state", m.state)
		m.result = types.SpeechResult{}
		m.download = false
		m.progress = 0
		m.transition(types.Unreachable)
		return []Effect{StopPlayback{}}
	case Progress:
		if m.state == types.Playing {
			m.progress = clamp01(e.Fraction)
		}
	case AudioReady:
		// Playback starts eagerly; nothing to do.
	}
	return nil
}

func (m *Machine) onClick() []Effect {
	switch m.state {
	case types.Idle, types.Unreachable:
		if m.message.Unreadable() {
			m.notice = NoticeUnreadable
			applog.Info("widget.unreadable")
			return nil
		}
		m.result = types.SpeechResult{}
		m.download = false
		m.transition(types.Requesting)
		return []Effect{StartRequest{Identity: m.identity, Message: m.message}}
	case types.Requesting:
		// One episode in flight at a time; clicks don't queue.
		return nil
	case types.PlayReady:
		m.transition(types.Playing)
		return []Effect{StartPlayback{URL: m.result.AudioFile}}
	case types.Playing:
		m.transition(types.Paused)
		return []Effect{PausePlayback{}}
	case types.Paused:
		m.transition(types.Playing)
		return []Effect{ResumePlayback{}}
	}
	return nil
}

func (m *Machine) onPageChanged(e PageChanged) []Effect {
	if e.Identity == m.identity {
		return nil
	}

	var effects []Effect
	if m.state == types.Playing || m.state == types.Paused {
		effects = append(effects, StopPlayback{})
	}

	// Playback is stopped and the cached result discarded before any new
	// episode may start.
	m.identity = e.Identity
	m.message = e.Message
	m.result = types.SpeechResult{}
	m.download = false
	m.progress = 0
	m.notice = ""

	if e.Message.Unreadable() {
		m.notice = NoticeUnreadable
		m.transition(types.Idle)
		applog.Info("widget.changed.unreadable", "identity", e.Identity)
		return effects
	}

	m.transition(types.Requesting)
	applog.Info("widget.changed", "identity", e.Identity)
	return append(effects, StartRequest{Identity: e.Identity, Message: e.Message})
}

func (m *Machine) onRequestDone(e RequestDone) []Effect {
	// Stale-response guard: a completion for a message we've navigated away
	// from must not alter state.
	if e.Identity != m.identity || m.state != types.Requesting {
		applog.Info("widget.stale", "identity", e.Identity)
		return nil
	}

	switch {
	case e.Err == nil:
		m.result = e.Result
		m.download = true
		m.transition(types.PlayReady)
	case errors.Is(e.Err, client.ErrNoAudio):
		// Summary without audio: effectively Idle, summary kept for display.
		m.result = e.Result
		m.download = false
		m.notice = NoticeNoAudio
		m.transition(types.Idle)
	default:
		applog.Error("widget.request", e.Err)
		m.result = types.SpeechResult{}
		m.download = false
		m.transition(types.Unreachable)
	}
	return nil
}

func (m *Machine) transition(to types.State) {
	if m.state != to {
		applog.Info("widget.transition", "from", m.state, "to", to)
	}
	m.state = to
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
