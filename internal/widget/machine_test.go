package widget

import (
	"errors"
	"testing"

	"github.com/lotas/mailvox/internal/client"
	"github.com/lotas/mailvox/internal/types"
)

var readable = types.ExtractedMessage{
	Subject: "Invoice Due",
	Sender:  types.Sender{Name: "Acme Billing", Email: "billing@acme.com"},
	Body:    "Please pay $500 by Friday.",
}

// open drives a machine to Requesting on message id with the shared readable
// message.
func open(t *testing.T, m *Machine, id string) {
	t.Helper()
	effects := m.Apply(PageChanged{Identity: id, Message: readable})
	if m.State() != types.Requesting {
		t.Fatalf("state = %v after page change, want requesting", m.State())
	}
	if len(effects) != 1 {
		t.Fatalf("effects = %v, want one StartRequest", effects)
	}
	if _, ok := effects[0].(StartRequest); !ok {
		t.Fatalf("effect = %T, want StartRequest", effects[0])
	}
}

// ready drives a machine to PlayReady on message id.
func ready(t *testing.T, m *Machine, id string) {
	t.Helper()
	open(t, m, id)
	m.Apply(RequestDone{Identity: id, Result: types.SpeechResult{Summary: "s", AudioFile: "http://x/a.wav"}})
	if m.State() != types.PlayReady {
		t.Fatalf("state = %v, want ready", m.State())
	}
}

func TestReadableMessageAutoRequests(t *testing.T) {
	m := NewMachine()
	open(t, m, "msg-1")
	sr := m.Apply(PageChanged{Identity: "msg-1", Message: readable})
	if sr != nil {
		t.Errorf("same identity fired again, effects = %v", sr)
	}
}

func TestUnreadableMessageSkipsPipeline(t *testing.T) {
	m := NewMachine()
	effects := m.Apply(PageChanged{Identity: "msg-1", Message: types.ExtractedMessage{}})
	if len(effects) != 0 {
		t.Errorf("unreadable message produced effects %v, want none", effects)
	}
	if m.State() != types.Idle {
		t.Errorf("state = %v, want idle", m.State())
	}
	if m.Notice() != NoticeUnreadable {
		t.Errorf("notice = %q, want %q", m.Notice(), NoticeUnreadable)
	}

	// A click must not reach the summary client either.
	if effects := m.Apply(Clicked{}); len(effects) != 0 {
		t.Errorf("click on unreadable message produced effects %v", effects)
	}
}

func TestClickWhileRequestingIsIgnored(t *testing.T) {
	m := NewMachine()
	open(t, m, "msg-1")
	if effects := m.Apply(Clicked{}); len(effects) != 0 {
		t.Errorf("second requesting episode started: %v", effects)
	}
	if m.State() != types.Requesting {
		t.Errorf("state = %v, want requesting", m.State())
	}
}

func TestSuccessCachesResultAndRevealsDownload(t *testing.T) {
	m := NewMachine()
	ready(t, m, "msg-1")
	if m.Result().AudioFile != "http://x/a.wav" {
		t.Errorf("cached audio = %q", m.Result().AudioFile)
	}
	if !m.Downloadable() {
		t.Error("download action should be visible after success")
	}
}

func TestFailureGoesUnreachable(t *testing.T) {
	m := NewMachine()
	open(t, m, "msg-1")
	m.Apply(RequestDone{Identity: "msg-1", Err: errors.New("boom")})
	if m.State() != types.Unreachable {
		t.Errorf("state = %v, want unreachable", m.State())
	}
	if m.Downloadable() {
		t.Error("download action must be hidden on failure")
	}
	if m.Result() != (types.SpeechResult{}) {
		t.Errorf("result = %+v, want discarded", m.Result())
	}
}

func TestNoAudioIsIdleWithSummary(t *testing.T) {
	m := NewMachine()
	open(t, m, "msg-1")
	m.Apply(RequestDone{Identity: "msg-1", Result: types.SpeechResult{Summary: "text"}, Err: client.ErrNoAudio})
	if m.State() != types.Idle {
		t.Errorf("state = %v, want idle", m.State())
	}
	if m.Result().Summary != "text" {
		t.Errorf("summary = %q, want kept", m.Result().Summary)
	}
	if m.Downloadable() {
		t.Error("no audio, nothing to download")
	}
	if m.Notice() != NoticeNoAudio {
		t.Errorf("notice = %q", m.Notice())
	}
}

func TestStaleResponseIsDiscarded(t *testing.T) {
	m := NewMachine()
	open(t, m, "msg-1")
	open(t, m, "msg-2")

	m.Apply(RequestDone{Identity: "msg-1", Result: types.SpeechResult{AudioFile: "http://x/old.wav"}})
	if m.State() != types.Requesting {
		t.Errorf("state = %v, stale response must not alter state", m.State())
	}
	if m.Result().AudioFile != "" {
		t.Errorf("stale result cached: %q", m.Result().AudioFile)
	}
}

func TestPlayPauseResume(t *testing.T) {
	m := NewMachine()
	ready(t, m, "msg-1")

	effects := m.Apply(Clicked{})
	if m.State() != types.Playing {
		t.Fatalf("state = %v, want playing", m.State())
	}
	if len(effects) != 1 {
		t.Fatalf("effects = %v", effects)
	}
	if sp, ok := effects[0].(StartPlayback); !ok || sp.URL != "http://x/a.wav" {
		t.Fatalf("effect = %#v, want StartPlayback with cached URL", effects[0])
	}

	effects = m.Apply(Clicked{})
	if m.State() != types.Paused {
		t.Errorf("state = %v, want paused", m.State())
	}
	if len(effects) != 1 {
		t.Fatalf("effects = %v", effects)
	}
	if _, ok := effects[0].(PausePlayback); !ok {
		t.Errorf("effect = %T, want PausePlayback", effects[0])
	}

	effects = m.Apply(Clicked{})
	if m.State() != types.Playing {
		t.Errorf("state = %v, want playing again", m.State())
	}
	if len(effects) != 1 {
		t.Fatalf("effects = %v", effects)
	}
	if _, ok := effects[0].(ResumePlayback); !ok {
		t.Errorf("effect = %T, want ResumePlayback", effects[0])
	}
}

func TestAudioEndedResetsToIdle(t *testing.T) {
	m := NewMachine()
	ready(t, m, "msg-1")
	m.Apply(Clicked{})
	m.Apply(Progress{Fraction: 0.8})

	m.Apply(AudioEnded{})
	if m.State() != types.Idle {
		t.Errorf("state = %v, want idle", m.State())
	}
	if m.Progress() != 0 {
		t.Errorf("progress = %v, want reset to 0", m.Progress())
	}
	if !m.Downloadable() {
		t.Error("download action stays visible after playback ends")
	}
}

func TestChangeWhilePlayingStopsAndDiscards(t *testing.T) {
	m := NewMachine()
	ready(t, m, "msg-1")
	m.Apply(Clicked{})

	effects := m.Apply(PageChanged{Identity: "msg-2", Message: readable})
	if len(effects) != 2 {
		t.Fatalf("effects = %v, want StopPlayback then StartRequest", effects)
	}
	if _, ok := effects[0].(StopPlayback); !ok {
		t.Errorf("first effect = %T, want StopPlayback", effects[0])
	}
	if _, ok := effects[1].(StartRequest); !ok {
		t.Errorf("second effect = %T, want StartRequest", effects[1])
	}
	if m.Result() != (types.SpeechResult{}) {
		t.Errorf("result = %+v, want discarded before new episode", m.Result())
	}
	if m.Progress() != 0 {
		t.Errorf("progress = %v, want reset", m.Progress())
	}
}

func TestAudioErrorGoesUnreachable(t *testing.T) {
	m := NewMachine()
	ready(t, m, "msg-1")
	m.Apply(Clicked{})

	effects := m.Apply(AudioFailed{Err: errors.New("decode failed")})
	if m.State() != types.Unreachable {
		t.Errorf("state = %v, want unreachable", m.State())
	}
	if m.Downloadable() {
		t.Error("download action must be hidden")
	}
	if m.Result() != (types.SpeechResult{}) {
		t.Errorf("result = %+v, want discarded", m.Result())
	}
	if len(effects) != 1 {
		t.Fatalf("effects = %v", effects)
	}
	if _, ok := effects[0].(StopPlayback); !ok {
		t.Errorf("effect = %T, want StopPlayback", effects[0])
	}
}

func TestProgressIsClampedAndObservational(t *testing.T) {
	m := NewMachine()
	ready(t, m, "msg-1")
	m.Apply(Clicked{})

	m.Apply(Progress{Fraction: 1.7})
	if m.Progress() != 1 {
		t.Errorf("progress = %v, want clamped to 1", m.Progress())
	}
	m.Apply(Progress{Fraction: -0.2})
	if m.Progress() != 0 {
		t.Errorf("progress = %v, want clamped to 0", m.Progress())
	}
	if m.State() != types.Playing {
		t.Errorf("progress changed state to %v", m.State())
	}
}

func TestClickFromUnreachableRetries(t *testing.T) {
	m := NewMachine()
	open(t, m, "msg-1")
	m.Apply(RequestDone{Identity: "msg-1", Err: errors.New("down")})

	effects := m.Apply(Clicked{})
	if m.State() != types.Requesting {
		t.Errorf("state = %v, want requesting", m.State())
	}
	if len(effects) != 1 {
		t.Fatalf("effects = %v", effects)
	}
	if _, ok := effects[0].(StartRequest); !ok {
		t.Errorf("effect = %T, want StartRequest", effects[0])
	}
}

func TestEndToEndHappyPath(t *testing.T) {
	m := NewMachine()

	effects := m.Apply(PageChanged{Identity: "FMfcgz01", Message: readable})
	req := effects[0].(StartRequest)
	if req.Message != readable {
		t.Errorf("request message = %+v", req.Message)
	}

	m.Apply(RequestDone{
		Identity: req.Identity,
		Result:   types.SpeechResult{Summary: "You have an invoice.", AudioFile: "http://x/a.wav"},
	})
	if m.State() != types.PlayReady {
		t.Fatalf("state = %v, want ready", m.State())
	}
	if m.Result().AudioFile != "http://x/a.wav" {
		t.Errorf("cached audio = %q", m.Result().AudioFile)
	}
}
