package player

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"

	"github.com/lotas/mailvox/internal/applog"
)

// Kind classifies playback events.
type Kind int

const (
	Ready Kind = iota
	Ended
	Failed
)

// Event is a playback notification: the audio loaded, finished, or failed.
type Event struct {
	Kind Kind
	Err  error
}

// Handle is the audio playback surface the widget drives. The process-wide
// audio handle is exclusively owned by the widget machine's caller; loading
// new audio first stops and releases whatever played before.
type Handle interface {
	Play(url string) error
	Pause()
	Resume()
	Stop()
	Position() float64
	Events() <-chan Event
}

// Player plays WAV/MP3 audio fetched over HTTP through the system speaker.
type Player struct {
	http   *http.Client
	events chan Event

	mu     sync.Mutex
	ctrl   *beep.Ctrl
	stream beep.StreamSeekCloser
}

// New creates a Player. The speaker device is initialized lazily on the
// first Play.
func New() *Player {
	return &Player{
		http:   &http.Client{Timeout: 30 * time.Second},
		events: make(chan Event, 8),
	}
}

// Events returns the playback notification channel.
func (p *Player) Events() <-chan Event {
	return p.events
}

// Play fetches the audio at url, stops any previous playback, and starts
// playing. It emits Ready once decoding succeeded and Ended when the stream
// finishes on its own.
func (p *Player) Play(url string) error {
	data, err := p.fetch(url)
	if err != nil {
		return err
	}

	stream, format, err := decode(url, data)
	if err != nil {
		return fmt.Errorf("decode audio: %w", err)
	}

	if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
		stream.Close()
		return fmt.Errorf("init speaker: %w", err)
	}

	p.Stop()

	ctrl := &beep.Ctrl{Streamer: stream}
	p.mu.Lock()
	p.ctrl = ctrl
	p.stream = stream
	p.mu.Unlock()

	p.emit(Event{Kind: Ready})
	speaker.Play(beep.Seq(ctrl, beep.Callback(func() {
		p.emit(Event{Kind: Ended})
	})))
	applog.Info("player.play", "url", url)
	return nil
}

// Pause pauses playback without releasing the stream.
func (p *Player) Pause() { p.setPaused(true) }

// Resume continues a paused stream.
func (p *Player) Resume() { p.setPaused(false) }

func (p *Player) setPaused(paused bool) {
	p.mu.Lock()
	ctrl := p.ctrl
	p.mu.Unlock()
	if ctrl == nil {
		return
	}
	speaker.Lock()
	ctrl.Paused = paused
	speaker.Unlock()
}

// Stop halts playback and releases the current stream. Safe to call with
// nothing playing.
func (p *Player) Stop() {
	p.mu.Lock()
	stream := p.stream
	p.ctrl = nil
	p.stream = nil
	p.mu.Unlock()
	if stream == nil {
		return
	}
	speaker.Clear()
	stream.Close()
}

// Position returns playback progress as a fraction in [0,1].
func (p *Player) Position() float64 {
	p.mu.Lock()
	stream := p.stream
	p.mu.Unlock()
	if stream == nil {
		return 0
	}
	speaker.Lock()
	pos, length := stream.Position(), stream.Len()
	speaker.Unlock()
	if length <= 0 {
		return 0
	}
	f := float64(pos) / float64(length)
	if f > 1 {
		f = 1
	}
	return f
}

func (p *Player) emit(ev Event) {
	select {
	case p.events <- ev:
	default:
	}
}

func (p *Player) fetch(url string) ([]byte, error) {
	resp, err := p.http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch audio: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch audio: HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func decode(url string, data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	if strings.Contains(strings.ToLower(url), ".mp3") {
		return mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	}
	return wav.Decode(bytes.NewReader(data))
}

// Download saves the audio at url into dir, named after the URL's base path,
// and returns the written file path.
func Download(httpc *http.Client, url, dir string) (string, error) {
	if httpc == nil {
		httpc = http.DefaultClient
	}
	resp, err := httpc.Get(url)
	if err != nil {
		return "", fmt.Errorf("fetch audio: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch audio: HTTP %d", resp.StatusCode)
	}

	name := filepath.Base(strings.SplitN(strings.TrimRight(url, "/"), "?", 2)[0])
	if name == "" || name == "." || name == "/" {
		name = "summary.wav"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", err
	}
	applog.Info("player.download", "path", path)
	return path, nil
}
