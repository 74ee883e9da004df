package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lotas/mailvox/internal/applog"
	"github.com/lotas/mailvox/internal/types"
)

// ErrUnreachable means the backend could not be reached: the health probe
// failed, or every summarize attempt died on the network.
var ErrUnreachable = errors.New("backend unreachable")

// ErrNoAudio means the backend produced a summary but no playable audio URL.
// Non-fatal: the SpeechResult returned alongside still carries the summary.
var ErrNoAudio = errors.New("summary produced without audio")

// BackendError is a rejection from the backend itself: a non-2xx status or
// an explicit success=false payload.
type BackendError struct {
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend rejected request (HTTP %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend rejected request (HTTP %d)", e.Status)
}

const (
	defaultProbeTimeout = 2 * time.Second
	defaultAttempts     = 3
)

// Client talks to the summarization relay.
type Client struct {
	baseURL  string
	voiceID  string
	http     *http.Client
	attempts int

	probeTimeout time.Duration

	// sleep waits between retry attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Client for the relay at baseURL, requesting synthesis with
// the given voice.
func New(baseURL, voiceID string) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		voiceID:      voiceID,
		http:         &http.Client{},
		attempts:     defaultAttempts,
		probeTimeout: defaultProbeTimeout,
		sleep:        sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type summarizeRequest struct {
	EmailContent string `json:"email_content"`
	VoiceID      string `json:"voice_id"`
}

type speechPayload struct {
	AudioFile string `json:"audioFile"`
	AudioURL  string `json:"audioUrl"`
	AudioURL2 string `json:"audio_url"`
	URL       string `json:"url"`
}

// audio returns the first populated URL variant. The TTS provider has
// shipped several key spellings over time.
func (p *speechPayload) audio() string {
	for _, u := range []string{p.AudioFile, p.AudioURL, p.AudioURL2, p.URL} {
		if u != "" {
			return u
		}
	}
	return ""
}

type summarizeResponse struct {
	Success bool           `json:"success"`
	Summary string         `json:"summary"`
	Speech  *speechPayload `json:"speech"`
	Error   string         `json:"error"`
}

// Probe checks backend reachability with a short timeout. A backend that
// does not answer within the timeout is treated as unreachable; there is no
// slow-but-alive middle ground.
func (c *Client) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health returned HTTP %d", ErrUnreachable, resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: health body not JSON: %v", ErrUnreachable, err)
	}
	return nil
}

// Summarize runs the full outbound pipeline for one message: reachability
// probe (fail fast), then up to 3 summarize attempts with exponential
// backoff (1s, 2s between attempts), surfacing the last error when all fail.
// On success with no audio URL it returns the summary together with
// ErrNoAudio.
func (c *Client) Summarize(ctx context.Context, msg types.ExtractedMessage) (types.SpeechResult, error) {
	if err := c.Probe(ctx); err != nil {
		applog.Error("client.probe", err)
		return types.SpeechResult{}, err
	}

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if attempt > 1 {
			wait := time.Duration(1<<(attempt-2)) * time.Second
			applog.Info("client.retry", "attempt", attempt, "wait", wait)
			if err := c.sleep(ctx, wait); err != nil {
				return types.SpeechResult{}, err
			}
		}

		result, err := c.summarizeOnce(ctx, msg)
		if err == nil || errors.Is(err, ErrNoAudio) {
			return result, err
		}
		if ctx.Err() != nil {
			return types.SpeechResult{}, err
		}
		lastErr = err
	}

	applog.Error("client.exhausted", lastErr, "attempts", c.attempts)
	return types.SpeechResult{}, lastErr
}

func (c *Client) summarizeOnce(ctx context.Context, msg types.ExtractedMessage) (types.SpeechResult, error) {
	body, err := json.Marshal(summarizeRequest{
		EmailContent: FormatContent(msg),
		VoiceID:      c.voiceID,
	})
	if err != nil {
		return types.SpeechResult{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/summarize", bytes.NewReader(body))
	if err != nil {
		return types.SpeechResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return types.SpeechResult{}, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	var parsed summarizeResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !parsed.Success {
		return types.SpeechResult{}, &BackendError{Status: resp.StatusCode, Message: parsed.Error}
	}
	if decodeErr != nil {
		return types.SpeechResult{}, fmt.Errorf("decode response: %w", decodeErr)
	}

	result := types.SpeechResult{Summary: parsed.Summary}
	if parsed.Speech != nil {
		result.AudioFile = parsed.Speech.audio()
	}
	if result.AudioFile == "" {
		applog.Info("client.noaudio")
		return result, ErrNoAudio
	}
	applog.Info("client.summarized", "audio", result.AudioFile)
	return result, nil
}

// Voice describes one TTS voice offered by the backend.
type Voice struct {
	VoiceID     string `json:"voiceId"`
	DisplayName string `json:"displayName"`
	Locale      string `json:"locale"`
}

type voicesResponse struct {
	Success bool    `json:"success"`
	Voices  []Voice `json:"voices"`
	Error   string  `json:"error"`
}

// Voices lists the TTS voices the backend can synthesize with.
func (c *Client) Voices(ctx context.Context) ([]Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	var parsed voicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode voices: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !parsed.Success {
		return nil, &BackendError{Status: resp.StatusCode, Message: parsed.Error}
	}
	return parsed.Voices, nil
}

// FormatContent flattens a message into the email_content string the backend
// expects. Empty fields are omitted rather than rendered as blank headers.
func FormatContent(msg types.ExtractedMessage) string {
	var b strings.Builder
	if msg.Subject != "" {
		fmt.Fprintf(&b, "Subject: %s\n", msg.Subject)
	}
	switch {
	case msg.Sender.Name != "" && msg.Sender.Email != "":
		fmt.Fprintf(&b, "From: %s <%s>\n", msg.Sender.Name, msg.Sender.Email)
	case msg.Sender.Name != "":
		fmt.Fprintf(&b, "From: %s\n", msg.Sender.Name)
	case msg.Sender.Email != "":
		fmt.Fprintf(&b, "From: %s\n", msg.Sender.Email)
	}
	if msg.Body != "" {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(msg.Body)
	}
	return b.String()
}
