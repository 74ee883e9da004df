package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultMurfURL = "https://api.murf.ai"

// DefaultVoice is used when the caller doesn't request one.
const DefaultVoice = "en-US-natalie"

type murfPronunciation struct {
	Pronunciation string `json:"pronunciation"`
	Type          string `json:"type"`
}

// Terms the voices routinely mangle; pronounced literally instead.
var pronunciationDictionary = map[string]murfPronunciation{
	"2025":  {Pronunciation: "twenty twenty five", Type: "SAY_AS"},
	"lakh":  {Pronunciation: "lakh", Type: "SAY_AS"},
	"crore": {Pronunciation: "crore", Type: "SAY_AS"},
}

type murfRequest struct {
	Text                        string                       `json:"text"`
	VoiceID                     string                       `json:"voiceId"`
	PronunciationDictionary     map[string]murfPronunciation `json:"pronunciationDictionary"`
	AudioDuration               int                          `json:"audioDuration"`
	ChannelType                 string                       `json:"channelType"`
	EncodeAsBase64              bool                         `json:"encodeAsBase64"`
	Format                      string                       `json:"format"`
	ModelVersion                string                       `json:"modelVersion"`
	MultiNativeLocale           string                       `json:"multiNativeLocale"`
	Pitch                       int                          `json:"pitch"`
	Rate                        int                          `json:"rate"`
	SampleRate                  int                          `json:"sampleRate"`
	Style                       string                       `json:"style"`
	Variation                   int                          `json:"variation"`
	WordDurationsAsOriginalText bool                         `json:"wordDurationsAsOriginalText"`
}

// MurfClient calls the Murf text-to-speech API.
type MurfClient struct {
	APIKey  string
	BaseURL string
	http    *http.Client
}

// NewMurfClient creates a client with the default endpoint.
func NewMurfClient(apiKey string) *MurfClient {
	return &MurfClient{
		APIKey:  apiKey,
		BaseURL: defaultMurfURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Generate synthesizes speech for the given text. The raw provider response
// is returned as-is; it carries the audio URL under a provider-chosen key
// (audioFile on current API versions), so the relay passes it through
// untouched.
func (c *MurfClient) Generate(ctx context.Context, text, voiceID string) (json.RawMessage, error) {
	body, err := json.Marshal(murfRequest{
		Text:                    text,
		VoiceID:                 voiceID,
		PronunciationDictionary: pronunciationDictionary,
		ChannelType:             "MONO",
		Format:                  "WAV",
		ModelVersion:            "GEN2",
		SampleRate:              44100,
		Variation:               1,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/speech/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("api-key", c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("murf request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("murf returned HTTP %d", resp.StatusCode)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode murf response: %w", err)
	}
	return raw, nil
}

// Voices lists the available voices.
func (c *MurfClient) Voices(ctx context.Context) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v1/speech/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("api-key", c.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("murf request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("murf returned HTTP %d", resp.StatusCode)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode murf response: %w", err)
	}
	return raw, nil
}
