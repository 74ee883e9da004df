package types

// Sender identifies who a message came from. Gmail exposes both the display
// name and the address on the same element, so either may be empty on its own.
type Sender struct {
	Name  string
	Email string
}

// ExtractedMessage is a value snapshot of the currently open message. It is
// created fresh on every extraction and never mutated. All fields default to
// the empty string when the page doesn't expose them.
type ExtractedMessage struct {
	Subject string
	Sender  Sender
	Body    string
}

// Unreadable reports whether nothing usable was scraped. This is the sole
// gate for attempting summarization: an all-empty message is a valid result,
// not an error.
func (m ExtractedMessage) Unreadable() bool {
	return m.Subject == "" && m.Sender.Name == "" && m.Body == ""
}

// SpeechResult is what the backend returns for one message: the summary text
// and the URL of the synthesized audio. AudioFile may be empty when the
// backend produced a summary but speech synthesis failed. A SpeechResult is
// owned by the widget for the lifetime of the displayed message and discarded
// whenever the message identity changes.
type SpeechResult struct {
	Summary   string
	AudioFile string
}

// State is the widget's visual state. Exactly one instance exists, owned by
// the widget machine; no other component sets it.
type State int

const (
	Idle State = iota
	Requesting
	PlayReady
	Playing
	Paused
	Unreachable
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Requesting:
		return "requesting"
	case PlayReady:
		return "ready"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Unreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}
