package tui

import (
	"strings"
	"testing"

	"github.com/lotas/mailvox/internal/bridge"
)

func TestViewShowsBridgePort(t *testing.T) {
	m := NewModel(nil, nil, nil, bridge.New(19192), "")
	out := m.View()
	if !strings.Contains(out, "waiting on :19192") {
		t.Errorf("view missing bridge status:\n%s", out)
	}
}

func TestViewWithoutBridge(t *testing.T) {
	m := NewModel(nil, nil, nil, nil, "")
	if out := m.View(); strings.Contains(out, "extension:") {
		t.Errorf("unexpected bridge status:\n%s", out)
	}
}
