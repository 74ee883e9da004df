package widget

import (
	"testing"
	"time"

	"github.com/lotas/mailvox/internal/types"
)

func TestDetectorFiresOncePerIdentity(t *testing.T) {
	now := time.Now()
	d := NewDetector()
	d.now = func() time.Time { return now }

	if _, ok := d.Observe("a", readable); !ok {
		t.Fatal("first observation should fire")
	}

	now = now.Add(time.Second)
	if _, ok := d.Observe("a", readable); ok {
		t.Error("same identity fired twice")
	}

	now = now.Add(time.Second)
	ev, ok := d.Observe("b", readable)
	if !ok {
		t.Fatal("new identity should fire")
	}
	if ev.Identity != "b" {
		t.Errorf("identity = %q", ev.Identity)
	}
}

func TestDetectorDebouncesBursts(t *testing.T) {
	now := time.Now()
	d := NewDetector()
	d.now = func() time.Time { return now }

	d.Observe("a", readable)

	// A different identity arriving inside the gap is suppressed...
	now = now.Add(100 * time.Millisecond)
	if _, ok := d.Observe("b", readable); ok {
		t.Error("burst change should be debounced")
	}

	// ...but the next periodic sample still sees it.
	now = now.Add(time.Second)
	if _, ok := d.Observe("b", readable); !ok {
		t.Error("debounced change lost")
	}
}

func TestDetectorMessageFlowsThrough(t *testing.T) {
	d := NewDetector()
	ev, ok := d.Observe("a", types.ExtractedMessage{Subject: "Hi"})
	if !ok || ev.Message.Subject != "Hi" {
		t.Errorf("event = %+v, ok = %v", ev, ok)
	}
}
