package widget

import (
	"time"

	"github.com/lotas/mailvox/internal/types"
)

// minGap coalesces bursts of observations while a page is mid-render. A
// change suppressed by the gap is picked up by the next observation, so the
// periodic tick guarantees progress.
const minGap = 500 * time.Millisecond

// Detector is the single debounced entry point for message-change detection.
// Both the periodic tick and push-style sources (the browser bridge) feed
// samples through Observe; firing twice with the same identity is a no-op.
type Detector struct {
	last     string
	primed   bool
	lastFire time.Time
	now      func() time.Time
}

// NewDetector returns a detector that has seen nothing yet. The first
// observation always fires.
func NewDetector() *Detector {
	return &Detector{now: time.Now}
}

// Observe feeds one identity sample. It returns the PageChanged event to
// apply, or ok=false when nothing changed (or the change is debounced and
// will be re-observed shortly).
func (d *Detector) Observe(identity string, msg types.ExtractedMessage) (PageChanged, bool) {
	if d.primed && identity == d.last {
		return PageChanged{}, false
	}
	now := d.now()
	if d.primed && now.Sub(d.lastFire) < minGap {
		// Too soon after the previous change; d.last stays untouched so the
		// next sample still sees the difference.
		return PageChanged{}, false
	}
	d.lastFire = now
	d.last = identity
	d.primed = true
	return PageChanged{Identity: identity, Message: msg}, true
}
