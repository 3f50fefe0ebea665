// Package composer implements the Setup Composer: a stateful stage that
// matches actionable signal sequences into trade setups across bars.
//
// Separation contract: no sizing, no stop calculation, no orders — this
// stage only matches sequences and tracks state.
package composer

import (
	"sync"

	"github.com/voltix/vpa-engine/internal/config"
	"github.com/voltix/vpa-engine/internal/vpa"
)

// setupDef is one entry in the canonical setup registry (spec §4.6).
type setupDef struct {
	setupID      string
	trigger      string
	completers   map[string]bool
	direction    vpa.Direction
}

// registry is the canonical setup table: ENTRY-LONG-1, ENTRY-LONG-2, ENTRY-SHORT-1.
var registry = []setupDef{
	{
		setupID:    "ENTRY-LONG-1",
		trigger:    "TEST-SUP-1",
		completers: map[string]bool{"VAL-1": true},
		direction:  vpa.DirectionLong,
	},
	{
		setupID:    "ENTRY-LONG-2",
		trigger:    "STR-1",
		completers: map[string]bool{"CONF-1": true},
		direction:  vpa.DirectionLong,
	},
	{
		setupID:    "ENTRY-SHORT-1",
		trigger:    "CLIMAX-SELL-1",
		completers: map[string]bool{"WEAK-1": true, "WEAK-2": true},
		direction:  vpa.DirectionShort,
	},
}

// hardAvoidanceSet invalidates LONG candidates unconditionally (spec §4.6 step 2).
var hardAvoidanceSet = map[string]bool{"AVOID-NEWS-1": true}

// Composer is the single owned, stateful sequence matcher. It must not be
// cloned mid-session (spec §9); the mutex documents that ownership
// invariant even though the pipeline is single-threaded by contract.
type Composer struct {
	mu         sync.Mutex
	windowX    int
	candidates []*vpa.SetupCandidate
}

// New returns a Setup Composer bound to cfg.setup.window_X.
func New(cfg *config.VPAConfig) *Composer {
	return &Composer{windowX: cfg.Setup.WindowX}
}

// ActiveCandidates returns the number of currently active (CANDIDATE state)
// setups being tracked.
func (c *Composer) ActiveCandidates() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, cand := range c.candidates {
		if cand.State == vpa.SetupCandidateState {
			n++
		}
	}
	return n
}

// Process runs one bar's worth of actionable signals through the
// composer in the order expire -> invalidate -> complete -> open (spec
// §4.6) and returns any setups that completed on this bar.
func (c *Composer) Process(signals []vpa.SignalEvent, barIndex int) []vpa.SetupMatch {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.expire(barIndex)
	c.invalidate(signals)

	matches := c.complete(signals, barIndex)

	c.open(signals, barIndex)

	return matches
}

func (c *Composer) expire(barIndex int) {
	kept := c.candidates[:0]
	for _, cand := range c.candidates {
		if cand.State == vpa.SetupCandidateState && barIndex > cand.ExpiresAtBar {
			cand.State = vpa.SetupExpired
			continue
		}
		kept = append(kept, cand)
	}
	c.candidates = kept
}

// invalidate: LONG candidates invalidated by any ANOMALY with priority>=2
// or any hard-avoidance signal; SHORT candidates invalidated by any
// VALIDATION or STRENGTH signal (spec §4.6 step 2).
func (c *Composer) invalidate(signals []vpa.SignalEvent) {
	invalidateLong := false
	invalidateShort := false

	for _, sig := range signals {
		if (sig.SignalClass == vpa.ClassAnomaly && sig.Priority >= 2) || hardAvoidanceSet[sig.ID] {
			invalidateLong = true
		}
		if sig.SignalClass == vpa.ClassValidation || sig.SignalClass == vpa.ClassStrength {
			invalidateShort = true
		}
	}

	if !invalidateLong && !invalidateShort {
		return
	}

	kept := c.candidates[:0]
	for _, cand := range c.candidates {
		if cand.State == vpa.SetupCandidateState {
			if (invalidateLong && cand.Direction == vpa.DirectionLong) ||
				(invalidateShort && cand.Direction == vpa.DirectionShort) {
				cand.State = vpa.SetupInvalidated
				continue
			}
		}
		kept = append(kept, cand)
	}
	c.candidates = kept
}

// complete checks active candidates against this bar's signals; consumes
// at most one completer per candidate per bar.
func (c *Composer) complete(signals []vpa.SignalEvent, barIndex int) []vpa.SetupMatch {
	var matches []vpa.SetupMatch

	defByID := make(map[string]setupDef, len(registry))
	for _, d := range registry {
		defByID[d.setupID] = d
	}

	for _, cand := range c.candidates {
		if cand.State != vpa.SetupCandidateState {
			continue
		}
		def, ok := defByID[cand.SetupID]
		if !ok {
			continue
		}
		for _, sig := range signals {
			if def.completers[sig.ID] {
				cand.Signals = append(cand.Signals, sig)
				cand.State = vpa.SetupReady
				matches = append(matches, vpa.SetupMatch{
					SetupID:      cand.SetupID,
					Direction:    cand.Direction,
					Signals:      append([]vpa.SignalEvent(nil), cand.Signals...),
					MatchedAtBar: barIndex,
					TF:           sig.TF,
				})
				break
			}
		}
	}

	// READY candidates are terminal; drop them from the active set.
	kept := c.candidates[:0]
	for _, cand := range c.candidates {
		if cand.State == vpa.SetupCandidateState {
			kept = append(kept, cand)
		}
	}
	c.candidates = kept

	return matches
}

// open starts new candidates for each incoming signal whose id is a
// registered trigger, when no CANDIDATE with that setup_id is already active.
func (c *Composer) open(signals []vpa.SignalEvent, barIndex int) {
	triggerToSetup := make(map[string]setupDef, len(registry))
	for _, d := range registry {
		triggerToSetup[d.trigger] = d
	}

	for _, sig := range signals {
		def, ok := triggerToSetup[sig.ID]
		if !ok {
			continue
		}
		if c.hasActiveCandidate(def.setupID) {
			continue
		}
		c.candidates = append(c.candidates, &vpa.SetupCandidate{
			SetupID:      def.setupID,
			Direction:    def.direction,
			State:        vpa.SetupCandidateState,
			Signals:      []vpa.SignalEvent{sig},
			StartedAtBar: barIndex,
			ExpiresAtBar: barIndex + c.windowX,
		})
	}
}

func (c *Composer) hasActiveCandidate(setupID string) bool {
	for _, cand := range c.candidates {
		if cand.State == vpa.SetupCandidateState && cand.SetupID == setupID {
			return true
		}
	}
	return false
}
