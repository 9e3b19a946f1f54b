// Package phase classifies the raw telemetry stream into flight phases and
// derives discrete lifecycle events, exactly once per physical flight.
//
// Samples must be submitted in non-decreasing timestamp order. The detector
// does not reorder; out-of-order delivery is a precondition violation.
package phase

import (
	"time"

	"github.com/curbz/skylink/internal/model"
)

// LegCompleted is emitted when an in-progress flight reaches the qualifying
// shutdown condition: on the ground with engines off and the parking brake
// set. It carries the fuel and time baselines latched during the flight.
type LegCompleted struct {
	InitialFuel float64 // pounds, latched at the moment the aircraft left the ground
	FinalFuel   float64 // pounds, sampled at the qualifying shutdown sample
	TouchdownVS float64 // feet per minute, latched at the first ground-contact sample
	EngineStart time.Time
	Takeoff     time.Time
	Touchdown   time.Time
	Shutdown    time.Time
}

// Events is the outcome of submitting one sample.
type Events struct {
	TookOff   bool
	Completed *LegCompleted
}

// Detector is the per-session flight phase state machine. Two states: idle
// (on the ground, no flight in progress) and flying. All latches reset
// together when a completed leg is emitted.
//
// The fuel baseline is captured only at the idle-to-flying transition and is
// never re-baselined mid-flight; fuel burn is initial minus final.
type Detector struct {
	flying bool

	engineStart time.Time
	takeoff     time.Time
	touchdown   time.Time

	initialFuel float64
	touchdownVS float64
	touchedDown bool
}

// New returns a detector in the idle state.
func New() *Detector {
	return &Detector{}
}

// Flying reports whether a flight is currently in progress.
func (d *Detector) Flying() bool {
	return d.flying
}

// Submit feeds one telemetry sample observed at now. Disconnected samples are
// ignored entirely: no transitions, no latches, no emissions. The detector
// free-running on stale data is explicitly disallowed.
//
// At most one LegCompleted is produced per flight because the emission is
// bound to the flying-to-idle transition, not to the sample predicate alone;
// further qualifying samples arrive with the detector already idle.
func (d *Detector) Submit(s model.TelemetrySample, now time.Time) Events {
	var ev Events
	if !s.Connected {
		return ev
	}

	// Engine-start latch for the upcoming leg.
	if !d.flying && s.EnginesOn && d.engineStart.IsZero() {
		d.engineStart = now
	}

	if !s.OnGround && !d.flying {
		d.flying = true
		d.takeoff = now
		d.initialFuel = s.TotalFuel
		ev.TookOff = true
		return ev
	}

	if s.OnGround && d.flying && !d.touchedDown {
		// First ground contact after flight: this is the landing rate that
		// hard-landing detection uses, not the near-zero vertical speed of
		// the later engines-off sample. A bounce keeps the first latch.
		d.touchdown = now
		d.touchdownVS = s.VerticalSpeed
		d.touchedDown = true
	}

	if s.OnGround && d.flying && !s.EnginesOn && s.ParkingBrake {
		done := &LegCompleted{
			InitialFuel: d.initialFuel,
			FinalFuel:   s.TotalFuel,
			TouchdownVS: d.touchdownVS,
			EngineStart: d.engineStart,
			Takeoff:     d.takeoff,
			Touchdown:   d.touchdown,
			Shutdown:    now,
		}
		d.Reset()
		ev.Completed = done
	}

	return ev
}

// Reset clears all latched state, returning the detector to idle. Called
// automatically after emission; also the right response to a session restart,
// which abandons any unresolved flight by design.
func (d *Detector) Reset() {
	*d = Detector{}
}
