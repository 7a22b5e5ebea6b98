package assoc

import (
	"fmt"
	"time"
)

// Settings holds the thresholds of the kinematic association protocol
type Settings struct {
	// AssociateNonAddress enables matching of targets and reports that carry
	// no aircraft address by mode A/C and position.
	AssociateNonAddress bool

	// Track builder
	TrackGap                time.Duration
	ContinuationMaxTimeDiff time.Duration
	ContinuationMaxDistance float64 // m
	ContinuationMaxAltDiff  float64 // ft
	ContinuationExtrapolate bool

	// Target matching (merger and self-association)
	MaxTimeDiffTracker     time.Duration
	MaxAltitudeDiffTracker float64 // ft
	MinUpdatesTracker      int
	ProbMinTimeOverlap     float64
	MaxPositionsDubious    int
	MaxDistanceQuit        float64 // m
	MaxDistanceDubious     float64 // m
	MaxDistanceAcceptable  float64 // m

	// Cleaning and dubious marking
	MaxSpeedKnots         float64
	CleanDubiousTargets   bool
	MarkDubiousUnused     bool
	CommentDubiousTargets bool

	// Sensor association
	MaxTimeDiffSensor           time.Duration
	MaxAltitudeDiffSensor       float64 // ft
	MaxDistanceAcceptableSensor float64 // m
	ModeAConspicuityCodes       []uint32

	Workers   int
	ChunkSize int
}

// DefaultSettings returns the settings used when nothing is configured
func DefaultSettings() Settings {
	return Settings{
		AssociateNonAddress: true,

		TrackGap:                60 * time.Second,
		ContinuationMaxTimeDiff: 30 * time.Second,
		ContinuationMaxDistance: 1852,
		ContinuationMaxAltDiff:  300,
		ContinuationExtrapolate: true,

		MaxTimeDiffTracker:     15 * time.Second,
		MaxAltitudeDiffTracker: 300,
		MinUpdatesTracker:      2,
		ProbMinTimeOverlap:     0.5,
		MaxPositionsDubious:    5,
		MaxDistanceQuit:        18520,
		MaxDistanceDubious:     9260,
		MaxDistanceAcceptable:  3704,

		MaxSpeedKnots:         2000,
		CleanDubiousTargets:   true,
		MarkDubiousUnused:     false,
		CommentDubiousTargets: true,

		MaxTimeDiffSensor:           15 * time.Second,
		MaxAltitudeDiffSensor:       300,
		MaxDistanceAcceptableSensor: 3704,
		ModeAConspicuityCodes:       []uint32{0o7000, 0o2000, 0o1200},

		Workers:   0,
		ChunkSize: 50000,
	}
}

// Validate checks that thresholds are usable
func (s Settings) Validate() error {
	if s.TrackGap <= 0 {
		return fmt.Errorf("track gap must be greater than 0")
	}
	if s.MinUpdatesTracker < 1 {
		return fmt.Errorf("min updates must be at least 1")
	}
	if s.ProbMinTimeOverlap < 0 || s.ProbMinTimeOverlap > 1 {
		return fmt.Errorf("min time overlap probability must be within [0,1]")
	}
	if s.MaxDistanceDubious > s.MaxDistanceQuit {
		return fmt.Errorf("dubious distance %.0f exceeds quit distance %.0f", s.MaxDistanceDubious, s.MaxDistanceQuit)
	}
	if s.MaxDistanceAcceptable <= 0 || s.MaxDistanceAcceptableSensor <= 0 {
		return fmt.Errorf("acceptable distances must be greater than 0")
	}
	if s.MaxSpeedKnots <= 0 {
		return fmt.Errorf("max speed must be greater than 0")
	}
	if s.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	if s.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be greater than 0")
	}
	return nil
}

func (s Settings) isConspicuity(modeA uint32) bool {
	for _, c := range s.ModeAConspicuityCodes {
		if c == modeA {
			return true
		}
	}
	return false
}
