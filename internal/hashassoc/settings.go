package hashassoc

import (
	"fmt"
	"time"

	"flight_assoc/internal/models"
)

// Settings holds the windows and flags of the hash association protocol
type Settings struct {
	// ParentContent is the tracker content whose updates reference peer
	// hashes in the tri_hashes column
	ParentContent string

	// EndTrackTime finalizes a track number after this long without update
	EndTrackTime time.Duration

	AssociationTimePast   time.Duration
	AssociationTimeFuture time.Duration
	MissesAcceptableTime  time.Duration

	DubiousDistantTime     time.Duration
	DubiousCloseTimePast   time.Duration
	DubiousCloseTimeFuture time.Duration

	IgnoreTrackEnd      bool
	IgnoreTrackCoasting bool

	// SaveWithIssues writes the result even with missing hashes or dubious
	// associations
	SaveWithIssues bool

	Workers   int
	ChunkSize int
}

// DefaultSettings returns the settings used when nothing is configured
func DefaultSettings() Settings {
	return Settings{
		ParentContent: models.ContentCAT062,
		EndTrackTime:  300 * time.Second,

		AssociationTimePast:   60 * time.Second,
		AssociationTimeFuture: 2 * time.Second,
		MissesAcceptableTime:  60 * time.Second,

		DubiousDistantTime:     30 * time.Second,
		DubiousCloseTimePast:   20 * time.Second,
		DubiousCloseTimeFuture: time.Second,

		IgnoreTrackEnd:      true,
		IgnoreTrackCoasting: true,
		SaveWithIssues:      true,

		ChunkSize: 50000,
	}
}

// Validate checks that windows are usable
func (s Settings) Validate() error {
	if !models.IsContent(s.ParentContent) {
		return fmt.Errorf("unknown parent content %q", s.ParentContent)
	}
	if s.EndTrackTime <= 0 {
		return fmt.Errorf("end track time must be greater than 0")
	}
	if s.AssociationTimePast < 0 || s.AssociationTimeFuture < 0 {
		return fmt.Errorf("association windows must not be negative")
	}
	if s.DubiousCloseTimePast < 0 || s.DubiousCloseTimeFuture < 0 || s.DubiousDistantTime < 0 {
		return fmt.Errorf("dubious windows must not be negative")
	}
	if s.MissesAcceptableTime < 0 {
		return fmt.Errorf("misses acceptable time must not be negative")
	}
	if s.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	if s.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be greater than 0")
	}
	return nil
}

// isPossibleAssociation reports whether a peer at target may belong to a
// parent update at track
func (s Settings) isPossibleAssociation(track, target time.Time) bool {
	if target.After(track) {
		return target.Sub(track) <= s.AssociationTimeFuture
	}
	return track.Sub(target) <= s.AssociationTimePast
}

// isDistant reports whether a peer lies too far in the past. Future peers
// are never distant.
func (s Settings) isDistant(track, target time.Time) bool {
	if target.After(track) {
		return false
	}
	return track.Sub(target) >= s.DubiousDistantTime
}

// isClose reports whether a peer lies inside the close-collision window
func (s Settings) isClose(track, target time.Time) bool {
	if target.After(track) {
		return target.Sub(track) <= s.DubiousCloseTimeFuture
	}
	return track.Sub(target) <= s.DubiousCloseTimePast
}
