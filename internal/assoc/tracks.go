package assoc

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"flight_assoc/internal/geo"
)

const numLines = 4

type trackState struct {
	utn  uint32
	last time.Time
}

type trackStats struct {
	noTrackNumber   int
	outsideLines    int
	continuations   int
	addressSwitches int
	gaps            int
}

// buildTrackedTargets turns the reports of one tracked data source into
// temporary targets, one per continuous track number use and line
func buildTrackedTargets(reports []TargetReport, s Settings) (*TargetSet, trackStats, error) {
	set := NewTargetSet()
	var (
		counter utnCounter
		st      trackStats
	)

	for i := range reports {
		if reports[i].LineID >= numLines {
			st.outsideLines++
		}
	}
	if st.outsideLines > 0 {
		slog.Warn("Target reports outside of lines 0-3 skipped", "count", st.outsideLines)
	}

	for line := uint8(0); line < numLines; line++ {
		tracks := make(map[uint32]*trackState)

		for i := range reports {
			tr := &reports[i]
			if tr.LineID != line {
				continue
			}

			if !tr.HasTrackNum {
				slog.Warn("Tracker target report without track number",
					"content", tr.Content, "ds_id", tr.DSID, "rec_num", tr.RecNum, "timestamp", tr.Timestamp)
				st.noTrackNumber++
				continue
			}

			state, known := tracks[tr.TrackNum]
			if !known {
				state = &trackState{last: tr.Timestamp}

				attached := false
				if !tr.HasAddress && s.AssociateNonAddress {
					if utn, ok := findContinuation(tr, set, s); ok {
						slog.Debug("Continuing target", "utn", utn, "track_num", tr.TrackNum, "timestamp", tr.Timestamp)
						state.utn = utn
						attached = true
						st.continuations++
					}
				}
				if !attached {
					state.utn = counter.allocate()
				}
				tracks[tr.TrackNum] = state
			}

			if existing, ok := set.Get(state.utn); ok && tr.HasAddress &&
				existing.HasAddress() && !existing.HasAddressValue(tr.Address) {
				slog.Debug("New target because of address switch",
					"track_num", tr.TrackNum, "timestamp", tr.Timestamp, "existing", existing.String())
				state.utn = counter.allocate()
				state.last = tr.Timestamp
				st.addressSwitches++
			}

			if tr.Timestamp.Before(state.last) {
				return nil, st, fmt.Errorf("%w: %s ds %d track %d rec %d at %s before %s",
					ErrTimeBackwards, tr.Content, tr.DSID, tr.TrackNum, tr.RecNum,
					tr.Timestamp.Format(time.RFC3339Nano), state.last.Format(time.RFC3339Nano))
			}

			if tr.Timestamp.Sub(state.last) > s.TrackGap {
				slog.Debug("New target because of gap",
					"track_num", tr.TrackNum, "gap", tr.Timestamp.Sub(state.last), "timestamp", tr.Timestamp)
				state.utn = counter.allocate()
				st.gaps++
			}
			state.last = tr.Timestamp

			target, ok := set.Get(state.utn)
			if !ok {
				target = NewTarget(state.utn)
				set.Insert(target)
			}
			target.Add(tr)
		}
	}

	return set, st, nil
}

type continuation struct {
	ok       bool
	distance float64
}

// findContinuation looks for an ended track the report continues. The nearest
// candidate wins when several qualify.
func findContinuation(tr *TargetReport, set *TargetSet, s Settings) (uint32, bool) {
	if tr.HasAddress || set.Len() == 0 {
		return 0, false
	}

	targets := set.Targets()
	results := parallelMap(s.Workers, targets, func(other **Target) continuation {
		return continuationDistance(tr, *other, s)
	})

	best := -1
	matches := 0
	for i, r := range results {
		if !r.ok {
			continue
		}
		matches++
		if best == -1 || r.distance < results[best].distance {
			best = i
		}
	}

	if best == -1 {
		return 0, false
	}
	if matches > 1 {
		slog.Debug("Multiple continuation candidates, using nearest",
			"track_num", tr.TrackNum, "candidates", matches, "utn", targets[best].UTN)
	}

	return targets[best].UTN, true
}

func continuationDistance(tr *TargetReport, other *Target, s Settings) continuation {
	if !other.HasTimestamps() || other.HasAddress() {
		return continuation{}
	}

	if !tr.Timestamp.After(other.TimeEnd()) || tr.Timestamp.Sub(other.TimeEnd()) > s.ContinuationMaxTimeDiff {
		return continuation{}
	}

	last := other.lastReport()
	if !last.HasTrackEnd || !last.TrackEnd {
		return continuation{}
	}

	if !last.HasModeA || !tr.HasModeA || last.ModeA != tr.ModeA {
		return continuation{}
	}

	if last.HasModeC && tr.HasModeC && math.Abs(last.ModeC-tr.ModeC) > s.ContinuationMaxAltDiff {
		return continuation{}
	}

	distance := geo.PlanarDistance(continuationPoint(other, tr.Timestamp, s.ContinuationExtrapolate), tr.Position)
	if distance > s.ContinuationMaxDistance {
		return continuation{}
	}

	return continuation{ok: true, distance: distance}
}

// continuationPoint extrapolates the target's last two reports to ts, or
// returns the last position
func continuationPoint(t *Target, ts time.Time, extrapolate bool) geo.Position {
	n := len(t.byTime)
	last := t.byTime[n-1]
	if !extrapolate || n < 2 {
		return last.Position
	}

	prev := t.byTime[n-2]
	dt := last.Timestamp.Sub(prev.Timestamp)
	if dt <= 0 {
		return last.Position
	}

	return geo.Interpolate(prev.Position, last.Position, ts.Sub(prev.Timestamp).Seconds()/dt.Seconds())
}
