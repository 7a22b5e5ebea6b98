package assoc

import (
	"log/slog"

	"flight_assoc/internal/geo"

	"github.com/sourcegraph/conc/iter"
)

// matchScore is the outcome of comparing one target against one pool member
type matchScore struct {
	usable      bool
	updates     int
	avgDistance float64
}

func (m matchScore) score(acceptable float64) float64 {
	return float64(m.updates) * (acceptable - m.avgDistance)
}

// parallelMap runs f for every element of in on at most workers goroutines.
// Each call writes only its own result slot.
func parallelMap[T, R any](workers int, in []T, f func(*T) R) []R {
	return iter.Mapper[T, R]{MaxGoroutines: workers}.Map(in, f)
}

// scoreTarget decides whether target may be the same aircraft as other using
// time overlap, mode A, mode C and interpolated positions
func scoreTarget(target, other *Target, s Settings) matchScore {
	if target.HasAddress() && other.HasAddress() {
		return matchScore{}
	}

	if !target.TimeOverlaps(other) || target.OverlapProbability(other) < s.ProbMinTimeOverlap {
		return matchScore{}
	}

	maSame, _, maDifferent := target.compareModeAs(other, s.MaxTimeDiffTracker)
	if len(maSame) <= maDifferent || len(maSame) < s.MinUpdatesTracker {
		return matchScore{}
	}

	mcSame, _, mcDifferent := target.compareModeCs(other, maSame, s.MaxTimeDiffTracker, s.MaxAltitudeDiffTracker)
	if len(mcSame) <= mcDifferent || len(mcSame) < s.MinUpdatesTracker {
		return matchScore{}
	}

	var (
		sum     float64
		count   int
		dubious int
	)
	for _, tr := range mcSame {
		ref, ok := other.InterpolatedPosition(tr.Timestamp, s.MaxTimeDiffTracker)
		if !ok {
			continue
		}

		distance := geo.PlanarDistance(ref, tr.Position)

		if distance > s.MaxDistanceDubious {
			dubious++
		}
		if distance > s.MaxDistanceQuit || dubious > s.MaxPositionsDubious {
			return matchScore{}
		}

		sum += distance
		count++
	}

	if count < s.MinUpdatesTracker {
		return matchScore{}
	}

	avg := sum / float64(count)
	if avg >= s.MaxDistanceAcceptable {
		return matchScore{}
	}

	return matchScore{usable: true, updates: count, avgDistance: avg}
}

// bestMatch returns the index of the highest scoring usable result. The first
// one wins exact ties.
func bestMatch(results []matchScore, acceptable float64) (int, bool) {
	best := -1
	var bestScore float64

	for i, r := range results {
		if !r.usable {
			continue
		}
		if sc := r.score(acceptable); best == -1 || sc > bestScore {
			best = i
			bestScore = sc
		}
	}

	return best, best != -1
}

// findUTNByAddress returns the lowest UTN of pool sharing an address with target
func findUTNByAddress(target *Target, pool *TargetSet) (uint32, bool) {
	if !target.HasAddress() {
		return 0, false
	}
	for _, other := range pool.Targets() {
		if other.HasAddress() && other.SharesAddressWith(target) {
			return other.UTN, true
		}
	}
	return 0, false
}

// findUTNForTarget looks for a pool member target can be merged into, first by
// aircraft address, then by kinematic scoring
func findUTNForTarget(target *Target, pool *TargetSet, s Settings) (uint32, bool) {
	if pool.Len() == 0 {
		return 0, false
	}

	if utn, ok := findUTNByAddress(target, pool); ok {
		return utn, true
	}

	if !s.AssociateNonAddress {
		return 0, false
	}

	others := pool.Targets()
	results := parallelMap(s.Workers, others, func(other **Target) matchScore {
		return scoreTarget(target, *other, s)
	})

	best, ok := bestMatch(results, s.MaxDistanceAcceptable)
	if !ok {
		return 0, false
	}

	slog.Debug("Kinematic match",
		"target", target.UTN,
		"other", others[best].UTN,
		"updates", results[best].updates,
		"avg_distance", results[best].avgDistance,
	)

	return others[best].UTN, true
}
