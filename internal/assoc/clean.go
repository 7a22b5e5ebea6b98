package assoc

import (
	"log/slog"

	"github.com/sourcegraph/conc/iter"
)

// DubiousComment is attached to targets still exceeding the speed ceiling
const DubiousComment = "Dubious Association"

type cleanStats struct {
	dubious int
	removed int
}

// cleanTargets recomputes speeds and, for targets exceeding the speed
// ceiling, optionally strips the reports without aircraft address
func cleanTargets(set *TargetSet, s Settings) cleanStats {
	targets := set.Targets()
	iter.Iterator[*Target]{MaxGoroutines: s.Workers}.ForEach(targets, func(t **Target) {
		(*t).CalculateSpeeds()
	})

	var st cleanStats
	for _, t := range targets {
		if !t.Speed.Valid || t.Speed.Max <= s.MaxSpeedKnots {
			continue
		}

		st.dubious++
		slog.Info("Target dubious",
			"utn", t.UTN,
			"speed_min", t.Speed.Min,
			"speed_avg", t.Speed.Avg,
			"speed_max", t.Speed.Max,
		)

		if !s.CleanDubiousTargets {
			continue
		}

		removed := t.RemoveNonAddressReports()
		st.removed += removed
		t.CalculateSpeeds()

		if t.Speed.Valid {
			slog.Info("Cleaned target",
				"utn", t.UTN,
				"removed", removed,
				"speed_min", t.Speed.Min,
				"speed_avg", t.Speed.Avg,
				"speed_max", t.Speed.Max,
			)
		}
	}

	return st
}

// markDubiousTargets flags final targets whose speed still exceeds the
// ceiling. Speeds must have been calculated.
func markDubiousTargets(set *TargetSet, s Settings) []uint32 {
	var dubious []uint32

	for _, t := range set.Targets() {
		if !t.Speed.Valid || t.Speed.Max <= s.MaxSpeedKnots {
			continue
		}

		slog.Info("Target still dubious",
			"utn", t.UTN,
			"speed_min", t.Speed.Min,
			"speed_avg", t.Speed.Avg,
			"speed_max", t.Speed.Max,
		)

		if s.MarkDubiousUnused {
			t.UseInEval = false
		}
		if s.CommentDubiousTargets {
			t.Comment = DubiousComment
		}
		dubious = append(dubious, t.UTN)
	}

	return dubious
}
