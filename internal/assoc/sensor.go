package assoc

import (
	"log/slog"
	"sort"

	"flight_assoc/internal/geo"
)

type sensorAction int

const (
	sensorNone sensorAction = iota
	sensorAttach
	sensorCreate
)

// sensorResult is the decision for one report, written into its own slot
type sensorResult struct {
	action   sensorAction
	utn      uint32
	distance float64
}

type sensorStats struct {
	byAddress    int
	byPosition   int
	created      int
	unassociated int
}

// associateSensor attaches the reports of one untracked data source to the
// targets, creating new targets for unknown aircraft addresses. lookup is
// updated with every created target.
func associateSensor(reports []TargetReport, targets *TargetSet, lookup map[uint32]uint32, counter *utnCounter, s Settings) (sensorStats, error) {
	pool := targets.Targets()

	results := parallelMap(s.Workers, reports, func(tr *TargetReport) sensorResult {
		if tr.HasAddress {
			if utn, ok := lookup[tr.Address]; ok {
				return sensorResult{action: sensorAttach, utn: utn}
			}
			return sensorResult{action: sensorCreate}
		}

		if !s.AssociateNonAddress {
			return sensorResult{}
		}
		return closestTarget(tr, pool, s)
	})

	var st sensorStats
	var attachUTNs []uint32
	attaches := make(map[uint32][]*TargetReport)
	creates := make(map[uint32][]*TargetReport)

	for i := range reports {
		tr := &reports[i]
		res := results[i]

		switch res.action {
		case sensorAttach:
			if _, ok := attaches[res.utn]; !ok {
				attachUTNs = append(attachUTNs, res.utn)
			}
			attaches[res.utn] = append(attaches[res.utn], tr)
			if tr.HasAddress {
				st.byAddress++
			} else {
				st.byPosition++
			}
		case sensorCreate:
			creates[tr.Address] = append(creates[tr.Address], tr)
		default:
			st.unassociated++
		}
	}

	// one Add per target keeps the time-ordered merge linear
	for _, utn := range attachUTNs {
		target, err := targets.Lookup(utn)
		if err != nil {
			return st, err
		}
		target.Add(attaches[utn]...)
	}

	addrs := make([]uint32, 0, len(creates))
	for addr := range creates {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })

	for _, addr := range addrs {
		target := NewTarget(counter.allocate())
		target.Add(creates[addr]...)
		targets.Insert(target)
		lookup[addr] = target.UTN
		st.created++
		st.byAddress += len(creates[addr])
	}

	return st, nil
}

// closestTarget finds the target nearest to a report without address among
// the targets whose time span contains it
func closestTarget(tr *TargetReport, pool []*Target, s Settings) sensorResult {
	best := sensorResult{}

	for _, target := range pool {
		if !target.TimeInside(tr.Timestamp) {
			continue
		}
		if tr.HasAddress && target.HasAddress() {
			continue
		}

		if tr.HasModeA && !s.isConspicuity(tr.ModeA) &&
			target.CompareModeA(tr, s.MaxTimeDiffSensor) == CompareDifferent {
			continue
		}
		if tr.HasModeC &&
			target.CompareModeC(tr, s.MaxTimeDiffSensor, s.MaxAltitudeDiffSensor) == CompareDifferent {
			continue
		}

		ref, ok := target.InterpolatedPosition(tr.Timestamp, s.MaxTimeDiffSensor)
		if !ok {
			continue
		}

		distance := geo.PlanarDistance(ref, tr.Position)
		if distance >= s.MaxDistanceAcceptableSensor {
			continue
		}

		if best.action == sensorNone || distance < best.distance {
			best = sensorResult{action: sensorAttach, utn: target.UTN, distance: distance}
		}
	}

	if best.action == sensorAttach {
		slog.Debug("Sensor position match", "report", tr.String(), "utn", best.utn, "distance", best.distance)
	}

	return best
}
