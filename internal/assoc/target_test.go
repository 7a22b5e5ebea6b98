package assoc

import (
	"errors"
	"testing"
	"time"

	"flight_assoc/internal/geo"
	"flight_assoc/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTarget_AddKeepsTimeOrder(t *testing.T) {
	target := targetOf(0,
		newReport(models.ContentCAT048, 1, 10),
		newReport(models.ContentCAT048, 2, 0),
		newReport(models.ContentCAT048, 3, 5),
	)

	assert.Equal(t, at(0), target.TimeBegin())
	assert.Equal(t, at(10), target.TimeEnd())
	assert.Equal(t, 10*time.Second, target.Duration())

	var inserted, ordered []uint64
	for _, tr := range target.Reports() {
		inserted = append(inserted, tr.RecNum)
	}
	for _, tr := range target.byTime {
		ordered = append(ordered, tr.RecNum)
	}
	assert.Equal(t, []uint64{1, 2, 3}, inserted)
	assert.Equal(t, []uint64{2, 3, 1}, ordered)
}

func TestTarget_AddMergesBatch(t *testing.T) {
	target := targetOf(0,
		newReport(models.ContentCAT062, 1, 0),
		newReport(models.ContentCAT062, 2, 4),
		newReport(models.ContentCAT062, 3, 8),
	)

	batch := []TargetReport{
		newReport(models.ContentCAT021, 10, 9),
		newReport(models.ContentCAT021, 11, 4),
		newReport(models.ContentCAT021, 12, 1),
		newReport(models.ContentCAT021, 13, 4),
	}
	target.Add(&batch[0], &batch[1], &batch[2], &batch[3])

	var ordered []uint64
	for _, tr := range target.byTime {
		ordered = append(ordered, tr.RecNum)
	}
	assert.Equal(t, []uint64{1, 12, 2, 11, 13, 3, 10}, ordered)
	assert.Equal(t, 7, target.NumReports())
	assert.Equal(t, at(9), target.TimeEnd())
}

func TestTarget_TimeOverlaps(t *testing.T) {
	a := targetOf(0, newReport(models.ContentCAT048, 1, 0), newReport(models.ContentCAT048, 2, 10))

	tests := []struct {
		name     string
		from, to float64
		overlaps bool
		prob     float64
	}{
		{"half", 5, 15, true, 0.5},
		{"touching", 10, 20, false, 0},
		{"contained", 2, 4, true, 1},
		{"zero duration", 5, 5, true, 0},
		{"disjoint", 30, 40, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := targetOf(1, newReport(models.ContentCAT048, 3, tt.from), newReport(models.ContentCAT048, 4, tt.to))
			assert.Equal(t, tt.overlaps, a.TimeOverlaps(b))
			assert.InDelta(t, tt.prob, a.OverlapProbability(b), 1e-9)
			assert.InDelta(t, tt.prob, b.OverlapProbability(a), 1e-9)
		})
	}
}

func TestTarget_InterpolatedPosition(t *testing.T) {
	target := targetOf(0, newReport(models.ContentCAT048, 1, 0), newReport(models.ContentCAT048, 2, 10))

	tests := []struct {
		name    string
		sec     float64
		maxDiff time.Duration
		ok      bool
	}{
		{"exact", 0, 15 * time.Second, true},
		{"between", 5, 15 * time.Second, true},
		{"bracket too wide", 5, 4 * time.Second, false},
		{"after end", 20, 15 * time.Second, false},
		{"before begin", -1, 15 * time.Second, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos, ok := target.InterpolatedPosition(at(tt.sec), tt.maxDiff)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.InDelta(t, pathPos(tt.sec).Lat, pos.Lat, 1e-9)
				assert.InDelta(t, pathPos(tt.sec).Lon, pos.Lon, 1e-9)
			}
		})
	}
}

func TestTarget_CompareModeA(t *testing.T) {
	other := targetOf(0,
		newReport(models.ContentCAT048, 1, 0, withModeA(0o1234)),
		newReport(models.ContentCAT048, 2, 10, withModeA(0o1234)),
	)

	unreliable := newReport(models.ContentCAT048, 3, 5, withModeA(0o4321))
	unreliable.ModeAReliable = false

	tests := []struct {
		name string
		tr   TargetReport
		want CompareResult
	}{
		{"same", newReport(models.ContentCAT048, 3, 5, withModeA(0o1234)), CompareSame},
		{"different", newReport(models.ContentCAT048, 3, 5, withModeA(0o4321)), CompareDifferent},
		{"missing on report", newReport(models.ContentCAT048, 3, 5), CompareDifferent},
		{"outside", newReport(models.ContentCAT048, 3, 20, withModeA(0o4321)), CompareUnknown},
		{"unreliable", unreliable, CompareUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, other.CompareModeA(&tt.tr, 15*time.Second))
		})
	}
}

func TestTarget_CompareModeC(t *testing.T) {
	other := targetOf(0,
		newReport(models.ContentCAT048, 1, 0, withModeC(10000)),
		newReport(models.ContentCAT048, 2, 10, withModeC(10000)),
	)

	tests := []struct {
		name string
		ft   float64
		want CompareResult
	}{
		{"within", 10100, CompareSame},
		{"at tolerance", 10300, CompareDifferent},
		{"beyond", 10400, CompareDifferent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newReport(models.ContentCAT048, 3, 5, withModeC(tt.ft))
			assert.Equal(t, tt.want, other.CompareModeC(&tr, 15*time.Second, 300))
		})
	}
}

func TestTarget_CalculateSpeeds(t *testing.T) {
	target := targetOf(0, pathReports(models.ContentCAT048, 1, 0, 20, 10)...)
	target.CalculateSpeeds()

	want, ok := geo.SpeedKnots(pathPos(0), pathPos(10), 10)
	require.True(t, ok)

	assert.True(t, target.Speed.Valid)
	assert.InDelta(t, want, target.Speed.Min, 0.01)
	assert.InDelta(t, want, target.Speed.Avg, 0.01)
	assert.InDelta(t, want, target.Speed.Max, 0.01)

	single := targetOf(1, newReport(models.ContentCAT048, 1, 0))
	single.CalculateSpeeds()
	assert.False(t, single.Speed.Valid)
}

func TestTarget_RemoveNonAddressReports(t *testing.T) {
	target := targetOf(4,
		newReport(models.ContentCAT021, 1, 0, withAddress(0xABCDEF)),
		newReport(models.ContentCAT048, 2, 1),
		newReport(models.ContentCAT021, 3, 2, withAddress(0xABCDEF)),
	)
	target.UseInEval = false
	target.Comment = "checked"

	assert.Equal(t, 1, target.RemoveNonAddressReports())
	assert.Equal(t, 2, target.NumReports())
	assert.Equal(t, uint32(4), target.UTN)
	assert.False(t, target.UseInEval)
	assert.Equal(t, "checked", target.Comment)
	assert.Equal(t, 1, target.NumDataSources())

	assert.Equal(t, 0, target.RemoveNonAddressReports())
}

func TestTarget_Summary(t *testing.T) {
	adsb := newReport(models.ContentCAT021, 1, 0, withAddress(0x3C6586), withModeC(9000))
	adsb.HasIdent, adsb.Ident = true, "DLH1"
	adsb.HasMOPS, adsb.MOPSVersion = true, 2

	radar := newReport(models.ContentCAT048, 2, 4, withModeA(0o1000), withModeC(9500))
	radar.HasIdent, radar.Ident = true, "AB12"

	target := targetOf(7, adsb, radar)
	s := target.Summary("run")

	assert.Equal(t, uint32(7), s.UTN)
	assert.Equal(t, "run", s.RunID)
	assert.True(t, s.UseInEval)
	assert.Equal(t, []uint32{0x3C6586}, s.Addresses)
	assert.Equal(t, []string{"AB12", "DLH1"}, s.Idents)
	assert.Equal(t, []uint32{0o1000}, s.ModeACodes)
	assert.Equal(t, at(0), s.TimeBegin)
	assert.Equal(t, at(4), s.TimeEnd)
	assert.Equal(t, 9000.0, s.ModeCMin)
	assert.Equal(t, 9500.0, s.ModeCMax)
	assert.Equal(t, map[string]int{models.ContentCAT021: 1, models.ContentCAT048: 1}, s.ContentCounts)
	assert.Equal(t, []uint8{2}, s.MOPSVersions)
	assert.Equal(t, 2, s.NumReports())
}

func TestTargetSet_Order(t *testing.T) {
	set := setOf(NewTarget(5), NewTarget(1), NewTarget(3))
	assert.Equal(t, []uint32{1, 3, 5}, set.UTNs())

	set.Remove(3)
	set.Remove(42)
	assert.Equal(t, []uint32{1, 5}, set.UTNs())

	_, err := set.Lookup(3)
	assert.True(t, errors.Is(err, ErrUnknownUTN))

	got, err := set.Lookup(5)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), got.UTN)

	var c utnCounter
	assert.Equal(t, uint32(0), c.allocate())
	assert.Equal(t, uint32(1), c.allocate())
	assert.Equal(t, uint32(2), c.allocate())
}
