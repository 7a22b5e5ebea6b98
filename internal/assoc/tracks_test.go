package assoc

import (
	"errors"
	"testing"

	"flight_assoc/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSettings() Settings {
	s := DefaultSettings()
	s.Workers = 2
	return s
}

func TestBuildTrackedTargets_GapSplit(t *testing.T) {
	s := testSettings()
	gap := s.TrackGap.Seconds()

	tests := []struct {
		name    string
		second  float64
		targets int
		gaps    int
	}{
		{"at threshold", gap, 1, 0},
		{"threshold plus one second", gap + 1, 2, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reports := []TargetReport{
				newReport(models.ContentCAT062, 1, 0, withTrack(7)),
				newReport(models.ContentCAT062, 2, tt.second, withTrack(7)),
			}

			set, st, err := buildTrackedTargets(reports, s)
			require.NoError(t, err)
			assert.Equal(t, tt.targets, set.Len())
			assert.Equal(t, tt.gaps, st.gaps)
		})
	}
}

func TestBuildTrackedTargets_AddressSwitch(t *testing.T) {
	reports := []TargetReport{
		newReport(models.ContentCAT062, 1, 0, withTrack(7), withAddress(0xA)),
		newReport(models.ContentCAT062, 2, 1, withTrack(7), withAddress(0xA)),
		newReport(models.ContentCAT062, 3, 2, withTrack(7), withAddress(0xB)),
		newReport(models.ContentCAT062, 4, 3, withTrack(7)),
	}

	set, st, err := buildTrackedTargets(reports, testSettings())
	require.NoError(t, err)

	require.Equal(t, []uint32{0, 1}, set.UTNs())
	assert.Equal(t, 1, st.addressSwitches)
	assert.Equal(t, 0, st.gaps)

	first, _ := set.Get(0)
	second, _ := set.Get(1)
	assert.Equal(t, []uint32{0xA}, first.Addresses())
	assert.Equal(t, []uint32{0xB}, second.Addresses())
	assert.Equal(t, 2, second.NumReports())
}

func TestBuildTrackedTargets_TimeBackwards(t *testing.T) {
	reports := []TargetReport{
		newReport(models.ContentCAT062, 1, 10, withTrack(7)),
		newReport(models.ContentCAT062, 2, 5, withTrack(7)),
	}

	_, _, err := buildTrackedTargets(reports, testSettings())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeBackwards))
}

func TestBuildTrackedTargets_SkippedReports(t *testing.T) {
	reports := []TargetReport{
		newReport(models.ContentCAT062, 1, 0),
		newReport(models.ContentCAT062, 2, 1, withTrack(7), onLine(5)),
		newReport(models.ContentCAT062, 3, 2, withTrack(7)),
	}

	set, st, err := buildTrackedTargets(reports, testSettings())
	require.NoError(t, err)

	assert.Equal(t, 1, set.Len())
	assert.Equal(t, 1, st.noTrackNumber)
	assert.Equal(t, 1, st.outsideLines)

	target, _ := set.Get(0)
	assert.Equal(t, uint64(3), target.Reports()[0].RecNum)
}

func TestBuildTrackedTargets_Lines(t *testing.T) {
	reports := []TargetReport{
		newReport(models.ContentCAT062, 1, 0, withTrack(7), withAddress(0xA)),
		newReport(models.ContentCAT062, 2, 0, withTrack(7), withAddress(0xB), onLine(1)),
		newReport(models.ContentCAT062, 3, 1, withTrack(7), withAddress(0xA)),
		newReport(models.ContentCAT062, 4, 1, withTrack(7), withAddress(0xB), onLine(1)),
	}

	set, st, err := buildTrackedTargets(reports, testSettings())
	require.NoError(t, err)

	assert.Equal(t, 2, set.Len())
	assert.Equal(t, 0, st.addressSwitches)
	for _, target := range set.Targets() {
		assert.Equal(t, 2, target.NumReports())
		assert.Len(t, target.Addresses(), 1)
	}
}

func TestBuildTrackedTargets_Continuation(t *testing.T) {
	tests := []struct {
		name          string
		modeA         uint32
		trackEnd      bool
		targets       int
		continuations int
	}{
		{"continued", 0o1000, true, 1, 1},
		{"other mode A", 0o2000, true, 2, 0},
		{"no track end", 0o1000, false, 2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lastOpts := []reportOpt{withTrack(1), withModeA(0o1000), withModeC(10000)}
			if tt.trackEnd {
				lastOpts = append(lastOpts, withTrackEnd())
			}

			reports := []TargetReport{
				newReport(models.ContentCAT062, 1, 0, withTrack(1), withModeA(0o1000), withModeC(10000)),
				newReport(models.ContentCAT062, 2, 10, lastOpts...),
				newReport(models.ContentCAT062, 3, 15, withTrack(2), withModeA(tt.modeA), withModeC(10000)),
			}

			set, st, err := buildTrackedTargets(reports, testSettings())
			require.NoError(t, err)
			assert.Equal(t, tt.targets, set.Len())
			assert.Equal(t, tt.continuations, st.continuations)
		})
	}
}

func TestContinuationPoint(t *testing.T) {
	target := targetOf(0, pathReports(models.ContentCAT062, 1, 0, 10, 5)...)

	extrapolated := continuationPoint(target, at(20), true)
	assert.InDelta(t, pathPos(20).Lon, extrapolated.Lon, 1e-9)

	last := continuationPoint(target, at(20), false)
	assert.Equal(t, pathPos(10), last)
}
