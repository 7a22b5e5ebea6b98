package assoc

import (
	"fmt"
	"math"
	"sort"
	"time"

	"flight_assoc/internal/geo"
	"flight_assoc/internal/models"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// CompareResult classifies a mode A or mode C comparison
type CompareResult int

const (
	CompareUnknown CompareResult = iota
	CompareSame
	CompareDifferent
)

func (c CompareResult) String() string {
	switch c {
	case CompareSame:
		return "same"
	case CompareDifferent:
		return "different"
	default:
		return "unknown"
	}
}

// SpeedStats holds ground speed statistics in knots
type SpeedStats struct {
	Valid bool
	Min   float64
	Avg   float64
	Max   float64
}

type dsKey struct {
	content string
	id      uint32
}

// Target is one reconstructed aircraft of a run
type Target struct {
	UTN       uint32
	UseInEval bool
	Comment   string
	Speed     SpeedStats

	reports []*TargetReport // insertion order
	byTime  []*TargetReport // sorted by timestamp, stable

	addresses map[uint32]struct{}
	idents    map[string]struct{}
	modeAs    map[uint32]struct{}
	dataSrcs  map[dsKey]struct{}

	tsMin, tsMax       time.Time
	hasModeC           bool
	modeCMin, modeCMax float64
}

// NewTarget creates an empty target
func NewTarget(utn uint32) *Target {
	return &Target{
		UTN:       utn,
		UseInEval: true,
		addresses: make(map[uint32]struct{}),
		idents:    make(map[string]struct{}),
		modeAs:    make(map[uint32]struct{}),
		dataSrcs:  make(map[dsKey]struct{}),
	}
}

// Add associates reports with the target. The batch is sorted on its own and
// merged into the time order, so adding k reports to n costs O(n + k log k).
func (t *Target) Add(trs ...*TargetReport) {
	n := len(t.byTime)
	for _, tr := range trs {
		t.reports = append(t.reports, tr)
		t.byTime = append(t.byTime, tr)
		t.update(tr)
	}

	added := t.byTime[n:]
	byTimestamp := func(i, j int) bool { return added[i].Timestamp.Before(added[j].Timestamp) }
	if !sort.SliceIsSorted(added, byTimestamp) {
		sort.SliceStable(added, byTimestamp)
	}
	if n == 0 || len(added) == 0 || !added[0].Timestamp.Before(t.byTime[n-1].Timestamp) {
		return
	}

	old := t.byTime[:n]
	merged := make([]*TargetReport, 0, len(t.byTime))
	i, j := 0, 0
	for i < len(old) && j < len(added) {
		if added[j].Timestamp.Before(old[i].Timestamp) {
			merged = append(merged, added[j])
			j++
		} else {
			merged = append(merged, old[i])
			i++
		}
	}
	merged = append(merged, old[i:]...)
	merged = append(merged, added[j:]...)
	t.byTime = merged
}

func (t *Target) update(tr *TargetReport) {
	if tr.HasAddress {
		t.addresses[tr.Address] = struct{}{}
	}
	if tr.HasIdent {
		t.idents[tr.Ident] = struct{}{}
	}
	if tr.HasModeA {
		t.modeAs[tr.ModeA] = struct{}{}
	}
	t.dataSrcs[dsKey{content: tr.Content, id: tr.DSID}] = struct{}{}

	if len(t.reports) == 1 || tr.Timestamp.Before(t.tsMin) {
		t.tsMin = tr.Timestamp
	}
	if len(t.reports) == 1 || tr.Timestamp.After(t.tsMax) {
		t.tsMax = tr.Timestamp
	}

	if tr.HasModeC {
		if !t.hasModeC {
			t.hasModeC = true
			t.modeCMin, t.modeCMax = tr.ModeC, tr.ModeC
		} else {
			t.modeCMin = math.Min(t.modeCMin, tr.ModeC)
			t.modeCMax = math.Max(t.modeCMax, tr.ModeC)
		}
	}
}

// Reports returns the associated reports in insertion order
func (t *Target) Reports() []*TargetReport {
	return t.reports
}

// NumReports returns the number of associated reports
func (t *Target) NumReports() int {
	return len(t.reports)
}

// HasTimestamps reports whether the target holds at least one report
func (t *Target) HasTimestamps() bool {
	return len(t.reports) > 0
}

// TimeBegin returns the earliest report timestamp
func (t *Target) TimeBegin() time.Time { return t.tsMin }

// TimeEnd returns the latest report timestamp
func (t *Target) TimeEnd() time.Time { return t.tsMax }

// Duration returns the covered time span
func (t *Target) Duration() time.Duration {
	if !t.HasTimestamps() {
		return 0
	}
	return t.tsMax.Sub(t.tsMin)
}

// HasAddress reports whether any report carried an aircraft address
func (t *Target) HasAddress() bool {
	return len(t.addresses) > 0
}

// HasAddressValue reports whether the target carries the given address
func (t *Target) HasAddressValue(addr uint32) bool {
	_, ok := t.addresses[addr]
	return ok
}

// Addresses returns the aircraft addresses in ascending order
func (t *Target) Addresses() []uint32 {
	return sortedUint32(t.addresses)
}

// SharesAddressWith reports whether both targets carry a common address
func (t *Target) SharesAddressWith(other *Target) bool {
	for addr := range t.addresses {
		if other.HasAddressValue(addr) {
			return true
		}
	}
	return false
}

// NumDataSources returns the number of distinct content/data source pairs
func (t *Target) NumDataSources() int {
	return len(t.dataSrcs)
}

func (t *Target) lastReport() *TargetReport {
	return t.byTime[len(t.byTime)-1]
}

// TimeInside reports whether ts lies within the target's time span
func (t *Target) TimeInside(ts time.Time) bool {
	if !t.HasTimestamps() {
		return false
	}
	return !ts.Before(t.tsMin) && !ts.After(t.tsMax)
}

// TimeOverlaps reports whether both targets' time spans strictly overlap
func (t *Target) TimeOverlaps(other *Target) bool {
	if !t.HasTimestamps() || !other.HasTimestamps() {
		return false
	}
	return t.tsMin.Before(other.tsMax) && other.tsMin.Before(t.tsMax)
}

// OverlapProbability returns the overlapping duration relative to the shorter
// of both targets. A zero-duration target yields 0.
func (t *Target) OverlapProbability(other *Target) float64 {
	if !t.HasTimestamps() || !other.HasTimestamps() {
		return 0
	}

	begin := t.tsMin
	if other.tsMin.After(begin) {
		begin = other.tsMin
	}
	end := t.tsMax
	if other.tsMax.Before(end) {
		end = other.tsMax
	}
	if !begin.Before(end) {
		return 0
	}

	minDuration := t.Duration()
	if d := other.Duration(); d < minDuration {
		minDuration = d
	}
	if minDuration == 0 {
		return 0
	}

	return end.Sub(begin).Seconds() / minDuration.Seconds()
}

// bracket returns the reports around ts that lie within maxDiff of it. An
// exact hit returns (report, nil).
func (t *Target) bracket(ts time.Time, maxDiff time.Duration) (lower, upper *TargetReport) {
	n := len(t.byTime)
	i := sort.Search(n, func(i int) bool { return !t.byTime[i].Timestamp.Before(ts) })

	if i < n && t.byTime[i].Timestamp.Equal(ts) {
		return t.byTime[i], nil
	}
	if i == n {
		return nil, nil
	}

	upper = t.byTime[i]
	if upper.Timestamp.Sub(ts) > maxDiff {
		return nil, nil
	}
	if i == 0 {
		return nil, upper
	}

	lower = t.byTime[i-1]
	if ts.Sub(lower.Timestamp) > maxDiff {
		return nil, upper
	}
	return lower, upper
}

// hasDataForTime reports whether ts is inside the target and bracketed by
// reports within maxDiff
func (t *Target) hasDataForTime(ts time.Time, maxDiff time.Duration) bool {
	if !t.TimeInside(ts) {
		return false
	}
	lower, _ := t.bracket(ts, maxDiff)
	return lower != nil
}

// InterpolatedPosition returns the target's position at ts, linear between
// the bracketing reports
func (t *Target) InterpolatedPosition(ts time.Time, maxDiff time.Duration) (geo.Position, bool) {
	lower, upper := t.bracket(ts, maxDiff)

	if lower != nil && upper == nil {
		return lower.Position, true
	}
	if lower == nil || upper == nil {
		return geo.Position{}, false
	}
	if lower.Position == upper.Position {
		return lower.Position, true
	}

	dt := upper.Timestamp.Sub(lower.Timestamp)
	if dt <= 0 {
		return geo.Position{}, false
	}

	f := ts.Sub(lower.Timestamp).Seconds() / dt.Seconds()
	return geo.Interpolate(lower.Position, upper.Position, f), true
}

// CompareModeA compares the report's mode A code against the target's codes
// around the report's timestamp
func (t *Target) CompareModeA(tr *TargetReport, maxDiff time.Duration) CompareResult {
	if tr.HasModeA && !tr.ModeAReliable {
		return CompareUnknown
	}
	if !t.hasDataForTime(tr.Timestamp, maxDiff) {
		return CompareUnknown
	}

	lower, upper := t.bracket(tr.Timestamp, maxDiff)

	lowerNone := lower != nil && !lower.HasModeA
	upperNone := upper != nil && !upper.HasModeA
	if !tr.HasModeA && (lowerNone || upperNone) {
		return CompareSame
	}

	lowerUsable := lower != nil && lower.HasModeA && lower.ModeAReliable
	upperUsable := upper != nil && upper.HasModeA && upper.ModeAReliable

	switch {
	case !lowerUsable && !upperUsable:
		return CompareUnknown
	case lowerUsable != upperUsable:
		ref := lower
		if upperUsable {
			ref = upper
		}
		if !tr.HasModeA || tr.ModeA != ref.ModeA {
			return CompareDifferent
		}
		return CompareSame
	}

	if !tr.HasModeA {
		return CompareDifferent
	}
	if tr.ModeA == lower.ModeA || tr.ModeA == upper.ModeA {
		return CompareSame
	}
	return CompareDifferent
}

// CompareModeC compares the report's mode C altitude against the target's
// altitudes around the report's timestamp
func (t *Target) CompareModeC(tr *TargetReport, maxDiff time.Duration, maxAltDiff float64) CompareResult {
	if tr.HasModeC && !tr.ModeCReliable {
		return CompareUnknown
	}
	if !t.hasDataForTime(tr.Timestamp, maxDiff) {
		return CompareUnknown
	}

	lower, upper := t.bracket(tr.Timestamp, maxDiff)

	lowerNone := lower != nil && !lower.HasModeC
	upperNone := upper != nil && !upper.HasModeC
	if !tr.HasModeC && (lowerNone || upperNone) {
		return CompareSame
	}

	lowerUsable := lower != nil && lower.HasModeC && lower.ModeCReliable
	upperUsable := upper != nil && upper.HasModeC && upper.ModeCReliable

	switch {
	case !lowerUsable && !upperUsable:
		return CompareUnknown
	case lowerUsable != upperUsable:
		ref := lower
		if upperUsable {
			ref = upper
		}
		if !tr.HasModeC || math.Abs(tr.ModeC-ref.ModeC) >= maxAltDiff {
			return CompareDifferent
		}
		return CompareSame
	}

	if !tr.HasModeC {
		return CompareDifferent
	}
	if math.Abs(tr.ModeC-lower.ModeC) < maxAltDiff || math.Abs(tr.ModeC-upper.ModeC) < maxAltDiff {
		return CompareSame
	}
	return CompareDifferent
}

// compareModeAs classifies every report of t against other. It returns the
// reports with the same code and the unknown and different counts.
func (t *Target) compareModeAs(other *Target, maxDiff time.Duration) (same []*TargetReport, unknown, different int) {
	for _, tr := range t.reports {
		switch other.CompareModeA(tr, maxDiff) {
		case CompareSame:
			same = append(same, tr)
		case CompareDifferent:
			different++
		default:
			unknown++
		}
	}
	return same, unknown, different
}

// compareModeCs classifies the given reports of t against other
func (t *Target) compareModeCs(other *Target, trs []*TargetReport, maxDiff time.Duration, maxAltDiff float64) (same []*TargetReport, unknown, different int) {
	for _, tr := range trs {
		switch other.CompareModeC(tr, maxDiff, maxAltDiff) {
		case CompareSame:
			same = append(same, tr)
		case CompareDifferent:
			different++
		default:
			unknown++
		}
	}
	return same, unknown, different
}

// CalculateSpeeds derives ground speed statistics from consecutive reports.
// Pairs without positive time difference are skipped.
func (t *Target) CalculateSpeeds() {
	t.Speed = SpeedStats{}

	speeds := make([]float64, 0, len(t.byTime))
	for i := 1; i < len(t.byTime); i++ {
		prev, cur := t.byTime[i-1], t.byTime[i]
		if kts, ok := geo.SpeedKnots(prev.Position, cur.Position, cur.Timestamp.Sub(prev.Timestamp).Seconds()); ok {
			speeds = append(speeds, kts)
		}
	}

	if len(speeds) == 0 {
		return
	}

	t.Speed = SpeedStats{
		Valid: true,
		Min:   floats.Min(speeds),
		Avg:   stat.Mean(speeds, nil),
		Max:   floats.Max(speeds),
	}
}

// RemoveNonAddressReports drops every report without an aircraft address and
// rebuilds the derived state. It returns the number of removed reports.
func (t *Target) RemoveNonAddressReports() int {
	kept := make([]*TargetReport, 0, len(t.reports))
	for _, tr := range t.reports {
		if tr.HasAddress {
			kept = append(kept, tr)
		}
	}
	removed := len(t.reports) - len(kept)
	if removed == 0 {
		return 0
	}

	rebuilt := NewTarget(t.UTN)
	rebuilt.Add(kept...)
	rebuilt.UseInEval = t.UseInEval
	rebuilt.Comment = t.Comment
	*t = *rebuilt

	return removed
}

// Summary returns the persisted description of the target
func (t *Target) Summary(runID string) models.TargetSummary {
	s := models.TargetSummary{
		UTN:           t.UTN,
		RunID:         runID,
		UseInEval:     t.UseInEval,
		Comment:       t.Comment,
		Addresses:     t.Addresses(),
		Idents:        make([]string, 0, len(t.idents)),
		ModeACodes:    sortedUint32(t.modeAs),
		ContentCounts: make(map[string]int),
	}

	for ident := range t.idents {
		s.Idents = append(s.Idents, ident)
	}
	sort.Strings(s.Idents)

	if t.HasTimestamps() {
		s.HasTimes = true
		s.TimeBegin = t.tsMin
		s.TimeEnd = t.tsMax
	}
	if t.hasModeC {
		s.HasModeC = true
		s.ModeCMin = t.modeCMin
		s.ModeCMax = t.modeCMax
	}

	mops := make(map[uint8]struct{})
	for _, tr := range t.reports {
		s.ContentCounts[tr.Content]++
		if tr.HasMOPS {
			mops[tr.MOPSVersion] = struct{}{}
		}
	}
	for v := range mops {
		s.MOPSVersions = append(s.MOPSVersions, v)
	}
	sort.Slice(s.MOPSVersions, func(i, j int) bool { return s.MOPSVersions[i] < s.MOPSVersions[j] })

	return s
}

func (t *Target) String() string {
	s := fmt.Sprintf("utn %d reports %d", t.UTN, len(t.reports))
	if t.HasTimestamps() {
		s += fmt.Sprintf(" %s-%s", t.tsMin.Format("15:04:05"), t.tsMax.Format("15:04:05"))
	}
	for _, addr := range t.Addresses() {
		s += fmt.Sprintf(" acad %06X", addr)
	}
	return s
}

func sortedUint32(set map[uint32]struct{}) []uint32 {
	out := make([]uint32, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
