package assoc

import (
	"time"

	"flight_assoc/internal/buffer"
	"flight_assoc/internal/geo"
	"flight_assoc/internal/models"
)

var testStart = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func at(sec float64) time.Time {
	return testStart.Add(time.Duration(sec * float64(time.Second)))
}

// pathPos is an eastbound flight along 48N at roughly 145 kts
func pathPos(sec float64) geo.Position {
	return geo.Position{Lat: 48, Lon: 11 + 0.001*sec}
}

type reportOpt func(*TargetReport)

func withAddress(addr uint32) reportOpt {
	return func(tr *TargetReport) {
		tr.HasAddress = true
		tr.Address = addr
	}
}

func withModeA(code uint32) reportOpt {
	return func(tr *TargetReport) {
		tr.HasModeA = true
		tr.ModeA = code
		tr.ModeAReliable = true
	}
}

func withModeC(ft float64) reportOpt {
	return func(tr *TargetReport) {
		tr.HasModeC = true
		tr.ModeC = ft
		tr.ModeCReliable = true
	}
}

func withTrack(tn uint32) reportOpt {
	return func(tr *TargetReport) {
		tr.HasTrackNum = true
		tr.TrackNum = tn
	}
}

func withTrackEnd() reportOpt {
	return func(tr *TargetReport) {
		tr.HasTrackEnd = true
		tr.TrackEnd = true
	}
}

func onLine(line uint8) reportOpt {
	return func(tr *TargetReport) { tr.LineID = line }
}

func withPos(p geo.Position) reportOpt {
	return func(tr *TargetReport) { tr.Position = p }
}

func newReport(content string, rec uint64, sec float64, opts ...reportOpt) TargetReport {
	tr := TargetReport{
		Content:   content,
		RecNum:    rec,
		DSID:      1,
		Timestamp: at(sec),
		Position:  pathPos(sec),
	}
	for _, o := range opts {
		o(&tr)
	}
	return tr
}

func targetOf(utn uint32, trs ...TargetReport) *Target {
	t := NewTarget(utn)
	for i := range trs {
		t.Add(&trs[i])
	}
	return t
}

// pathReports returns reports every step seconds in [from, to] along pathPos
func pathReports(content string, firstRec uint64, from, to, step float64, opts ...reportOpt) []TargetReport {
	var trs []TargetReport
	rec := firstRec
	for sec := from; sec <= to; sec += step {
		trs = append(trs, newReport(content, rec, sec, opts...))
		rec++
	}
	return trs
}

func setOf(targets ...*Target) *TargetSet {
	set := NewTargetSet()
	for _, t := range targets {
		set.Insert(t)
	}
	return set
}

// row is one buffer row; nil pointers are stored as nulls
type row struct {
	rec      uint64
	ds       uint32
	line     uint8
	sec      float64
	pos      geo.Position
	acad     *uint32
	track    *uint32
	trackEnd *bool
	modeA    *uint32
	modeC    *float64
}

func u32(v uint32) *uint32 { return &v }
func f64(v float64) *float64 { return &v }

func appendOpt[T buffer.Value](v *buffer.Vector[T], val *T) {
	if val == nil {
		v.AppendNull()
		return
	}
	v.Append(*val)
}

func makeBuffer(rows []row) *buffer.Buffer {
	recNums := buffer.NewVector[uint64](0)
	dsIDs := buffer.NewVector[uint32](0)
	lineIDs := buffer.NewVector[uint8](0)
	timestamps := buffer.NewVector[time.Time](0)
	lats := buffer.NewVector[float64](0)
	lons := buffer.NewVector[float64](0)
	acads := buffer.NewVector[uint32](0)
	tracks := buffer.NewVector[uint32](0)
	trackEnds := buffer.NewVector[bool](0)
	modeAs := buffer.NewVector[uint32](0)
	modeCs := buffer.NewVector[float64](0)

	for _, r := range rows {
		recNums.Append(r.rec)
		dsIDs.Append(r.ds)
		lineIDs.Append(r.line)
		timestamps.Append(at(r.sec))
		lats.Append(r.pos.Lat)
		lons.Append(r.pos.Lon)
		appendOpt(acads, r.acad)
		appendOpt(tracks, r.track)
		appendOpt(trackEnds, r.trackEnd)
		appendOpt(modeAs, r.modeA)
		appendOpt(modeCs, r.modeC)
	}

	buf := buffer.New()
	buf.Add(models.ColRecNum, recNums)
	buf.Add(models.ColDSID, dsIDs)
	buf.Add(models.ColLineID, lineIDs)
	buf.Add(models.ColTimestamp, timestamps)
	buf.Add(models.ColLatitude, lats)
	buf.Add(models.ColLongitude, lons)
	buf.Add(models.ColACAD, acads)
	buf.Add(models.ColTrackNum, tracks)
	buf.Add(models.ColTrackEnd, trackEnds)
	buf.Add(models.ColMode3A, modeAs)
	buf.Add(models.ColModeC, modeCs)
	return buf
}
