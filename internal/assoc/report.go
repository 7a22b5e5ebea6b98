package assoc

import (
	"fmt"
	"sort"
	"time"

	"flight_assoc/internal/geo"
)

// TargetReport is one timestamped observation from one data source
type TargetReport struct {
	Content   string
	RecNum    uint64
	DSID      uint32
	LineID    uint8
	Timestamp time.Time
	Position  geo.Position

	HasAddress  bool
	Address     uint32
	HasIdent    bool
	Ident       string
	HasTrackNum bool
	TrackNum    uint32
	HasTrackEnd bool
	TrackEnd    bool

	HasModeA      bool
	ModeA         uint32
	ModeAReliable bool
	HasModeC      bool
	ModeC         float64 // ft
	ModeCReliable bool

	HasMOPS     bool
	MOPSVersion uint8
}

func (r *TargetReport) String() string {
	s := fmt.Sprintf("%s/%d rec %d %s", r.Content, r.DSID, r.RecNum, r.Timestamp.Format("15:04:05.000"))
	if r.HasAddress {
		s += fmt.Sprintf(" acad %06X", r.Address)
	}
	if r.HasTrackNum {
		s += fmt.Sprintf(" tn %d", r.TrackNum)
	}
	if r.HasModeA {
		s += fmt.Sprintf(" m3a %04o", r.ModeA)
	}
	return s
}

// Extraction owns every report of one run, grouped by content type and data
// source. Reports are referenced by pointer and never copied once extracted.
type Extraction struct {
	reports map[string]map[uint32][]TargetReport

	// Dropped counts rows without timestamp or position
	Dropped int
}

// Contents returns the content types with at least one report, sorted by name
func (e *Extraction) Contents() []string {
	contents := make([]string, 0, len(e.reports))
	for c := range e.reports {
		contents = append(contents, c)
	}
	sort.Strings(contents)
	return contents
}

// DataSources returns the data source ids of a content type in ascending order
func (e *Extraction) DataSources(content string) []uint32 {
	ids := make([]uint32, 0, len(e.reports[content]))
	for id := range e.reports[content] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Reports returns the reports of one data source in buffer order
func (e *Extraction) Reports(content string, dsID uint32) []TargetReport {
	return e.reports[content][dsID]
}

// Len returns the number of extracted reports
func (e *Extraction) Len() int {
	n := 0
	for _, byDS := range e.reports {
		for _, trs := range byDS {
			n += len(trs)
		}
	}
	return n
}

func (e *Extraction) add(tr TargetReport) {
	byDS, ok := e.reports[tr.Content]
	if !ok {
		byDS = make(map[uint32][]TargetReport)
		e.reports[tr.Content] = byDS
	}
	byDS[tr.DSID] = append(byDS[tr.DSID], tr)
}
