package assoc

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"flight_assoc/internal/buffer"
	"flight_assoc/internal/geo"
	"flight_assoc/internal/models"
)

func requiredColumn[T buffer.Value](buf *buffer.Buffer, content, name string) (*buffer.Vector[T], error) {
	v, ok := buffer.Get[T](buf, name)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrMissingColumn, content, name)
	}
	return v, nil
}

func optionalColumn[T buffer.Value](buf *buffer.Buffer, name string) *buffer.Vector[T] {
	v, _ := buffer.Get[T](buf, name)
	return v
}

// Extract converts content buffers into target reports. Rows without
// timestamp or position are dropped and counted.
func Extract(buffers map[string]*buffer.Buffer) (*Extraction, error) {
	ex := &Extraction{reports: make(map[string]map[uint32][]TargetReport)}

	contents := make([]string, 0, len(buffers))
	for c := range buffers {
		contents = append(contents, c)
	}
	sort.Strings(contents)

	for _, content := range contents {
		dropped, err := extractContent(ex, content, buffers[content])
		if err != nil {
			return nil, err
		}
		ex.Dropped += dropped
	}

	return ex, nil
}

func extractContent(ex *Extraction, content string, buf *buffer.Buffer) (int, error) {
	recNums, err := requiredColumn[uint64](buf, content, models.ColRecNum)
	if err != nil {
		return 0, err
	}
	dsIDs, err := requiredColumn[uint32](buf, content, models.ColDSID)
	if err != nil {
		return 0, err
	}
	lineIDs, err := requiredColumn[uint8](buf, content, models.ColLineID)
	if err != nil {
		return 0, err
	}
	timestamps, err := requiredColumn[time.Time](buf, content, models.ColTimestamp)
	if err != nil {
		return 0, err
	}
	lats, err := requiredColumn[float64](buf, content, models.ColLatitude)
	if err != nil {
		return 0, err
	}
	lons, err := requiredColumn[float64](buf, content, models.ColLongitude)
	if err != nil {
		return 0, err
	}
	modeAs, err := requiredColumn[uint32](buf, content, models.ColMode3A)
	if err != nil {
		return 0, err
	}
	modeCs, err := requiredColumn[float64](buf, content, models.ColModeC)
	if err != nil {
		return 0, err
	}

	addresses := optionalColumn[uint32](buf, models.ColACAD)
	idents := optionalColumn[string](buf, models.ColACID)
	trackNums := optionalColumn[uint32](buf, models.ColTrackNum)
	trackEnds := optionalColumn[bool](buf, models.ColTrackEnd)
	modeAGarbled := optionalColumn[bool](buf, models.ColMode3AGarbled)
	modeAValid := optionalColumn[bool](buf, models.ColMode3AValid)
	modeCValid := optionalColumn[bool](buf, models.ColModeCValid)

	var modeCMeasured *buffer.Vector[float64]
	if content == models.ContentCAT062 {
		modeCMeasured = optionalColumn[float64](buf, models.ColModeCMeasured)
	}
	var mops *buffer.Vector[uint8]
	if content == models.ContentCAT021 {
		mops = optionalColumn[uint8](buf, models.ColMOPSVersion)
	}

	dropped := 0
	size := buf.Size()

	for i := 0; i < size; i++ {
		if recNums.IsNull(i) || dsIDs.IsNull(i) || lineIDs.IsNull(i) {
			return 0, fmt.Errorf("%w: %s row %d has a null key", ErrMissingColumn, content, i)
		}

		tr := TargetReport{
			Content: content,
			RecNum:  recNums.Get(i),
			DSID:    dsIDs.Get(i),
			LineID:  lineIDs.Get(i),
		}

		if timestamps.IsNull(i) {
			slog.Debug("Target report without timestamp", "content", content, "rec_num", tr.RecNum, "ds_id", tr.DSID)
			dropped++
			continue
		}
		if lats.IsNull(i) || lons.IsNull(i) {
			slog.Debug("Target report without position", "content", content, "rec_num", tr.RecNum, "ds_id", tr.DSID)
			dropped++
			continue
		}

		tr.Timestamp = timestamps.Get(i)
		tr.Position = geo.Position{Lat: lats.Get(i), Lon: lons.Get(i)}

		if !addresses.IsNull(i) {
			tr.HasAddress = true
			tr.Address = addresses.Get(i)
		}
		if !idents.IsNull(i) {
			if ident := strings.TrimSpace(idents.Get(i)); ident != "" {
				tr.HasIdent = true
				tr.Ident = ident
			}
		}
		if !trackNums.IsNull(i) {
			tr.HasTrackNum = true
			tr.TrackNum = trackNums.Get(i)
		}
		if !trackEnds.IsNull(i) {
			tr.HasTrackEnd = true
			tr.TrackEnd = trackEnds.Get(i)
		}

		if !modeAs.IsNull(i) {
			tr.HasModeA = true
			tr.ModeA = modeAs.Get(i)
			// null flags count as reliable
			tr.ModeAReliable = !modeAGarbled.Get(i) && (modeAValid.IsNull(i) || modeAValid.Get(i))
		}

		if !modeCMeasured.IsNull(i) {
			tr.HasModeC = true
			tr.ModeC = modeCMeasured.Get(i)
			tr.ModeCReliable = true
		} else if !modeCs.IsNull(i) {
			tr.HasModeC = true
			tr.ModeC = modeCs.Get(i)
			tr.ModeCReliable = modeCValid.IsNull(i) || modeCValid.Get(i)
		}

		if !mops.IsNull(i) {
			tr.HasMOPS = true
			tr.MOPSVersion = mops.Get(i)
		}

		ex.add(tr)
	}

	if dropped > 0 {
		slog.Warn("Dropped target reports", "content", content, "dropped", dropped, "total", size)
	}

	return dropped, nil
}
