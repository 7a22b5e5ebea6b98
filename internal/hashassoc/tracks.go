package hashassoc

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"flight_assoc/internal/assoc"
	"flight_assoc/internal/buffer"
	"flight_assoc/internal/models"
)

// TrackUpdate is one parent record of a unique track
type TrackUpdate struct {
	RecNum    uint64
	Hashes    string // ';' separated, empty for ignored updates
	Timestamp time.Time
}

// UniqueTrack is one continuous use of a parent track number
type UniqueTrack struct {
	UTN      uint32
	TrackNum uint32
	First    time.Time
	Last     time.Time

	updates map[uint64]TrackUpdate
}

// Updates returns the records of the track ordered by record number
func (t *UniqueTrack) Updates() []TrackUpdate {
	out := make([]TrackUpdate, 0, len(t.updates))
	for _, u := range t.updates {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecNum < out[j].RecNum })
	return out
}

type parentSpan struct {
	first, last time.Time
	ignored     int
}

type trackColumns struct {
	recNums    *buffer.Vector[uint64]
	timestamps *buffer.Vector[time.Time]
	trackNums  *buffer.Vector[uint32]
	begins     *buffer.Vector[bool]
	ends       *buffer.Vector[bool]
	coastings  *buffer.Vector[bool]
	hashes     *buffer.Vector[string]
}

func parentColumns(content string, buf *buffer.Buffer) (trackColumns, error) {
	var (
		c  trackColumns
		ok bool
	)
	if c.recNums, ok = buffer.Get[uint64](buf, models.ColRecNum); !ok {
		return c, fmt.Errorf("%w: %s.%s", assoc.ErrMissingColumn, content, models.ColRecNum)
	}
	if c.timestamps, ok = buffer.Get[time.Time](buf, models.ColTimestamp); !ok {
		return c, fmt.Errorf("%w: %s.%s", assoc.ErrMissingColumn, content, models.ColTimestamp)
	}
	if c.trackNums, ok = buffer.Get[uint32](buf, models.ColTrackNum); !ok {
		return c, fmt.Errorf("%w: %s.%s", assoc.ErrMissingColumn, content, models.ColTrackNum)
	}
	if c.hashes, ok = buffer.Get[string](buf, models.ColTRIHashes); !ok {
		return c, fmt.Errorf("%w: %s.%s", assoc.ErrMissingColumn, content, models.ColTRIHashes)
	}
	c.begins, _ = buffer.Get[bool](buf, models.ColTrackBegin)
	c.ends, _ = buffer.Get[bool](buf, models.ColTrackEnd)
	c.coastings, _ = buffer.Get[bool](buf, models.ColTrackCoasting)
	return c, nil
}

// buildUniqueTracks splits the parent records, in buffer order, into unique
// tracks. A track number is finalized by a track begin, by a gap longer than
// the end track time or after its track end update.
func buildUniqueTracks(content string, buf *buffer.Buffer, s Settings) ([]*UniqueTrack, parentSpan, error) {
	var span parentSpan

	cols, err := parentColumns(content, buf)
	if err != nil {
		return nil, span, err
	}

	var utnCnt uint32
	finished := make(map[uint32]*UniqueTrack)
	current := make(map[uint32]*UniqueTrack) // track number -> open track

	finish := func(t *UniqueTrack) {
		finished[t.UTN] = t
		delete(current, t.TrackNum)
	}

	size := buf.Size()
	for i := 0; i < size; i++ {
		if cols.recNums.IsNull(i) || cols.trackNums.IsNull(i) || cols.timestamps.IsNull(i) {
			return nil, span, fmt.Errorf("%w: %s row %d has a null key", assoc.ErrMissingColumn, content, i)
		}

		recNum := cols.recNums.Get(i)
		trackNum := cols.trackNums.Get(i)
		ts := cols.timestamps.Get(i)
		begin := cols.begins.Get(i)
		end := cols.ends.Get(i)
		coasting := cols.coastings.Get(i)

		if i == 0 {
			span.first = ts
		}
		span.last = ts

		if open, ok := current[trackNum]; ok {
			switch {
			case begin:
				slog.Debug("Finalizing track on track begin", "utn", open.UTN, "track_num", trackNum)
				finish(open)
			case ts.Sub(open.Last) > s.EndTrackTime:
				slog.Debug("Finalizing track on time gap", "utn", open.UTN, "track_num", trackNum, "gap", ts.Sub(open.Last))
				finish(open)
			}
		}

		track, ok := current[trackNum]
		if !ok {
			track = &UniqueTrack{
				UTN:      utnCnt,
				TrackNum: trackNum,
				First:    ts,
				updates:  make(map[uint64]TrackUpdate),
			}
			utnCnt++
			current[trackNum] = track
		}
		track.Last = ts

		update := TrackUpdate{RecNum: recNum, Timestamp: ts}
		if (end && s.IgnoreTrackEnd) || (coasting && s.IgnoreTrackCoasting) {
			span.ignored++
		} else {
			update.Hashes = cols.hashes.Get(i)
		}
		track.updates[recNum] = update

		if end {
			slog.Debug("Finalizing track on track end", "utn", track.UTN, "track_num", trackNum)
			finish(track)
		}
	}

	for _, t := range current {
		finished[t.UTN] = t
	}

	tracks := make([]*UniqueTrack, 0, len(finished))
	for _, t := range finished {
		tracks = append(tracks, t)
	}
	sort.Slice(tracks, func(i, j int) bool { return tracks[i].UTN < tracks[j].UTN })

	slog.Info("Created unique tracks", "content", content, "tracks", len(tracks), "ignored_updates", span.ignored)

	return tracks, span, nil
}
