package hashassoc

import (
	"time"

	"flight_assoc/internal/buffer"
	"flight_assoc/internal/models"
)

var testStart = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func at(sec float64) time.Time {
	return testStart.Add(time.Duration(sec * float64(time.Second)))
}

func testSettings() Settings {
	s := DefaultSettings()
	s.Workers = 2
	return s
}

type parentRow struct {
	rec      uint64
	track    uint32
	sec      float64
	hashes   string
	begin    bool
	end      bool
	coasting bool
}

func parentBuffer(rows []parentRow) *buffer.Buffer {
	recNums := buffer.NewVector[uint64](0)
	timestamps := buffer.NewVector[time.Time](0)
	trackNums := buffer.NewVector[uint32](0)
	hashes := buffer.NewVector[string](0)
	begins := buffer.NewVector[bool](0)
	ends := buffer.NewVector[bool](0)
	coastings := buffer.NewVector[bool](0)

	for _, r := range rows {
		recNums.Append(r.rec)
		timestamps.Append(at(r.sec))
		trackNums.Append(r.track)
		if r.hashes == "" {
			hashes.AppendNull()
		} else {
			hashes.Append(r.hashes)
		}
		begins.Append(r.begin)
		ends.Append(r.end)
		coastings.Append(r.coasting)
	}

	buf := buffer.New()
	buf.Add(models.ColRecNum, recNums)
	buf.Add(models.ColTimestamp, timestamps)
	buf.Add(models.ColTrackNum, trackNums)
	buf.Add(models.ColTRIHashes, hashes)
	buf.Add(models.ColTrackBegin, begins)
	buf.Add(models.ColTrackEnd, ends)
	buf.Add(models.ColTrackCoasting, coastings)
	return buf
}

type peerRow struct {
	rec  uint64
	sec  float64
	hash string
}

func peerBuffer(rows []peerRow) *buffer.Buffer {
	recNums := buffer.NewVector[uint64](0)
	timestamps := buffer.NewVector[time.Time](0)
	hashes := buffer.NewVector[string](0)

	for _, r := range rows {
		recNums.Append(r.rec)
		timestamps.Append(at(r.sec))
		if r.hash == "" {
			hashes.AppendNull()
		} else {
			hashes.Append(r.hash)
		}
	}

	buf := buffer.New()
	buf.Add(models.ColRecNum, recNums)
	buf.Add(models.ColTimestamp, timestamps)
	buf.Add(models.ColHash, hashes)
	return buf
}

// recsOf returns the record numbers of a track's updates
func recsOf(t *UniqueTrack) []uint64 {
	var out []uint64
	for _, u := range t.Updates() {
		out = append(out, u.RecNum)
	}
	return out
}
