package hashassoc

import (
	"fmt"
	"log/slog"
	"time"

	"flight_assoc/internal/assoc"
	"flight_assoc/internal/buffer"
	"flight_assoc/internal/models"

	"github.com/sourcegraph/conc/pool"
	"github.com/zeebo/xxh3"
)

type hashEntry struct {
	hash      string
	recNum    uint64
	timestamp time.Time
}

// hashIndex is a multimap from hash to the records of one content type,
// keeping insertion order per hash
type hashIndex struct {
	content string
	buckets map[uint64][]hashEntry
	size    int
	noTime  int
}

func newHashIndex(content string) *hashIndex {
	return &hashIndex{content: content, buckets: make(map[uint64][]hashEntry)}
}

func (x *hashIndex) add(hash string, recNum uint64, ts time.Time) {
	key := xxh3.HashString(hash)
	x.buckets[key] = append(x.buckets[key], hashEntry{hash: hash, recNum: recNum, timestamp: ts})
	x.size++
}

// lookup calls fn for every record carrying hash, in insertion order
func (x *hashIndex) lookup(hash string, fn func(hashEntry)) {
	for _, e := range x.buckets[xxh3.HashString(hash)] {
		if e.hash == hash {
			fn(e)
		}
	}
}

// buildHashIndex indexes the hash column of one content buffer. Rows without
// timestamp or hash are skipped.
func buildHashIndex(content string, buf *buffer.Buffer) (*hashIndex, error) {
	recNums, ok := buffer.Get[uint64](buf, models.ColRecNum)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", assoc.ErrMissingColumn, content, models.ColRecNum)
	}
	hashes, ok := buffer.Get[string](buf, models.ColHash)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", assoc.ErrMissingColumn, content, models.ColHash)
	}
	timestamps, ok := buffer.Get[time.Time](buf, models.ColTimestamp)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", assoc.ErrMissingColumn, content, models.ColTimestamp)
	}

	x := newHashIndex(content)
	size := buf.Size()
	for i := 0; i < size; i++ {
		if recNums.IsNull(i) {
			return nil, fmt.Errorf("%w: %s row %d has a null key", assoc.ErrMissingColumn, content, i)
		}
		if hashes.IsNull(i) {
			continue
		}
		if timestamps.IsNull(i) {
			slog.Debug("Record without time skipped", "content", content, "rec_num", recNums.Get(i))
			x.noTime++
			continue
		}
		x.add(hashes.Get(i), recNums.Get(i), timestamps.Get(i))
	}

	if x.noTime > 0 {
		slog.Warn("Records without time skipped", "content", content, "count", x.noTime)
	}
	slog.Info("Created hash list", "content", content, "hashes", x.size)

	return x, nil
}

// buildHashIndices indexes every content in parallel. The result follows the
// order of contents.
func buildHashIndices(contents []string, buffers map[string]*buffer.Buffer, workers int) ([]*hashIndex, error) {
	indices := make([]*hashIndex, len(contents))

	n := workers
	if n == 0 {
		n = len(contents)
	}
	p := pool.New().WithErrors().WithMaxGoroutines(max(1, n))
	for i, content := range contents {
		p.Go(func() error {
			x, err := buildHashIndex(content, buffers[content])
			if err != nil {
				return err
			}
			indices[i] = x
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	return indices, nil
}
