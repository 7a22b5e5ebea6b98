package hashassoc

import (
	"log/slog"
	"strings"
	"time"
)

// Ref points at one peer record
type Ref struct {
	Content string `json:"content" yaml:"content"`
	RecNum  uint64 `json:"rec_num" yaml:"rec_num"`
}

// Associations holds the UTN per content and record number together with the
// peer references of every parent record
type Associations struct {
	UTNs map[string]map[uint64]uint32
	Refs map[uint64][]Ref // parent record number -> peers
}

func newAssociations() *Associations {
	return &Associations{
		UTNs: make(map[string]map[uint64]uint32),
		Refs: make(map[uint64][]Ref),
	}
}

func (a *Associations) set(content string, recNum uint64, utn uint32) {
	byRec, ok := a.UTNs[content]
	if !ok {
		byRec = make(map[uint64]uint32)
		a.UTNs[content] = byRec
	}
	byRec[recNum] = utn
}

// Miss is a referenced hash no peer record was found for
type Miss struct {
	Hash      string    `yaml:"hash"`
	UTN       uint32    `yaml:"utn"`
	RecNum    uint64    `yaml:"rec_num"`
	Timestamp time.Time `yaml:"timestamp"`
}

// Stats holds the counters of one hash association run
type Stats struct {
	Tracks           int    `yaml:"tracks"`
	IgnoredUpdates   int    `yaml:"ignored_updates"`
	Found            int    `yaml:"found"`
	Duplicates       int    `yaml:"duplicates"`
	Dubious          int    `yaml:"dubious"`
	AcceptableMisses int    `yaml:"acceptable_misses"`
	Missing          int    `yaml:"missing"`
	Misses           []Miss `yaml:"misses,omitempty"`
}

// match is the best peer found so far for one referenced hash
type match struct {
	found     bool
	dubious   bool
	reason    string
	content   string
	recNum    uint64
	timestamp time.Time
}

// absDiff returns |a-b|
func absDiff(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		return -d
	}
	return d
}

// associate resolves every hash referenced by the parent tracks against the
// peer indices. indices must be ordered by content name.
func associate(parent string, tracks []*UniqueTrack, indices []*hashIndex, span parentSpan, s Settings) (*Associations, Stats) {
	a := newAssociations()
	st := Stats{Tracks: len(tracks), IgnoredUpdates: span.ignored}

	for _, t := range tracks {
		for _, u := range t.Updates() {
			a.set(parent, u.RecNum, t.UTN)
		}
	}

	for _, t := range tracks {
		for _, u := range t.Updates() {
			if u.Hashes == "" {
				continue
			}

			for _, hash := range strings.Split(u.Hashes, ";") {
				if hash == "" {
					continue
				}

				best := bestPeer(hash, u.Timestamp, indices, s, &st)

				if !best.found {
					if absDiff(u.Timestamp, span.first) <= s.MissesAcceptableTime ||
						absDiff(span.last, u.Timestamp) <= s.MissesAcceptableTime {
						st.AcceptableMisses++
						continue
					}
					slog.Debug("Missing hash", "utn", t.UTN, "hash", hash, "timestamp", u.Timestamp)
					st.Missing++
					st.Misses = append(st.Misses, Miss{Hash: hash, UTN: t.UTN, RecNum: u.RecNum, Timestamp: u.Timestamp})
					continue
				}

				if best.dubious {
					slog.Debug("Dubious association", "utn", t.UTN, "rec_num", best.recNum, "reason", best.reason)
					st.Dubious++
				}

				a.set(best.content, best.recNum, t.UTN)
				a.Refs[u.RecNum] = append(a.Refs[u.RecNum], Ref{Content: best.content, RecNum: best.recNum})
				st.Found++
			}
		}
	}

	slog.Info("Created hash associations",
		"found", st.Found,
		"acceptable_misses", st.AcceptableMisses,
		"missing", st.Missing,
		"duplicates", st.Duplicates,
		"dubious", st.Dubious,
	)

	return a, st
}

// bestPeer scans every candidate for hash within the association windows.
// The first candidate is kept until a strictly closer one appears; any further
// candidate is a duplicate and makes the match dubious when both lie in the
// close-collision window, whichever of the two is kept.
func bestPeer(hash string, ts time.Time, indices []*hashIndex, s Settings, st *Stats) match {
	var best match

	for _, x := range indices {
		x.lookup(hash, func(e hashEntry) {
			if !s.isPossibleAssociation(ts, e.timestamp) {
				return
			}

			if !best.found {
				best = match{found: true, content: x.content, recNum: e.recNum, timestamp: e.timestamp}
				if s.isDistant(ts, e.timestamp) {
					best.dubious = true
					best.reason = "too distant in time"
				}
				return
			}

			st.Duplicates++

			collision := s.isClose(ts, best.timestamp) && s.isClose(ts, e.timestamp)
			if collision {
				best.dubious = true
				best.reason = "multiple matches in close time"
			} else {
				best.dubious = false
				best.reason = ""
			}

			if absDiff(ts, e.timestamp) < absDiff(ts, best.timestamp) {
				if !collision && s.isDistant(ts, e.timestamp) {
					best.dubious = true
					best.reason = "too distant in time"
				}
				best.content = x.content
				best.recNum = e.recNum
				best.timestamp = e.timestamp
			}
		})
	}

	return best
}
