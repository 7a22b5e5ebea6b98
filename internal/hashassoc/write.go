package hashassoc

import (
	"fmt"

	"flight_assoc/internal/buffer"
	"flight_assoc/internal/models"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// applyRefs stores the peer references of every parent record as a JSON
// array in the assoc_refs column. Records without peers are null.
func applyRefs(content string, buf *buffer.Buffer, refs map[uint64][]Ref) error {
	recNums, ok := buffer.Get[uint64](buf, models.ColRecNum)
	if !ok {
		return fmt.Errorf("failed to set %s references: missing %s", content, models.ColRecNum)
	}
	col, err := buffer.Ensure[string](buf, models.ColAssocRefs)
	if err != nil {
		return fmt.Errorf("failed to set %s references: %w", content, err)
	}

	size := buf.Size()
	for i := 0; i < size; i++ {
		peers, ok := refs[recNums.Get(i)]
		if recNums.IsNull(i) || !ok {
			col.SetNull(i)
			continue
		}
		data, err := json.Marshal(peers)
		if err != nil {
			return fmt.Errorf("failed to encode %s references: %w", content, err)
		}
		col.Set(i, string(data))
	}

	return nil
}

// DecodeRefs parses an assoc_refs column value
func DecodeRefs(value string) ([]Ref, error) {
	var refs []Ref
	if err := json.UnmarshalFromString(value, &refs); err != nil {
		return nil, fmt.Errorf("failed to decode references: %w", err)
	}
	return refs, nil
}

// summaries describes every unique track with its time span and the number
// of associated records per content type
func summaries(runID string, tracks []*UniqueTrack, a *Associations) []models.TargetSummary {
	out := make([]models.TargetSummary, len(tracks))
	index := make(map[uint32]int, len(tracks))

	for i, t := range tracks {
		out[i] = models.TargetSummary{
			UTN:           t.UTN,
			RunID:         runID,
			UseInEval:     true,
			Addresses:     []uint32{},
			Idents:        []string{},
			ModeACodes:    []uint32{},
			HasTimes:      true,
			TimeBegin:     t.First,
			TimeEnd:       t.Last,
			ContentCounts: make(map[string]int),
		}
		index[t.UTN] = i
	}

	for content, byRec := range a.UTNs {
		for _, utn := range byRec {
			if i, ok := index[utn]; ok {
				out[i].ContentCounts[content]++
			}
		}
	}

	return out
}
