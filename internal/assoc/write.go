package assoc

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"flight_assoc/internal/buffer"
	"flight_assoc/internal/models"

	"github.com/dustin/go-humanize"
)

// Store opens the transactional write of one run's results
type Store interface {
	BeginAssociationWrite(ctx context.Context) (AssociationWriter, error)
}

// AssociationWriter writes association columns and target summaries. Nothing
// is visible until Commit.
type AssociationWriter interface {
	// UpdateBuffer writes rows [from, to) of every column of buf to table,
	// matching rows by keyColumn
	UpdateBuffer(ctx context.Context, table, keyColumn string, buf *buffer.Buffer, from, to int) error
	SaveTargets(ctx context.Context, targets []models.TargetSummary) error
	Commit() error
	Rollback() error
}

// Count holds the number of rows of one content type and how many of them
// were assigned a UTN
type Count struct {
	Total      int `json:"total" yaml:"total"`
	Associated int `json:"associated" yaml:"associated"`
}

// Associations maps content type -> record number -> UTN
type Associations map[string]map[uint64]uint32

// BuildAssociations collects the record number to UTN mapping of all targets
func BuildAssociations(targets *TargetSet) Associations {
	assoc := make(Associations)
	for _, t := range targets.Targets() {
		for _, tr := range t.Reports() {
			byRec, ok := assoc[tr.Content]
			if !ok {
				byRec = make(map[uint64]uint32)
				assoc[tr.Content] = byRec
			}
			byRec[tr.RecNum] = t.UTN
		}
	}
	return assoc
}

// ClearUTNs nulls the UTN column of every buffer, creating it if missing
func ClearUTNs(buffers map[string]*buffer.Buffer) error {
	for _, content := range SortedContents(buffers) {
		utns, err := buffer.Ensure[uint32](buffers[content], models.ColUTN)
		if err != nil {
			return fmt.Errorf("failed to clear %s associations: %w", content, err)
		}
		utns.SetAllNull()
	}
	return nil
}

// ApplyUTNs sets the UTN column of every buffer row from assoc and returns
// the per-content counts
func ApplyUTNs(buffers map[string]*buffer.Buffer, assoc Associations) (map[string]Count, error) {
	counts := make(map[string]Count, len(buffers))

	for _, content := range SortedContents(buffers) {
		buf := buffers[content]
		recNums, err := requiredColumn[uint64](buf, content, models.ColRecNum)
		if err != nil {
			return nil, err
		}
		utns, err := buffer.Ensure[uint32](buf, models.ColUTN)
		if err != nil {
			return nil, fmt.Errorf("failed to set %s associations: %w", content, err)
		}

		byRec := assoc[content]
		var c Count
		c.Total = buf.Size()
		for i := 0; i < c.Total; i++ {
			if recNums.IsNull(i) {
				utns.SetNull(i)
				continue
			}
			if utn, ok := byRec[recNums.Get(i)]; ok {
				utns.Set(i, utn)
				c.Associated++
			} else {
				utns.SetNull(i)
			}
		}
		counts[content] = c
	}

	return counts, nil
}

// Persist writes the given columns of every buffer in chunks, then the target
// summaries, inside one write. Any failure rolls everything back.
func Persist(ctx context.Context, store Store, buffers map[string]*buffer.Buffer, columns []string,
	targets []models.TargetSummary, chunkSize int, progress func(Status)) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	if chunkSize <= 0 {
		return fmt.Errorf("invalid chunk size %d", chunkSize)
	}

	w, err := store.BeginAssociationWrite(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin association write: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := w.Rollback(); rbErr != nil {
				slog.Error("Failed to roll back association write", "error", rbErr)
			}
		}
	}()

	keep := append([]string{models.ColRecNum}, columns...)

	for _, content := range SortedContents(buffers) {
		buf := buffers[content]
		buf.Keep(keep...)

		size := buf.Size()
		for from := 0; from < size; from += chunkSize {
			to := min(from+chunkSize, size)
			if progress != nil {
				progress(Status{
					Phase:  PhaseSaveAssociations,
					Detail: content,
					Done:   float64(from) / float64(size),
				})
			}
			if err = w.UpdateBuffer(ctx, models.TableName(content), models.ColRecNum, buf, from, to); err != nil {
				return fmt.Errorf("failed to save %s associations [%d,%d): %w", content, from, to, err)
			}
		}

		slog.Info("Saved associations", "content", content, "rows", humanize.Comma(int64(size)))
	}

	if progress != nil {
		progress(Status{Phase: PhaseSaveTargets})
	}
	if err = w.SaveTargets(ctx, targets); err != nil {
		return fmt.Errorf("failed to save targets: %w", err)
	}

	if err = w.Commit(); err != nil {
		return fmt.Errorf("failed to commit associations: %w", err)
	}

	slog.Info("Saved targets", "targets", humanize.Comma(int64(len(targets))))

	return nil
}

// SortedContents returns the content names of buffers in sorted order
func SortedContents(buffers map[string]*buffer.Buffer) []string {
	contents := make([]string, 0, len(buffers))
	for c := range buffers {
		contents = append(contents, c)
	}
	sort.Strings(contents)
	return contents
}
