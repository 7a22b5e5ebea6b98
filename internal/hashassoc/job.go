package hashassoc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"flight_assoc/internal/assoc"
	"flight_assoc/internal/buffer"
	"flight_assoc/internal/models"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// ErrNoParentData is returned when the parent content has no buffer
var ErrNoParentData = errors.New("no parent track data")

// Phases reported through the progress callback, besides the shared ones
const (
	PhaseTracks       = "Creating UTNs"
	PhaseHashes       = "Creating Hash Lists"
	PhaseAssociations = "Creating Associations"
)

// Store is the transactional sink of a run
type Store = assoc.Store

// Result is the outcome of a finished run
type Result struct {
	RunID       uuid.UUID
	Counts      map[string]assoc.Count
	Targets     []models.TargetSummary
	Stats       Stats
	Saved       bool
	Fingerprint uint64
	Duration    time.Duration
}

// Job runs the hash association protocol over a set of content buffers
type Job struct {
	buffers  map[string]*buffer.Buffer
	store    Store
	settings Settings
}

// NewJob creates a job. buffers are modified in place.
func NewJob(buffers map[string]*buffer.Buffer, store Store, settings Settings) *Job {
	return &Job{
		buffers:  buffers,
		store:    store,
		settings: settings,
	}
}

// Run associates the peer records referenced by the parent tracks and writes
// the result, unless issues were found and saving with issues is disabled
func (j *Job) Run(ctx context.Context, progress func(assoc.Status)) (*Result, error) {
	start := time.Now()
	s := j.settings

	status := func(phase, detail string) {
		if progress != nil {
			progress(assoc.Status{Phase: phase, Detail: detail})
		}
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	parentBuf, ok := j.buffers[s.ParentContent]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoParentData, s.ParentContent)
	}

	runID := uuid.New()
	slog.Info("Starting hash association", "run_id", runID, "parent", s.ParentContent)

	status(assoc.PhaseClear, "")
	if err := assoc.ClearUTNs(j.buffers); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	status(PhaseTracks, s.ParentContent)
	tracks, span, err := buildUniqueTracks(s.ParentContent, parentBuf, s)
	if err != nil {
		return nil, fmt.Errorf("failed to create unique tracks: %w", err)
	}

	var contents []string
	for _, content := range assoc.SortedContents(j.buffers) {
		if content == s.ParentContent {
			continue
		}
		if !j.buffers[content].Has(models.ColHash) {
			slog.Warn("Content without hash column skipped", "content", content)
			continue
		}
		contents = append(contents, content)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	status(PhaseHashes, "")
	indices, err := buildHashIndices(contents, j.buffers, s.Workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create hash lists: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	status(PhaseAssociations, "")
	a, st := associate(s.ParentContent, tracks, indices, span, s)

	counts, err := assoc.ApplyUTNs(j.buffers, assoc.Associations(a.UTNs))
	if err != nil {
		return nil, err
	}
	if err := applyRefs(s.ParentContent, parentBuf, a.Refs); err != nil {
		return nil, err
	}

	res := &Result{
		RunID:       runID,
		Counts:      counts,
		Targets:     summaries(runID.String(), tracks, a),
		Stats:       st,
		Fingerprint: assoc.Associations(a.UTNs).Fingerprint(),
	}

	if !s.SaveWithIssues && (st.Missing > 0 || st.Dubious > 0) {
		slog.Warn("Associations not saved because of issues",
			"missing", st.Missing,
			"dubious", st.Dubious,
		)
		res.Duration = time.Since(start)
		return res, nil
	}

	columns := []string{models.ColUTN, models.ColAssocRefs}
	if err := assoc.Persist(ctx, j.store, j.buffers, columns, res.Targets, s.ChunkSize, progress); err != nil {
		return nil, err
	}
	res.Saved = true
	res.Duration = time.Since(start)

	slog.Info("Hash association done",
		"run_id", runID,
		"tracks", humanize.Comma(int64(st.Tracks)),
		"found", humanize.Comma(int64(st.Found)),
		"acceptable_misses", humanize.Comma(int64(st.AcceptableMisses)),
		"missing", humanize.Comma(int64(st.Missing)),
		"duplicates", humanize.Comma(int64(st.Duplicates)),
		"dubious", humanize.Comma(int64(st.Dubious)),
		"duration", res.Duration.Round(time.Millisecond),
	)

	return res, nil
}
