package assoc

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"flight_assoc/internal/buffer"
	"flight_assoc/internal/models"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/zeebo/xxh3"
)

// Phases reported through the progress callback
const (
	PhaseClear            = "Clearing Previous Associations"
	PhaseExtract          = "Creating Target Reports"
	PhaseReference        = "Creating Reference UTNs"
	PhaseTracker          = "Creating Tracker UTNs"
	PhaseSensor           = "Creating non-Tracker UTNs"
	PhaseAssociations     = "Creating Associations"
	PhaseSaveAssociations = "Saving Associations"
	PhaseSaveTargets      = "Saving Targets"
)

// Status describes the progress of a running job
type Status struct {
	Phase  string
	Detail string
	Done   float64 // fraction of the phase, 0 when unknown
}

// Stats holds the counters of one run
type Stats struct {
	Reports         int `yaml:"reports"`
	Dropped         int `yaml:"dropped"`
	NoTrackNumber   int `yaml:"no_track_number"`
	OutsideLines    int `yaml:"outside_lines"`
	Continuations   int `yaml:"continuations"`
	AddressSwitches int `yaml:"address_switches"`
	TrackGaps       int `yaml:"track_gaps"`
	Merged          int `yaml:"merged"`
	Created         int `yaml:"created"`
	DubiousCleaned  int `yaml:"dubious_cleaned"`
	RemovedReports  int `yaml:"removed_reports"`
	DubiousTargets  int `yaml:"dubious_targets"`
	SensorAddress   int `yaml:"sensor_by_address"`
	SensorPosition  int `yaml:"sensor_by_position"`
	SensorCreated   int `yaml:"sensor_created"`
	Unassociated    int `yaml:"unassociated"`
}

// Result is the outcome of a finished run
type Result struct {
	RunID       uuid.UUID
	Counts      map[string]Count
	Targets     []models.TargetSummary
	Stats       Stats
	Fingerprint uint64
	Duration    time.Duration
}

// Job runs the kinematic association protocol over a set of content buffers
type Job struct {
	buffers  map[string]*buffer.Buffer
	store    Store
	settings Settings

	progress func(Status)
	stats    Stats
}

// NewJob creates a job. buffers are modified in place and reduced to the
// written columns when the job completes.
func NewJob(buffers map[string]*buffer.Buffer, store Store, settings Settings) *Job {
	return &Job{
		buffers:  buffers,
		store:    store,
		settings: settings,
	}
}

func (j *Job) status(phase, detail string, done float64) {
	if j.progress != nil {
		j.progress(Status{Phase: phase, Detail: detail, Done: done})
	}
}

// Run associates every report and writes the result. Nothing is written when
// the run fails or ctx is cancelled before the write phase.
func (j *Job) Run(ctx context.Context, progress func(Status)) (*Result, error) {
	start := time.Now()
	j.progress = progress
	j.stats = Stats{}

	if err := j.settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	runID := uuid.New()
	slog.Info("Starting association", "run_id", runID, "contents", len(j.buffers))

	j.status(PhaseClear, "", 0)
	if err := ClearUTNs(j.buffers); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	j.status(PhaseExtract, "", 0)
	ex, err := Extract(j.buffers)
	if err != nil {
		return nil, fmt.Errorf("failed to create target reports: %w", err)
	}
	j.stats.Reports = ex.Len()
	j.stats.Dropped = ex.Dropped

	targets := NewTargetSet()
	counter := &utnCounter{}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	j.status(PhaseReference, "", 0)
	targets, counter, err = j.associateTracked(ctx, ex, models.ContentRefTraj, PhaseReference, targets, counter)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	j.status(PhaseTracker, "", 0)
	targets, counter, err = j.associateTracked(ctx, ex, models.ContentCAT062, PhaseTracker, targets, counter)
	if err != nil {
		return nil, err
	}
	logSourceSpread("Tracker targets", targets)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	j.status(PhaseSensor, "", 0)
	if err := j.associateSensors(ctx, ex, targets, counter); err != nil {
		return nil, err
	}
	logSourceSpread("Targets after non-tracker association", targets)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	j.status(PhaseAssociations, "", 0)
	assoc := BuildAssociations(targets)
	counts, err := ApplyUTNs(j.buffers, assoc)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.TargetSummary, 0, targets.Len())
	for _, t := range targets.Targets() {
		summaries = append(summaries, t.Summary(runID.String()))
	}

	if err := Persist(ctx, j.store, j.buffers, []string{models.ColUTN}, summaries, j.settings.ChunkSize, progress); err != nil {
		return nil, err
	}

	res := &Result{
		RunID:       runID,
		Counts:      counts,
		Targets:     summaries,
		Stats:       j.stats,
		Fingerprint: assoc.Fingerprint(),
		Duration:    time.Since(start),
	}
	logSummary(res)

	return res, nil
}

// associateTracked builds, cleans and merges the targets of every data source
// of one tracked content type, then self-associates the accumulated set
func (j *Job) associateTracked(ctx context.Context, ex *Extraction, content, phase string,
	targets *TargetSet, counter *utnCounter) (*TargetSet, *utnCounter, error) {
	dsIDs := ex.DataSources(content)
	if len(dsIDs) == 0 {
		slog.Info("No tracked data", "content", content)
		return targets, counter, nil
	}

	s := j.settings
	for i, dsID := range dsIDs {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		name := fmt.Sprintf("%s/%d", content, dsID)
		j.status(phase, name, float64(i)/float64(len(dsIDs)))

		tmp, st, err := buildTrackedTargets(ex.Reports(content, dsID), s)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create targets for %s: %w", name, err)
		}
		j.stats.NoTrackNumber += st.noTrackNumber
		j.stats.OutsideLines += st.outsideLines
		j.stats.Continuations += st.continuations
		j.stats.AddressSwitches += st.addressSwitches
		j.stats.TrackGaps += st.gaps

		if tmp.Len() == 0 {
			slog.Warn("Data source created no targets", "source", name)
			continue
		}

		j.clean(tmp)
		merged, created, err := addTrackedTargets(name, tmp, targets, counter, s)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to add targets of %s: %w", name, err)
		}
		j.stats.Merged += merged
		j.stats.Created += created
		j.clean(targets)
	}

	targets, counter, err := selfAssociate(targets, s)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to self-associate %s: %w", content, err)
	}
	j.clean(targets)
	j.stats.DubiousTargets = len(markDubiousTargets(targets, s))

	return targets, counter, nil
}

func (j *Job) clean(set *TargetSet) {
	st := cleanTargets(set, j.settings)
	j.stats.DubiousCleaned += st.dubious
	j.stats.RemovedReports += st.removed
}

// associateSensors attaches the reports of every untracked content type
func (j *Job) associateSensors(ctx context.Context, ex *Extraction, targets *TargetSet, counter *utnCounter) error {
	lookup, err := addressLookup(targets)
	if err != nil {
		return err
	}

	var sources, done int
	for _, content := range ex.Contents() {
		if !models.IsTracked(content) {
			sources += len(ex.DataSources(content))
		}
	}

	for _, content := range ex.Contents() {
		if models.IsTracked(content) {
			continue
		}

		for _, dsID := range ex.DataSources(content) {
			if err := ctx.Err(); err != nil {
				return err
			}
			name := fmt.Sprintf("%s/%d", content, dsID)
			j.status(PhaseSensor, name, float64(done)/float64(sources))
			done++

			st, err := associateSensor(ex.Reports(content, dsID), targets, lookup, counter, j.settings)
			if err != nil {
				return fmt.Errorf("failed to associate %s: %w", name, err)
			}
			slog.Info("Associated sensor data",
				"source", name,
				"by_address", st.byAddress,
				"by_position", st.byPosition,
				"created", st.created,
				"unassociated", st.unassociated,
			)

			j.stats.SensorAddress += st.byAddress
			j.stats.SensorPosition += st.byPosition
			j.stats.SensorCreated += st.created
			j.stats.Unassociated += st.unassociated
		}
	}

	return nil
}

func logSourceSpread(msg string, targets *TargetSet) {
	var multiple, single int
	for _, t := range targets.Targets() {
		if t.NumDataSources() > 1 {
			multiple++
		} else {
			single++
		}
	}
	slog.Info(msg, "targets", targets.Len(), "multiple", multiple, "single", single)
}

func logSummary(res *Result) {
	contents := make([]string, 0, len(res.Counts))
	for c := range res.Counts {
		contents = append(contents, c)
	}
	sort.Strings(contents)

	for _, c := range contents {
		cnt := res.Counts[c]
		slog.Info("Association counts",
			"content", c,
			"total", humanize.Comma(int64(cnt.Total)),
			"associated", humanize.Comma(int64(cnt.Associated)),
		)
	}

	slog.Info("Association done",
		"run_id", res.RunID,
		"targets", humanize.Comma(int64(len(res.Targets))),
		"reports", humanize.Comma(int64(res.Stats.Reports)),
		"dropped", humanize.Comma(int64(res.Stats.Dropped)),
		"dubious", humanize.Comma(int64(res.Stats.DubiousTargets)),
		"unassociated", humanize.Comma(int64(res.Stats.Unassociated)),
		"duration", res.Duration.Round(time.Millisecond),
	)
}

// Fingerprint hashes the complete assignment in content and record order.
// Identical inputs and settings yield identical fingerprints.
func (a Associations) Fingerprint() uint64 {
	h := xxh3.New()

	contents := make([]string, 0, len(a))
	for c := range a {
		contents = append(contents, c)
	}
	sort.Strings(contents)

	var buf []byte
	for _, c := range contents {
		byRec := a[c]
		recs := make([]uint64, 0, len(byRec))
		for r := range byRec {
			recs = append(recs, r)
		}
		sort.Slice(recs, func(i, j int) bool { return recs[i] < recs[j] })

		_, _ = h.WriteString(c)
		for _, r := range recs {
			buf = binary.LittleEndian.AppendUint64(buf[:0], r)
			buf = binary.LittleEndian.AppendUint32(buf, byRec[r])
			_, _ = h.Write(buf)
		}
	}

	return h.Sum64()
}
