package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"flight_assoc/internal/assoc"
	"flight_assoc/internal/buffer"
	"flight_assoc/internal/config"
	"flight_assoc/internal/database"
	"flight_assoc/internal/hashassoc"
	"flight_assoc/internal/report"
)

// Runner performs one association run against the configured database
type Runner struct {
	cfg *config.Config
	db  *database.DB
}

// New opens the database of cfg
func New(cfg *config.Config) (*Runner, error) {
	db, err := database.New(cfg.DBPath, cfg.Migrations)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return &Runner{cfg: cfg, db: db}, nil
}

// Run imports pending CSV files, loads the content buffers, runs the
// configured protocol and writes the run report
func (r *Runner) Run(ctx context.Context) (report.Run, error) {
	var rep report.Run

	if err := r.importReports(ctx); err != nil {
		return rep, err
	}

	buffers, err := r.loadBuffers(ctx)
	if err != nil {
		return rep, err
	}

	started := time.Now()
	slog.Info("Starting association run", "protocol", r.cfg.Protocol, "contents", len(buffers))

	switch r.cfg.Protocol {
	case config.ProtocolHash:
		res, err := hashassoc.NewJob(buffers, r.db, r.cfg.Hash).Run(ctx, progressLogger())
		if err != nil {
			return rep, fmt.Errorf("hash association failed: %w", err)
		}
		rep = report.FromHash(res, started)
	default:
		res, err := assoc.NewJob(buffers, r.db, r.cfg.Assoc).Run(ctx, progressLogger())
		if err != nil {
			return rep, fmt.Errorf("association failed: %w", err)
		}
		rep = report.FromKinematic(res, started)
	}

	if r.cfg.ReportPath != "" {
		if err := report.Write(r.cfg.ReportPath, rep); err != nil {
			return rep, err
		}
		slog.Info("Wrote run report", "path", r.cfg.ReportPath)
	}

	return rep, nil
}

// Close closes the database
func (r *Runner) Close() error {
	return r.db.Close()
}

// importReports loads the configured CSV files into content tables that are
// still empty
func (r *Runner) importReports(ctx context.Context) error {
	repo := r.db.Reports()

	contents := make([]string, 0, len(r.cfg.Import.Files))
	for content := range r.cfg.Import.Files {
		contents = append(contents, content)
	}
	sort.Strings(contents)

	for _, content := range contents {
		populated, err := repo.IsTablePopulated(ctx, content)
		if err != nil {
			return err
		}
		if populated {
			slog.Info("Content table is already populated", "content", content)
			continue
		}

		paths := r.cfg.Import.Files[content]
		slog.Info("Content table is empty, loading from CSV files", "content", content, "csv_paths", paths)
		if _, err := repo.LoadFromCSV(ctx, content, paths, r.cfg.Import.BatchSize); err != nil {
			return fmt.Errorf("failed to import %s: %w", content, err)
		}
	}

	return nil
}

// loadBuffers reads the configured contents, skipping empty tables
func (r *Runner) loadBuffers(ctx context.Context) (map[string]*buffer.Buffer, error) {
	repo := r.db.Reports()
	buffers := make(map[string]*buffer.Buffer, len(r.cfg.Contents))

	for _, content := range r.cfg.Contents {
		buf, err := repo.LoadBuffer(ctx, content)
		if err != nil {
			return nil, err
		}
		if buf.Size() == 0 {
			slog.Debug("No data", "content", content)
			continue
		}
		buffers[content] = buf
	}

	return buffers, nil
}

// progressLogger logs every phase change once
func progressLogger() func(assoc.Status) {
	last := ""
	return func(s assoc.Status) {
		if s.Phase == last {
			slog.Debug("Progress", "phase", s.Phase, "detail", s.Detail, "done", fmt.Sprintf("%.0f%%", s.Done*100))
			return
		}
		last = s.Phase
		slog.Info(s.Phase, "detail", s.Detail)
	}
}
