package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"flight_assoc/internal/assoc"
	"flight_assoc/internal/hashassoc"
	"flight_assoc/internal/models"

	"gopkg.in/yaml.v3"
)

// Run is the YAML summary of one association run
type Run struct {
	RunID       string                 `yaml:"run_id"`
	Protocol    string                 `yaml:"protocol"`
	Started     time.Time              `yaml:"started"`
	Duration    string                 `yaml:"duration"`
	Saved       bool                   `yaml:"saved"`
	Fingerprint string                 `yaml:"fingerprint"`
	Targets     int                    `yaml:"targets"`
	Dubious     []uint32               `yaml:"dubious_targets,omitempty"`
	Counts      map[string]assoc.Count `yaml:"counts"`
	Kinematic   *assoc.Stats           `yaml:"kinematic,omitempty"`
	Hash        *hashassoc.Stats       `yaml:"hash,omitempty"`
}

// FromKinematic summarizes a kinematic run
func FromKinematic(res *assoc.Result, started time.Time) Run {
	stats := res.Stats
	return Run{
		RunID:       res.RunID.String(),
		Protocol:    "kinematic",
		Started:     started.UTC(),
		Duration:    res.Duration.Round(time.Millisecond).String(),
		Saved:       true,
		Fingerprint: fmt.Sprintf("%016x", res.Fingerprint),
		Targets:     len(res.Targets),
		Dubious:     dubiousUTNs(res.Targets),
		Counts:      res.Counts,
		Kinematic:   &stats,
	}
}

// FromHash summarizes a hash run
func FromHash(res *hashassoc.Result, started time.Time) Run {
	stats := res.Stats
	return Run{
		RunID:       res.RunID.String(),
		Protocol:    "hash",
		Started:     started.UTC(),
		Duration:    res.Duration.Round(time.Millisecond).String(),
		Saved:       res.Saved,
		Fingerprint: fmt.Sprintf("%016x", res.Fingerprint),
		Targets:     len(res.Targets),
		Counts:      res.Counts,
		Hash:        &stats,
	}
}

func dubiousUTNs(targets []models.TargetSummary) []uint32 {
	var out []uint32
	for _, t := range targets {
		if t.Comment == assoc.DubiousComment || !t.UseInEval {
			out = append(out, t.UTN)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Write stores the report at path, creating parent directories
func Write(path string, r Run) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	return f.Close()
}

// Read loads a report written by Write
func Read(path string) (Run, error) {
	var r Run
	data, err := os.ReadFile(path)
	if err != nil {
		return r, fmt.Errorf("failed to read report: %w", err)
	}
	if err := yaml.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("failed to decode report: %w", err)
	}
	return r, nil
}
