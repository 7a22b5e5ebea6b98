package models

import "time"

// TargetSummary is the persisted description of one reconstructed target
type TargetSummary struct {
	UTN           uint32         `json:"utn" yaml:"utn"`
	RunID         string         `json:"run_id" yaml:"run_id"`
	UseInEval     bool           `json:"use_in_eval" yaml:"use_in_eval"`
	Comment       string         `json:"comment,omitempty" yaml:"comment,omitempty"`
	Addresses     []uint32       `json:"addresses" yaml:"addresses"`
	Idents        []string       `json:"idents" yaml:"idents"`
	ModeACodes    []uint32       `json:"mode_a_codes" yaml:"mode_a_codes"`
	HasTimes      bool           `json:"-" yaml:"-"`
	TimeBegin     time.Time      `json:"time_begin" yaml:"time_begin"`
	TimeEnd       time.Time      `json:"time_end" yaml:"time_end"`
	HasModeC      bool           `json:"-" yaml:"-"`
	ModeCMin      float64        `json:"mode_c_min" yaml:"mode_c_min"`
	ModeCMax      float64        `json:"mode_c_max" yaml:"mode_c_max"`
	ContentCounts map[string]int `json:"content_counts" yaml:"content_counts"`
	MOPSVersions  []uint8        `json:"mops_versions,omitempty" yaml:"mops_versions,omitempty"`
}

// NumReports returns the number of reports over all content types
func (s *TargetSummary) NumReports() int {
	total := 0
	for _, n := range s.ContentCounts {
		total += n
	}
	return total
}
