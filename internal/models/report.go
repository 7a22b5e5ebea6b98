package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ReportRecord is one row of a report CSV export. Empty cells decode to nil.
// The aircraft address is hexadecimal and the mode A code octal, as printed
// by decoders.
type ReportRecord struct {
	RecNum        uint64    `csv:"rec_num"`
	DSID          uint32    `csv:"ds_id"`
	LineID        uint8     `csv:"line_id"`
	Timestamp     time.Time `csv:"timestamp"`
	ACAD          *string   `csv:"acad,omitempty"`
	ACID          *string   `csv:"acid,omitempty"`
	TrackNum      *uint32   `csv:"track_num,omitempty"`
	TrackBegin    *bool     `csv:"track_begin,omitempty"`
	TrackEnd      *bool     `csv:"track_end,omitempty"`
	TrackCoasting *bool     `csv:"track_coasting,omitempty"`
	Mode3A        *string   `csv:"mode3a,omitempty"`
	Mode3AGarbled *bool     `csv:"mode3a_garbled,omitempty"`
	Mode3AValid   *bool     `csv:"mode3a_valid,omitempty"`
	ModeC         *float64  `csv:"mode_c,omitempty"`
	ModeCValid    *bool     `csv:"mode_c_valid,omitempty"`
	ModeCMeasured *float64  `csv:"mode_c_measured,omitempty"`
	Latitude      *float64  `csv:"latitude,omitempty"`
	Longitude     *float64  `csv:"longitude,omitempty"`
	MOPSVersion   *uint8    `csv:"mops_version,omitempty"`
	Hash          *string   `csv:"hash,omitempty"`
	TRIHashes     *string   `csv:"tri_hashes,omitempty"`
}

// Address parses the hexadecimal aircraft address
func (r *ReportRecord) Address() (*uint32, error) {
	if r.ACAD == nil || strings.TrimSpace(*r.ACAD) == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(strings.TrimSpace(*r.ACAD), 16, 24)
	if err != nil {
		return nil, fmt.Errorf("invalid aircraft address %q: %w", *r.ACAD, err)
	}
	addr := uint32(v)
	return &addr, nil
}

// ModeA parses the octal mode A code
func (r *ReportRecord) ModeA() (*uint32, error) {
	if r.Mode3A == nil || strings.TrimSpace(*r.Mode3A) == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(strings.TrimSpace(*r.Mode3A), 8, 12)
	if err != nil {
		return nil, fmt.Errorf("invalid mode A code %q: %w", *r.Mode3A, err)
	}
	code := uint32(v)
	return &code, nil
}
