package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestTableName(t *testing.T) {
	assert.Equal(t, "data_cat062", TableName(ContentCAT062))
	assert.Equal(t, "data_reftraj", TableName(ContentRefTraj))
}

func TestIsTracked(t *testing.T) {
	tests := []struct {
		content string
		want    bool
	}{
		{content: ContentRefTraj, want: true},
		{content: ContentCAT062, want: true},
		{content: ContentCAT021, want: false},
		{content: ContentCAT020, want: false},
		{content: ContentCAT048, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTracked(tt.content))
			assert.True(t, IsContent(tt.content))
		})
	}
}

func TestReportRecord_Address(t *testing.T) {
	tests := []struct {
		name    string
		acad    *string
		want    *uint32
		wantErr bool
	}{
		{name: "nil", acad: nil},
		{name: "blank", acad: strPtr("  ")},
		{name: "hex", acad: strPtr("4840D6"), want: func() *uint32 { v := uint32(0x4840D6); return &v }()},
		{name: "too wide", acad: strPtr("1000000"), wantErr: true},
		{name: "not hex", acad: strPtr("XYZ"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ReportRecord{ACAD: tt.acad}
			got, err := r.Address()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReportRecord_ModeA(t *testing.T) {
	r := ReportRecord{Mode3A: strPtr("7000")}
	got, err := r.ModeA()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, uint32(3584), *got)

	r.Mode3A = strPtr("7778")
	_, err = r.ModeA()
	assert.Error(t, err)
}

func TestTargetSummary_NumReports(t *testing.T) {
	s := TargetSummary{ContentCounts: map[string]int{ContentCAT021: 3, ContentCAT062: 4}}
	assert.Equal(t, 7, s.NumReports())
}
