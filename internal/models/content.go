package models

import "strings"

// Content types of surveillance data handled by the association engine
const (
	ContentRefTraj = "RefTraj" // reference trajectories
	ContentCAT062  = "CAT062"  // system tracker
	ContentCAT021  = "CAT021"  // ADS-B
	ContentCAT020  = "CAT020"  // multilateration
	ContentCAT048  = "CAT048"  // mono-radar
)

// Contents lists every supported content type
var Contents = []string{
	ContentRefTraj,
	ContentCAT062,
	ContentCAT021,
	ContentCAT020,
	ContentCAT048,
}

// Column names shared by all content tables and buffers
const (
	ColRecNum        = "rec_num"
	ColDSID          = "ds_id"
	ColLineID        = "line_id"
	ColTimestamp     = "timestamp"
	ColACAD          = "acad"
	ColACID          = "acid"
	ColTrackNum      = "track_num"
	ColTrackBegin    = "track_begin"
	ColTrackEnd      = "track_end"
	ColTrackCoasting = "track_coasting"
	ColMode3A        = "mode3a"
	ColMode3AGarbled = "mode3a_garbled"
	ColMode3AValid   = "mode3a_valid"
	ColModeC         = "mode_c"
	ColModeCValid    = "mode_c_valid"
	ColModeCMeasured = "mode_c_measured"
	ColLatitude      = "latitude"
	ColLongitude     = "longitude"
	ColMOPSVersion   = "mops_version"
	ColHash          = "hash"
	ColTRIHashes     = "tri_hashes"
	ColUTN           = "utn"
	ColAssocRefs     = "assoc_refs"
)

// Columns lists the columns of a content table in schema order
var Columns = []string{
	ColRecNum,
	ColDSID,
	ColLineID,
	ColTimestamp,
	ColACAD,
	ColACID,
	ColTrackNum,
	ColTrackBegin,
	ColTrackEnd,
	ColTrackCoasting,
	ColMode3A,
	ColMode3AGarbled,
	ColMode3AValid,
	ColModeC,
	ColModeCValid,
	ColModeCMeasured,
	ColLatitude,
	ColLongitude,
	ColMOPSVersion,
	ColHash,
	ColTRIHashes,
	ColUTN,
	ColAssocRefs,
}

// IsContent reports whether name is a supported content type
func IsContent(name string) bool {
	for _, c := range Contents {
		if c == name {
			return true
		}
	}
	return false
}

// IsColumn reports whether name is a known content table column
func IsColumn(name string) bool {
	for _, c := range Columns {
		if c == name {
			return true
		}
	}
	return false
}

// IsTracked reports whether the content type carries track numbers that are
// turned into targets before sensor association
func IsTracked(content string) bool {
	return content == ContentRefTraj || content == ContentCAT062
}

// TableName returns the database table holding the given content type
func TableName(content string) string {
	return "data_" + strings.ToLower(content)
}
