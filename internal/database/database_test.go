package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"flight_assoc/internal/buffer"
	"flight_assoc/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "assoc.db"), true)
	require.NoError(t, err)
	require.NotNil(t, db)
	return db
}

func cleanupTestDB(t *testing.T, db *DB) {
	if db != nil {
		assert.NoError(t, db.Close())
	}
}

func ptr[T any](v T) *T { return &v }

func testRecords() []*models.ReportRecord {
	return []*models.ReportRecord{
		{
			RecNum:    2,
			DSID:      7,
			Timestamp: testStart.Add(time.Second),
			ACAD:      ptr("3C6586"),
			Mode3A:    ptr("1000"),
			ModeC:     ptr(10000.0),
			Latitude:  ptr(48.0),
			Longitude: ptr(11.0),
		},
		{
			RecNum:    1,
			DSID:      7,
			Timestamp: testStart,
			ACID:      ptr("DLH123"),
			TrackNum:  ptr(uint32(42)),
			TrackEnd:  ptr(true),
			Latitude:  ptr(48.1),
			Longitude: ptr(11.1),
			TRIHashes: ptr("a;b"),
		},
	}
}

func TestNew_Migrations(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	// already current
	assert.NoError(t, db.MigrateUp())
}

func TestReports_InsertAndLoad(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)
	ctx := context.Background()
	repo := db.Reports()

	populated, err := repo.IsTablePopulated(ctx, models.ContentCAT048)
	require.NoError(t, err)
	assert.False(t, populated)

	require.NoError(t, repo.InsertBatch(ctx, models.ContentCAT048, testRecords()))

	populated, err = repo.IsTablePopulated(ctx, models.ContentCAT048)
	require.NoError(t, err)
	assert.True(t, populated)

	buf, err := repo.LoadBuffer(ctx, models.ContentCAT048)
	require.NoError(t, err)
	require.Equal(t, 2, buf.Size())
	assert.Equal(t, models.Columns, namesInSchemaOrder(buf))

	recNums, ok := buffer.Get[uint64](buf, models.ColRecNum)
	require.True(t, ok)
	assert.Equal(t, uint64(1), recNums.Get(0), "ordered by timestamp")
	assert.Equal(t, uint64(2), recNums.Get(1))

	timestamps, ok := buffer.Get[time.Time](buf, models.ColTimestamp)
	require.True(t, ok)
	assert.True(t, testStart.Equal(timestamps.Get(0)))

	acads, ok := buffer.Get[uint32](buf, models.ColACAD)
	require.True(t, ok)
	assert.True(t, acads.IsNull(0))
	assert.Equal(t, uint32(0x3C6586), acads.Get(1))

	modeAs, ok := buffer.Get[uint32](buf, models.ColMode3A)
	require.True(t, ok)
	assert.Equal(t, uint32(0o1000), modeAs.Get(1))

	ends, ok := buffer.Get[bool](buf, models.ColTrackEnd)
	require.True(t, ok)
	assert.True(t, ends.Get(0))
	assert.True(t, ends.IsNull(1))

	hashes, ok := buffer.Get[string](buf, models.ColTRIHashes)
	require.True(t, ok)
	assert.Equal(t, "a;b", hashes.Get(0))

	utns, ok := buffer.Get[uint32](buf, models.ColUTN)
	require.True(t, ok)
	assert.True(t, utns.IsNull(0))
}

func namesInSchemaOrder(buf *buffer.Buffer) []string {
	var out []string
	for _, name := range models.Columns {
		if buf.Has(name) {
			out = append(out, name)
		}
	}
	return out
}

func TestReports_InsertBatch_Empty(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	assert.NoError(t, db.Reports().InsertBatch(context.Background(), models.ContentCAT021, nil))
}

func TestReports_UnknownContent(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)
	ctx := context.Background()

	err := db.Reports().InsertBatch(ctx, "CAT999", testRecords())
	assert.ErrorIs(t, err, ErrUnknownContent)

	_, err = db.Reports().LoadBuffer(ctx, "data_cat021; DROP TABLE targets")
	assert.ErrorIs(t, err, ErrUnknownContent)
}

func TestReports_InvalidAddress(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	records := []*models.ReportRecord{{RecNum: 1, Timestamp: testStart, ACAD: ptr("XYZ")}}
	assert.Error(t, db.Reports().InsertBatch(context.Background(), models.ContentCAT021, records))
}

func TestReports_LoadFromCSV(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)
	ctx := context.Background()

	dir := t.TempDir()
	part1 := filepath.Join(dir, "part1.csv")
	part2 := filepath.Join(dir, "part2.csv")
	require.NoError(t, os.WriteFile(part1, []byte(
		"rec_num,ds_id,line_id,timestamp,acad,acid,mode3a,mode_c,latitude,longitude,hash\n"+
			"1,3,0,2024-05-01T12:00:00Z,3C6586,DLH123  ,1000,10000,48.0,11.0,h1\n"+
			"2,3,0,2024-05-01T12:00:01Z,3C6586,,,,48.0,11.001,\n"), 0o644))
	require.NoError(t, os.WriteFile(part2, []byte(
		"rec_num,ds_id,line_id,timestamp,acad,latitude,longitude\n"+
			"3,3,1,2024-05-01T12:00:02Z,4840D6,48.5,11.5\n"), 0o644))

	n, err := db.Reports().LoadFromCSV(ctx, models.ContentCAT021, []string{part1, part2}, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	buf, err := db.Reports().LoadBuffer(ctx, models.ContentCAT021)
	require.NoError(t, err)
	require.Equal(t, 3, buf.Size())

	idents, ok := buffer.Get[string](buf, models.ColACID)
	require.True(t, ok)
	assert.Equal(t, "DLH123", idents.Get(0))
	assert.True(t, idents.IsNull(1))

	modeCs, ok := buffer.Get[float64](buf, models.ColModeC)
	require.True(t, ok)
	assert.Equal(t, 10000.0, modeCs.Get(0))
	assert.True(t, modeCs.IsNull(2))

	lines, ok := buffer.Get[uint8](buf, models.ColLineID)
	require.True(t, ok)
	assert.Equal(t, uint8(1), lines.Get(2))
}

func TestReports_LoadFromCSV_MissingFile(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	_, err := db.Reports().LoadFromCSV(context.Background(), models.ContentCAT021, []string{"/nonexistent.csv"}, 10)
	assert.Error(t, err)
}

// assocBuffer returns a buffer holding only the key and association columns
func assocBuffer(recs []uint64, utns []uint32) *buffer.Buffer {
	recNums := buffer.NewVector[uint64](0)
	utnCol := buffer.NewVector[uint32](0)
	for i, rec := range recs {
		recNums.Append(rec)
		utnCol.Append(utns[i])
	}
	buf := buffer.New()
	buf.Add(models.ColRecNum, recNums)
	buf.Add(models.ColUTN, utnCol)
	return buf
}

func queryUTNs(t *testing.T, db *DB, table string) map[uint64]*uint32 {
	t.Helper()
	rows, err := db.db.Query("SELECT rec_num, utn FROM " + table)
	require.NoError(t, err)
	defer rows.Close()

	out := make(map[uint64]*uint32)
	for rows.Next() {
		var rec int64
		var utn *int64
		require.NoError(t, rows.Scan(&rec, &utn))
		if utn != nil {
			out[uint64(rec)] = ptr(uint32(*utn))
		} else {
			out[uint64(rec)] = nil
		}
	}
	require.NoError(t, rows.Err())
	return out
}

func TestAssociationWriter_Commit(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)
	ctx := context.Background()

	require.NoError(t, db.Reports().InsertBatch(ctx, models.ContentCAT048, testRecords()))

	w, err := db.BeginAssociationWrite(ctx)
	require.NoError(t, err)

	buf := assocBuffer([]uint64{1, 2}, []uint32{0, 3})
	require.NoError(t, w.UpdateBuffer(ctx, "data_cat048", models.ColRecNum, buf, 0, 1))
	require.NoError(t, w.UpdateBuffer(ctx, "data_cat048", models.ColRecNum, buf, 1, 2))

	targets := []models.TargetSummary{
		{
			UTN:           0,
			RunID:         "run",
			UseInEval:     true,
			Addresses:     []uint32{0x3C6586},
			HasTimes:      true,
			TimeBegin:     testStart,
			TimeEnd:       testStart.Add(time.Minute),
			ContentCounts: map[string]int{models.ContentCAT048: 1},
			MOPSVersions:  []uint8{2},
		},
		{UTN: 3, RunID: "run", Comment: "Dubious Association"},
	}
	require.NoError(t, w.SaveTargets(ctx, targets))
	require.NoError(t, w.Commit())

	assert.Equal(t, map[uint64]*uint32{1: ptr(uint32(0)), 2: ptr(uint32(3))}, queryUTNs(t, db, "data_cat048"))

	var addresses, mops string
	var useInEval bool
	err = db.db.QueryRow("SELECT addresses, mops_versions, use_in_eval FROM targets WHERE utn = 0").Scan(&addresses, &mops, &useInEval)
	require.NoError(t, err)
	assert.JSONEq(t, "[3958150]", addresses)
	assert.JSONEq(t, "[2]", mops)
	assert.True(t, useInEval)

	var idents string
	var begin *time.Time
	err = db.db.QueryRow("SELECT idents, time_begin FROM targets WHERE utn = 3").Scan(&idents, &begin)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", idents)
	assert.Nil(t, begin)
}

func TestAssociationWriter_Rollback(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)
	ctx := context.Background()

	require.NoError(t, db.Reports().InsertBatch(ctx, models.ContentCAT048, testRecords()))

	w, err := db.BeginAssociationWrite(ctx)
	require.NoError(t, err)
	require.NoError(t, w.UpdateBuffer(ctx, "data_cat048", models.ColRecNum, assocBuffer([]uint64{1, 2}, []uint32{5, 5}), 0, 2))
	require.NoError(t, w.Rollback())

	assert.Equal(t, map[uint64]*uint32{1: nil, 2: nil}, queryUTNs(t, db, "data_cat048"))
}

func TestAssociationWriter_Validation(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)
	ctx := context.Background()

	w, err := db.BeginAssociationWrite(ctx)
	require.NoError(t, err)
	defer w.Rollback()

	buf := assocBuffer([]uint64{1}, []uint32{0})

	err = w.UpdateBuffer(ctx, "targets", models.ColRecNum, buf, 0, 1)
	assert.ErrorIs(t, err, ErrUnknownContent)

	err = w.UpdateBuffer(ctx, "data_cat048", "missing", buf, 0, 1)
	assert.Error(t, err)

	buf.Add("utn = 1; --", buffer.NewVector[uint32](1))
	err = w.UpdateBuffer(ctx, "data_cat048", models.ColRecNum, buf, 0, 1)
	assert.Error(t, err)
}
