package database

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"flight_assoc/internal/buffer"
	"flight_assoc/internal/models"

	"github.com/dustin/go-humanize"
	"github.com/jszwec/csvutil"
)

// ErrUnknownContent is returned for content names without a table
var ErrUnknownContent = errors.New("unknown content")

// columnKinds maps every content table column to its buffer kind
var columnKinds = map[string]buffer.Kind{
	models.ColRecNum:        buffer.KindUint64,
	models.ColDSID:          buffer.KindUint32,
	models.ColLineID:        buffer.KindUint8,
	models.ColTimestamp:     buffer.KindTime,
	models.ColACAD:          buffer.KindUint32,
	models.ColACID:          buffer.KindString,
	models.ColTrackNum:      buffer.KindUint32,
	models.ColTrackBegin:    buffer.KindBool,
	models.ColTrackEnd:      buffer.KindBool,
	models.ColTrackCoasting: buffer.KindBool,
	models.ColMode3A:        buffer.KindUint32,
	models.ColMode3AGarbled: buffer.KindBool,
	models.ColMode3AValid:   buffer.KindBool,
	models.ColModeC:         buffer.KindFloat64,
	models.ColModeCValid:    buffer.KindBool,
	models.ColModeCMeasured: buffer.KindFloat64,
	models.ColLatitude:      buffer.KindFloat64,
	models.ColLongitude:     buffer.KindFloat64,
	models.ColMOPSVersion:   buffer.KindUint8,
	models.ColHash:          buffer.KindString,
	models.ColTRIHashes:     buffer.KindString,
	models.ColUTN:           buffer.KindUint32,
	models.ColAssocRefs:     buffer.KindString,
}

// ReportRepository reads and writes the target reports of the content tables
type ReportRepository interface {
	InsertBatch(ctx context.Context, content string, records []*models.ReportRecord) error
	IsTablePopulated(ctx context.Context, content string) (bool, error)
	LoadFromCSV(ctx context.Context, content string, csvPaths []string, batchSize int) (int, error)
	LoadBuffer(ctx context.Context, content string) (*buffer.Buffer, error)
}

type reportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) ReportRepository {
	return &reportRepository{db: db}
}

func contentTable(content string) (string, error) {
	if !models.IsContent(content) {
		return "", fmt.Errorf("%w: %q", ErrUnknownContent, content)
	}
	return models.TableName(content), nil
}

// InsertBatch inserts or replaces one or more reports in a single transaction
func (r *reportRepository) InsertBatch(ctx context.Context, content string, records []*models.ReportRecord) error {
	if len(records) == 0 {
		return nil
	}
	table, err := contentTable(content)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO `+table+` (
		rec_num, ds_id, line_id, timestamp, acad, acid, track_num, track_begin,
		track_end, track_coasting, mode3a, mode3a_garbled, mode3a_valid, mode_c,
		mode_c_valid, mode_c_measured, latitude, longitude, mops_version, hash,
		tri_hashes
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		address, err := rec.Address()
		if err != nil {
			return fmt.Errorf("record %d: %w", rec.RecNum, err)
		}
		modeA, err := rec.ModeA()
		if err != nil {
			return fmt.Errorf("record %d: %w", rec.RecNum, err)
		}

		if _, err := stmt.ExecContext(ctx,
			int64(rec.RecNum), rec.DSID, rec.LineID, rec.Timestamp.UTC(),
			address, rec.ACID, rec.TrackNum, rec.TrackBegin,
			rec.TrackEnd, rec.TrackCoasting, modeA, rec.Mode3AGarbled,
			rec.Mode3AValid, rec.ModeC, rec.ModeCValid, rec.ModeCMeasured,
			rec.Latitude, rec.Longitude, rec.MOPSVersion, rec.Hash,
			rec.TRIHashes,
		); err != nil {
			return fmt.Errorf("failed to insert record %d: %w", rec.RecNum, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *reportRepository) IsTablePopulated(ctx context.Context, content string) (bool, error) {
	table, err := contentTable(content)
	if err != nil {
		return false, err
	}

	var ignored int
	err = r.db.QueryRowContext(ctx, "SELECT 1 FROM "+table+" LIMIT 1").Scan(&ignored)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check %s table: %w", table, err)
	}
	return true, nil
}

// LoadFromCSV imports report CSV exports into the content table and returns
// the number of imported records. Files must carry a header row naming the
// report columns.
func (r *reportRepository) LoadFromCSV(ctx context.Context, content string, csvPaths []string, batchSize int) (int, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("invalid batch size %d", batchSize)
	}

	total := 0
	batch := make([]*models.ReportRecord, 0, batchSize)

	for _, csvPath := range csvPaths {
		n, err := r.loadFile(ctx, content, csvPath, &batch, batchSize)
		total += n
		if err != nil {
			return total, err
		}
	}

	if err := r.InsertBatch(ctx, content, batch); err != nil {
		return total, fmt.Errorf("failed to insert final batch: %w", err)
	}

	slog.Info("Imported reports", "content", content, "files", len(csvPaths), "records", humanize.Comma(int64(total)))

	return total, nil
}

func (r *reportRepository) loadFile(ctx context.Context, content, csvPath string, batch *[]*models.ReportRecord, batchSize int) (int, error) {
	file, err := os.Open(csvPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open CSV file %s: %w", csvPath, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	dec, err := csvutil.NewDecoder(reader)
	if err != nil {
		return 0, fmt.Errorf("failed to read CSV header from %s: %w", csvPath, err)
	}

	n := 0
	for {
		rec := new(models.ReportRecord)
		if err := dec.Decode(rec); err == io.EOF {
			break
		} else if err != nil {
			return n, fmt.Errorf("failed to decode CSV record from %s: %w", csvPath, err)
		}
		if rec.ACID != nil {
			ident := strings.TrimSpace(*rec.ACID)
			rec.ACID = &ident
		}

		*batch = append(*batch, rec)
		n++

		if len(*batch) >= batchSize {
			if err := r.InsertBatch(ctx, content, *batch); err != nil {
				return n, fmt.Errorf("failed to insert batch: %w", err)
			}
			*batch = (*batch)[:0]
		}
	}

	return n, nil
}

// LoadBuffer reads every column of a content table into a buffer ordered by
// timestamp and record number
func (r *reportRepository) LoadBuffer(ctx context.Context, content string) (*buffer.Buffer, error) {
	table, err := contentTable(content)
	if err != nil {
		return nil, err
	}

	query := "SELECT " + strings.Join(models.Columns, ", ") + " FROM " + table +
		" ORDER BY " + models.ColTimestamp + ", " + models.ColRecNum
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	buf := buffer.New()
	dest := make([]any, len(models.Columns))
	appends := make([]func(), len(models.Columns))
	for i, name := range models.Columns {
		col, d, appendFn := columnScanner(columnKinds[name])
		buf.Add(name, col)
		dest[i] = d
		appends[i] = appendFn
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		for _, fn := range appends {
			fn()
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", table, err)
	}

	slog.Info("Loaded reports", "content", content, "rows", humanize.Comma(int64(buf.Size())))

	return buf, nil
}

// columnScanner returns an empty column of the given kind, the scan
// destination for one row and a function appending the scanned value
func columnScanner(kind buffer.Kind) (buffer.Column, any, func()) {
	switch kind {
	case buffer.KindBool:
		v, n := buffer.NewVector[bool](0), new(sql.NullBool)
		return v, n, func() { appendValue(v, n.Valid, n.Bool) }
	case buffer.KindUint8:
		v, n := buffer.NewVector[uint8](0), new(sql.NullInt64)
		return v, n, func() { appendValue(v, n.Valid, uint8(n.Int64)) }
	case buffer.KindUint32:
		v, n := buffer.NewVector[uint32](0), new(sql.NullInt64)
		return v, n, func() { appendValue(v, n.Valid, uint32(n.Int64)) }
	case buffer.KindUint64:
		v, n := buffer.NewVector[uint64](0), new(sql.NullInt64)
		return v, n, func() { appendValue(v, n.Valid, uint64(n.Int64)) }
	case buffer.KindFloat64:
		v, n := buffer.NewVector[float64](0), new(sql.NullFloat64)
		return v, n, func() { appendValue(v, n.Valid, n.Float64) }
	case buffer.KindString:
		v, n := buffer.NewVector[string](0), new(sql.NullString)
		return v, n, func() { appendValue(v, n.Valid, n.String) }
	case buffer.KindTime:
		v, n := buffer.NewVector[time.Time](0), new(sql.NullTime)
		return v, n, func() { appendValue(v, n.Valid, n.Time.UTC()) }
	}
	panic(fmt.Sprintf("database: unsupported column kind %s", kind))
}

func appendValue[T buffer.Value](v *buffer.Vector[T], valid bool, val T) {
	if valid {
		v.Append(val)
	} else {
		v.AppendNull()
	}
}
