package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"flight_assoc/internal/buffer"
	"flight_assoc/internal/models"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// associationWriter writes one run's results inside a single transaction
type associationWriter struct {
	tx    *sql.Tx
	stmts map[string]*sql.Stmt // table + columns -> UPDATE statement
}

func newAssociationWriter(ctx context.Context, db *sql.DB) (*associationWriter, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &associationWriter{tx: tx, stmts: make(map[string]*sql.Stmt)}, nil
}

func validTable(table string) bool {
	for _, c := range models.Contents {
		if models.TableName(c) == table {
			return true
		}
	}
	return false
}

// UpdateBuffer writes rows [from, to) of every column of buf except the key
// column, matching table rows by the key column
func (w *associationWriter) UpdateBuffer(ctx context.Context, table, keyColumn string, buf *buffer.Buffer, from, to int) error {
	if !validTable(table) {
		return fmt.Errorf("%w: table %q", ErrUnknownContent, table)
	}
	key, ok := buf.Column(keyColumn)
	if !ok {
		return fmt.Errorf("key column %q not in buffer", keyColumn)
	}

	var names []string
	var cols []buffer.Column
	for _, name := range buf.Names() {
		if name == keyColumn {
			continue
		}
		if !models.IsColumn(name) {
			return fmt.Errorf("unknown column %q", name)
		}
		c, _ := buf.Column(name)
		names = append(names, name)
		cols = append(cols, c)
	}
	if len(names) == 0 || from >= to {
		return nil
	}

	stmt, err := w.updateStmt(ctx, table, keyColumn, names)
	if err != nil {
		return err
	}

	args := make([]any, len(cols)+1)
	for i := from; i < to; i++ {
		if key.IsNull(i) {
			return fmt.Errorf("row %d of %s has a null %s", i, table, keyColumn)
		}
		for j, c := range cols {
			args[j] = buffer.ValueAt(c, i)
		}
		args[len(cols)] = buffer.ValueAt(key, i)

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to update %s row %d: %w", table, i, err)
		}
	}

	return nil
}

func (w *associationWriter) updateStmt(ctx context.Context, table, keyColumn string, names []string) (*sql.Stmt, error) {
	id := table + ":" + strings.Join(names, ",")
	if stmt, ok := w.stmts[id]; ok {
		return stmt, nil
	}

	sets := make([]string, len(names))
	for i, name := range names {
		sets[i] = name + " = ?"
	}
	query := "UPDATE " + table + " SET " + strings.Join(sets, ", ") + " WHERE " + keyColumn + " = ?"

	stmt, err := w.tx.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	w.stmts[id] = stmt
	return stmt, nil
}

// SaveTargets replaces the stored targets with the given summaries
func (w *associationWriter) SaveTargets(ctx context.Context, targets []models.TargetSummary) error {
	if _, err := w.tx.ExecContext(ctx, "DELETE FROM targets"); err != nil {
		return fmt.Errorf("failed to clear targets: %w", err)
	}

	stmt, err := w.tx.PrepareContext(ctx, `INSERT INTO targets (
		utn, run_id, use_in_eval, comment, addresses, idents, mode_a_codes,
		time_begin, time_end, mode_c_min, mode_c_max, content_counts, mops_versions
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := range targets {
		t := &targets[i]

		addresses, err := jsonList(t.Addresses)
		if err != nil {
			return err
		}
		idents, err := jsonList(t.Idents)
		if err != nil {
			return err
		}
		modeAs, err := jsonList(t.ModeACodes)
		if err != nil {
			return err
		}
		counts, err := json.MarshalToString(t.ContentCounts)
		if err != nil {
			return fmt.Errorf("failed to encode content counts of target %d: %w", t.UTN, err)
		}

		var comment, mops sql.NullString
		if t.Comment != "" {
			comment = sql.NullString{String: t.Comment, Valid: true}
		}
		if len(t.MOPSVersions) > 0 {
			// widened so the list is not encoded as base64 bytes
			versions := make([]int, len(t.MOPSVersions))
			for j, v := range t.MOPSVersions {
				versions[j] = int(v)
			}
			s, err := jsonList(versions)
			if err != nil {
				return err
			}
			mops = sql.NullString{String: s, Valid: true}
		}

		var begin, end sql.NullTime
		if t.HasTimes {
			begin = sql.NullTime{Time: t.TimeBegin.UTC(), Valid: true}
			end = sql.NullTime{Time: t.TimeEnd.UTC(), Valid: true}
		}
		var cMin, cMax sql.NullFloat64
		if t.HasModeC {
			cMin = sql.NullFloat64{Float64: t.ModeCMin, Valid: true}
			cMax = sql.NullFloat64{Float64: t.ModeCMax, Valid: true}
		}

		if _, err := stmt.ExecContext(ctx,
			t.UTN, t.RunID, t.UseInEval, comment, addresses, idents, modeAs,
			begin, end, cMin, cMax, counts, mops,
		); err != nil {
			return fmt.Errorf("failed to insert target %d: %w", t.UTN, err)
		}
	}

	return nil
}

// jsonList encodes a list, writing an empty array for nil
func jsonList[T any](list []T) (string, error) {
	if list == nil {
		list = []T{}
	}
	s, err := json.MarshalToString(list)
	if err != nil {
		return "", fmt.Errorf("failed to encode target list: %w", err)
	}
	return s, nil
}

func (w *associationWriter) closeStmts() {
	for _, stmt := range w.stmts {
		stmt.Close()
	}
	w.stmts = nil
}

// Commit makes the written associations visible
func (w *associationWriter) Commit() error {
	w.closeStmts()
	if err := w.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback discards everything written so far
func (w *associationWriter) Rollback() error {
	w.closeStmts()
	if err := w.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}
