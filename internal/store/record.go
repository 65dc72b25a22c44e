package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/shelflife/internal/database"
	"github.com/dukerupert/shelflife/internal/record"
)

// RecordStore is the SQL backend for record.Store. Records live in one table,
// partitioned by zone, with their fields encoded as JSON.
type RecordStore struct {
	db      *sql.DB
	dialect database.Dialect
	zone    string
	now     func() time.Time
}

var _ record.Store = (*RecordStore)(nil)

func NewRecordStore(db *sql.DB, dialect database.Dialect, zone string) *RecordStore {
	return &RecordStore{db: db, dialect: dialect, zone: zone, now: time.Now}
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const recordColumns = `record_key, record_type, change_tag, fields, created_at, modified_at`

func (s *RecordStore) Query(ctx context.Context, t record.Type, pred record.Predicate) ([]*record.Record, error) {
	rows, err := s.db.QueryContext(ctx, bind(s.dialect,
		`SELECT `+recordColumns+` FROM records WHERE zone = ? AND record_type = ? ORDER BY record_key`),
		s.zone, string(t),
	)
	if err != nil {
		return nil, fmt.Errorf("query %s records: %w", t, err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("query %s records: %w", t, err)
	}
	if pred.IsAll() {
		return records, nil
	}
	matched := records[:0]
	for _, r := range records {
		if pred.Match(r) {
			matched = append(matched, r)
		}
	}
	return matched, nil
}

func (s *RecordStore) FetchByKey(ctx context.Context, key record.Key) (*record.Record, error) {
	r, err := s.fetch(ctx, s.db, key)
	if err != nil {
		return nil, fmt.Errorf("fetch record %s: %w", key, err)
	}
	return r, nil
}

// FetchByKeys returns the existing records among keys, in request order.
func (s *RecordStore) FetchByKeys(ctx context.Context, keys []record.Key) ([]*record.Record, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(keys)+1)
	args = append(args, s.zone)
	for _, k := range keys {
		args = append(args, string(k))
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(keys)), ", ")

	rows, err := s.db.QueryContext(ctx, bind(s.dialect,
		`SELECT `+recordColumns+` FROM records WHERE zone = ? AND record_key IN (`+placeholders+`)`),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch records: %w", err)
	}
	defer rows.Close()

	found, err := scanRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("fetch records: %w", err)
	}
	byKey := make(map[record.Key]*record.Record, len(found))
	for _, r := range found {
		byKey[r.Key] = r
	}
	out := make([]*record.Record, 0, len(found))
	for _, k := range keys {
		if r, ok := byKey[k]; ok {
			out = append(out, r)
			delete(byKey, k)
		}
	}
	return out, nil
}

// Save writes records in one transaction. Any conflict rolls back the whole batch.
func (s *RecordStore) Save(ctx context.Context, records []*record.Record, policy record.SavePolicy) ([]*record.Record, error) {
	var saved []*record.Record
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		saved, err = s.save(ctx, tx, records, policy)
		return err
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// Delete removes keys and returns the ones that existed.
func (s *RecordStore) Delete(ctx context.Context, keys []record.Key) ([]record.Key, error) {
	var deleted []record.Key
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		deleted, err = s.delete(ctx, tx, keys)
		return err
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func (s *RecordStore) Modify(ctx context.Context, save []*record.Record, del []record.Key, policy record.SavePolicy) ([]*record.Record, []record.Key, error) {
	var (
		saved   []*record.Record
		deleted []record.Key
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		if saved, err = s.save(ctx, tx, save, policy); err != nil {
			return err
		}
		deleted, err = s.delete(ctx, tx, del)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return saved, deleted, nil
}

func (s *RecordStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *RecordStore) save(ctx context.Context, q queryer, records []*record.Record, policy record.SavePolicy) ([]*record.Record, error) {
	saved := make([]*record.Record, 0, len(records))
	for _, in := range records {
		stored, err := s.fetchForUpdate(ctx, q, in.Key)
		if err != nil {
			return nil, fmt.Errorf("save %s: %w", in.Key, err)
		}
		out, err := record.Merge(stored, in, policy)
		if err != nil {
			return nil, err
		}

		now := s.now().UTC()
		out.ChangeTag = uuid.NewString()
		out.ModifiedAt = now
		if out.CreatedAt.IsZero() {
			out.CreatedAt = now
		}
		fields, err := json.Marshal(out.Fields)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", in.Key, err)
		}

		_, err = q.ExecContext(ctx, bind(s.dialect,
			`INSERT INTO records (zone, record_key, record_type, change_tag, fields, created_at, modified_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (zone, record_key) DO UPDATE SET
			   record_type = excluded.record_type,
			   change_tag = excluded.change_tag,
			   fields = excluded.fields,
			   modified_at = excluded.modified_at`),
			s.zone, string(out.Key), string(out.Type), out.ChangeTag, string(fields),
			formatTime(out.CreatedAt), formatTime(out.ModifiedAt),
		)
		if err != nil {
			return nil, fmt.Errorf("save %s: %w", in.Key, err)
		}
		saved = append(saved, out)
	}
	return saved, nil
}

func (s *RecordStore) delete(ctx context.Context, q queryer, keys []record.Key) ([]record.Key, error) {
	var deleted []record.Key
	for _, k := range keys {
		res, err := q.ExecContext(ctx, bind(s.dialect, `DELETE FROM records WHERE zone = ? AND record_key = ?`), s.zone, string(k))
		if err != nil {
			return nil, fmt.Errorf("delete %s: %w", k, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			deleted = append(deleted, k)
		}
	}
	return deleted, nil
}

func (s *RecordStore) fetch(ctx context.Context, q queryer, key record.Key) (*record.Record, error) {
	return s.fetchRow(ctx, q, key, "")
}

// fetchForUpdate locks the row on postgres so two overlapping changed-keys
// saves merge one after the other. SQLite write transactions already start
// IMMEDIATE and hold the database lock.
func (s *RecordStore) fetchForUpdate(ctx context.Context, q queryer, key record.Key) (*record.Record, error) {
	if s.dialect == database.Postgres {
		return s.fetchRow(ctx, q, key, " FOR UPDATE")
	}
	return s.fetchRow(ctx, q, key, "")
}

func (s *RecordStore) fetchRow(ctx context.Context, q queryer, key record.Key, suffix string) (*record.Record, error) {
	row := q.QueryRowContext(ctx, bind(s.dialect,
		`SELECT `+recordColumns+` FROM records WHERE zone = ? AND record_key = ?`+suffix),
		s.zone, string(key),
	)
	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*record.Record, error) {
	var (
		key, typ, tag, fields string
		created, modified     string
	)
	if err := row.Scan(&key, &typ, &tag, &fields, &created, &modified); err != nil {
		return nil, err
	}
	r := record.New(record.Type(typ), record.Key(key))
	if err := json.Unmarshal([]byte(fields), &r.Fields); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	r.ChangeTag = tag
	r.CreatedAt = parseTime(created)
	r.ModifiedAt = parseTime(modified)
	return r, nil
}

func scanRecords(rows *sql.Rows) ([]*record.Record, error) {
	var records []*record.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
