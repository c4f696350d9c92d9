package groundtruth

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/awendland/transcepta-anyinvoice-v2/internal/invoice"
)

// TableName is the table ground-truth rows are loaded into.
const TableName = "prod_data"

// ColumnInfo describes one column of the loaded table.
type ColumnInfo struct {
	Name string
	Type string
}

// Table is the queryable ground-truth source, backed by SQLite.
// It is safe for concurrent use.
type Table struct {
	db        *sql.DB
	batchSize int
}

// OpenTable opens a SQLite database for ground truth. An empty dsn opens a
// private in-memory database that lives until Close.
func OpenTable(ctx context.Context, dsn string) (*Table, error) {
	if dsn == "" {
		dsn = fmt.Sprintf("file:groundtruth-%s?mode=memory&cache=shared", uuid.NewString())
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// An in-memory database is dropped with its last connection, so idle
	// connections are never reaped.
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to sqlite: %w", err)
	}

	return &Table{db: db, batchSize: DefaultBatchSize}, nil
}

// NewTable wraps an already opened database that contains TableName.
func NewTable(db *sql.DB) *Table {
	return &Table{db: db, batchSize: DefaultBatchSize}
}

// Close closes the database
func (t *Table) Close() error {
	return t.db.Close()
}

// LoadFile loads a JSON ground-truth file. See Load.
func (t *Table) LoadFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening ground truth: %w", err)
	}
	defer f.Close()

	if err := t.Load(ctx, f); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Load reads a JSON array of flat objects into a fresh TableName table.
// Columns are the union of object keys in first-seen order, and their types
// are inferred from the values. The result must match Columns, otherwise a
// *SchemaMismatchError is returned and nothing is kept.
func (t *Table) Load(ctx context.Context, r io.Reader) error {
	rows, columns, err := decodeRows(r)
	if err != nil {
		return err
	}
	if err := checkColumns(columns); err != nil {
		return err
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(TableName)); err != nil {
		return fmt.Errorf("dropping table: %w", err)
	}

	defs := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = quoteIdent(col) + " " + inferType(rows, col)
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(TableName), strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("creating table: %w", err)
	}
	index := fmt.Sprintf("CREATE INDEX %s ON %s (%s)",
		quoteIdent("idx_"+TableName+"_id"), quoteIdent(TableName), quoteIdent(IDColumn))
	if _, err := tx.ExecContext(ctx, index); err != nil {
		return fmt.Errorf("creating index: %w", err)
	}

	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = quoteIdent(col)
		placeholders[i] = "?"
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(TableName), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(columns))
	for n, row := range rows {
		for i, col := range columns {
			args[i] = row[col].value()
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("inserting row %d: %w", n, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing ground truth: %w", err)
	}

	slog.Debug("loaded ground truth", "rows", len(rows), "columns", len(columns))
	return nil
}

// Describe lists the columns of the loaded table with their declared types.
func (t *Table) Describe(ctx context.Context) ([]ColumnInfo, error) {
	rows, err := t.db.QueryContext(ctx, "SELECT name, type FROM pragma_table_info(?)", TableName)
	if err != nil {
		return nil, fmt.Errorf("describing table: %w", err)
	}
	defer rows.Close()

	var cols []ColumnInfo
	for rows.Next() {
		var c ColumnInfo
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return nil, fmt.Errorf("scanning column info: %w", err)
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

// Count returns the number of ground-truth rows.
func (t *Table) Count(ctx context.Context) (int, error) {
	var n int
	if err := t.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoteIdent(TableName)).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting rows: %w", err)
	}
	return n, nil
}

// Lookup returns every row of one document, in table order.
func (t *Table) Lookup(ctx context.Context, id string) ([]invoice.DenormalizedRecord, error) {
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = ? ORDER BY rowid", quoteIdent(TableName), quoteIdent(IDColumn))
	rows, err := t.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("querying ground truth: %w", err)
	}
	return Collect(Records(rows, t.batchSize))
}

// jsonValue is one decoded JSON value of a ground-truth object.
type jsonValue struct {
	raw json.RawMessage
}

func (v jsonValue) kind() byte {
	if len(v.raw) == 0 {
		return 'n'
	}
	switch c := v.raw[0]; {
	case c == '"':
		return 's'
	case c == '{' || c == '[':
		return 'o'
	case c == 't' || c == 'f':
		return 'b'
	case c == 'n':
		return 'n'
	default:
		return 'd'
	}
}

// value converts the JSON value into an SQLite driver argument.
func (v jsonValue) value() any {
	switch v.kind() {
	case 's':
		var s string
		if err := json.Unmarshal(v.raw, &s); err != nil {
			return string(v.raw)
		}
		return s
	case 'o':
		return string(v.raw)
	case 'b':
		if v.raw[0] == 't' {
			return int64(1)
		}
		return int64(0)
	case 'd':
		num := json.Number(v.raw)
		if n, err := num.Int64(); err == nil {
			return n
		}
		if f, err := num.Float64(); err == nil {
			return f
		}
		return string(v.raw)
	default:
		return nil
	}
}

// decodeRows streams the JSON array so object key order is preserved.
func decodeRows(r io.Reader) ([]map[string]jsonValue, []string, error) {
	dec := json.NewDecoder(r)
	if err := expectDelim(dec, '['); err != nil {
		return nil, nil, err
	}

	var (
		rows    []map[string]jsonValue
		columns []string
		known   = map[string]bool{}
	)
	for dec.More() {
		if err := expectDelim(dec, '{'); err != nil {
			return nil, nil, fmt.Errorf("record %d: %w", len(rows), err)
		}
		row := map[string]jsonValue{}
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return nil, nil, fmt.Errorf("record %d: reading key: %w", len(rows), err)
			}
			key, ok := tok.(string)
			if !ok {
				return nil, nil, fmt.Errorf("record %d: unexpected token %v", len(rows), tok)
			}
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return nil, nil, fmt.Errorf("record %d: reading %s: %w", len(rows), key, err)
			}
			if raw[0] == '{' || raw[0] == '[' {
				var buf bytes.Buffer
				if err := json.Compact(&buf, raw); err == nil {
					raw = buf.Bytes()
				}
			}
			row[key] = jsonValue{raw: raw}
			if !known[key] {
				known[key] = true
				columns = append(columns, key)
			}
		}
		if err := expectDelim(dec, '}'); err != nil {
			return nil, nil, fmt.Errorf("record %d: %w", len(rows), err)
		}
		rows = append(rows, row)
	}
	if err := expectDelim(dec, ']'); err != nil {
		return nil, nil, err
	}
	return rows, columns, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("decoding ground truth: unexpected end of input, want %v", want)
		}
		return fmt.Errorf("decoding ground truth: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("decoding ground truth: got %v, want %v", tok, want)
	}
	return nil
}

// inferType picks a declared column type from the non-null values.
func inferType(rows []map[string]jsonValue, col string) string {
	var numbers, integers, others int
	for _, row := range rows {
		v, ok := row[col]
		if !ok {
			continue
		}
		switch v.kind() {
		case 'd':
			numbers++
			if _, err := json.Number(v.raw).Int64(); err == nil {
				integers++
			}
		case 'b':
			numbers++
			integers++
		case 'n':
		default:
			others++
		}
	}
	switch {
	case others > 0 || numbers == 0:
		return "TEXT"
	case integers == numbers:
		return "INTEGER"
	default:
		return "REAL"
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
