package sqlite

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// GenerateSQLScript renders the schema of the active database from
// sqlite_master, followed by INSERT statements when includeData is set. The
// ledger table is left out.
func (r *Repository) GenerateSQLScript(ctx context.Context, includeData bool) (string, error) {
	db, err := r.open(ctx)
	if err != nil {
		return "", err
	}

	objects, err := r.schemaObjects(ctx, db)
	if err != nil {
		return "", err
	}

	var b strings.Builder

	for _, obj := range objects {
		b.WriteString(obj.sql)
		b.WriteString(";\n\n")
	}

	if !includeData {
		return b.String(), nil
	}

	for _, obj := range objects {
		if obj.kind != "table" {
			continue
		}

		if err := dumpRows(ctx, db, obj.name, &b); err != nil {
			return "", err
		}
	}

	return b.String(), nil
}

type schemaObject struct {
	kind string
	name string
	sql  string
}

func (r *Repository) schemaObjects(ctx context.Context, db *sql.DB) ([]schemaObject, error) {
	rows, err := db.QueryContext(ctx, `SELECT type, name, sql FROM sqlite_master
WHERE sql IS NOT NULL AND name NOT LIKE 'sqlite_%' AND tbl_name <> ?
ORDER BY CASE type WHEN 'table' THEN 0 WHEN 'view' THEN 1 WHEN 'index' THEN 2 ELSE 3 END, rowid`, r.cfg.Table)
	if err != nil {
		return nil, fmt.Errorf("reading schema: %w", err)
	}
	defer rows.Close()

	var objects []schemaObject

	for rows.Next() {
		var obj schemaObject
		if err := rows.Scan(&obj.kind, &obj.name, &obj.sql); err != nil {
			return nil, fmt.Errorf("scanning schema row: %w", err)
		}

		objects = append(objects, obj)
	}

	return objects, rows.Err()
}

func dumpRows(ctx context.Context, db *sql.DB, table string, b *strings.Builder) error {
	rows, err := db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(table))
	if err != nil {
		return fmt.Errorf("reading rows of %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("reading columns of %s: %w", table, err)
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
	}

	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES (", quoteIdent(table), strings.Join(quoted, ", "))

	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))

	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("scanning row of %s: %w", table, err)
		}

		literals := make([]string, len(values))
		for i, v := range values {
			literals[i] = literal(v)
		}

		b.WriteString(prefix)
		b.WriteString(strings.Join(literals, ", "))
		b.WriteString(");\n")
	}

	return rows.Err()
}

// literal renders a scanned value as a SQLite literal.
func literal(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		if val {
			return "1"
		}

		return "0"
	case []byte:
		return "X'" + hex.EncodeToString(val) + "'"
	case time.Time:
		return quoteString(val.Format(time.RFC3339Nano))
	case string:
		return quoteString(val)
	default:
		return quoteString(fmt.Sprint(val))
	}
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
