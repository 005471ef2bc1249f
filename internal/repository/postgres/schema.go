package postgres

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// DefaultTable is the ledger table used when none is configured.
const DefaultTable = "_migrations"

// ledgerSQL holds the statements for one ledger table.
type ledgerSQL struct {
	name   string // unquoted, possibly schema-qualified
	create string
	exists string
	drop   string
	read   string
	insert string
	upsert string
	delete string
}

// newLedgerSQL builds the statements for table, which may be schema-qualified.
func newLedgerSQL(table string) ledgerSQL {
	quoted := pgx.Identifier(strings.Split(table, ".")).Sanitize()

	return ledgerSQL{
		name: table,
		create: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    "key" TEXT PRIMARY KEY,
    hash  TEXT NOT NULL
)`, quoted),
		exists: `SELECT to_regclass($1) IS NOT NULL`,
		drop:   fmt.Sprintf(`DROP TABLE IF EXISTS %s`, quoted),
		read:   fmt.Sprintf(`SELECT "key", hash FROM %s`, quoted),
		insert: fmt.Sprintf(`INSERT INTO %s ("key", hash) VALUES ($1, $2)`, quoted),
		upsert: fmt.Sprintf(`INSERT INTO %s ("key", hash) VALUES ($1, $2)
ON CONFLICT ("key") DO UPDATE SET hash = EXCLUDED.hash`, quoted),
		delete: fmt.Sprintf(`DELETE FROM %s WHERE "key" = $1`, quoted),
	}
}

// regclass is the argument passed to to_regclass for the table.
func (l ledgerSQL) regclass() string {
	return pgx.Identifier(strings.Split(l.name, ".")).Sanitize()
}
