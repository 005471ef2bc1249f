package parser_test

import (
	"testing"

	pg_query "github.com/pganalyze/pg_query_go/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/mite/internal/parser"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		sql       string
		wantErr   bool
		wantStmts int
		checkNode func(t *testing.T, result *parser.ParseResult)
	}{
		{
			name:      "valid CREATE TABLE returns one statement",
			sql:       "CREATE TABLE users (id SERIAL PRIMARY KEY, name TEXT NOT NULL);",
			wantStmts: 1,
			checkNode: func(t *testing.T, result *parser.ParseResult) {
				t.Helper()
				_, ok := result.Stmts[0].Stmt.Node.(*pg_query.Node_CreateStmt)
				assert.True(t, ok, "expected CreateStmt node")
			},
		},
		{
			name:      "multi-statement SQL returns correct count",
			sql:       "CREATE TABLE a (id INT); CREATE TABLE b (id INT); CREATE TABLE c (id INT);",
			wantStmts: 3,
		},
		{
			name:    "invalid SQL returns error",
			sql:     "SELECT * FROM WHERE;",
			wantErr: true,
		},
		{
			name:      "whitespace-only returns zero statements",
			sql:       "   \n\t  ",
			wantStmts: 0,
			checkNode: func(t *testing.T, result *parser.ParseResult) {
				t.Helper()
				assert.Equal(t, "   \n\t  ", result.SQL, "original SQL preserved")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result, err := parser.Parse(tt.sql)

			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, result)

				return
			}

			require.NoError(t, err)
			require.NotNil(t, result)
			assert.Len(t, result.Stmts, tt.wantStmts)

			if tt.checkNode != nil {
				tt.checkNode(t, result)
			}
		})
	}
}

func TestSplit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		sql   string
		check func(t *testing.T, stmts []string)
	}{
		{
			name: "splits on statement boundaries",
			sql:  "CREATE TABLE a (id INT);\nCREATE TABLE b (id INT);",
			check: func(t *testing.T, stmts []string) {
				t.Helper()
				require.Len(t, stmts, 2)
				assert.Contains(t, stmts[0], "CREATE TABLE a")
				assert.Contains(t, stmts[1], "CREATE TABLE b")
			},
		},
		{
			name: "semicolons inside literals and function bodies do not split",
			sql: `INSERT INTO notes (body) VALUES ('a; b');
CREATE FUNCTION f() RETURNS void AS $$ BEGIN PERFORM 1; END; $$ LANGUAGE plpgsql;`,
			check: func(t *testing.T, stmts []string) {
				t.Helper()
				require.Len(t, stmts, 2)
				assert.Contains(t, stmts[0], "'a; b'")
				assert.Contains(t, stmts[1], "PERFORM 1; END;")
			},
		},
		{
			name: "empty script yields nothing",
			sql:  "  \n ",
			check: func(t *testing.T, stmts []string) {
				t.Helper()
				assert.Empty(t, stmts)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			stmts, err := parser.Split(tt.sql)
			require.NoError(t, err)

			tt.check(t, stmts)
		})
	}
}

func TestContainsConcurrentIndex(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		sql         string
		want        bool
		errContains string
	}{
		{
			name: "concurrent index",
			sql:  "CREATE INDEX CONCURRENTLY idx_users_email ON users (email);",
			want: true,
		},
		{
			name: "regular index",
			sql:  "CREATE INDEX idx_users_email ON users (email);",
		},
		{
			name: "concurrent index after other statements",
			sql:  "ALTER TABLE users ADD COLUMN email TEXT;\nCREATE UNIQUE INDEX CONCURRENTLY idx ON users (email);",
			want: true,
		},
		{
			name: "empty SQL",
			sql:  "",
		},
		{
			name:        "invalid SQL",
			sql:         "NOT VALID SQL ;;; @@@ !!!",
			errContains: "parsing SQL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parser.ContainsConcurrentIndex(tt.sql)

			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
