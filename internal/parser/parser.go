package parser //nolint:revive // intentional: does not conflict with go/parser in internal package

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// ParseResult holds the parsed AST and original SQL.
type ParseResult struct {
	Stmts []*pg_query.RawStmt
	SQL   string
}

// Parse parses a PostgreSQL SQL string and returns the AST.
// Returns an empty result (zero statements) for empty or whitespace-only input.
func Parse(sql string) (*ParseResult, error) {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return &ParseResult{SQL: sql}, nil
	}

	tree, err := pg_query.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parsing SQL: %w", err)
	}

	return &ParseResult{
		Stmts: tree.Stmts,
		SQL:   sql,
	}, nil
}

// Split breaks a script into individual statements using the PostgreSQL
// scanner, so semicolons inside literals, comments and dollar-quoted bodies
// do not end a statement.
func Split(sql string) ([]string, error) {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return nil, nil
	}

	parts, err := pg_query.SplitWithScanner(trimmed, true)
	if err != nil {
		return nil, fmt.Errorf("splitting SQL: %w", err)
	}

	stmts := make([]string, 0, len(parts))

	for _, part := range parts {
		if strings.TrimSpace(part) != "" {
			stmts = append(stmts, part)
		}
	}

	return stmts, nil
}

// ContainsConcurrentIndex reports whether any statement is a
// CREATE INDEX CONCURRENTLY, which cannot run inside a transaction block.
func ContainsConcurrentIndex(sql string) (bool, error) {
	result, err := Parse(sql)
	if err != nil {
		return false, fmt.Errorf("parsing SQL for concurrent index detection: %w", err)
	}

	for _, stmt := range result.Stmts {
		node, ok := stmt.Stmt.Node.(*pg_query.Node_IndexStmt)
		if !ok {
			continue
		}

		if node.IndexStmt != nil && node.IndexStmt.Concurrent {
			return true, nil
		}
	}

	return false, nil
}
