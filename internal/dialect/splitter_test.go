package dialect_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/mite/internal/dialect"
)

func TestGoBatch_Split(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		script string
		want   []string
	}{
		{
			name:   "splits on GO lines",
			script: "CREATE TABLE a (id INT)\nGO\nCREATE TABLE b (id INT)\n  go  \n",
			want:   []string{"CREATE TABLE a (id INT)", "CREATE TABLE b (id INT)"},
		},
		{
			name:   "GO inside a line is not a separator",
			script: "SELECT 'GO' AS word\nGO",
			want:   []string{"SELECT 'GO' AS word"},
		},
		{
			name:   "identifiers starting with go are kept",
			script: "CREATE TABLE goals (id INT)",
			want:   []string{"CREATE TABLE goals (id INT)"},
		},
		{
			name:   "empty script",
			script: "\nGO\n",
			want:   []string{},
		},
		{
			name:   "CRLF line endings",
			script: "CREATE TABLE a (id INT)\r\nGO\r\nCREATE TABLE b (id INT)\r\ngo \r\n",
			want:   []string{"CREATE TABLE a (id INT)", "CREATE TABLE b (id INT)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := dialect.GoBatch{}.Split(tt.script)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSemicolon_Split(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		script string
		want   []string
	}{
		{
			name:   "statements on their own lines",
			script: "CREATE TABLE a (id INT);\nINSERT INTO a VALUES (1);\n",
			want:   []string{"CREATE TABLE a (id INT)", "INSERT INTO a VALUES (1)"},
		},
		{
			name:   "semicolon inside a line is kept",
			script: "INSERT INTO notes VALUES ('a; b');",
			want:   []string{"INSERT INTO notes VALUES ('a; b')"},
		},
		{
			name:   "missing final semicolon",
			script: "CREATE TABLE a (id INT);\nCREATE TABLE b (id INT)",
			want:   []string{"CREATE TABLE a (id INT)", "CREATE TABLE b (id INT)"},
		},
		{
			name:   "CRLF line endings",
			script: "CREATE TABLE a (\r\n  id INT\r\n);\r\nINSERT INTO a VALUES (1);\r\n",
			want:   []string{"CREATE TABLE a (\r\n  id INT\r\n)", "INSERT INTO a VALUES (1)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := dialect.Semicolon{}.Split(tt.script)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"go", "GO", "semicolon", " postgres "} {
		s, err := dialect.Lookup(name)
		require.NoError(t, err, name)
		assert.NotNil(t, s)
	}

	_, err := dialect.Lookup("tsv")
	require.ErrorIs(t, err, dialect.ErrUnknownSplitter)
	assert.Contains(t, err.Error(), "go, postgres, semicolon")
}

func TestSplitterFunc(t *testing.T) {
	t.Parallel()

	var s dialect.Splitter = dialect.SplitterFunc(func(script string) ([]string, error) {
		return []string{script}, nil
	})

	got, err := s.Split("x")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, got)
}
