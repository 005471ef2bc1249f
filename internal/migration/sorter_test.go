package migration_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aqasim81/mite/internal/migration"
)

func versions(ms []migration.Migration) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Version
	}

	return out
}

func TestSort(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{
			name:  "iso-like timestamps",
			input: []string{"2007", "2006", "2006-01"},
			want:  []string{"2006", "2006-01", "2007"},
		},
		{
			name:  "string order, not numeric order",
			input: []string{"10", "9", "100"},
			want:  []string{"10", "100", "9"},
		},
		{
			name:  "empty input",
			input: nil,
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ms := make([]migration.Migration, 0, len(tt.input))
			for _, v := range tt.input {
				ms = append(ms, migration.New(v, "", ""))
			}

			assert.Equal(t, tt.want, versions(migration.Sort(ms)))
		})
	}
}

func TestSort_doesNotModifyInput(t *testing.T) {
	t.Parallel()

	ms := []migration.Migration{migration.New("2", "", ""), migration.New("1", "", "")}

	_ = migration.Sort(ms)

	assert.Equal(t, []string{"2", "1"}, versions(ms))
}

func TestReverse(t *testing.T) {
	t.Parallel()

	ms := []migration.Migration{
		migration.New("2006-01", "", ""),
		migration.New("2007", "", ""),
		migration.New("2006", "", ""),
	}

	assert.Equal(t, []string{"2007", "2006-01", "2006"}, versions(migration.Reverse(ms)))
}
