package migration

import (
	"slices"
	"strings"
)

// Sort returns a new slice of migrations in ascending string order of Version.
func Sort(migrations []Migration) []Migration {
	sorted := slices.Clone(migrations)

	slices.SortStableFunc(sorted, func(a, b Migration) int {
		return strings.Compare(a.Version, b.Version)
	})

	return sorted
}

// Reverse returns a new slice of migrations in descending string order of Version.
func Reverse(migrations []Migration) []Migration {
	sorted := Sort(migrations)
	slices.Reverse(sorted)

	return sorted
}
