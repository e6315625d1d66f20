package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoinOrNone(t *testing.T) {
	assert.Equal(t, "(none)", JoinOrNone(nil))
	assert.Equal(t, "(none)", JoinOrNone([]string{}))
	assert.Equal(t, "pg-main", JoinOrNone([]string{"pg-main"}))
	assert.Equal(t, "pg-main, pg-replica", JoinOrNone([]string{"pg-main", "pg-replica"}))
}

func TestJoinOrDefault(t *testing.T) {
	assert.Equal(t, "-", JoinOrDefault(nil, "-"))
	assert.Equal(t, "barman, postgres", JoinOrDefault([]string{"barman", "postgres"}, "-"))
}

func TestPluralize(t *testing.T) {
	assert.Equal(t, "servers", Pluralize(0, "server", "servers"))
	assert.Equal(t, "server", Pluralize(1, "server", "servers"))
	assert.Equal(t, "servers", Pluralize(2, "server", "servers"))
}

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "key", 3},
		{"facts", "", 5},
		{"server", "server", 0},
		{"server", "servers", 1},
		{"pg-main", "pg-mian", 2},
		{"kitten", "sitting", 3},
	}

	for _, tt := range tests {
		t.Run(tt.a+"->"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, LevenshteinDistance(tt.a, tt.b))
			assert.Equal(t, tt.want, LevenshteinDistance(tt.b, tt.a))
		})
	}
}

func TestSuggestSimilar(t *testing.T) {
	commands := []string{"key", "facts", "render", "apply", "check", "servers", "server", "doctor", "version"}

	tests := []struct {
		name  string
		input string
		max   int
		want  []string
	}{
		{"typo", "aply", 3, []string{"apply"}},
		{"closest first", "sever", 3, []string{"server", "servers"}},
		{"max trims", "sever", 1, []string{"server"}},
		{"case insensitive", "CHECK", 3, []string{"check"}},
		{"nothing close", "xyz", 3, nil},
		{"empty input", "", 3, nil},
		{"zero max", "aply", 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SuggestSimilar(tt.input, commands, tt.max))
		})
	}
}

func TestSuggestSimilar_ServerNames(t *testing.T) {
	assert.Equal(t, []string{"pg-main"}, SuggestSimilar("pg-mian", []string{"pg-main", "pg-replica"}, 3))
	assert.Nil(t, SuggestSimilar("pg-main", nil, 3))
}
