package ui

import (
	"testing"

	"github.com/charmbracelet/bubbles/table"
	"github.com/stretchr/testify/assert"
)

func TestNewTable(t *testing.T) {
	tbl := NewTable(
		[]TableColumn{{Title: "A", Width: 5}, {Title: "B", Width: 5}},
		[]table.Row{{"1", "2"}, {"3", "4"}},
	)
	assert.Len(t, tbl.Rows(), 2)
	assert.Len(t, tbl.Columns(), 2)
}

func TestRenderSimpleTable(t *testing.T) {
	assert.Empty(t, RenderSimpleTable([]TableColumn{{Title: "A", Width: 1}}, nil))

	out := RenderSimpleTable(
		[]TableColumn{{Title: "NAME", Width: 2}},
		[][]string{{"a-much-longer-name"}},
	)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "a-much-longer-name", "columns widen to fit")
}

func TestRenderServerTable(t *testing.T) {
	assert.Equal(t, "No servers configured", RenderServerTable(nil))

	out := RenderServerTable([]ServerRow{
		{Name: "server1", Active: true, Endpoint: "postgres@server1", Compression: "gzip"},
		{Name: "reports", Active: false, Endpoint: "postgres@reports:2222"},
		{Name: "broken", Active: true, Problem: "has no destination host"},
	})

	assert.Contains(t, out, "SERVER")
	assert.Contains(t, out, "postgres@server1")
	assert.Contains(t, out, "postgres@reports:2222")
	assert.Contains(t, out, "none")
	assert.Contains(t, out, SymbolSkipped)
	assert.Contains(t, out, SymbolFail)
	assert.Contains(t, out, "has no destination host")
}

func TestRenderKeyTable(t *testing.T) {
	assert.Equal(t, "No accounts configured", RenderKeyTable(nil))

	out := RenderKeyTable([]KeyRow{
		{Account: "barman", Status: "found", Fingerprint: "SHA256:abc"},
		{Account: "postgres", Status: "not_provisioned"},
	})
	assert.Contains(t, out, "SHA256:abc")
	assert.Contains(t, out, "not provisioned")
	assert.Contains(t, out, "-")
}
