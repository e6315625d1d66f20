package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// TableColumn defines a table column with name and width.
type TableColumn struct {
	Title string
	Width int
}

// NewTable creates a non-focused Bubbles table with the CLI's styling.
func NewTable(columns []TableColumn, rows []table.Row) table.Model {
	cols := make([]table.Column, len(columns))
	for i, c := range columns {
		cols[i] = table.Column{Title: c.Title, Width: c.Width}
	}

	t := table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithFocused(false),
		table.WithHeight(len(rows)+1), // +1 for header
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ColorMuted).
		BorderBottom(true).
		Bold(true).
		Foreground(ColorPrimary)
	s.Cell = s.Cell.Foreground(ColorPrimary)
	// Nothing is selectable in CLI output
	s.Selected = s.Cell

	t.SetStyles(s)
	return t
}

// RenderSimpleTable renders a table for plain CLI output. Column widths grow
// to fit the widest cell.
func RenderSimpleTable(columns []TableColumn, rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	cols := make([]TableColumn, len(columns))
	copy(cols, columns)
	for _, row := range rows {
		for i := range cols {
			if i < len(row) {
				if w := lipgloss.Width(row[i]); w > cols[i].Width {
					cols[i].Width = w
				}
			}
		}
	}

	tableRows := make([]table.Row, len(rows))
	for i, row := range rows {
		tableRows[i] = table.Row(row)
	}
	return NewTable(cols, tableRows).View()
}

// ServerRow is one configured server in `barmanctl servers`.
type ServerRow struct {
	Name        string
	Active      bool
	Endpoint    string
	Compression string
	Problem     string
}

// RenderServerTable renders the server list. Servers whose ssh_command
// couldn't be resolved show the problem instead of an endpoint.
func RenderServerTable(rows []ServerRow) string {
	if len(rows) == 0 {
		return "No servers configured"
	}

	cells := make([][]string, len(rows))
	for i, r := range rows {
		status := SymbolSuccess
		if !r.Active {
			status = SymbolSkipped
		}
		endpoint := r.Endpoint
		if r.Problem != "" {
			status = SymbolFail
			endpoint = r.Problem
		}
		compression := r.Compression
		if compression == "" {
			compression = "none"
		}
		cells[i] = []string{status, r.Name, endpoint, compression}
	}

	return RenderSimpleTable([]TableColumn{
		{Title: "", Width: 1},
		{Title: "SERVER", Width: 6},
		{Title: "SSH", Width: 3},
		{Title: "COMPRESSION", Width: 11},
	}, cells)
}

// KeyRow is one service account in `barmanctl facts`.
type KeyRow struct {
	Account     string
	Status      string
	Fingerprint string
}

// RenderKeyTable renders key status per account.
func RenderKeyTable(rows []KeyRow) string {
	if len(rows) == 0 {
		return "No accounts configured"
	}

	cells := make([][]string, len(rows))
	for i, r := range rows {
		fp := r.Fingerprint
		if fp == "" {
			fp = "-"
		}
		cells[i] = []string{r.Account, strings.ReplaceAll(r.Status, "_", " "), fp}
	}

	return RenderSimpleTable([]TableColumn{
		{Title: "ACCOUNT", Width: 7},
		{Title: "KEY", Width: 3},
		{Title: "FINGERPRINT", Width: 11},
	}, cells)
}
