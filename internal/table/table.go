// Package table renders small text tables with aligned, bordered columns.
// Cell content may contain ANSI escape sequences; column widths are computed
// from the visible text.
package table

import (
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Alignment controls how cell text is padded within its column.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
	AlignCenter
)

var ansiPattern = regexp.MustCompile("\x1b\\[[0-9;]*m")

// visibleWidth returns the width of a cell excluding ANSI escape sequences.
func visibleWidth(s string) int {
	return len(ansiPattern.ReplaceAllString(s, ""))
}

// Table accumulates rows and renders them with a bordered layout.
type Table struct {
	writer          io.Writer
	header          []string
	rows            [][]string
	columnAlignment []Alignment
	headerAlignment []Alignment
}

// NewTable creates a table that renders to the given writer.
func NewTable(writer io.Writer) *Table {
	return &Table{writer: writer}
}

// WithHeader sets the header row.
func (t *Table) WithHeader(header []string) *Table {
	t.header = header
	return t
}

// WithColumnAlignment sets per-column alignment for body rows.
func (t *Table) WithColumnAlignment(alignment []Alignment) *Table {
	t.columnAlignment = alignment
	return t
}

// WithHeaderAlignment sets per-column alignment for the header row.
func (t *Table) WithHeaderAlignment(alignment []Alignment) *Table {
	t.headerAlignment = alignment
	return t
}

// Append adds one body row.
func (t *Table) Append(row []string) *Table {
	t.rows = append(t.rows, row)
	return t
}

// WithRows adds multiple body rows.
func (t *Table) WithRows(rows [][]string) *Table {
	t.rows = append(t.rows, rows...)
	return t
}

func (t *Table) columnCount() int {
	count := len(t.header)
	for _, row := range t.rows {
		if len(row) > count {
			count = len(row)
		}
	}
	return count
}

func (t *Table) columnWidths(count int) []int {
	widths := make([]int, count)
	measure := func(row []string) {
		for i, cell := range row {
			if w := visibleWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}
	measure(t.header)
	for _, row := range t.rows {
		measure(row)
	}
	return widths
}

func pad(cell string, width int, alignment Alignment) string {
	gap := width - visibleWidth(cell)
	if gap <= 0 {
		return cell
	}
	switch alignment {
	case AlignRight:
		return strings.Repeat(" ", gap) + cell
	case AlignCenter:
		left := gap / 2
		return strings.Repeat(" ", left) + cell + strings.Repeat(" ", gap-left)
	default:
		return cell + strings.Repeat(" ", gap)
	}
}

func (t *Table) alignmentFor(alignments []Alignment, col int) Alignment {
	if col < len(alignments) {
		return alignments[col]
	}
	return AlignLeft
}

func (t *Table) writeRow(row []string, alignments []Alignment, widths []int) {
	cells := make([]string, len(widths))
	for i := range widths {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		cells[i] = pad(cell, widths[i], t.alignmentFor(alignments, i))
	}
	fmt.Fprintf(t.writer, "| %s |\n", strings.Join(cells, " | "))
}

func (t *Table) writeSeparator(widths []int) {
	parts := make([]string, len(widths))
	for i, width := range widths {
		parts[i] = strings.Repeat("-", width+2)
	}
	fmt.Fprintf(t.writer, "+%s+\n", strings.Join(parts, "+"))
}

// Render writes the table.
func (t *Table) Render() {
	count := t.columnCount()
	if count == 0 {
		return
	}
	widths := t.columnWidths(count)
	t.writeSeparator(widths)
	if len(t.header) > 0 {
		t.writeRow(t.header, t.headerAlignment, widths)
		t.writeSeparator(widths)
	}
	for _, row := range t.rows {
		t.writeRow(row, t.columnAlignment, widths)
	}
	t.writeSeparator(widths)
}
