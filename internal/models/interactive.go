// Package models defines interactive message structures for ParkEasy.
package models

import (
	"fmt"
	"strings"
)

// Menu formatting constants
const (
	// MenuOptionFormat is the format string for a numbered menu option.
	MenuOptionFormat = "\n%d. %s"
	// MenuOptionWithDescFormat is the format string for a numbered menu option with a description.
	MenuOptionWithDescFormat = "\n%d. %s: %s"
)

// Interactive is an outbound menu the user answers by number or by option
// title. The transport renders it as numbered text; the dispatcher resolves
// a numeric reply back to the option title before the flow handler sees it.
type Interactive interface {
	// RenderText returns the full message body with numbered options.
	RenderText() string
	// OptionTitle returns the title of the 1-based option n.
	OptionTitle(n int) (string, bool)
}

// Button is one reply option of a ButtonMenu.
type Button struct {
	ID    string
	Title string
}

// ButtonMenu is a body with a short set of reply options.
type ButtonMenu struct {
	Body    string
	Buttons []Button
}

// RenderText renders the menu as numbered text options.
func (m ButtonMenu) RenderText() string {
	var sb strings.Builder
	sb.WriteString(m.Body)
	for i, b := range m.Buttons {
		fmt.Fprintf(&sb, MenuOptionFormat, i+1, b.Title)
	}
	return sb.String()
}

// OptionTitle returns the title of the 1-based option n.
func (m ButtonMenu) OptionTitle(n int) (string, bool) {
	if n < 1 || n > len(m.Buttons) {
		return "", false
	}
	return m.Buttons[n-1].Title, true
}

// ListRow is one selectable row of a ListMenu.
type ListRow struct {
	ID          string
	Title       string
	Description string
}

// ListSection groups rows under a heading.
type ListSection struct {
	Title string
	Rows  []ListRow
}

// ListMenu is a sectioned menu for larger option sets.
type ListMenu struct {
	Header   string
	Body     string
	Footer   string
	Sections []ListSection
}

// RenderText renders the list as sectioned, numbered text options. Numbering
// is continuous across sections so a single reply number is unambiguous.
func (m ListMenu) RenderText() string {
	var sb strings.Builder
	if m.Header != "" {
		fmt.Fprintf(&sb, "*%s*\n\n", m.Header)
	}
	sb.WriteString(m.Body)
	n := 0
	for _, sec := range m.Sections {
		if sec.Title != "" {
			fmt.Fprintf(&sb, "\n\n_%s_", sec.Title)
		}
		for _, row := range sec.Rows {
			n++
			if row.Description != "" {
				fmt.Fprintf(&sb, MenuOptionWithDescFormat, n, row.Title, row.Description)
			} else {
				fmt.Fprintf(&sb, MenuOptionFormat, n, row.Title)
			}
		}
	}
	if m.Footer != "" {
		fmt.Fprintf(&sb, "\n\n_%s_", m.Footer)
	}
	return sb.String()
}

// OptionTitle returns the title of the 1-based row n, counting across sections.
func (m ListMenu) OptionTitle(n int) (string, bool) {
	if n < 1 {
		return "", false
	}
	for _, sec := range m.Sections {
		if n <= len(sec.Rows) {
			return sec.Rows[n-1].Title, true
		}
		n -= len(sec.Rows)
	}
	return "", false
}
