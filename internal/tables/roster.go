package tables

import (
	"strings"

	"examdesk/internal/tablefile"
)

// Student is one roster row.
type Student struct {
	USN      string
	Name     string
	Program  string
	Section  string
	Eligible bool
	Tests    []string
}

const (
	rosterMinFields  = 6
	rosterHeaderCell = "usn"
)

// Roster reads the student table: columns USN, Name, Program, Section,
// Eligible, Tests.
type Roster struct {
	ch     *tablefile.Channel
	path   string
	header HeaderMode
}

func NewRoster(ch *tablefile.Channel, path string, header HeaderMode) *Roster {
	return &Roster{ch: ch, path: path, header: header}
}

// All returns every well-formed roster row.
func (r *Roster) All() ([]Student, error) {
	rows, err := r.ch.Read(r.path)
	if err != nil {
		return nil, err
	}
	rows = dropHeader(rows, r.header, rosterHeaderCell)

	students := make([]Student, 0, len(rows))
	for _, row := range rows {
		if len(row) < rosterMinFields {
			continue
		}
		students = append(students, Student{
			USN:      row[0],
			Name:     row[1],
			Program:  row[2],
			Section:  row[3],
			Eligible: parseEligible(row[4]),
			Tests:    ParseTestList(row[5]),
		})
	}
	return students, nil
}

// Find resolves a student by key, case-insensitively. The bool result is
// false when no row matches; that is absence, not an error.
func (r *Roster) Find(key string) (Student, bool, error) {
	students, err := r.All()
	if err != nil {
		return Student{}, false, err
	}
	want := NormalizeKey(key)
	for _, s := range students {
		if NormalizeKey(s.USN) == want {
			return s, true, nil
		}
	}
	return Student{}, false, nil
}

// parseEligible mirrors the provisioning convention: blank counts as
// eligible, anything other than a recognized true value does not.
func parseEligible(v string) bool {
	switch strings.TrimSpace(v) {
	case "", "1", "true", "True", "TRUE":
		return true
	default:
		return false
	}
}

// ParseTestList splits the assigned-tests cell. The cell is a single
// field holding a comma-separated sub-list that upstream exports
// sometimes wrap in stray quote characters; those are stripped before
// splitting and empty entries are discarded.
func ParseTestList(cell string) []string {
	cell = strings.Trim(strings.TrimSpace(cell), `"'`)
	if cell == "" {
		return nil
	}
	parts := strings.Split(cell, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), `"'`)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
