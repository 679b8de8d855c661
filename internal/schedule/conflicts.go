package schedule

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"go.uber.org/zap"

	"examdesk/internal/tablefile"
	"examdesk/internal/tables"
)

// Scanner runs read-only reports over every placement source.
type Scanner struct {
	ch  *tablefile.Channel
	src Sources
	log *zap.Logger
}

func NewScanner(ch *tablefile.Channel, src Sources, log *zap.Logger) *Scanner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scanner{ch: ch, src: src, log: log}
}

// scanAll reads every placement source concurrently and returns the
// rows flattened in declared source order, so downstream aggregation
// stays deterministic.
func (s *Scanner) scanAll(ctx context.Context) ([]tables.Placement, error) {
	sources, err := tables.PlacementSources(s.src.Dir, s.src.PlacementDeclared, s.src.PlacementGlob)
	if err != nil {
		return nil, err
	}

	perSource := make([][]tables.Placement, len(sources))
	g, ctx := errgroup.WithContext(ctx)
	for i, path := range sources {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rows, err := tables.NewPlacementFile(s.ch, path, s.src.Header).Rows()
			if err != nil {
				return err
			}
			perSource[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []tables.Placement
	for _, rows := range perSource {
		all = append(all, rows...)
	}
	return all, nil
}

// Conflict is one session in which at least one student is placed for
// more than one test.
type Conflict struct {
	Date     string
	Period   string
	Tests    []string // sorted ids of the tests involved
	Students []string // sorted keys of the double-booked students
}

// Conflicts reports every (date, period) session where some student
// holds seats for two or more tests.
func (s *Scanner) Conflicts(ctx context.Context) ([]Conflict, error) {
	rows, err := s.scanAll(ctx)
	if err != nil {
		return nil, err
	}

	type sessionKey struct{ date, period string }
	// session -> usn -> distinct test ids; a second seat for the same
	// test is not a conflict.
	perStudent := make(map[sessionKey]map[string]map[string]bool)
	for _, r := range rows {
		if r.TestID == "" {
			continue
		}
		k := sessionKey{r.Date, r.Period}
		usn := tables.NormalizeKey(r.USN)
		if perStudent[k] == nil {
			perStudent[k] = make(map[string]map[string]bool)
		}
		if perStudent[k][usn] == nil {
			perStudent[k][usn] = make(map[string]bool)
		}
		perStudent[k][usn][r.TestID] = true
	}

	var out []Conflict
	for k, byUSN := range perStudent {
		testSet := make(map[string]bool)
		var students []string
		for usn, testIDs := range byUSN {
			if len(testIDs) < 2 {
				continue
			}
			students = append(students, usn)
			for id := range testIDs {
				testSet[id] = true
			}
		}
		if len(students) == 0 {
			continue
		}
		c := Conflict{Date: k.date, Period: k.period, Students: students}
		for id := range testSet {
			c.Tests = append(c.Tests, id)
		}
		sort.Strings(c.Students)
		sort.Strings(c.Tests)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date+out[i].Period < out[j].Date+out[j].Period
	})
	s.log.Debug("conflict scan finished",
		zap.Int("rows", len(rows)), zap.Int("conflicts", len(out)))
	return out, nil
}

// FormatConflicts renders the session-grouped conflict report. The
// catalog, when provided, enriches test ids with code and name.
func FormatConflicts(conflicts []Conflict, catalog map[string]tables.Test) string {
	if len(conflicts) == 0 {
		return "No student conflicts found in any session.\n"
	}
	var b strings.Builder
	for _, c := range conflicts {
		b.WriteString(strings.Repeat("-", 60) + "\n")
		fmt.Fprintf(&b, "Date: %s | Period: %s\n", orBlank(c.Date), orBlank(c.Period))
		b.WriteString("Conflicting tests:\n")
		for _, id := range c.Tests {
			if t, ok := catalog[id]; ok && t.Name != "" {
				fmt.Fprintf(&b, "  - %s: %s (%s)\n", id, t.Name, t.Code)
			} else {
				fmt.Fprintf(&b, "  - %s\n", id)
			}
		}
		b.WriteString("Students with conflicts:\n")
		b.WriteString(strings.Join(c.Students, ", ") + "\n\n")
	}
	b.WriteString(strings.Repeat("-", 60) + "\n")
	return b.String()
}

func orBlank(s string) string {
	if s == "" {
		return "(blank)"
	}
	return s
}
