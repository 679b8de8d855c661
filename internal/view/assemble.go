// Package view assembles the per-student schedule: the roster's assigned
// tests joined against the catalog and every placement source, sorted
// into one deterministic sequence. Views are computed fresh per request
// and never cached.
package view

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"examdesk/internal/tablefile"
	"examdesk/internal/tables"
)

// Seat is a student's resolved location for one test. Assigned is false
// when no placement source had a row; the zero value is the explicit
// "no seat" marker, not a sentinel string.
type Seat struct {
	Location string
	Block    string
	Assigned bool
}

// Row is one line of an assembled view.
type Row struct {
	TestID string
	Code   string
	Name   string
	Date   string
	Period string
	Seat   Seat
}

// Sources names the tables a view is assembled from. PlacementDeclared,
// when set, fixes the scan order; otherwise PlacementGlob is expanded
// and sorted.
type Sources struct {
	Dir               string
	Roster            string
	Catalog           string
	PlacementDeclared []string
	PlacementGlob     string
	Header            tables.HeaderMode
}

// Assembler joins roster, catalog and placement tables into per-student
// views.
type Assembler struct {
	ch  *tablefile.Channel
	src Sources
	log *zap.Logger
}

func NewAssembler(ch *tablefile.Channel, src Sources, log *zap.Logger) *Assembler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Assembler{ch: ch, src: src, log: log}
}

// Assemble returns the ordered view for one student key. An unknown key
// yields an empty view, not an error; so does an assigned test that is
// missing from the catalog. Rows are ordered by the lexicographic
// date+period key, ties keeping assigned-list order.
func (a *Assembler) Assemble(ctx context.Context, key string) ([]Row, error) {
	student, ok, err := tables.NewRoster(a.ch, a.src.Roster, a.src.Header).Find(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		a.log.Debug("view requested for unknown student", zap.String("key", key))
		return nil, nil
	}

	catalog, err := tables.NewCatalog(a.ch, a.src.Catalog, a.src.Header).Map()
	if err != nil {
		return nil, err
	}

	seats, err := a.resolveSeats(ctx, student.USN)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(student.Tests))
	seen := make(map[string]bool, len(student.Tests))
	for _, id := range student.Tests {
		if seen[id] {
			continue
		}
		seen[id] = true
		test, found := catalog[id]
		if !found {
			// Unresolvable assignment: degrade silently, never a
			// partial row.
			a.log.Debug("assigned test missing from catalog",
				zap.String("key", student.USN), zap.String("test", id))
			continue
		}
		rows = append(rows, Row{
			TestID: test.ID,
			Code:   test.Code,
			Name:   test.Name,
			Date:   test.Date,
			Period: test.Period,
			Seat:   seats[id],
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Date+rows[i].Period < rows[j].Date+rows[j].Period
	})
	return rows, nil
}

// resolveSeats scans every placement source in order and keeps the first
// seat seen per test id; later rows for an already-resolved test are
// ignored, including rows in later sources.
func (a *Assembler) resolveSeats(ctx context.Context, usn string) (map[string]Seat, error) {
	sources, err := tables.PlacementSources(a.src.Dir, a.src.PlacementDeclared, a.src.PlacementGlob)
	if err != nil {
		return nil, err
	}

	want := tables.NormalizeKey(usn)
	seats := make(map[string]Seat)
	for _, path := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		placements, err := tables.NewPlacementFile(a.ch, path, a.src.Header).Rows()
		if err != nil {
			return nil, err
		}
		for _, p := range placements {
			if tables.NormalizeKey(p.USN) != want {
				continue
			}
			if _, done := seats[p.TestID]; done {
				continue
			}
			seats[p.TestID] = Seat{Location: p.Location, Block: p.Block, Assigned: true}
		}
	}
	return seats, nil
}
