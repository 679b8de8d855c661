package tables

import (
	"path/filepath"
	"sort"

	"examdesk/internal/tablefile"
)

// Placement binds one student to one test inside one session file:
// columns Date, Period, Location, Block, SeatNo, USN, TestID, TestCode.
type Placement struct {
	Date     string
	Period   string
	Location string
	Block    string
	SeatNo   string
	USN      string
	TestID   string
	TestCode string
}

const (
	placementDateCol     = 0
	placementPeriodCol   = 1
	placementLocationCol = 2
	placementBlockCol    = 3
	placementSeatCol     = 4
	placementUSNCol      = 5
	placementTestCol     = 6
	placementCodeCol     = 7
	placementMinFields   = 7

	placementHeaderCell = "date"
)

// PlacementHeader is the header row written by the allocator.
var PlacementHeader = []string{"Date", "Period", "Location", "Block", "SeatNo", "USN", "TestID", "TestCode"}

// PlacementFile reads one session's placement table.
type PlacementFile struct {
	ch     *tablefile.Channel
	path   string
	header HeaderMode
}

func NewPlacementFile(ch *tablefile.Channel, path string, header HeaderMode) *PlacementFile {
	return &PlacementFile{ch: ch, path: path, header: header}
}

// Path returns the file this reader is bound to.
func (p *PlacementFile) Path() string { return p.path }

// Rows returns every well-formed placement row. Rows with a blank
// student key are unfilled seats and are dropped.
func (p *PlacementFile) Rows() ([]Placement, error) {
	rows, err := p.ch.Read(p.path)
	if err != nil {
		return nil, err
	}
	rows = dropHeader(rows, p.header, placementHeaderCell)

	out := make([]Placement, 0, len(rows))
	for _, row := range rows {
		if len(row) < placementMinFields {
			continue
		}
		if row[placementUSNCol] == "" {
			continue
		}
		pl := Placement{
			Date:     row[placementDateCol],
			Period:   row[placementPeriodCol],
			Location: row[placementLocationCol],
			Block:    row[placementBlockCol],
			SeatNo:   row[placementSeatCol],
			USN:      row[placementUSNCol],
			TestID:   row[placementTestCol],
		}
		if len(row) > placementCodeCol {
			pl.TestCode = row[placementCodeCol]
		}
		out = append(out, pl)
	}
	return out, nil
}

// PlacementSources resolves the ordered list of placement files for a
// data directory. A declared list wins as-is (missing entries read as
// empty tables); otherwise the glob pattern is expanded and sorted so
// the scan order is deterministic on every platform.
func PlacementSources(dir string, declared []string, pattern string) ([]string, error) {
	if len(declared) > 0 {
		out := make([]string, len(declared))
		for i, name := range declared {
			out[i] = filepath.Join(dir, name)
		}
		return out, nil
	}
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}
