package tables

import "examdesk/internal/tablefile"

// Test is one catalog row: a schedulable unit with its descriptive and
// temporal attributes.
type Test struct {
	ID     string
	Code   string
	Name   string
	Date   string
	Period string
}

// The catalog carries many faculty/coordination columns between the name
// and the date that this core does not read. The period column is the
// widest field we touch, so rows must reach it to count.
const (
	catalogIDCol     = 0
	catalogCodeCol   = 1
	catalogNameCol   = 2
	catalogDateCol   = 12
	catalogPeriodCol = 13
	catalogMinFields = catalogPeriodCol + 1

	catalogHeaderCell = "sno"
)

// Catalog reads the master test schedule table.
type Catalog struct {
	ch     *tablefile.Channel
	path   string
	header HeaderMode
}

func NewCatalog(ch *tablefile.Channel, path string, header HeaderMode) *Catalog {
	return &Catalog{ch: ch, path: path, header: header}
}

// Map loads the catalog as an id-to-test mapping. On duplicate ids the
// first row wins.
func (c *Catalog) Map() (map[string]Test, error) {
	rows, err := c.ch.Read(c.path)
	if err != nil {
		return nil, err
	}
	rows = dropHeader(rows, c.header, catalogHeaderCell)

	m := make(map[string]Test, len(rows))
	for _, row := range rows {
		if len(row) < catalogMinFields {
			continue
		}
		id := row[catalogIDCol]
		if id == "" {
			continue
		}
		if _, seen := m[id]; seen {
			continue
		}
		m[id] = Test{
			ID:     id,
			Code:   row[catalogCodeCol],
			Name:   row[catalogNameCol],
			Date:   row[catalogDateCol],
			Period: row[catalogPeriodCol],
		}
	}
	return m, nil
}
