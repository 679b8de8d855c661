package schedule

import (
	"context"
	"sort"

	"examdesk/internal/tables"
)

// CourseCount is the number of distinct students seated for one test
// across every placement source.
type CourseCount struct {
	TestID   string
	Code     string
	Name     string
	Students int
}

// Counts aggregates distinct students per test, descending by count
// with the test id breaking ties. Rows with a blank test id are counted
// against no test and dropped.
func (s *Scanner) Counts(ctx context.Context) ([]CourseCount, error) {
	rows, err := s.scanAll(ctx)
	if err != nil {
		return nil, err
	}

	perTest := make(map[string]map[string]bool)
	for _, r := range rows {
		if r.TestID == "" {
			continue
		}
		if perTest[r.TestID] == nil {
			perTest[r.TestID] = make(map[string]bool)
		}
		perTest[r.TestID][tables.NormalizeKey(r.USN)] = true
	}

	catalog, err := tables.NewCatalog(s.ch, s.src.Catalog, s.src.Header).Map()
	if err != nil {
		return nil, err
	}

	out := make([]CourseCount, 0, len(perTest))
	for id, usns := range perTest {
		c := CourseCount{TestID: id, Students: len(usns)}
		if t, ok := catalog[id]; ok {
			c.Code, c.Name = t.Code, t.Name
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Students != out[j].Students {
			return out[i].Students > out[j].Students
		}
		return out[i].TestID < out[j].TestID
	})
	return out, nil
}
