package schedule

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"examdesk/internal/tablefile"
)

// Cohort exports are header-keyed, with some latitude in how columns
// are spelled. One 0/1 column per test marks enrollment.
var rosterImportColumns = map[string][]string{
	"usn":      {"usn"},
	"name":     {"name"},
	"program":  {"program", "branch"},
	"section":  {"sec", "section"},
	"eligible": {"eligible"},
}

// Columns present in exports that the roster does not carry and that
// must not be mistaken for test columns.
var rosterImportIgnored = map[string]bool{
	"s.no.": true, "sno": true, "s.no": true, "sem": true,
}

// ImportError reports the files that failed the pre-import check.
type ImportError struct {
	Missing map[string][]string // file -> missing column keys
}

func (e *ImportError) Error() string {
	files := make([]string, 0, len(e.Missing))
	for f := range e.Missing {
		files = append(files, f)
	}
	sort.Strings(files)
	parts := make([]string, 0, len(files))
	for _, f := range files {
		parts = append(parts, fmt.Sprintf("%s (missing %s)", f, strings.Join(e.Missing[f], ", ")))
	}
	return "roster import check failed: " + strings.Join(parts, "; ")
}

// ImportRoster merges every cohort export under importDir into the
// positional roster table. All files are checked for the required
// columns before anything is written; on any failure the roster is left
// untouched. Returns the number of students written.
func ImportRoster(ch *tablefile.Channel, importDir, rosterPath string) (int, error) {
	files, err := filepath.Glob(filepath.Join(importDir, "*.csv"))
	if err != nil {
		return 0, err
	}
	sort.Strings(files)
	if len(files) == 0 {
		return 0, fmt.Errorf("no cohort exports found in %s", importDir)
	}

	type parsed struct {
		columns map[string]int // required key -> column index
		tests   []int          // test column indexes
		headers []string
		rows    [][]string
	}

	importErr := &ImportError{Missing: make(map[string][]string)}
	all := make([]parsed, 0, len(files))
	for _, file := range files {
		rows, err := ch.Read(file)
		if err != nil {
			return 0, err
		}
		if len(rows) == 0 {
			importErr.Missing[filepath.Base(file)] = []string{"header row"}
			continue
		}

		headers := rows[0]
		lower := make(map[string]int, len(headers))
		for i, h := range headers {
			lower[strings.ToLower(strings.TrimSpace(h))] = i
		}

		p := parsed{columns: make(map[string]int), headers: headers, rows: rows[1:]}
		var missing []string
		claimed := make(map[int]bool)
		for key, variants := range rosterImportColumns {
			found := false
			for _, v := range variants {
				if idx, ok := lower[v]; ok {
					p.columns[key] = idx
					claimed[idx] = true
					found = true
					break
				}
			}
			if !found {
				missing = append(missing, key)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			importErr.Missing[filepath.Base(file)] = missing
			continue
		}
		for i, h := range headers {
			if claimed[i] || rosterImportIgnored[strings.ToLower(strings.TrimSpace(h))] {
				continue
			}
			p.tests = append(p.tests, i)
		}
		all = append(all, p)
	}
	if len(importErr.Missing) > 0 {
		return 0, importErr
	}

	out := [][]string{{"USN", "NAME", "PROGRAM", "SEC", "eligible", "tests"}}
	for _, p := range all {
		for _, row := range p.rows {
			cell := func(i int) string {
				if i < len(row) {
					return strings.TrimSpace(row[i])
				}
				return ""
			}
			usn := cell(p.columns["usn"])
			if usn == "" {
				continue
			}
			var testNames []string
			for _, ti := range p.tests {
				if cell(ti) == "1" {
					testNames = append(testNames, strings.TrimSpace(p.headers[ti]))
				}
			}
			out = append(out, []string{
				usn,
				cell(p.columns["name"]),
				cell(p.columns["program"]),
				cell(p.columns["section"]),
				cell(p.columns["eligible"]),
				strings.Join(testNames, ","),
			})
		}
	}

	if err := ch.Replace(rosterPath, out); err != nil {
		return 0, err
	}
	return len(out) - 1, nil
}
