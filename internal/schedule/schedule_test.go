package schedule

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"examdesk/internal/tablefile"
	"examdesk/internal/tables"
)

func catalogRow(id, code, name, date, period string) []string {
	row := make([]string, 14)
	row[0], row[1], row[2] = id, code, name
	row[12], row[13] = date, period
	return row
}

func writeTable(t *testing.T, ch *tablefile.Channel, path string, rows [][]string) {
	t.Helper()
	require.NoError(t, ch.Replace(path, rows))
}

func newSources(dir string) Sources {
	return Sources{
		Dir:           dir,
		Roster:        filepath.Join(dir, "students_table.csv"),
		Catalog:       filepath.Join(dir, "catalog_table.csv"),
		Rooms:         filepath.Join(dir, "rooms_table.csv"),
		PlacementGlob: "placement_table_*.csv",
		Header:        tables.HeaderAuto,
	}
}

func TestAllocateAll(t *testing.T) {
	dir := t.TempDir()
	ch := tablefile.NewChannel(zap.NewNop())
	src := newSources(dir)

	writeTable(t, ch, src.Roster, [][]string{
		{"USN", "NAME", "PROGRAM", "SEC", "eligible", "tests"},
		{"1AB21CS001", "Asha", "CSE", "A", "1", "T1,T2"},
		{"1AB21CS002", "Bela", "CSE", "A", "1", "T1"},
		{"1AB21CS003", "Chand", "CSE", "B", "1", "T1"},
		{"1AB21CS004", "Dev", "CSE", "B", "1", "T2"},
		{"1AB21CS005", "Esha", "CSE", "B", "0", "T1,T2"},
	})
	writeTable(t, ch, src.Catalog, [][]string{
		catalogRow("T1", "18CS51", "Networks", "10-Jan-25", "AM"),
		catalogRow("T2", "18CS52", "Compilers", "10-Jan-25", "AM"),
	})
	writeTable(t, ch, src.Rooms, [][]string{
		{"Room", "A", "B"},
		{"R1", "2", "2"},
		{"R2", "2", "2"},
	})

	a := NewAllocator(ch, src, zap.NewNop())
	written, err := a.AllocateAll(context.Background())
	require.NoError(t, err)
	require.Len(t, written, 1)
	assert.Equal(t, filepath.Join(dir, "placement_table_20250110_AM.csv"), written[0])

	rows, err := tables.NewPlacementFile(ch, written[0], tables.HeaderAuto).Rows()
	require.NoError(t, err)

	// Every eligible enrollment is seated exactly once; the ineligible
	// student does not appear.
	seen := make(map[string]int)
	for _, p := range rows {
		assert.Equal(t, "10-Jan-25", p.Date)
		assert.Equal(t, "AM", p.Period)
		seen[p.USN+"/"+p.TestID]++
	}
	assert.Equal(t, map[string]int{
		"1AB21CS001/T1": 1, "1AB21CS001/T2": 1,
		"1AB21CS002/T1": 1,
		"1AB21CS003/T1": 1,
		"1AB21CS004/T2": 1,
	}, seen)

	// Unfilled seats stay in the file with a blank student.
	raw, err := ch.Read(written[0])
	require.NoError(t, err)
	assert.Len(t, raw, 1+8) // header plus every physical seat
}

func TestAllocateAllInsufficientSeats(t *testing.T) {
	dir := t.TempDir()
	ch := tablefile.NewChannel(zap.NewNop())
	src := newSources(dir)

	writeTable(t, ch, src.Roster, [][]string{
		{"1AB21CS001", "Asha", "CSE", "A", "1", "T1,T2"},
		{"1AB21CS002", "Bela", "CSE", "A", "1", "T1"},
		{"1AB21CS003", "Chand", "CSE", "B", "1", "T1"},
	})
	writeTable(t, ch, src.Catalog, [][]string{
		catalogRow("T1", "18CS51", "Networks", "10-Jan-25", "AM"),
		catalogRow("T2", "18CS52", "Compilers", "11-Jan-25", "AM"),
	})
	writeTable(t, ch, src.Rooms, [][]string{
		{"R1", "1", "1"},
	})

	a := NewAllocator(ch, src, zap.NewNop())
	written, err := a.AllocateAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient seats: need 3, have 2")

	// The second session fits and its file is still written.
	require.Len(t, written, 1)
	assert.Equal(t, filepath.Join(dir, "placement_table_20250111_AM.csv"), written[0])
	_, statErr := os.Stat(filepath.Join(dir, "placement_table_20250110_AM.csv"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestSeatSessionBlockConstraint(t *testing.T) {
	sess := session{
		date:   "10-Jan-25",
		period: "AM",
		tests:  []tables.Test{{ID: "T1", Code: "C1", Date: "10-Jan-25", Period: "AM"}},
	}
	students := []tables.Student{
		{USN: "S1", Eligible: true, Tests: []string{"T1"}},
		{USN: "S2", Eligible: true, Tests: []string{"T1"}},
		{USN: "S3", Eligible: true, Tests: []string{"T1"}},
	}

	t.Run("sibling block refuses the same test", func(t *testing.T) {
		// One room: after block A fills with T1, block B may not host
		// T1 even though physical capacity remains.
		_, err := seatSession(sess, students, []tables.Room{{Name: "R1", ASeats: 2, BSeats: 2}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unable to place 1 students of T1")
	})

	t.Run("overflow moves to the next room", func(t *testing.T) {
		rows, err := seatSession(sess, students, []tables.Room{
			{Name: "R1", ASeats: 2, BSeats: 2},
			{Name: "R2", ASeats: 2, BSeats: 2},
		})
		require.NoError(t, err)

		rooms := make(map[string]bool)
		for _, row := range rows[1:] {
			if row[5] != "" {
				rooms[row[2]+"/"+row[3]] = true
			}
		}
		assert.Equal(t, map[string]bool{"R1/A": true, "R2/A": true}, rooms)
	})
}

func TestPlacementFileName(t *testing.T) {
	cases := []struct{ date, period, want string }{
		{"10-Jan-25", "AM", "placement_table_20250110_AM.csv"},
		{"9-Sept-2025", "PM", "placement_table_20250909_PM.csv"},
		{"02/01/2026", "Slot 1", "placement_table_20260102_Slot_1.csv"},
		{"sometime", "AM", "placement_table_sometime_AM.csv"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, placementFileName(tc.date, tc.period), tc.date)
	}
}

func TestConflicts(t *testing.T) {
	dir := t.TempDir()
	ch := tablefile.NewChannel(zap.NewNop())
	src := newSources(dir)

	writeTable(t, ch, src.Catalog, [][]string{
		catalogRow("T1", "18CS51", "Networks", "10-Jan-25", "AM"),
		catalogRow("T2", "18CS52", "Compilers", "10-Jan-25", "AM"),
	})
	writeTable(t, ch, filepath.Join(dir, "placement_table_a.csv"), [][]string{
		tables.PlacementHeader,
		{"10-Jan-25", "AM", "R1", "A", "1", "1AB21CS001", "T1", "18CS51"},
		{"10-Jan-25", "AM", "R1", "A", "2", "1AB21CS002", "T1", "18CS51"},
	})
	writeTable(t, ch, filepath.Join(dir, "placement_table_b.csv"), [][]string{
		tables.PlacementHeader,
		{"10-Jan-25", "AM", "R2", "A", "1", "1ab21cs001", "T2", "18CS52"},
		// A duplicate seat for the same test is not a conflict.
		{"10-Jan-25", "AM", "R2", "A", "2", "1AB21CS002", "T1", "18CS51"},
		{"11-Jan-25", "AM", "R2", "A", "1", "1AB21CS002", "T2", "18CS52"},
	})

	s := NewScanner(ch, src, zap.NewNop())
	conflicts, err := s.Conflicts(context.Background())
	require.NoError(t, err)
	require.Len(t, conflicts, 1)

	c := conflicts[0]
	assert.Equal(t, "10-Jan-25", c.Date)
	assert.Equal(t, "AM", c.Period)
	assert.Equal(t, []string{"T1", "T2"}, c.Tests)
	assert.Equal(t, []string{"1AB21CS001"}, c.Students)

	catalog, err := tables.NewCatalog(ch, src.Catalog, tables.HeaderAuto).Map()
	require.NoError(t, err)
	report := FormatConflicts(conflicts, catalog)
	assert.Contains(t, report, "Date: 10-Jan-25 | Period: AM")
	assert.Contains(t, report, "T1: Networks (18CS51)")
	assert.Contains(t, report, "1AB21CS001")

	assert.Contains(t, FormatConflicts(nil, catalog), "No student conflicts")
}

func TestCounts(t *testing.T) {
	dir := t.TempDir()
	ch := tablefile.NewChannel(zap.NewNop())
	src := newSources(dir)

	writeTable(t, ch, src.Catalog, [][]string{
		catalogRow("T1", "18CS51", "Networks", "10-Jan-25", "AM"),
	})
	writeTable(t, ch, filepath.Join(dir, "placement_table_a.csv"), [][]string{
		tables.PlacementHeader,
		{"10-Jan-25", "AM", "R1", "A", "1", "1AB21CS001", "T1", "18CS51"},
		{"10-Jan-25", "AM", "R1", "A", "2", "1AB21CS002", "T1", "18CS51"},
		{"10-Jan-25", "AM", "R1", "B", "1", "1AB21CS003", "T9", ""},
	})
	writeTable(t, ch, filepath.Join(dir, "placement_table_b.csv"), [][]string{
		tables.PlacementHeader,
		// Same student again under a different key spelling.
		{"11-Jan-25", "AM", "R1", "A", "1", "1ab21cs001", "T1", "18CS51"},
	})

	s := NewScanner(ch, src, zap.NewNop())
	counts, err := s.Counts(context.Background())
	require.NoError(t, err)
	require.Len(t, counts, 2)

	assert.Equal(t, CourseCount{TestID: "T1", Code: "18CS51", Name: "Networks", Students: 2}, counts[0])
	assert.Equal(t, CourseCount{TestID: "T9", Students: 1}, counts[1])
}

func TestImportRoster(t *testing.T) {
	ch := tablefile.NewChannel(zap.NewNop())

	t.Run("merges cohort exports", func(t *testing.T) {
		dir := t.TempDir()
		importDir := filepath.Join(dir, "cohorts")
		require.NoError(t, os.Mkdir(importDir, 0o755))
		rosterPath := filepath.Join(dir, "students_table.csv")

		writeTable(t, ch, filepath.Join(importDir, "cse-a.csv"), [][]string{
			{"S.No.", "USN", "Name", "Program", "Sec", "Eligible", "T1", "T2"},
			{"1", "1AB21CS001", "Asha", "CSE", "A", "1", "1", "0"},
			{"2", "1AB21CS002", "Bela", "CSE", "A", "1", "1", "1"},
			{"3", "", "orphan row", "CSE", "A", "1", "0", "0"},
		})
		writeTable(t, ch, filepath.Join(importDir, "ise-b.csv"), [][]string{
			{"USN", "Name", "Branch", "Section", "Eligible", "T2"},
			{"1AB21IS001", "Chand", "ISE", "B", "0", "1"},
		})

		n, err := ImportRoster(ch, importDir, rosterPath)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		students, err := tables.NewRoster(ch, rosterPath, tables.HeaderAuto).All()
		require.NoError(t, err)
		require.Len(t, students, 3)

		assert.Equal(t, tables.Student{
			USN: "1AB21CS002", Name: "Bela", Program: "CSE", Section: "A",
			Eligible: true, Tests: []string{"T1", "T2"},
		}, students[1])
		assert.Equal(t, "ISE", students[2].Program)
		assert.Equal(t, "B", students[2].Section)
		assert.False(t, students[2].Eligible)
		assert.Equal(t, []string{"T2"}, students[2].Tests)
	})

	t.Run("rejects exports missing required columns", func(t *testing.T) {
		dir := t.TempDir()
		importDir := filepath.Join(dir, "cohorts")
		require.NoError(t, os.Mkdir(importDir, 0o755))
		rosterPath := filepath.Join(dir, "students_table.csv")
		writeTable(t, ch, rosterPath, [][]string{
			{"1AB21CS001", "Asha", "CSE", "A", "1", "T1"},
		})

		writeTable(t, ch, filepath.Join(importDir, "good.csv"), [][]string{
			{"USN", "Name", "Program", "Sec", "Eligible"},
			{"1AB21CS009", "Zara", "CSE", "A", "1"},
		})
		writeTable(t, ch, filepath.Join(importDir, "bad.csv"), [][]string{
			{"USN", "Name", "Eligible"},
			{"1AB21CS010", "Yash", "1"},
		})

		_, err := ImportRoster(ch, importDir, rosterPath)
		require.Error(t, err)
		var ierr *ImportError
		require.ErrorAs(t, err, &ierr)
		assert.Equal(t, map[string][]string{"bad.csv": {"program", "section"}}, ierr.Missing)
		assert.True(t, strings.Contains(err.Error(), "bad.csv"))

		// Nothing was written over the existing roster.
		students, rerr := tables.NewRoster(ch, rosterPath, tables.HeaderAuto).All()
		require.NoError(t, rerr)
		require.Len(t, students, 1)
		assert.Equal(t, "1AB21CS001", students[0].USN)
	})

	t.Run("empty import directory", func(t *testing.T) {
		dir := t.TempDir()
		_, err := ImportRoster(ch, dir, filepath.Join(dir, "out.csv"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no cohort exports")
	})
}
