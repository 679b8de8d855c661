// Package schedule holds the batch operations around the placement
// tables: seat allocation per session, the conflict report, per-test
// student counts and the roster import.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"examdesk/internal/tablefile"
	"examdesk/internal/tables"
)

// Sources names the inputs and output directory the schedule operations
// work with.
type Sources struct {
	Dir               string
	Roster            string
	Catalog           string
	Rooms             string
	PlacementDeclared []string
	PlacementGlob     string
	Header            tables.HeaderMode
}

// Allocator assigns eligible students to room blocks, one placement
// file per (date, period) session.
type Allocator struct {
	ch  *tablefile.Channel
	src Sources
	log *zap.Logger
}

func NewAllocator(ch *tablefile.Channel, src Sources, log *zap.Logger) *Allocator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Allocator{ch: ch, src: src, log: log}
}

// session is one (date, period) pair with its scheduled tests.
type session struct {
	date   string
	period string
	tests  []tables.Test
}

// block is one half (A or B) of a room during one session. primary is
// the first test seated in the block; the other block of the same room
// must not seat that test.
type block struct {
	room     string
	label    string
	capacity int
	primary  string
	seats    []seat
}

type seat struct {
	usn      string
	testID   string
	testCode string
}

// AllocateAll runs the allocator for every session found in the catalog
// and writes one placement table per session. Sessions that cannot be
// seated are skipped and reported together in the returned error; the
// files of successful sessions are still written.
func (a *Allocator) AllocateAll(ctx context.Context) (written []string, err error) {
	roster := tables.NewRoster(a.ch, a.src.Roster, a.src.Header)
	students, err := roster.All()
	if err != nil {
		return nil, err
	}
	eligible := students[:0:0]
	for _, s := range students {
		if s.Eligible {
			eligible = append(eligible, s)
		}
	}

	catalog, err := tables.NewCatalog(a.ch, a.src.Catalog, a.src.Header).Map()
	if err != nil {
		return nil, err
	}
	rooms, err := tables.NewRooms(a.ch, a.src.Rooms, a.src.Header).All()
	if err != nil {
		return nil, err
	}
	if len(rooms) == 0 {
		return nil, errors.New("no rooms configured")
	}

	var failures []error
	for _, sess := range groupSessions(catalog) {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		rows, aerr := seatSession(sess, eligible, rooms)
		if aerr != nil {
			a.log.Warn("session skipped",
				zap.String("date", sess.date), zap.String("period", sess.period), zap.Error(aerr))
			failures = append(failures, fmt.Errorf("%s %s: %w", sess.date, sess.period, aerr))
			continue
		}
		path := filepath.Join(a.src.Dir, placementFileName(sess.date, sess.period))
		if werr := a.ch.Replace(path, rows); werr != nil {
			return written, werr
		}
		a.log.Info("session allocated",
			zap.String("path", path), zap.Int("rows", len(rows)-1))
		written = append(written, path)
	}
	return written, errors.Join(failures...)
}

// groupSessions buckets catalog tests by (date, period), ordered by the
// same lexicographic key views are sorted with.
func groupSessions(catalog map[string]tables.Test) []session {
	byKey := make(map[string]*session)
	for _, t := range catalog {
		k := t.Date + "\x00" + t.Period
		s, ok := byKey[k]
		if !ok {
			s = &session{date: t.Date, period: t.Period}
			byKey[k] = s
		}
		s.tests = append(s.tests, t)
	}
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]session, 0, len(keys))
	for _, k := range keys {
		s := byKey[k]
		sort.Slice(s.tests, func(i, j int) bool { return s.tests[i].ID < s.tests[j].ID })
		out = append(out, *s)
	}
	return out
}

// seatSession places every student writing in this session. Tests are
// seated in descending demand order; each batch goes to the candidate
// block with the most free seats whose sibling block is not primarily
// hosting the same test.
func seatSession(sess session, students []tables.Student, rooms []tables.Room) ([][]string, error) {
	queues := make(map[string][]string, len(sess.tests))
	codes := make(map[string]string, len(sess.tests))
	need := 0
	for _, t := range sess.tests {
		codes[t.ID] = t.Code
		for _, s := range students {
			if hasTest(s.Tests, t.ID) {
				queues[t.ID] = append(queues[t.ID], s.USN)
				need++
			}
		}
	}

	capacity := 0
	blocks := make([]*block, 0, 2*len(rooms))
	for _, r := range rooms {
		capacity += r.ASeats + r.BSeats
		blocks = append(blocks,
			&block{room: r.Name, label: "A", capacity: r.ASeats},
			&block{room: r.Name, label: "B", capacity: r.BSeats},
		)
	}
	if need > capacity {
		return nil, fmt.Errorf("insufficient seats: need %d, have %d", need, capacity)
	}

	order := make([]string, 0, len(queues))
	for id := range queues {
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool {
		if len(queues[order[i]]) != len(queues[order[j]]) {
			return len(queues[order[i]]) > len(queues[order[j]])
		}
		return order[i] < order[j]
	})

	for _, id := range order {
		queue := queues[id]
		for len(queue) > 0 {
			b := pickBlock(blocks, id)
			if b == nil {
				return nil, fmt.Errorf("unable to place %d students of %s", len(queue), id)
			}
			take := b.capacity - len(b.seats)
			if take > len(queue) {
				take = len(queue)
			}
			for i := 0; i < take; i++ {
				b.seats = append(b.seats, seat{usn: queue[i], testID: id, testCode: codes[id]})
			}
			queue = queue[take:]
			if b.primary == "" {
				b.primary = id
			}
		}
	}

	rows := make([][]string, 0, capacity+1)
	rows = append(rows, tables.PlacementHeader)
	for bi := 0; bi < len(blocks); bi++ {
		b := blocks[bi]
		for i := 0; i < b.capacity; i++ {
			row := []string{sess.date, sess.period, b.room, b.label, strconv.Itoa(i + 1), "", "", ""}
			if i < len(b.seats) {
				row[5], row[6], row[7] = b.seats[i].usn, b.seats[i].testID, b.seats[i].testCode
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// pickBlock returns the block with the most remaining seats that may
// host testID, or nil when none can.
func pickBlock(blocks []*block, testID string) *block {
	var best *block
	bestFree := 0
	for i := 0; i < len(blocks); i += 2 {
		a, b := blocks[i], blocks[i+1]
		for _, cand := range []*block{a, b} {
			other := a
			if cand == a {
				other = b
			}
			if other.primary == testID {
				continue
			}
			free := cand.capacity - len(cand.seats)
			if free > bestFree {
				best, bestFree = cand, free
			}
		}
	}
	return best
}

func hasTest(tests []string, id string) bool {
	for _, t := range tests {
		if t == id {
			return true
		}
	}
	return false
}

// placementFileName builds the conventional per-session file name. The
// date is normalized to YYYYMMDD when it parses in a known layout, and
// sanitized otherwise.
func placementFileName(date, period string) string {
	return fmt.Sprintf("placement_table_%s_%s.csv", dateSlug(date), slug(period))
}

var dateLayouts = []string{"2-Jan-06", "2-Jan-2006", "02-01-2006", "02/01/2006", "2006-01-02"}

func dateSlug(date string) string {
	d := strings.ReplaceAll(strings.TrimSpace(date), "Sept", "Sep")
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, d); err == nil {
			return t.Format("20060102")
		}
	}
	return slug(d)
}

func slug(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, strings.TrimSpace(s))
}
