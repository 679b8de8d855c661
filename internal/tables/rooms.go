package tables

import (
	"sort"
	"strconv"

	"examdesk/internal/tablefile"
)

// Room is one examination room with two invigilation blocks.
type Room struct {
	Name   string
	ASeats int
	BSeats int
}

const (
	roomsMinFields  = 3
	roomsHeaderCell = "room"
)

// Rooms reads the room capacity table: columns Room, ASeats, BSeats.
type Rooms struct {
	ch     *tablefile.Channel
	path   string
	header HeaderMode
}

func NewRooms(ch *tablefile.Channel, path string, header HeaderMode) *Rooms {
	return &Rooms{ch: ch, path: path, header: header}
}

// All returns the rooms, largest total capacity first, which is the
// order the allocator fills them in.
func (r *Rooms) All() ([]Room, error) {
	rows, err := r.ch.Read(r.path)
	if err != nil {
		return nil, err
	}
	rows = dropHeader(rows, r.header, roomsHeaderCell)

	rooms := make([]Room, 0, len(rows))
	for _, row := range rows {
		if len(row) < roomsMinFields {
			continue
		}
		if row[0] == "" {
			continue
		}
		rooms = append(rooms, Room{
			Name:   row[0],
			ASeats: parseSeats(row[1]),
			BSeats: parseSeats(row[2]),
		})
	}
	sort.SliceStable(rooms, func(i, j int) bool {
		return rooms[i].ASeats+rooms[i].BSeats > rooms[j].ASeats+rooms[j].BSeats
	})
	return rooms, nil
}

func parseSeats(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
