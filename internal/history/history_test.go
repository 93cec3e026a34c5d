package history

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(id, room string, number uint64, players ...string) Record {
	rec := Record{ID: id, RoomID: room, HandNumber: number}
	for i, p := range players {
		rec.PlayerSnapshots = append(rec.PlayerSnapshots, PlayerSnapshot{
			PlayerID: p, SeatIndex: i,
		})
	}
	return rec
}

func TestIndexedByUserAndTable(t *testing.T) {
	a := NewArchive(10)
	a.Add(record("hand_1", "room_a", 1, "usr_1", "usr_2"))
	a.Add(record("hand_2", "room_b", 1, "usr_2"))

	assert.Len(t, a.ForUser("usr_1"), 1)
	assert.Len(t, a.ForUser("usr_2"), 2)
	assert.Len(t, a.ForTable("room_a"), 1)
	assert.Empty(t, a.ForUser("usr_3"))
}

func TestNewestFirst(t *testing.T) {
	a := NewArchive(10)
	for i := 1; i <= 3; i++ {
		a.Add(record(fmt.Sprintf("hand_%d", i), "room_a", uint64(i), "usr_1"))
	}
	got := a.ForTable("room_a")
	require.Len(t, got, 3)
	assert.Equal(t, "hand_3", got[0].ID)
	assert.Equal(t, "hand_1", got[2].ID)
}

func TestRetentionBound(t *testing.T) {
	a := NewArchive(5)
	for i := 1; i <= 12; i++ {
		a.Add(record(fmt.Sprintf("hand_%d", i), "room_a", uint64(i), "usr_1"))
	}
	got := a.ForUser("usr_1")
	require.Len(t, got, 5)
	assert.Equal(t, "hand_12", got[0].ID)
	assert.Equal(t, "hand_8", got[4].ID)
	assert.Len(t, a.ForTable("room_a"), 5)
}

func TestDropTableKeepsUserCopies(t *testing.T) {
	a := NewArchive(10)
	a.Add(record("hand_1", "room_a", 1, "usr_1"))
	a.DropTable("room_a")

	assert.Empty(t, a.ForTable("room_a"))
	assert.Len(t, a.ForUser("usr_1"), 1)
}
