package gameid

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCarriesPrefix(t *testing.T) {
	assert.NoError(t, Validate(Room, NewRoomID()))
	assert.NoError(t, Validate(Hand, NewHandID()))
	assert.NoError(t, Validate(User, NewUserID()))
}

func TestNewUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewRoomID()
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestDeterministicWithInjectedSources(t *testing.T) {
	now := int64(1700000000000)
	a := NewGenerator(rand.New(rand.NewSource(1)), func() int64 { return now })
	b := NewGenerator(rand.New(rand.NewSource(1)), func() int64 { return now })
	assert.Equal(t, a.New(Hand), b.New(Hand))
}

func TestIDsSortByCreationTime(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	now := int64(1700000000000)
	g := NewGenerator(rng, func() int64 { now++; return now })

	ids := make([]string, 100)
	for i := range ids {
		ids[i] = g.New(Room)
	}
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	assert.Equal(t, sorted, ids)
}

func TestValidateRejectsMalformed(t *testing.T) {
	valid := NewRoomID()

	assert.Error(t, Validate(Hand, valid), "wrong prefix")
	assert.Error(t, Validate(Room, "room_short"))
	assert.Error(t, Validate(Room, "room_"+string(make([]byte, 26))), "invalid characters")
	assert.Error(t, Validate(Room, "z"+valid[1:]), "missing prefix")

	// Payload starting beyond '7' would overflow 128 bits.
	overflow := "room_z" + valid[len("room_0"):]
	assert.Error(t, Validate(Room, overflow))
}
