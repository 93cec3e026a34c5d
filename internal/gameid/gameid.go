// Package gameid generates sortable, prefixed identifiers for rooms,
// hands, and users: a type prefix followed by a UUIDv7 encoded as a
// 26-character Crockford base32 string (the TypeID layout). The
// embedded millisecond timestamp makes ids of one kind sort by
// creation time.
package gameid

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"
)

// Crockford's base32 alphabet.
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// Kind is the id namespace, encoded as the prefix before the
// underscore.
type Kind string

const (
	Room Kind = "room"
	Hand Kind = "hand"
	User Kind = "usr"
)

// RandSource supplies the random tail bytes. Inject a deterministic
// source in tests; nil falls back to crypto/rand.
type RandSource interface {
	Intn(n int) int
}

// NowMillis supplies the UUIDv7 timestamp. Injected so tests can pin
// ids to a fixed instant.
type NowMillis func() int64

// Generator mints ids for one deployment.
type Generator struct {
	randSource RandSource
	nowMillis  NowMillis
}

// NewGenerator builds a Generator. Either argument may be nil:
// randSource falls back to crypto/rand and nowMillis to the wall
// clock.
func NewGenerator(randSource RandSource, nowMillis NowMillis) *Generator {
	return &Generator{randSource: randSource, nowMillis: nowMillis}
}

var defaultGenerator = NewGenerator(nil, nil)

// NewRoomID mints a room id with the process-default generator.
func NewRoomID() string { return defaultGenerator.New(Room) }

// NewHandID mints a hand id with the process-default generator.
func NewHandID() string { return defaultGenerator.New(Hand) }

// NewUserID mints a user id with the process-default generator.
func NewUserID() string { return defaultGenerator.New(User) }

// New mints an id of the given kind, e.g. "room_01h2xcejqtf2nbrexx3vqjhp41".
func (g *Generator) New(kind Kind) string {
	return string(kind) + "_" + encodeBase32(g.uuidv7())
}

func (g *Generator) uuidv7() [16]byte {
	var uuid [16]byte

	var now int64
	if g.nowMillis != nil {
		now = g.nowMillis()
	} else {
		now = time.Now().UnixMilli()
	}

	// 48-bit millisecond timestamp.
	uuid[0] = byte(now >> 40)
	uuid[1] = byte(now >> 32)
	uuid[2] = byte(now >> 24)
	uuid[3] = byte(now >> 16)
	uuid[4] = byte(now >> 8)
	uuid[5] = byte(now)

	if g.randSource != nil {
		for i := 6; i < 16; i++ {
			uuid[i] = byte(g.randSource.Intn(256))
		}
	} else {
		if _, err := rand.Read(uuid[6:]); err != nil {
			panic("gameid: read random bytes: " + err.Error())
		}
	}

	// Version 7, variant 10.
	uuid[6] = (uuid[6] & 0x0f) | 0x70
	uuid[8] = (uuid[8] & 0x3f) | 0x80

	return uuid
}

// encodeBase32 packs 128 bits into 26 base32 characters, 5 bits per
// character, most significant bits first.
func encodeBase32(data [16]byte) string {
	result := make([]byte, 26)
	for i := 0; i < 26; i++ {
		bitOffset := i * 5
		byteIndex := bitOffset / 8
		bitIndex := bitOffset % 8

		var value uint8
		if byteIndex < 16 {
			if bitIndex <= 3 {
				value = (data[byteIndex] >> (3 - bitIndex)) & 0x1f
			} else {
				value = (data[byteIndex] << (bitIndex - 3)) & 0x1f
				if byteIndex+1 < 16 {
					value |= data[byteIndex+1] >> (11 - bitIndex)
				}
			}
		}
		result[i] = alphabet[value]
	}
	return string(result)
}

// Validate checks that an id carries the expected kind prefix and a
// well-formed 26-character base32 payload.
func Validate(kind Kind, id string) error {
	prefix := string(kind) + "_"
	if !strings.HasPrefix(id, prefix) {
		return fmt.Errorf("gameid: %q does not have prefix %q", id, prefix)
	}
	payload := id[len(prefix):]
	if len(payload) != 26 {
		return fmt.Errorf("gameid: payload must be 26 characters, got %d", len(payload))
	}
	// 128 bits padded to 130: the leading character carries 2 zero
	// pad bits, so it never exceeds '7'.
	if payload[0] > '7' {
		return fmt.Errorf("gameid: first payload character must be 0-7, got %c", payload[0])
	}
	for i := 0; i < len(payload); i++ {
		if !strings.ContainsRune(alphabet, rune(payload[i])) {
			return fmt.Errorf("gameid: invalid character %c at position %d", payload[i], i)
		}
	}
	return nil
}
