package relay

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snackrun/internal/protocol"
)

// sequenceCodes hands out the given codes in order, repeating the last one.
func sequenceCodes(codes ...string) CodeGenerator {
	i := 0
	return func() string {
		c := codes[i]
		if i < len(codes)-1 {
			i++
		}
		return c
	}
}

func TestRegistry_CreateRetriesOnCollision(t *testing.T) {
	reg := NewRegistry(sequenceCodes("AAAA", "AAAA", "BBBB"))

	first, err := reg.Create(newFakePeer("h1"))
	require.NoError(t, err)
	second, err := reg.Create(newFakePeer("h2"))
	require.NoError(t, err)

	assert.Equal(t, "AAAA", first)
	assert.Equal(t, "BBBB", second)
	assert.Equal(t, 2, reg.Len())
}

func TestRegistry_CreateExhausted(t *testing.T) {
	reg := NewRegistry(sequenceCodes("AAAA"))
	_, err := reg.Create(newFakePeer("h1"))
	require.NoError(t, err)

	_, err = reg.Create(newFakePeer("h2"))
	assert.ErrorIs(t, err, ErrNoFreeCode)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_CodesUniqueAmongOpenRooms(t *testing.T) {
	reg := NewRegistry(RandomCodes(rand.New(rand.NewPCG(7, 7))))
	seen := make(map[string]bool)
	for i := 0; i < 2000; i++ {
		code, err := reg.Create(newFakePeer(fmt.Sprintf("host-%d", i)))
		require.NoError(t, err)
		require.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
	assert.Equal(t, 2000, reg.Len())
}

func TestRegistry_Join(t *testing.T) {
	reg := NewRegistry(sequenceCodes("ABCD"))
	host, guest, late := newFakePeer("host"), newFakePeer("guest"), newFakePeer("late")

	code, err := reg.Create(host)
	require.NoError(t, err)

	_, err = reg.Join("ZZZZ", guest)
	assert.ErrorIs(t, err, ErrRoomNotFound)

	room, err := reg.Join(code, guest)
	require.NoError(t, err)
	assert.True(t, room.Joined())
	assert.Same(t, guest, room.Guest)

	_, err = reg.Join(code, late)
	assert.ErrorIs(t, err, ErrRoomFull)
	room, _ = reg.Lookup(code)
	assert.Same(t, guest, room.Guest, "a full room keeps its guest")

	_, role, ok := reg.RoleOf(host)
	assert.True(t, ok)
	assert.Equal(t, protocol.RoleHost, role)
	_, role, _ = reg.RoleOf(guest)
	assert.Equal(t, protocol.RoleGuest, role)
	_, _, ok = reg.RoleOf(late)
	assert.False(t, ok)
}

func TestRegistry_PeerBoundOnce(t *testing.T) {
	reg := NewRegistry(sequenceCodes("ABCD", "EFGH"))
	host := newFakePeer("host")

	code, err := reg.Create(host)
	require.NoError(t, err)

	_, err = reg.Create(host)
	assert.ErrorIs(t, err, ErrAlreadyInRoom)
	_, err = reg.Join(code, host)
	assert.ErrorIs(t, err, ErrAlreadyInRoom)
}

func TestRegistry_Counterpart(t *testing.T) {
	reg := NewRegistry(sequenceCodes("ABCD"))
	host, guest := newFakePeer("host"), newFakePeer("guest")
	code, _ := reg.Create(host)

	_, ok := reg.Counterpart(host)
	assert.False(t, ok, "no guest yet")

	_, err := reg.Join(code, guest)
	require.NoError(t, err)

	other, ok := reg.Counterpart(host)
	assert.True(t, ok)
	assert.Same(t, guest, other)
	other, ok = reg.Counterpart(guest)
	assert.True(t, ok)
	assert.Same(t, host, other)
}

func TestRegistry_LeaveDestroysRoom(t *testing.T) {
	for _, leaver := range []string{"host", "guest"} {
		t.Run(leaver+" leaves", func(t *testing.T) {
			reg := NewRegistry(sequenceCodes("ABCD"))
			host, guest := newFakePeer("host"), newFakePeer("guest")
			code, _ := reg.Create(host)
			_, err := reg.Join(code, guest)
			require.NoError(t, err)

			gone, stays := Peer(host), Peer(guest)
			if leaver == "guest" {
				gone, stays = guest, host
			}

			survivor, closed, ok := reg.Leave(gone)
			require.True(t, ok)
			assert.Equal(t, code, closed)
			assert.Same(t, stays, survivor)

			_, exists := reg.Lookup(code)
			assert.False(t, exists)
			_, _, bound := reg.RoleOf(stays)
			assert.False(t, bound, "survivor binding cleared")

			_, err = reg.Join(code, newFakePeer("newcomer"))
			assert.ErrorIs(t, err, ErrRoomNotFound)
		})
	}
}

func TestRegistry_LeaveUnbound(t *testing.T) {
	reg := NewRegistry(sequenceCodes("ABCD"))
	_, _, ok := reg.Leave(newFakePeer("stranger"))
	assert.False(t, ok)
}

func TestRegistry_SurvivorRetiredUntilItLeaves(t *testing.T) {
	reg := NewRegistry(sequenceCodes("ABCD", "EFGH", "JKLM"))
	host, guest := newFakePeer("host"), newFakePeer("guest")
	code, err := reg.Create(host)
	require.NoError(t, err)
	_, err = reg.Join(code, guest)
	require.NoError(t, err)

	reg.Leave(host)

	_, err = reg.Create(guest)
	assert.ErrorIs(t, err, ErrConnectionUsed)
	other, err := reg.Create(newFakePeer("other"))
	require.NoError(t, err)
	_, err = reg.Join(other, guest)
	assert.ErrorIs(t, err, ErrConnectionUsed)

	// The mark goes with the connection.
	_, _, ok := reg.Leave(guest)
	assert.False(t, ok)
	assert.Empty(t, reg.retired)
}
