package room

import (
	"fmt"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xingzihai/soundroom/internal/protocol"
)

func TestCreateRoom_Defaults(t *testing.T) {
	m := NewManager()

	rm, err := m.CreateRoom("conn-a", "alice")
	require.NoError(t, err)

	assert.Equal(t, "conn-a", rm.HostID)
	assert.Equal(t, []Member{{ID: "conn-a", Name: "alice"}}, rm.Members)
	assert.Nil(t, rm.CurrentTrack)
	assert.Equal(t, protocol.StatePaused, rm.PlaybackState)
	assert.Zero(t, rm.Position)
	assert.Same(t, rm, m.GetRoom(rm.ID))
}

func TestCreateRoom_EmptyUsername(t *testing.T) {
	m := NewManager()

	rm, err := m.CreateRoom("conn-a", "")
	require.NoError(t, err)
	assert.Equal(t, []Member{{ID: "conn-a", Name: ""}}, rm.Members)
}

func TestCodeFormat(t *testing.T) {
	m := NewManager()
	pattern := regexp.MustCompile(`^[0-9A-Z]{6}$`)

	for i := 0; i < 200; i++ {
		rm, err := m.CreateRoom(fmt.Sprintf("conn-%d", i), "user")
		require.NoError(t, err)
		assert.Regexp(t, pattern, rm.ID)
	}
	assert.Equal(t, 200, m.RoomCount())
}

func TestDeleteRoom(t *testing.T) {
	m := NewManager()
	rm, err := m.CreateRoom("conn-a", "alice")
	require.NoError(t, err)

	m.DeleteRoom(rm.ID)

	assert.Nil(t, m.GetRoom(rm.ID))
	assert.Zero(t, m.RoomCount())
	m.DeleteRoom(rm.ID) // deleting twice is safe
}

func TestGetRooms_Snapshot(t *testing.T) {
	m := NewManager()
	r1, err := m.CreateRoom("conn-a", "alice")
	require.NoError(t, err)
	r2, err := m.CreateRoom("conn-b", "bob")
	require.NoError(t, err)

	assert.ElementsMatch(t, []*Room{r1, r2}, m.GetRooms())
}

func TestRoom_Members(t *testing.T) {
	rm := &Room{ID: "ABC123", HostID: "conn-a", Members: []Member{{ID: "conn-a", Name: "alice"}}}

	rm.AddMember("conn-b", "bob")
	rm.AddMember("conn-c", "bob") // duplicate names are allowed

	assert.Equal(t, []Member{
		{ID: "conn-a", Name: "alice"},
		{ID: "conn-b", Name: "bob"},
		{ID: "conn-c", Name: "bob"},
	}, rm.Members, "join order preserved")

	assert.Equal(t, []protocol.MemberInfo{
		{ID: "conn-a", Name: "alice"},
		{ID: "conn-b", Name: "bob"},
		{ID: "conn-c", Name: "bob"},
	}, rm.MemberList())

	assert.True(t, rm.RemoveMember("conn-b"))
	assert.Equal(t, []Member{{ID: "conn-a", Name: "alice"}, {ID: "conn-c", Name: "bob"}}, rm.Members)
	assert.False(t, rm.RemoveMember("conn-b"), "removal is idempotent")
}
