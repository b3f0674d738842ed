package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peersignal/relay/internal/directory"
	"github.com/peersignal/relay/internal/domain"
)

func TestRegistryJoinImplicitRoom(t *testing.T) {
	ctx := context.Background()
	dir := directory.NewMemory()
	reg := NewRegistry(dir)

	require.NoError(t, reg.Join(ctx, "r1", "x"))
	members, err := dir.Members(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []domain.ConnID{"x"}, members)
}

func TestRegistryJoinEmptyRoomID(t *testing.T) {
	reg := NewRegistry(directory.NewMemory())
	assert.ErrorIs(t, reg.Join(context.Background(), "", "x"), domain.ErrEmptyRoomID)
}

func TestRegistryJoinIdempotent(t *testing.T) {
	ctx := context.Background()
	dir := directory.NewMemory()
	reg := NewRegistry(dir)

	require.NoError(t, reg.Join(ctx, "r1", "c"))
	require.NoError(t, reg.Join(ctx, "r1", "c"))

	members, err := dir.Members(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []domain.ConnID{"c"}, members)
}

func TestRegistrySingleRoomPerConnection(t *testing.T) {
	ctx := context.Background()
	dir := directory.NewMemory()
	reg := NewRegistry(dir)

	require.NoError(t, reg.Join(ctx, "old", "c"))
	require.NoError(t, reg.Join(ctx, "new", "c"))

	oldMembers, err := dir.Members(ctx, "old")
	require.NoError(t, err)
	assert.Empty(t, oldMembers)

	newMembers, err := dir.Members(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, []domain.ConnID{"c"}, newMembers)
}

func TestRegistryLeaveNeverJoined(t *testing.T) {
	ctx := context.Background()
	dir := directory.NewMemory()
	reg := NewRegistry(dir)

	require.NoError(t, reg.Join(ctx, "r1", "a"))
	require.NoError(t, reg.Leave(ctx, "r1", "stranger"))

	members, err := dir.Members(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []domain.ConnID{"a"}, members)
}

func TestRegistryLeaveAllCleansEveryRoom(t *testing.T) {
	ctx := context.Background()
	dir := directory.NewMemory()
	reg := NewRegistry(dir)

	// Seed the directory directly so the connection sits in two rooms,
	// bypassing the single-room policy the registry enforces on Join.
	require.NoError(t, dir.AddMember(ctx, "A", "c"))
	require.NoError(t, dir.AddMember(ctx, "B", "c"))
	require.NoError(t, dir.AddMember(ctx, "A", "other"))

	require.NoError(t, reg.LeaveAll(ctx, "c"))

	aMembers, err := dir.Members(ctx, "A")
	require.NoError(t, err)
	assert.NotContains(t, aMembers, domain.ConnID("c"))
	assert.Contains(t, aMembers, domain.ConnID("other"))

	bMembers, err := dir.Members(ctx, "B")
	require.NoError(t, err)
	assert.NotContains(t, bMembers, domain.ConnID("c"))
}

func TestRegistryLeaveAllNoRooms(t *testing.T) {
	reg := NewRegistry(directory.NewMemory())
	assert.NoError(t, reg.LeaveAll(context.Background(), "ghost"))
}

func TestRegistryMembersExcluding(t *testing.T) {
	ctx := context.Background()
	dir := directory.NewMemory()
	reg := NewRegistry(dir)

	for _, conn := range []domain.ConnID{"a", "b", "c"} {
		require.NoError(t, dir.AddMember(ctx, "r1", conn))
	}

	peers, err := reg.MembersExcluding(ctx, "r1", "a")
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.ConnID{"b", "c"}, peers)

	peers, err = reg.MembersExcluding(ctx, "empty", "a")
	require.NoError(t, err)
	assert.Empty(t, peers)
}
