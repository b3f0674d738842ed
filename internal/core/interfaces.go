package core

import (
	"context"

	"github.com/peersignal/relay/internal/domain"
)

// Frame is a serialized wire message.
type Frame []byte

// Directory is the single source of truth for room membership.
// All mutations are idempotent: adding a present member and removing an
// absent one are no-op successes. An unknown room yields an empty set.
// Implementations must serialize mutations per room (no lost updates under
// concurrent join/leave) and may be backed by anything from a map to an
// external store.
type Directory interface {
	AddMember(ctx context.Context, room domain.RoomID, conn domain.ConnID) error
	RemoveMember(ctx context.Context, room domain.RoomID, conn domain.ConnID) error
	Members(ctx context.Context, room domain.RoomID) ([]domain.ConnID, error)
	// RoomsContaining is the reverse index: every room the connection is a
	// member of. Disconnect events carry only a connection id, so cleanup
	// depends on this lookup.
	RoomsContaining(ctx context.Context, conn domain.ConnID) ([]domain.RoomID, error)
}

// Sender delivers one serialized frame to one connection.
// Owned by the transport adapter; a send must be bounded (deadline or
// non-blocking) and report failure per call, never hang the relay.
type Sender interface {
	SendTo(ctx context.Context, conn domain.ConnID, data Frame) error
}

// DeliveryReport reports fan-out results to the caller. Per-target failure
// never fails the relay call; the policy layer decides what to do with it.
type DeliveryReport struct {
	Sent   int
	Failed []domain.ConnID
}

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"member_count"`
}

// Lister is implemented by directories that can enumerate their rooms.
type Lister interface {
	Rooms(ctx context.Context) ([]RoomInfo, error)
}
