package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/peersignal/relay/internal/core"
	"github.com/peersignal/relay/internal/domain"
)

// Registry runs room membership on top of the Directory. It is stateless
// itself; the Directory is the serialization point.
type Registry struct {
	dir core.Directory
}

func NewRegistry(dir core.Directory) *Registry {
	return &Registry{dir: dir}
}

// Join adds the connection to the room. A connection lives in at most one
// room: joining while a member elsewhere leaves the prior room first.
func (r *Registry) Join(ctx context.Context, room domain.RoomID, conn domain.ConnID) error {
	if room == "" {
		return domain.ErrEmptyRoomID
	}
	prior, err := r.dir.RoomsContaining(ctx, conn)
	if err != nil {
		return fmt.Errorf("join %s: %w", room, err)
	}
	for _, p := range prior {
		if p == room {
			continue
		}
		if err := r.dir.RemoveMember(ctx, p, conn); err != nil {
			return fmt.Errorf("join %s: leave prior %s: %w", room, p, err)
		}
		log.Info().Str("module", "app.registry").Str("conn", string(conn)).Str("from_room", string(p)).Msg("left prior room")
	}
	if err := r.dir.AddMember(ctx, room, conn); err != nil {
		return fmt.Errorf("join %s: %w", room, err)
	}
	log.Info().Str("module", "app.registry").Str("conn", string(conn)).Str("room", string(room)).Msg("joined")
	return nil
}

func (r *Registry) Leave(ctx context.Context, room domain.RoomID, conn domain.ConnID) error {
	if err := r.dir.RemoveMember(ctx, room, conn); err != nil {
		return fmt.Errorf("leave %s: %w", room, err)
	}
	log.Info().Str("module", "app.registry").Str("conn", string(conn)).Str("room", string(room)).Msg("left")
	return nil
}

// LeaveAll removes the connection from every room it is indexed in. Used on
// disconnect. Cleanup is best-effort per room: one room failing does not stop
// the sweep, and zero rooms found is a success.
func (r *Registry) LeaveAll(ctx context.Context, conn domain.ConnID) error {
	rooms, err := r.dir.RoomsContaining(ctx, conn)
	if err != nil {
		return fmt.Errorf("leave all: %w", err)
	}
	var errs []error
	for _, room := range rooms {
		if err := r.dir.RemoveMember(ctx, room, conn); err != nil {
			log.Error().Err(err).Str("module", "app.registry").Str("conn", string(conn)).Str("room", string(room)).Msg("cleanup failed")
			errs = append(errs, fmt.Errorf("leave all: room %s: %w", room, err))
		}
	}
	log.Info().Str("module", "app.registry").Str("conn", string(conn)).Int("rooms", len(rooms)).Msg("left all rooms")
	return errors.Join(errs...)
}

// MembersExcluding resolves the room's member set minus one connection.
// An empty result is not an error.
func (r *Registry) MembersExcluding(ctx context.Context, room domain.RoomID, conn domain.ConnID) ([]domain.ConnID, error) {
	members, err := r.dir.Members(ctx, room)
	if err != nil {
		return nil, fmt.Errorf("members of %s: %w", room, err)
	}
	out := members[:0]
	for _, m := range members {
		if m != conn {
			out = append(out, m)
		}
	}
	return out, nil
}
