package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/peersignal/relay/internal/domain"
)

// Policy decides what happens to room members that failed delivery.
// Kept outside the relay engine so the engine stays pure fan-out.
type Policy interface {
	OnDeliveryFailure(ctx context.Context, room domain.RoomID, failed []domain.ConnID)
}

// LogPolicy records failures and leaves membership alone.
type LogPolicy struct{}

func (LogPolicy) OnDeliveryFailure(_ context.Context, room domain.RoomID, failed []domain.ConnID) {
	for _, conn := range failed {
		log.Warn().Str("module", "app.policy").Str("room", string(room)).Str("conn", string(conn)).Msg("stale member, keeping")
	}
}

// EvictPolicy removes failed targets from the room, on the assumption that a
// connection that cannot be written to has silently dropped.
type EvictPolicy struct {
	Registry *Registry
}

func (p EvictPolicy) OnDeliveryFailure(ctx context.Context, room domain.RoomID, failed []domain.ConnID) {
	for _, conn := range failed {
		if err := p.Registry.Leave(ctx, room, conn); err != nil {
			log.Error().Err(err).Str("module", "app.policy").Str("room", string(room)).Str("conn", string(conn)).Msg("evict failed")
			continue
		}
		log.Info().Str("module", "app.policy").Str("room", string(room)).Str("conn", string(conn)).Msg("evicted stale member")
	}
}

// NewPolicy maps the relay_policy config value to an implementation.
func NewPolicy(kind string, registry *Registry) Policy {
	if kind == "evict" {
		return EvictPolicy{Registry: registry}
	}
	return LogPolicy{}
}
