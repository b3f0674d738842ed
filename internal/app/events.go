package app

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/peersignal/relay/internal/domain"
)

// Status is the HTTP-style outcome the transport layer acts on.
type Status int

const (
	StatusAccepted Status = 200
	StatusBadEvent Status = 400
	StatusInternal Status = 500
)

type EventKind string

const (
	EventConnect    EventKind = "connect"
	EventDisconnect EventKind = "disconnect"
	EventMessage    EventKind = "message"
)

// Event is one inbound lifecycle or message event from the transport.
// Room is set for connect only; Data carries the raw payload for message.
type Event struct {
	Kind EventKind
	Conn domain.ConnID
	Room domain.RoomID
	Data []byte
}

// Router is the core's entry point: one event in, one status out. It holds
// no state of its own; events for different connections may be dispatched
// concurrently and in any order.
type Router struct {
	Registry *Registry
	Relay    *RelayEngine
	Policy   Policy
}

func (rt *Router) Dispatch(ctx context.Context, ev Event) Status {
	switch ev.Kind {
	case EventConnect:
		return rt.handleConnect(ctx, ev)
	case EventDisconnect:
		return rt.handleDisconnect(ctx, ev)
	case EventMessage:
		return rt.handleMessage(ctx, ev)
	default:
		log.Warn().Str("module", "app.router").Str("kind", string(ev.Kind)).Msg("unknown event kind")
		return StatusBadEvent
	}
}

func (rt *Router) handleConnect(ctx context.Context, ev Event) Status {
	if ev.Room == "" {
		return StatusBadEvent
	}
	if err := rt.Registry.Join(ctx, ev.Room, ev.Conn); err != nil {
		if errors.Is(err, domain.ErrEmptyRoomID) {
			return StatusBadEvent
		}
		log.Error().Err(err).Str("module", "app.router").Str("conn", string(ev.Conn)).Msg("connect failed")
		return StatusInternal
	}
	return StatusAccepted
}

func (rt *Router) handleDisconnect(ctx context.Context, ev Event) Status {
	if err := rt.Registry.LeaveAll(ctx, ev.Conn); err != nil {
		log.Error().Err(err).Str("module", "app.router").Str("conn", string(ev.Conn)).Msg("disconnect cleanup failed")
		return StatusInternal
	}
	return StatusAccepted
}

func (rt *Router) handleMessage(ctx context.Context, ev Event) Status {
	// Malformed JSON is treated as an absent envelope and rejected below,
	// the same as a missing roomId.
	var env domain.Envelope
	if err := json.Unmarshal(ev.Data, &env); err != nil {
		env = domain.Envelope{}
	}
	if env.RoomID == "" {
		return StatusBadEvent
	}

	room := domain.RoomID(env.RoomID)
	report, err := rt.Relay.Relay(ctx, room, ev.Conn, env)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyRoomID) {
			return StatusBadEvent
		}
		log.Error().Err(err).Str("module", "app.router").Str("conn", string(ev.Conn)).Str("room", env.RoomID).Msg("relay failed")
		return StatusInternal
	}
	if len(report.Failed) > 0 && rt.Policy != nil {
		rt.Policy.OnDeliveryFailure(ctx, room, report.Failed)
	}
	return StatusAccepted
}
