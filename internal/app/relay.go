package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/peersignal/relay/internal/core"
	"github.com/peersignal/relay/internal/domain"
)

// Sends are I/O-bound against the transport, so fan-out runs a bounded pool.
const maxFanOut = 16

// RelayEngine forwards a message from one room member to all others.
// It never inspects payload contents and never evicts a failing target;
// that is the Policy's call.
type RelayEngine struct {
	registry *Registry
	sender   core.Sender
}

func NewRelayEngine(registry *Registry, sender core.Sender) *RelayEngine {
	return &RelayEngine{registry: registry, sender: sender}
}

// Relay delivers env to every member of room except from. Per-target
// delivery is independent: one failed send never aborts the others and never
// fails the call. The returned error is reserved for a bad room id or a
// directory failure, in which case nothing was sent.
func (e *RelayEngine) Relay(ctx context.Context, room domain.RoomID, from domain.ConnID, env domain.Envelope) (core.DeliveryReport, error) {
	if room == "" {
		return core.DeliveryReport{}, domain.ErrEmptyRoomID
	}
	targets, err := e.registry.MembersExcluding(ctx, room, from)
	if err != nil {
		return core.DeliveryReport{}, err
	}
	if len(targets) == 0 {
		return core.DeliveryReport{}, nil
	}

	data, err := json.Marshal(domain.Relayed{
		Type:    env.Type,
		Payload: env.Payload,
		From:    string(from),
	})
	if err != nil {
		return core.DeliveryReport{}, fmt.Errorf("marshal relayed: %w", err)
	}

	var (
		mu     sync.Mutex
		report core.DeliveryReport
	)
	p := pool.New().WithMaxGoroutines(maxFanOut)
	for _, target := range targets {
		target := target // per-iteration copy: required for correct capture under go < 1.22
		p.Go(func() {
			err := e.sender.SendTo(ctx, target, data)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Warn().Err(err).Str("module", "app.relay").Str("room", string(room)).Str("target", string(target)).Msg("delivery failed")
				report.Failed = append(report.Failed, target)
				return
			}
			report.Sent++
		})
	}
	p.Wait()

	log.Debug().Str("module", "app.relay").Str("room", string(room)).Str("from", string(from)).Int("sent", report.Sent).Int("failed", len(report.Failed)).Msg("relayed")
	return report, nil
}
