// Package intake turns raw relay messages into engine work. Control samples
// land in the intent buffer (last-write-wins); joins, leaves, and start
// requests are queued for the engine's next tick boundary. A malformed
// message is discarded and the previous intent stays in place.
package intake

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kartparty/racehost/internal/cache"
	"github.com/kartparty/racehost/internal/util"
	"github.com/kartparty/racehost/pkg/core"
	"github.com/kartparty/racehost/pkg/wire"
)

// Sink receives lifecycle work parsed from the relay. *engine.Engine
// satisfies this.
type Sink interface {
	QueueJoin(core.VehicleJoined)
	QueueLeave(core.VehicleID)
	RequestStart(core.RaceConfig)
}

// Handler routes decoded envelopes. Safe for use from the read goroutine:
// it only touches thread-safe sinks.
type Handler struct {
	sink    Sink
	intents *cache.IntentBuffer
	log     *slog.Logger
}

// NewHandler creates a message handler.
func NewHandler(sink Sink, intents *cache.IntentBuffer, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{sink: sink, intents: intents, log: log}
}

// Handle decodes and routes one raw relay message. Errors mean the message
// was discarded; the caller keeps reading.
func (h *Handler) Handle(data []byte) error {
	var env wire.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("malformed envelope: %w", err)
	}

	switch env.Type {
	case wire.TypeControlInput:
		return h.handleControlInput(env.Payload)
	case wire.TypePlayerJoin:
		return h.handlePlayerJoin(env.Payload)
	case wire.TypePlayerLeave:
		return h.handlePlayerLeave(env.Payload)
	case wire.TypeStartRace:
		return h.handleStartRace(env.Payload)
	default:
		// The relay may add message types this host predates.
		h.log.Debug("Ignoring unknown message type", "type", env.Type)
		return nil
	}
}

func (h *Handler) handleControlInput(payload json.RawMessage) error {
	var p wire.ControlInputPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("malformed control input: %w", err)
	}
	if !util.Finite(p.Steering) || !util.Finite(p.Throttle) || !util.Finite(p.Brake) {
		return fmt.Errorf("non-finite control input for vehicle %d", p.VehicleID)
	}
	h.intents.Set(core.VehicleID(p.VehicleID), core.ControlIntent{
		Steering: p.Steering,
		Throttle: p.Throttle,
		Brake:    p.Brake,
	})
	return nil
}

func (h *Handler) handlePlayerJoin(payload json.RawMessage) error {
	var p wire.PlayerJoinPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("malformed player join: %w", err)
	}
	h.sink.QueueJoin(core.VehicleJoined{
		ID:    core.VehicleID(p.VehicleID),
		Name:  p.Name,
		Color: p.Color,
	})
	return nil
}

func (h *Handler) handlePlayerLeave(payload json.RawMessage) error {
	var p wire.PlayerLeavePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("malformed player leave: %w", err)
	}
	h.sink.QueueLeave(core.VehicleID(p.VehicleID))
	h.intents.Remove(core.VehicleID(p.VehicleID))
	return nil
}

func (h *Handler) handleStartRace(payload json.RawMessage) error {
	var p wire.StartRacePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("malformed start race: %w", err)
	}
	h.sink.RequestStart(p.Config)
	return nil
}
