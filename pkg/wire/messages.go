package wire

import (
	"encoding/json"

	"github.com/kartparty/racehost/pkg/core"
)

// Message type constants matching the relay protocol.
const (
	TypeControlInput = "control_input"
	TypePlayerJoin   = "player_join"
	TypePlayerLeave  = "player_leave"
	TypeStartRace    = "start_race"
	TypeHostState    = "host_state"
	TypeRaceResults  = "race_results"
)

// Envelope wraps all messages exchanged with the relay over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ControlInputPayload is one raw control sample for a vehicle. The relay
// forwards these at whatever rate the controller produces them (commonly
// 10-30Hz); duplicates and reordering are tolerated downstream.
type ControlInputPayload struct {
	VehicleID uint16  `json:"vehicleId"`
	Steering  float64 `json:"steering"`
	Throttle  float64 `json:"throttle"`
	Brake     float64 `json:"brake"`
}

// PlayerJoinPayload announces a controller joining the room.
type PlayerJoinPayload struct {
	VehicleID uint16 `json:"vehicleId"`
	Name      string `json:"name"`
	Color     string `json:"color"`
}

// PlayerLeavePayload announces a controller leaving the room.
type PlayerLeavePayload struct {
	VehicleID uint16 `json:"vehicleId"`
}

// StartRacePayload is the lobby's race-start request.
type StartRacePayload struct {
	Config core.RaceConfig `json:"config"`
}

// RaceResultsPayload carries final standings back to controllers.
type RaceResultsPayload struct {
	Result core.RaceResult `json:"result"`
}
