// pkg/core/race.go
package core

import "time"

// RaceConfig is the race-start configuration consumed from the lobby.
type RaceConfig struct {
	Laps          int    `json:"laps"`
	DamageEnabled bool   `json:"damageEnabled"`
	TrackID       string `json:"trackId"`
}

// ResultEntry is one vehicle's final standing.
type ResultEntry struct {
	VehicleID VehicleID       `json:"vehicleId"`
	Rank      int             `json:"rank"`
	LapTimes  []time.Duration `json:"lapTimes"`
	Finished  bool            `json:"finished"`
}

// RaceResult is the derived read-only outcome of a completed race, ordered
// by rank.
type RaceResult struct {
	Entries []ResultEntry `json:"results"`
}
