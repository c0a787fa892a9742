// pkg/core/events.go
package core

// Event names published on the bus. Components subscribe by name and never
// hold direct references to each other.
const (
	EventVehicleJoined    = "vehicle:joined"
	EventVehicleLeft      = "vehicle:left"
	EventRaceStarted      = "race:started"
	EventRaceFinished     = "race:finished"
	EventVehicleDestroyed = "vehicle:destroyed"
	EventVehicleRespawned = "vehicle:respawned"
	EventPhaseChanged     = "phase:changed"
)

// VehicleJoined announces a vehicle entering the session.
type VehicleJoined struct {
	ID    VehicleID
	Name  string
	Color string
}

// VehicleLeft announces a vehicle leaving the session.
type VehicleLeft struct {
	ID VehicleID
}

// RaceStarted announces racing going live after the countdown.
type RaceStarted struct {
	LapTarget int
	TrackID   string
}

// RaceFinished carries the final standings, ordered by rank.
type RaceFinished struct {
	Result RaceResult
}

// VehicleDestroyed announces health reaching zero. The visual representation
// is hidden until the matching VehicleRespawned.
type VehicleDestroyed struct {
	ID VehicleID
}

// VehicleRespawned announces a vehicle returning to play at full health.
type VehicleRespawned struct {
	ID VehicleID
}

// PhaseChanged announces an engine phase transition.
type PhaseChanged struct {
	From string
	To   string
}
