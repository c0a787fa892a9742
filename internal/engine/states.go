package engine

import (
	"time"
)

// loadingState covers startup while the track and relay connection come up.
// Assemble() moves to the lobby once dependencies are wired.
type loadingState struct {
	e *Engine
}

func (s *loadingState) Phase() Phase     { return PhaseLoading }
func (s *loadingState) Enter(time.Time)  {}
func (s *loadingState) Update(time.Time) {}
func (s *loadingState) Exit(time.Time)   {}

// lobbyState waits for a start request. Vehicles drive around freely with
// damage disabled.
type lobbyState struct {
	e *Engine
}

func (s *lobbyState) Phase() Phase { return PhaseLobby }

func (s *lobbyState) Enter(time.Time) {
	s.e.deps.Damage.SetEnabled(false)
}

func (s *lobbyState) Update(now time.Time) {
	cfg, ok := s.e.takeStartRequest()
	if !ok {
		return
	}
	s.e.pendingRace = cfg
	if s.e.deps.Session != nil {
		s.e.deps.Session.SetRace(s.e.deps.Track, cfg)
	}
	if err := s.e.machine.Transition(PhaseCountdown, now); err != nil {
		s.e.log.Warn("Start request rejected", "error", err)
	}
}

func (s *lobbyState) Exit(time.Time) {}

// countdownState snaps every vehicle back to its spawn, clears progress and
// health, and holds control input until the delay elapses.
type countdownState struct {
	e    *Engine
	ends time.Time
}

func (s *countdownState) Phase() Phase { return PhaseCountdown }

func (s *countdownState) Enter(now time.Time) {
	s.ends = now.Add(s.e.countdown)
	s.e.resetGrid()
}

func (s *countdownState) Update(now time.Time) {
	if now.Before(s.ends) {
		return
	}
	if err := s.e.machine.Transition(PhaseRacing, now); err != nil {
		s.e.log.Error("Failed to go live after countdown", "error", err)
	}
}

func (s *countdownState) Exit(time.Time) {}

// racingState runs the live race: control input is honored, damage follows
// the race config, and the race system adjudicates progress.
type racingState struct {
	e *Engine
}

func (s *racingState) Phase() Phase { return PhaseRacing }

func (s *racingState) Enter(now time.Time) {
	cfg := s.e.pendingRace
	s.e.deps.Damage.SetEnabled(cfg.DamageEnabled)
	s.e.deps.Race.Start(cfg.Laps, s.e.finishTimeout, now)
}

func (s *racingState) Update(now time.Time) {
	if s.e.deps.Race.Running() {
		return
	}
	if err := s.e.machine.Transition(PhaseResults, now); err != nil {
		s.e.log.Error("Failed to enter results", "error", err)
	}
}

func (s *racingState) Exit(time.Time) {}

// resultsState shows final standings, then cycles back to the lobby.
type resultsState struct {
	e    *Engine
	ends time.Time
}

func (s *resultsState) Phase() Phase { return PhaseResults }

func (s *resultsState) Enter(now time.Time) {
	s.ends = now.Add(s.e.resultsHold)
	s.e.deps.Damage.SetEnabled(false)
}

func (s *resultsState) Update(now time.Time) {
	if now.Before(s.ends) {
		return
	}
	if err := s.e.machine.Transition(PhaseLobby, now); err != nil {
		s.e.log.Error("Failed to return to lobby", "error", err)
	}
}

func (s *resultsState) Exit(time.Time) {}
