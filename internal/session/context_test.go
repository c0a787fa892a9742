package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kartparty/racehost/pkg/core"
)

func TestContext_Defaults(t *testing.T) {
	ctx := NewContext("party-room")

	assert.Equal(t, "party-room", ctx.RoomName())
	assert.Nil(t, ctx.Track())
	assert.False(t, ctx.StartedAt().IsZero())
}

func TestContext_SetRace(t *testing.T) {
	ctx := NewContext("party-room")

	cfg := core.RaceConfig{Laps: 5, DamageEnabled: true, TrackID: "figure-eight"}
	ctx.SetRace(nil, cfg)

	assert.Equal(t, cfg, ctx.RaceConfig())
}
