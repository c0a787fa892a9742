package intake

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartparty/racehost/pkg/core"
	"github.com/kartparty/racehost/pkg/wire"
)

// testRelay upgrades to WebSocket, records outbound host messages, and can
// push inbound controller messages.
func testRelay(t *testing.T) (*httptest.Server, *relayLog) {
	t.Helper()
	rl := &relayLog{push: make(chan []byte, 16)}

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rl.mu.Lock()
		rl.rooms = append(rl.rooms, r.URL.Query().Get("room"))
		rl.mu.Unlock()

		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()

		go func() {
			for data := range rl.push {
				if err := c.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			var env wire.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			rl.add(env)
		}
	}))

	return srv, rl
}

type relayLog struct {
	mu       sync.Mutex
	messages []wire.Envelope
	rooms    []string
	push     chan []byte
}

func (r *relayLog) add(env wire.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, env)
}

func (r *relayLog) all() []wire.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]wire.Envelope, len(r.messages))
	copy(cp, r.messages)
	return cp
}

func (r *relayLog) roomsSeen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]string, len(r.rooms))
	copy(cp, r.rooms)
	return cp
}

func relayURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestConnection_RoutesInboundToHandler(t *testing.T) {
	srv, rl := testRelay(t)
	defer srv.Close()

	h, sink, intents := newTestHandler()
	c := NewConnection(h, nil)
	require.NoError(t, c.Dial(relayURL(srv), "key", "party-room"))
	defer c.Close()

	rl.push <- []byte(`{"type":"player_join","payload":{"vehicleId":4,"name":"kim"}}`)
	rl.push <- []byte(`{"type":"control_input","payload":{"vehicleId":4,"throttle":0.6}}`)

	waitFor(t, func() bool { return intents.Len() == 1 })
	assert.Len(t, sink.joins, 1)
	got, _ := intents.Get(4)
	assert.Equal(t, 0.6, got.Throttle)

	rooms := rl.roomsSeen()
	require.Len(t, rooms, 1)
	assert.Equal(t, "party-room", rooms[0])
}

func TestConnection_SendEnvelope(t *testing.T) {
	srv, rl := testRelay(t)
	defer srv.Close()

	h, _, _ := newTestHandler()
	c := NewConnection(h, nil)
	require.NoError(t, c.Dial(relayURL(srv), "key", "party-room"))
	defer c.Close()

	result := wire.RaceResultsPayload{
		Result: core.RaceResult{Entries: []core.ResultEntry{{VehicleID: 4, Rank: 1, Finished: true}}},
	}
	require.NoError(t, c.SendEnvelope(wire.TypeRaceResults, result))

	waitFor(t, func() bool { return len(rl.all()) == 1 })
	msgs := rl.all()
	assert.Equal(t, wire.TypeRaceResults, msgs[0].Type)

	var decoded wire.RaceResultsPayload
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &decoded))
	assert.Equal(t, result, decoded)
}

func TestConnection_AnnounceDelivered(t *testing.T) {
	srv, rl := testRelay(t)
	defer srv.Close()

	h, _, _ := newTestHandler()
	c := NewConnection(h, nil)
	require.NoError(t, c.Dial(relayURL(srv), "key", "party-room"))
	defer c.Close()

	payload, _ := json.Marshal(map[string]string{"room": "party-room"})
	require.NoError(t, c.Announce(wire.Envelope{Type: wire.TypeHostState, Payload: payload}))

	waitFor(t, func() bool { return len(rl.all()) == 1 })
	assert.Equal(t, wire.TypeHostState, rl.all()[0].Type)
}

func TestConnection_CloseIdempotent(t *testing.T) {
	srv, _ := testRelay(t)
	defer srv.Close()

	h, _, _ := newTestHandler()
	c := NewConnection(h, nil)
	require.NoError(t, c.Dial(relayURL(srv), "key", "room"))

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}
