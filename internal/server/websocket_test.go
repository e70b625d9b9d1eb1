package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mathcards/grinddeck-server/internal/game"
	"github.com/mathcards/grinddeck-server/internal/game/cards"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsFrame struct {
	Type   string          `json:"type"`
	GameID string          `json:"game_id"`
	Data   json.RawMessage `json:"data"`
}

func (env *testEnv) dial(t *testing.T, gameID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(env.http.URL, "http") + "/ws?game_id=" + gameID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads frames until one of type want arrives.
func readUntil(t *testing.T, conn *websocket.Conn, want string) wsFrame {
	t.Helper()
	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var frame wsFrame
		require.NoError(t, conn.ReadJSON(&frame))
		if frame.Type == want {
			return frame
		}
	}
}

func TestWebSocketCommands(t *testing.T) {
	env := newTestEnv(t)
	view := env.start(t, nil)
	conn := env.dial(t, view.ID)

	frame := readUntil(t, conn, msgState)
	var state viewBody
	require.NoError(t, json.Unmarshal(frame.Data, &state))
	assert.Equal(t, view.ID, state.ID)

	seed := findCard(t, state.Hand, cards.KindNumber)
	require.NoError(t, conn.WriteJSON(map[string]string{"type": cmdPlayNumber, "card_id": seed.ID}))

	frame = readUntil(t, conn, msgEvent)
	assert.Equal(t, view.ID, frame.GameID)

	frame = readUntil(t, conn, msgState)
	require.NoError(t, json.Unmarshal(frame.Data, &state))
	assert.Equal(t, float64(seed.Value), state.GrindValue)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": cmdPlayVariable, "card_id": "missing"}))
	frame = readUntil(t, conn, msgError)
	var body errorBody
	require.NoError(t, json.Unmarshal(frame.Data, &body))
	assert.Equal(t, "illegal_move", body.Reason)
	require.NotNil(t, body.State)
	assert.Equal(t, state.GrindValue, body.State.GrindValue)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "shuffle"}))
	frame = readUntil(t, conn, msgError)
	require.NoError(t, json.Unmarshal(frame.Data, &body))
	assert.Equal(t, "bad_request", body.Reason)
}

func TestWebSocketSeesHTTPCommands(t *testing.T) {
	env := newTestEnv(t)
	view := env.start(t, nil)
	conn := env.dial(t, view.ID)
	readUntil(t, conn, msgState)

	resp := env.do(t, http.MethodPut, "/api/v1/games/"+view.ID+"/target", commandRequest{Target: "grind"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	frame := readUntil(t, conn, msgState)
	var state viewBody
	require.NoError(t, json.Unmarshal(frame.Data, &state))
	assert.Equal(t, "grind", state.ActiveTarget)
}

func TestWebSocketRestartRebinds(t *testing.T) {
	env := newTestEnv(t)
	view := env.start(t, nil)
	conn := env.dial(t, view.ID)
	readUntil(t, conn, msgState)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": msgRestart}))
	var frame wsFrame
	for {
		frame = readUntil(t, conn, msgState)
		if frame.GameID != view.ID {
			break
		}
	}
	assert.Equal(t, []string{frame.GameID}, env.manager.List())

	require.NoError(t, conn.WriteJSON(map[string]string{"type": msgGetState}))
	frame = readUntil(t, conn, msgState)
	var state viewBody
	require.NoError(t, json.Unmarshal(frame.Data, &state))
	assert.Equal(t, env.manager.List()[0], state.ID)
}

func TestWebSocketTick(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	env := newTestEnv(t, game.WithManagerClock(func() time.Time { return now }))
	view := env.start(t, map[string]any{"difficulty": "basic", "solo_mode": "time_limited", "limit": 60})
	conn := env.dial(t, view.ID)
	readUntil(t, conn, msgState)

	env.manager.Tick(t.Context())

	frame := readUntil(t, conn, msgTick)
	var event struct {
		Type  string  `json:"type"`
		Value float64 `json:"value"`
	}
	require.NoError(t, json.Unmarshal(frame.Data, &event))
	assert.Equal(t, "TICK", event.Type)
	assert.Equal(t, 60.0, event.Value)
}

func TestWebSocketUnknownGame(t *testing.T) {
	env := newTestEnv(t)
	url := "ws" + strings.TrimPrefix(env.http.URL, "http") + "/ws?game_id=missing"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHubClose(t *testing.T) {
	env := newTestEnv(t)
	view := env.start(t, nil)
	conn := env.dial(t, view.ID)
	readUntil(t, conn, msgState)
	require.Eventually(t, func() bool { return env.srv.Hub().Len() == 1 }, time.Second, 10*time.Millisecond)

	env.srv.Close()
	assert.Zero(t, env.srv.Hub().Len())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
