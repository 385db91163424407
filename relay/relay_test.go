package relay

import (
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coopsync/config"
)

type harness struct {
	m   *Manager
	srv *httptest.Server
	ws  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	m := NewManager(config.DefaultRelay(), nil)
	srv := httptest.NewServer(m.Routes())
	t.Cleanup(func() {
		_ = m.Close()
		srv.Close()
	})
	return &harness{m: m, srv: srv, ws: "ws" + strings.TrimPrefix(srv.URL, "http")}
}

func (h *harness) room() *Room { return h.m.GetOrCreateRoom(DefaultRoom) }

// join 连接并等待进入房间
func (h *harness) join(t *testing.T, peers int) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(h.ws+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return h.room().Peers() == peers }, 2*time.Second, 5*time.Millisecond)
	return conn
}

func read(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	mt, b, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, mt)
	return b
}

func TestForwardsToOtherPeerOnly(t *testing.T) {
	h := newHarness(t)
	a := h.join(t, 1)
	b := h.join(t, 2)

	frame := []byte(`{"X":1,"Y":2,"Z":3,"Heading":90,"Health":100,"IsJumping":false,"IsSprinting":false,"IsWalking":true}`)
	require.NoError(t, a.WriteMessage(websocket.TextMessage, frame))
	assert.Equal(t, frame, read(t, b))

	require.NoError(t, b.WriteMessage(websocket.TextMessage, []byte(`{"X":9}`)))
	assert.Equal(t, []byte(`{"X":9}`), read(t, a), "a gets b's frame, never its own")

	require.Eventually(t, func() bool {
		return h.room().Metrics().Snapshot()["forwarded"] == int64(2)
	}, 2*time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 2, h.room().Metrics().Snapshot()["frames_in"])
}

func TestBinaryFramesAreNotForwarded(t *testing.T) {
	h := newHarness(t)
	a := h.join(t, 1)
	b := h.join(t, 2)

	require.NoError(t, a.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}))
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{}`)))
	assert.Equal(t, []byte(`{}`), read(t, b))
	assert.EqualValues(t, 1, h.room().Metrics().Snapshot()["frames_in"])
}

func TestThirdPeerIsRejected(t *testing.T) {
	h := newHarness(t)
	h.join(t, 1)
	h.join(t, 2)

	conn, _, err := websocket.DefaultDialer.Dial(h.ws+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, websocket.ClosePolicyViolation, ce.Code)
	assert.Equal(t, ErrRoomFull.Error(), ce.Text)

	assert.Equal(t, 2, h.room().Peers())
	assert.EqualValues(t, 1, h.room().Metrics().Snapshot()["joins_rejected"])
}

func TestLeaveFreesSlot(t *testing.T) {
	h := newHarness(t)
	a := h.join(t, 1)
	h.join(t, 2)

	require.NoError(t, a.Close())
	require.Eventually(t, func() bool { return h.room().Peers() == 1 }, 2*time.Second, 5*time.Millisecond)
	h.join(t, 2)
}

func TestRoomsAreIsolated(t *testing.T) {
	h := newHarness(t)
	a := h.join(t, 1)

	other, _, err := websocket.DefaultDialer.Dial(h.ws+"/ws?room=room-2", nil)
	require.NoError(t, err)
	defer other.Close()
	require.Eventually(t, func() bool { return h.m.GetOrCreateRoom("room-2").Peers() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{}`)))
	require.Eventually(t, func() bool {
		return h.room().Metrics().Snapshot()["frames_in"] == int64(1)
	}, 2*time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 0, h.room().Metrics().Snapshot()["forwarded"])
}

func TestSimulatedDrop(t *testing.T) {
	h := newHarness(t)
	a := h.join(t, 1)
	h.join(t, 2)

	r := h.room()
	r.SetConfig(RoomConfig{MaxPeers: 2, DropProb: 0.5})
	r.mu.Lock()
	r.rng = rand.New(rand.NewSource(1))
	r.mu.Unlock()

	const n = 100
	for i := 0; i < n; i++ {
		require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{}`)))
	}
	require.Eventually(t, func() bool {
		return r.Metrics().Snapshot()["frames_in"] == int64(n)
	}, 2*time.Second, 5*time.Millisecond)

	snap := r.Metrics().Snapshot()
	drops := snap["drops_simulated"].(int64)
	assert.Greater(t, drops, int64(0))
	assert.Less(t, drops, int64(n))
	assert.Equal(t, int64(n), drops+snap["forwarded"].(int64)+snap["chan_full_discarded"].(int64))
}

func TestManagerCloseEndsPeers(t *testing.T) {
	h := newHarness(t)
	a := h.join(t, 1)

	require.NoError(t, h.m.Close())
	require.NoError(t, a.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := a.ReadMessage()
	assert.Error(t, err)
}

func TestAdminConfig(t *testing.T) {
	h := newHarness(t)
	url := h.srv.URL + "/admin/config"

	get := func() map[string]any {
		resp, err := http.Get(url)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return body
	}
	post := func(body string) int {
		resp, err := http.Post(url, "application/json", strings.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, map[string]any{"maxPeers": float64(2), "dropProb": float64(0)}, get())

	assert.Equal(t, http.StatusOK, post(`{"maxPeers":3}`))
	assert.Equal(t, map[string]any{"maxPeers": float64(3), "dropProb": float64(0)}, get())

	assert.Equal(t, http.StatusBadRequest, post(`{"dropProb":1}`))
	assert.Equal(t, http.StatusBadRequest, post(`{"maxPeers":1}`))
	assert.Equal(t, http.StatusBadRequest, post(`not json`))
	assert.Equal(t, float64(3), get()["maxPeers"], "rejected updates leave config untouched")

	req, err := http.NewRequest(http.MethodPut, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestMetricsAndHealthz(t *testing.T) {
	h := newHarness(t)
	h.join(t, 1)

	resp, err := http.Get(h.srv.URL + "/metrics?room=" + DefaultRoom)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body struct {
		Room    string           `json:"room"`
		Metrics map[string]int64 `json:"metrics"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, DefaultRoom, body.Room)
	assert.Equal(t, int64(1), body.Metrics["peers"])

	hz, err := http.Get(h.srv.URL + "/healthz")
	require.NoError(t, err)
	defer hz.Body.Close()
	b, err := io.ReadAll(hz.Body)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(b))
}
