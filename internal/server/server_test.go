package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petems/micstream/internal/aggregate"
	"github.com/petems/micstream/internal/app"
	"github.com/petems/micstream/internal/audio/fake"
	"github.com/petems/micstream/internal/capture"
	"github.com/petems/micstream/internal/config"
)

type harness struct {
	hw      *fake.Hardware
	capture *capture.Manager
	srv     *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	hw := fake.NewDemo()
	log := zerolog.Nop()
	mgr := capture.NewManager(hw, 16, log)
	a := app.New(app.Config{
		Registry:   hw,
		Capture:    mgr,
		Aggregates: aggregate.New(hw, hw, "", log),
		Config:     config.Default(),
		Logger:     log,
	})
	srv := httptest.NewServer(New(a, log).Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = mgr.Stop()
	})
	return &harness{hw: hw, capture: mgr, srv: srv}
}

func (h *harness) dial(t *testing.T, args string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/stream?args=" + args
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (h *harness) call(t *testing.T, body string) (int, map[string]json.RawMessage) {
	t.Helper()
	resp, err := http.Post(h.srv.URL+"/method", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func readError(t *testing.T, conn *websocket.Conn) app.MethodError {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, kind)

	var me app.MethodError
	require.NoError(t, json.Unmarshal(data, &me))
	return me
}

func TestStreamDeliversBinaryChunks(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t, "0,44100,16,2")

	for i := 0; i < 3; i++ {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		kind, data, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.BinaryMessage, kind)
		assert.Len(t, data, 960*2)
	}

	status, out := h.call(t, `{"method":"getSampleRate"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `48000`, string(out["result"]))
}

func TestStreamClientCloseStopsCapture(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t, "0")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.NoError(t, err)

	s := h.capture.Active()
	require.NotNil(t, s)
	require.NoError(t, conn.Close())

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("capture kept running after client left")
	}
	assert.Equal(t, capture.Stopped, s.State())
	assert.Eventually(t, func() bool { return h.capture.Active() == nil }, 2*time.Second, 10*time.Millisecond)
}

func TestStreamRejectsUnsupportedChannel(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t, "0,44100,12")

	me := readError(t, conn)
	assert.Equal(t, capture.CodeUnsupported, me.Code)
	assert.Equal(t, "channelConfig", me.Details)

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
	assert.Empty(t, h.hw.Streams())
}

func TestStreamRejectsMalformedArgs(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t, "zero")

	me := readError(t, conn)
	assert.Equal(t, capture.CodeBadArgs, me.Code)
}

func TestStreamBusyWhileActive(t *testing.T) {
	h := newHarness(t)
	first := h.dial(t, "0")
	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := first.ReadMessage()
	require.NoError(t, err)

	second := h.dial(t, "0")
	me := readError(t, second)
	assert.Equal(t, capture.CodeBusy, me.Code)
	assert.Len(t, h.hw.Streams(), 1)
}

func TestMethodCalls(t *testing.T) {
	h := newHarness(t)

	status, out := h.call(t, `{"method":"getBufferSize"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `4096`, string(out["result"]))

	status, out = h.call(t, `{"method":"setUid","arguments":{"uid":"fake-mic"}}`)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `0`, string(out["result"]))

	_, out = h.call(t, `{"method":"getDevices"}`)
	assert.Contains(t, string(out["result"]), `"direction":"OUT"`)

	_, out = h.call(t, `{"method":"createMultiOutputDevice","arguments":{"masterUID":"fake-speakers","secondUID":"fake-headphones","multiOutUID":"multi"}}`)
	assert.JSONEq(t, `0`, string(out["result"]))
	assert.Equal(t, 1, h.hw.AggregateCount())

	_, out = h.call(t, `{"method":"destroyMultiOutputDevice"}`)
	assert.JSONEq(t, `0`, string(out["result"]))
	assert.Equal(t, 0, h.hw.AggregateCount())

	_, out = h.call(t, `{"method":"getBitDepth"}`)
	assert.JSONEq(t, `null`, string(out["result"]))
}

func TestMethodErrors(t *testing.T) {
	h := newHarness(t)

	status, out := h.call(t, `{"method":"nope"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"code":"not implemented","message":"nope"}`, string(out["error"]))

	status, out = h.call(t, `not json`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(out["error"]), `"bad args"`)

	resp, err := http.Get(h.srv.URL + "/method")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestParseArgs(t *testing.T) {
	got, err := parseArgs(" 0, 44100 ,16")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 44100, 16}, got)

	got, err = parseArgs("")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = parseArgs("0,,1")
	assert.Error(t, err)
}

func TestCheckOrigin(t *testing.T) {
	up := newUpgrader(zerolog.Nop())
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:3000", true},
		{"http://127.0.0.1:9999", true},
		{"http://example.com", false},
		{"http://" + "svc.local:8765", true},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "http://svc.local:8765/stream", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		assert.Equal(t, tt.want, up.CheckOrigin(r), tt.origin)
	}
}
