package webui

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/rmaker/homectl/pkg/datamodel"
	"github.com/rmaker/homectl/pkg/state"
	"github.com/rmaker/homectl/pkg/ui"
)

var levelPath = datamodel.AttributePath{Endpoint: 1, Cluster: 0x0008, Attribute: 0x0000}

func newTestServer(t *testing.T) (*Server, *state.Cache, *httptest.Server) {
	t.Helper()
	cache := state.NewCache(state.CacheConfig{})
	controls := []ui.Event{
		{Control: "home/1/brightness", Kind: ui.KindSlider, Title: "Brightness", Value: 50, Max: 100},
		{Control: "home/2/mode", Kind: ui.KindDropdown, Selected: "Cool", Options: []string{"Off", "Cool", "Heat"}},
	}
	srv := NewServer(ServerConfig{
		Cache:    cache,
		Controls: func() []ui.Event { return controls },
	})
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		ts.Close()
		srv.Stop()
	})
	return srv, cache, ts
}

func TestServerState(t *testing.T) {
	_, cache, ts := newTestServer(t)
	cache.Set(state.AttrKey(1, levelPath), 127, state.SourceRead)
	cache.Set(state.AttrKey(2, levelPath), 3, state.SourceReport)

	resp, err := http.Get(ts.URL + "/api/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var entries []EntryView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "0000000000000001", entries[0].Node)
	assert.Equal(t, int64(127), entries[0].Value)
	assert.Equal(t, "read", entries[0].Source)
	assert.Equal(t, uint32(0x0008), entries[0].Cluster)
	assert.Equal(t, "report", entries[1].Source)
}

func TestServerStateEmpty(t *testing.T) {
	srv := NewServer(ServerConfig{})
	defer srv.Stop()

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/controls", nil))
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/state", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServerControls(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/controls")
	require.NoError(t, err)
	defer resp.Body.Close()

	var controls []ui.Event
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&controls))
	require.Len(t, controls, 2)
	assert.Equal(t, "Cool", controls[1].Selected)
}

func readMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) Message {
	t.Helper()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestServerWebsocket(t *testing.T) {
	srv, cache, ts := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	first := readMessage(t, ctx, conn)
	assert.Equal(t, TypeControls, first.Type)
	assert.Len(t, first.Controls, 2)

	require.Eventually(t, func() bool { return srv.Hub().Clients() == 1 }, time.Second, time.Millisecond)

	srv.Hub().Observer()(ui.Event{Control: "home/1/brightness", Kind: ui.KindSlider, Value: 60})
	msg := readMessage(t, ctx, conn)
	assert.Equal(t, TypeControl, msg.Type)
	require.NotNil(t, msg.Control)
	assert.Equal(t, 60.0, msg.Control.Value)

	cache.Set(state.AttrKey(1, levelPath), 200, state.SourceReport)
	msg = readMessage(t, ctx, conn)
	assert.Equal(t, TypeAttribute, msg.Type)
	require.NotNil(t, msg.Entry)
	assert.Equal(t, int64(200), msg.Entry.Value)
	assert.Equal(t, "report", msg.Entry.Source)
}
