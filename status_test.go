package ledkit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStatusServer(t *testing.T) (*Engine, *httptest.Server) {
	t.Helper()

	engine, _ := newTestEngine(t, dormantTick)
	ss := NewStatusServer(":0", "secret", engine, nil)

	server := httptest.NewServer(ss.server.Handler)
	t.Cleanup(server.Close)

	return engine, server
}

func getJson(t *testing.T, url string, into interface{}) *http.Response {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	if into != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
	}
	return resp
}

func TestStatusEndpoint(t *testing.T) {
	_, server := newTestStatusServer(t)

	status := EngineStatus{}
	resp := getJson(t, server.URL+"/status", &status)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "idle", status.ModeName)
	assert.Equal(t, []bool{false, false, false, false}, status.Outputs)
}

func TestTriggerEndpointRequiresToken(t *testing.T) {
	engine, server := newTestStatusServer(t)

	resp := getJson(t, server.URL+"/trigger/0/token/wrong", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, ModeIdle, engine.Mode())
}

func TestTriggerEndpointDispatches(t *testing.T) {
	engine, server := newTestStatusServer(t)

	status := EngineStatus{}
	resp := getJson(t, server.URL+"/trigger/0/token/secret", &status)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "all_blink", status.ModeName)
	assert.Equal(t, ModeAllBlink, engine.Mode())

	resp = getJson(t, server.URL+"/trigger/3/token/secret", &status)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, ModeIdle, engine.Mode())
}

func TestTriggerEndpointRejectsBadSwitchId(t *testing.T) {
	engine, server := newTestStatusServer(t)

	resp := getJson(t, server.URL+"/trigger/lots/token/secret", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Numeric but out of range ids are ignored by the dispatcher.
	resp = getJson(t, server.URL+"/trigger/42/token/secret", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, ModeIdle, engine.Mode())
}
