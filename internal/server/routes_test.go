package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	adactor "github.com/berfenger/scpiconsole/internal/adapter/actor"
	coreactor "github.com/berfenger/scpiconsole/internal/core/actor"
	"github.com/berfenger/scpiconsole/internal/core/domain"
	"github.com/berfenger/scpiconsole/internal/monitor"
	"github.com/berfenger/scpiconsole/internal/util"
	"github.com/berfenger/scpiconsole/pkg/scpi"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testCatalog() *scpi.Configuration {
	return &scpi.Configuration{
		Device: scpi.Device{Address: "192.168.1.50:5025", Channels: 3},
		Commands: []scpi.CommandDefinition{
			{Name: "Output", PerChannel: true, Template: "OUTP<CH> ", AllowedValues: []string{"ON", "OFF"}},
			{Name: "Display", Template: "DISP:TEXT ", AllowedValues: []string{"\"<TXT>\""}},
		},
	}
}

func setup(t *testing.T, session *scpi.TestDeviceSession) http.Handler {
	cfg := util.LoadTestConfig()
	logger := zap.NewNop()
	catalog := testCatalog()

	as := actor.NewActorSystem()
	t.Cleanup(as.Shutdown)

	props := actor.PropsFromProducer(func() actor.Actor {
		return coreactor.NewMasterOfPuppetsActor(cfg, catalog, func(es *eventstream.EventStream) *adactor.DeviceSessionActor {
			return adactor.NewDeviceSessionActor(&cfg, session, es, logger)
		}, nil, logger)
	})
	pid, err := as.Root.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	require.NoError(t, err)

	return newServer(cfg, catalog, monitor.NewSessionMetrics().Handler(), as.Root, pid, logger).RegisterRoutes()
}

func call(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthCheckAndMetrics(t *testing.T) {

	h := setup(t, &scpi.TestDeviceSession{})

	rec := call(h, http.MethodGet, "/healthcheck", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "health_check: OK", rec.Body.String())

	rec = call(h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "scpi_session_connected")
}

func TestCatalogAndExpand(t *testing.T) {

	h := setup(t, &scpi.TestDeviceSession{})

	rec := call(h, http.MethodGet, "/api/catalog", "")
	require.Equal(t, http.StatusOK, rec.Code)
	catalog := decode[catalogResponse](t, rec)
	assert.Equal(t, uint8(3), catalog.Device.Channels)
	require.Len(t, catalog.Commands, 2)
	assert.Equal(t, "OUTP<CH> ", catalog.Commands[0].Scpi)
	assert.True(t, catalog.Commands[0].Channel)

	rec = call(h, http.MethodPost, "/api/expand", `{"command":"Output","channel":2,"argument":"OFF"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OUTP2 OFF\n", decode[expandResponse](t, rec).Command)

	rec = call(h, http.MethodPost, "/api/expand", `{"command":"Display","freetext":"hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DISP:TEXT \"hello\"\n", decode[expandResponse](t, rec).Command)

	rec = call(h, http.MethodPost, "/api/expand", `{"command":"Missing"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionRoutes(t *testing.T) {

	session := &scpi.TestDeviceSession{Refuse: map[string]bool{"10.0.0.2:5025": true}}
	h := setup(t, session)

	rec := call(h, http.MethodPost, "/api/send", `{"raw":"*IDN?"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, decode[errorResponse](t, rec).Error, "not connected")

	rec = call(h, http.MethodPost, "/api/connect", `{"address":"localhost:5025"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(h, http.MethodPost, "/api/connect", `{"address":"10.0.0.2:5025"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = call(h, http.MethodPost, "/api/connect", `{"ip":"10.0.0.1","port":"5025"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[domain.SessionStatus](t, rec)
	assert.True(t, status.Connected)
	assert.Equal(t, "10.0.0.1:5025", status.Peer)

	rec = call(h, http.MethodPost, "/api/send", `{"command":"Output","channel":3,"await_reply":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	sent := decode[sendResponse](t, rec)
	assert.Equal(t, "OUTP3 ON\n", sent.Command)
	assert.Equal(t, 9, sent.Written)
	require.NotNil(t, sent.Reply)
	assert.Equal(t, "OUTP3 ON\n", *sent.Reply)

	rec = call(h, http.MethodPost, "/api/send", `{"raw":"SYST:BEEP"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode[sendResponse](t, rec).Reply)

	rec = call(h, http.MethodPost, "/api/receive", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "SYST:BEEP\n", decode[receiveResponse](t, rec).Reply)

	rec = call(h, http.MethodGet, "/api/session", "")
	require.Equal(t, http.StatusOK, rec.Code)
	status = decode[domain.SessionStatus](t, rec)
	assert.True(t, status.Connected)
	assert.Equal(t, "SYST:BEEP", status.LastCommand)
	assert.Equal(t, "SYST:BEEP", status.LastReply)

	assert.Equal(t, []string{"OUTP3 ON\n", "SYST:BEEP\n"}, session.Sent())
}

func TestStatusForError(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusForError(scpi.ErrNotConnected))
	assert.Equal(t, http.StatusGatewayTimeout, statusForError(&scpi.IoError{Kind: scpi.TimedOut, Op: "receive"}))
	assert.Equal(t, http.StatusBadGateway, statusForError(&scpi.IoError{Kind: scpi.ConnectionRefused}))
}
