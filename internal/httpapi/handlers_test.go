package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nextlevelbuilder/agentsd/internal/bus"
	"github.com/nextlevelbuilder/agentsd/internal/channelstore"
	"github.com/nextlevelbuilder/agentsd/internal/scheduler"
	"github.com/nextlevelbuilder/agentsd/internal/sessionstore"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	root := t.TempDir()

	channels, err := channelstore.New(filepath.Join(root, "channels"))
	require.NoError(t, err)
	sessions, err := sessionstore.New(filepath.Join(root, "sessions"))
	require.NoError(t, err)

	s := New(nil)
	s.Scheduler = scheduler.New(nil)
	s.Channels = channels
	s.Sessions = sessions
	s.PersonasRoot = filepath.Join(root, "personas")
	s.Bus = bus.New()
	return s
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.buildMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body["ok"])
}

func TestHandleStatus(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.buildMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
}

func TestPublishAndReadChannel(t *testing.T) {
	s := newTestServer(t)
	mux := s.buildMux()

	payload, _ := json.Marshal(map[string]string{"content": "hello"})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/channels/general", bytes.NewReader(payload)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.True(t, created["success"].(bool))
	messageID := created["messageId"].(string)

	rec2 := httptest.NewRecorder()
	mux.ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/channels/general", nil))
	require.Equal(t, http.StatusOK, rec2.Code)

	var listed map[string]interface{}
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &listed))
	messages := listed["messages"].([]interface{})
	require.Len(t, messages, 1)

	rec3 := httptest.NewRecorder()
	mux.ServeHTTP(rec3, httptest.NewRequest(http.MethodGet, "/channels/general/"+messageID, nil))
	require.Equal(t, http.StatusOK, rec3.Code)
}

func TestHandleJobByIDNotFound(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.buildMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/nope:manual", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleTriggerUnknownWorkflow(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.buildMux().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/trigger/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
