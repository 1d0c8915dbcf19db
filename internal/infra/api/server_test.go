package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"appdeck/internal/application/command/delete_app"
	"appdeck/internal/application/command/import_app"
	"appdeck/internal/application/command/run_pipeline"
	"appdeck/internal/application/events"
	"appdeck/internal/application/query/get_app_events"
	"appdeck/internal/domain/model"
	"appdeck/internal/infra/token"
	"appdeck/pkg/cqrs"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeCommands struct {
	mu     sync.Mutex
	seen   []cqrs.Command
	errs   map[string]error
	handle func(cqrs.Command)
}

func (f *fakeCommands) Register(interface{}) error { return nil }
func (f *fakeCommands) Shutdown()                  {}
func (f *fakeCommands) WaitForCompletion()         {}

func (f *fakeCommands) Dispatch(_ context.Context, cmd cqrs.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, cmd)
	if f.handle != nil {
		f.handle(cmd)
	}
	return f.errs[cmd.Name()]
}

func (f *fakeCommands) last() cqrs.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.seen) == 0 {
		return nil
	}
	return f.seen[len(f.seen)-1]
}

type fakeQueries struct {
	mu      sync.Mutex
	seen    []cqrs.Query
	results map[string]interface{}
	errs    map[string]error
}

func (f *fakeQueries) Register(interface{}) error { return nil }
func (f *fakeQueries) Shutdown()                  {}
func (f *fakeQueries) WaitForCompletion()         {}

func (f *fakeQueries) Dispatch(_ context.Context, q cqrs.Query) (interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, q)
	if err := f.errs[q.Name()]; err != nil {
		return nil, err
	}
	return f.results[q.Name()], nil
}

type fakeVerifier struct{}

func (fakeVerifier) Verify(raw string) (*token.Claims, error) {
	if raw != "good" {
		return nil, token.ErrInvalidToken
	}
	return &token.Claims{
		Source:           "https://example.com/app.git",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "a1"},
	}, nil
}

func newTestServer(t *testing.T) (*Server, *fakeCommands, *fakeQueries, *events.Broker) {
	t.Helper()
	commands := &fakeCommands{errs: map[string]error{}}
	queries := &fakeQueries{
		results: map[string]interface{}{
			"GetApp":  &model.AppDetails{App: &model.App{ID: "a1", Name: "demo"}},
			"GetApps": []*model.App(nil),
		},
		errs: map[string]error{},
	}
	broker := events.NewBroker(0)
	n := 0
	s := NewServer("127.0.0.1:0", Dependencies{
		Commands: commands,
		Queries:  queries,
		Events:   broker,
		Tokens:   fakeVerifier{},
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		},
	})
	return s, commands, queries, broker
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	s, _, _, _ := newTestServer(t)
	w := do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestListAppsReturnsEmptyArray(t *testing.T) {
	s, _, _, _ := newTestServer(t)
	w := do(t, s, http.MethodGet, "/api/apps", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestImportDispatchesGeneratedID(t *testing.T) {
	s, commands, _, _ := newTestServer(t)

	w := do(t, s, http.MethodPost, "/api/apps/import", `{"location":"https://example.com/app.git"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	cmd, ok := commands.last().(import_app.ImportAppCommand)
	require.True(t, ok)
	assert.Equal(t, "id-1", cmd.AppID)
	assert.Equal(t, "https://example.com/app.git", cmd.Location)

	var details model.AppDetails
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &details))
	assert.Equal(t, "a1", details.App.ID)
}

func TestImportRejectsMissingLocation(t *testing.T) {
	s, commands, _, _ := newTestServer(t)
	w := do(t, s, http.MethodPost, "/api/apps/import", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, commands.last())
}

func TestErrorMapping(t *testing.T) {
	invalid := validator.New().Struct(struct {
		ID string `validate:"required"`
	}{})
	require.Error(t, invalid)

	tests := []struct {
		name  string
		err   error
		code  int
		stage string
	}{
		{"not found", fmt.Errorf("loading: %w", model.ErrNotFound), http.StatusNotFound, ""},
		{"in progress", model.ErrAlreadyInProgress, http.StatusConflict, ""},
		{"invalid transition", model.ErrInvalidTransition, http.StatusConflict, ""},
		{"not installed", model.ErrNotInstalled, http.StatusConflict, ""},
		{"descriptor parse", model.ErrDescriptorParse, http.StatusBadRequest, ""},
		{"validation", fmt.Errorf("invalid: %w", invalid), http.StatusUnprocessableEntity, ""},
		{"stage failure", &model.StageError{Stage: model.StageApply, Err: model.ErrApply}, http.StatusInternalServerError, "apply"},
		{"other", errors.New("boom"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, commands, _, _ := newTestServer(t)
			commands.errs["ControlApp"] = tt.err

			w := do(t, s, http.MethodPost, "/api/apps/a1/start", "")
			assert.Equal(t, tt.code, w.Code)

			var body errorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
			assert.Equal(t, tt.stage, body.Stage)
		})
	}
}

func TestDeploy(t *testing.T) {
	t.Run("accepted in background with default options", func(t *testing.T) {
		s, commands, _, _ := newTestServer(t)
		w := do(t, s, http.MethodPost, "/api/apps/a1/deploy", "")
		require.Equal(t, http.StatusAccepted, w.Code)
		assert.JSONEq(t, `{"run_id":"id-1"}`, w.Body.String())

		cmd := commands.last().(run_pipeline.RunPipelineCommand)
		assert.Equal(t, "a1", cmd.AppID)
		assert.False(t, cmd.Wait)
		assert.Equal(t, model.DefaultRunOptions(), cmd.Options)
	})

	t.Run("waits for result", func(t *testing.T) {
		s, commands, _, _ := newTestServer(t)
		commands.handle = func(c cqrs.Command) {
			cmd := c.(run_pipeline.RunPipelineCommand)
			*cmd.Result = model.RunResult{Success: true, RunID: cmd.RunID, Running: true}
		}
		w := do(t, s, http.MethodPost, "/api/apps/a1/deploy",
			`{"wait":true,"force_delete_existing_data":true,"transfer_environment":false}`)
		require.Equal(t, http.StatusOK, w.Code)

		var result model.RunResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.True(t, result.Success)
		assert.Equal(t, "id-1", result.RunID)

		cmd := commands.last().(run_pipeline.RunPipelineCommand)
		assert.True(t, cmd.Options.ForceDeleteExistingData)
		assert.False(t, cmd.Options.TransferEnvironment)
	})

	t.Run("rejects concurrent run", func(t *testing.T) {
		s, commands, _, _ := newTestServer(t)
		commands.errs["RunPipeline"] = model.ErrAlreadyInProgress
		w := do(t, s, http.MethodPost, "/api/apps/a1/deploy", "")
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestRemovePreserveData(t *testing.T) {
	tests := []struct {
		query    string
		code     int
		preserve bool
	}{
		{"", http.StatusNoContent, false},
		{"?preserve_data=true", http.StatusNoContent, true},
		{"?preserve_data=maybe", http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			s, commands, _, _ := newTestServer(t)
			w := do(t, s, http.MethodDelete, "/api/apps/a1"+tt.query, "")
			require.Equal(t, tt.code, w.Code)
			if tt.code != http.StatusNoContent {
				return
			}
			cmd := commands.last().(delete_app.DeleteAppCommand)
			assert.Equal(t, tt.preserve, cmd.PreserveData)
		})
	}
}

func TestReconcileIncludesTransferableKeys(t *testing.T) {
	s, _, queries, _ := newTestServer(t)
	queries.results["ReconcileDescriptor"] = model.DiffResult{
		Transfer: model.EnvTransferMap{"web": {"TOKEN": {Value: "x"}}},
	}
	w := do(t, s, http.MethodPost, "/api/apps/a1/reconcile", `{"descriptor":"services: {}"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ReconcileResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.StructurallyChanged)
	assert.Equal(t, []model.TransferableKey{{Service: "web", Key: "TOKEN"}}, resp.TransferableKeys)
}

func TestEventsQueryParameters(t *testing.T) {
	s, _, queries, _ := newTestServer(t)
	queries.results["GetAppEvents"] = []model.Event{{AppID: "a1", Seq: 4}}

	w := do(t, s, http.MethodGet, "/api/apps/a1/events?after=3&run_id=r1", "")
	require.Equal(t, http.StatusOK, w.Code)

	q := queries.seen[len(queries.seen)-1].(get_app_events.GetAppEventsQuery)
	assert.Equal(t, uint64(3), q.AfterSeq)
	assert.Equal(t, "r1", q.RunID)

	w = do(t, s, http.MethodGet, "/api/apps/a1/events?after=x", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSelfRequiresToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		code   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"basic scheme", "Basic good", http.StatusUnauthorized},
		{"invalid", "Bearer bad", http.StatusUnauthorized},
		{"valid", "Bearer good", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, _, _ := newTestServer(t)
			req := httptest.NewRequest(http.MethodGet, "/api/self", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, req)
			require.Equal(t, tt.code, w.Code)
			if tt.code != http.StatusOK {
				return
			}
			var resp SelfResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "a1", resp.AppID)
			assert.Equal(t, "https://example.com/app.git", resp.Source)
		})
	}
}

func TestEventStreamSendsHistoryThenLive(t *testing.T) {
	s, _, _, broker := newTestServer(t)
	broker.Emit(model.Event{AppID: "a1", Message: "old"})
	broker.Emit(model.Event{AppID: "a1", Message: "kept"})
	broker.Emit(model.Event{AppID: "other", Message: "ignored"})

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/apps/a1/events/stream?after=1"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	var e model.Event
	require.NoError(t, ws.ReadJSON(&e))
	assert.Equal(t, "kept", e.Message)

	broker.Emit(model.Event{AppID: "other", Message: "ignored"})
	broker.Emit(model.Event{AppID: "a1", Message: "live"})

	require.NoError(t, ws.ReadJSON(&e))
	assert.Equal(t, "live", e.Message)
	assert.Equal(t, uint64(5), e.Seq)
}
