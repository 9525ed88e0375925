package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/voicelink/internal/bridge/core/model"
	"github.com/autopeer-io/voicelink/internal/bridge/core/pending"
	"github.com/autopeer-io/voicelink/internal/bridge/core/service"
)

type fakeIssuer struct {
	singular *model.SingularCommand
	batched  *model.BatchedCommand

	// respond, when set, is delivered to the sink right after issuing.
	respond *pending.Response
	err     error
}

func (f *fakeIssuer) issue() (*pending.Sink, error) {
	if f.err != nil {
		return nil, f.err
	}
	sink := pending.NewSink()
	if f.respond != nil {
		resp := *f.respond
		go func() { _ = sink.Deliver(context.Background(), resp) }()
	}
	return sink, nil
}

func (f *fakeIssuer) IssueSingularCommand(_ context.Context, cmd *model.SingularCommand) (*pending.Sink, error) {
	f.singular = cmd
	return f.issue()
}

func (f *fakeIssuer) IssueBatchedCommand(_ context.Context, cmd *model.BatchedCommand) (*pending.Sink, error) {
	f.batched = cmd
	return f.issue()
}

func do(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

var alice = map[string]string{HeaderUser: "alice", HeaderUserID: "u-1"}

func TestSingularSuccess(t *testing.T) {
	issuer := &fakeIssuer{respond: &pending.Response{Status: http.StatusOK, Body: json.RawMessage(`{"event":"Response"}`)}}
	h := NewRouter(issuer, nil, time.Second)

	rec := do(t, h, http.MethodPost, "/api/v1/singular/lamp",
		`{"messageId":"m-1","directive":{"name":"TurnOn"},"response":{"event":"Response"}}`, alice)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"event":"Response"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))

	require.NotNil(t, issuer.singular)
	assert.Equal(t, "alice", issuer.singular.User)
	assert.Equal(t, "u-1", issuer.singular.UserID)
	assert.Equal(t, "lamp", issuer.singular.EndpointID)
	assert.Equal(t, "m-1", issuer.singular.MessageID)
	assert.JSONEq(t, `{"name":"TurnOn"}`, string(issuer.singular.Directive))
}

func TestSingularEmptyBody(t *testing.T) {
	issuer := &fakeIssuer{respond: &pending.Response{Status: http.StatusOK}}
	h := NewRouter(issuer, nil, time.Second)

	rec := do(t, h, http.MethodPost, "/api/v1/singular/lamp", `{"messageId":"m-1"}`, alice)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestBatchedResponseBody(t *testing.T) {
	body := model.NewBatchedResponse("r-1", map[string]any{"on": true})
	body.AddID("lamp")
	issuer := &fakeIssuer{respond: &pending.Response{Status: http.StatusOK, Body: body}}
	h := NewRouter(issuer, nil, time.Second)

	rec := do(t, h, http.MethodPost, "/api/v1/batched",
		`{"requestId":"r-1","devices":[{"id":"lamp","directive":{}},{"id":"plug","directive":{}}],"states":{"on":true}}`, alice)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"requestId":"r-1"`)

	require.NotNil(t, issuer.batched)
	assert.Equal(t, []string{"lamp", "plug"}, issuer.batched.DeviceIDs())
	assert.Equal(t, "alice", issuer.batched.User)
}

func TestCommandRequiresUser(t *testing.T) {
	h := NewRouter(&fakeIssuer{}, nil, time.Second)

	rec := do(t, h, http.MethodPost, "/api/v1/singular/lamp", `{"messageId":"m-1"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCommandInvalidBody(t *testing.T) {
	h := NewRouter(&fakeIssuer{}, nil, time.Second)

	rec := do(t, h, http.MethodPost, "/api/v1/batched", `{"requestId":`, alice)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCommandIssueErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: no devices", service.ErrInvalidCommand), http.StatusBadRequest},
		{fmt.Errorf("enroll: %w", pending.ErrDuplicateKey), http.StatusConflict},
		{errors.New("broker down"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			h := NewRouter(&fakeIssuer{err: tt.err}, nil, time.Second)
			rec := do(t, h, http.MethodPost, "/api/v1/singular/lamp", `{"messageId":"m-1"}`, alice)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestCommandWaitTimeout(t *testing.T) {
	h := NewRouter(&fakeIssuer{}, nil, 20*time.Millisecond)

	rec := do(t, h, http.MethodPost, "/api/v1/singular/lamp", `{"messageId":"m-1"}`, alice)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestProbes(t *testing.T) {
	ready := false
	h := NewRouter(&fakeIssuer{}, func() bool { return ready }, time.Second)

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/readyz", "", nil).Code)

	ready = true
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/readyz", "", nil).Code)

	rec := do(t, h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "voicelink_pending_commands")
}

func TestUnknownRoute(t *testing.T) {
	h := NewRouter(&fakeIssuer{}, nil, time.Second)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/v1/unknown", "", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/api/v1/batched", "", alice).Code)
}
