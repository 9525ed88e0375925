package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/autopeer-io/voicelink/internal/bridge/core/model"
	"github.com/autopeer-io/voicelink/internal/bridge/core/pending"
	"github.com/autopeer-io/voicelink/internal/bridge/core/service"
	"github.com/autopeer-io/voicelink/pkg/log"
)

const (
	// Identity headers set by the upstream authentication layer.
	HeaderUser   = "X-Voicelink-User"
	HeaderUserID = "X-Voicelink-User-Id"

	HeaderRequestID = "X-Request-Id"

	maxBodyBytes = 1 << 20
)

// CommandIssuer enrolls and publishes commands.
type CommandIssuer interface {
	IssueSingularCommand(ctx context.Context, cmd *model.SingularCommand) (*pending.Sink, error)
	IssueBatchedCommand(ctx context.Context, cmd *model.BatchedCommand) (*pending.Sink, error)
}

type errorBody struct {
	Error string `json:"error"`
}

type commandHandler struct {
	issuer  CommandIssuer
	timeout time.Duration
}

func (h *commandHandler) singular(w http.ResponseWriter, r *http.Request) {
	user, ok := identity(w, r)
	if !ok {
		return
	}

	var cmd model.SingularCommand
	if !decodeBody(w, r, &cmd) {
		return
	}
	cmd.User = user
	cmd.UserID = r.Header.Get(HeaderUserID)
	cmd.EndpointID = mux.Vars(r)["endpointId"]

	ctx := log.IntoContext(r.Context(), log.FromContext(r.Context()).WithValues("user", user, "key", cmd.MessageID))
	sink, err := h.issuer.IssueSingularCommand(ctx, &cmd)
	h.await(ctx, w, sink, err)
}

func (h *commandHandler) batched(w http.ResponseWriter, r *http.Request) {
	user, ok := identity(w, r)
	if !ok {
		return
	}

	var cmd model.BatchedCommand
	if !decodeBody(w, r, &cmd) {
		return
	}
	cmd.User = user
	cmd.UserID = r.Header.Get(HeaderUserID)

	ctx := log.IntoContext(r.Context(), log.FromContext(r.Context()).WithValues("user", user, "requestId", cmd.RequestID))
	sink, err := h.issuer.IssueBatchedCommand(ctx, &cmd)
	h.await(ctx, w, sink, err)
}

// await blocks until the command completes or the caller goes away.
func (h *commandHandler) await(ctx context.Context, w http.ResponseWriter, sink *pending.Sink, err error) {
	logger := log.FromContext(ctx)

	switch {
	case errors.Is(err, service.ErrInvalidCommand):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	case errors.Is(err, pending.ErrDuplicateKey):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
		return
	case err != nil:
		logger.Error(err, "Failed to issue command")
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "failed to publish command"})
		return
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	resp, err := sink.Wait(ctx)
	if err != nil {
		logger.Info("Stopped waiting for command response", "reason", err)
		writeJSON(w, http.StatusGatewayTimeout, nil)
		return
	}
	writeJSON(w, resp.Status, resp.Body)
}

func identity(w http.ResponseWriter, r *http.Request) (string, bool) {
	user := r.Header.Get(HeaderUser)
	if user == "" {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing " + HeaderUser + " header"})
		return "", false
	}
	return user, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err == nil {
		err = json.Unmarshal(data, v)
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// writeJSON writes status and, unless body is nil, its JSON encoding.
func writeJSON(w http.ResponseWriter, status int, body any) {
	if body == nil {
		w.WriteHeader(status)
		return
	}

	data, err := json.Marshal(body)
	if err != nil {
		log.Error(err, "Failed to encode response body")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// requestIDMiddleware tags each command request with an id for log correlation.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(HeaderRequestID, id)
		}
		w.Header().Set(HeaderRequestID, id)

		logger := log.WithValues("requestId", id, "path", r.URL.Path)
		next.ServeHTTP(w, r.WithContext(log.IntoContext(r.Context(), logger)))
	})
}
