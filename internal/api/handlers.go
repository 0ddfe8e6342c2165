package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/boardkit/backend/internal/board"
	"github.com/boardkit/backend/internal/httputil"
	"github.com/boardkit/backend/internal/message"
)

// request is the JSON envelope for queries and mutations on POST /query.
type request struct {
	Operation string          `json:"operation"`
	Params    json.RawMessage `json:"params"`
}

// opFunc handles one named operation. The operation table is fixed at build
// time; unknown names are rejected before dispatch.
type opFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Handlers serves the operation surface: queries and mutations on
// POST /query, subscriptions on the same path upgraded to WebSocket.
type Handlers struct {
	service        *board.Service
	allowedOrigins []string
	ops            map[string]opFunc
}

// NewHandlers creates the Handlers for the given service. allowedOrigins is
// the set of Origin values accepted on WebSocket upgrades; requests without
// an Origin header are always accepted.
func NewHandlers(service *board.Service, allowedOrigins []string) *Handlers {
	h := &Handlers{
		service:        service,
		allowedOrigins: allowedOrigins,
	}
	h.ops = map[string]opFunc{
		"viewMessages":  h.viewMessages,
		"getMessage":    h.getMessage,
		"sendMessage":   h.sendMessage,
		"updateMessage": h.updateMessage,
		"deleteMessage": h.deleteMessage,
	}
	return h
}

// RegisterRoutes wires the single operation endpoint onto the router.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/query", h.ServeQuery).Methods(http.MethodPost)
	r.HandleFunc("/query", h.ServeSubscription).Methods(http.MethodGet)
}

// ServeQuery handles POST /query.
func (h *Handlers) ServeQuery(w http.ResponseWriter, r *http.Request) {
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	op, ok := h.ops[req.Operation]
	if !ok {
		httputil.WriteError(w, http.StatusBadRequest, fmt.Sprintf("unknown operation %q", req.Operation))
		return
	}

	result, err := op(r.Context(), req.Params)
	if err != nil {
		writeOpError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{"data": result})
}

func (h *Handlers) viewMessages(ctx context.Context, _ json.RawMessage) (any, error) {
	return h.service.ViewMessages(ctx)
}

type getMessageParams struct {
	ID string `json:"id"`
}

// getMessage returns the message, or null when no message has that id.
func (h *Handlers) getMessage(ctx context.Context, raw json.RawMessage) (any, error) {
	var p getMessageParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.ID == "" {
		return nil, &message.ValidationError{Field: "id", Reason: "required"}
	}

	m, err := h.service.GetMessage(ctx, p.ID)
	if errors.Is(err, message.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

type sendMessageParams struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

func (h *Handlers) sendMessage(ctx context.Context, raw json.RawMessage) (any, error) {
	var p sendMessageParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	return h.service.SendMessage(ctx, p.Name, p.Content)
}

type updateMessageParams struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Name    string `json:"name"`
}

func (h *Handlers) updateMessage(ctx context.Context, raw json.RawMessage) (any, error) {
	var p updateMessageParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.ID == "" {
		return nil, &message.ValidationError{Field: "id", Reason: "required"}
	}
	return h.service.UpdateMessage(ctx, p.ID, p.Content, p.Name)
}

type deleteMessageParams struct {
	ID string `json:"id"`
}

func (h *Handlers) deleteMessage(ctx context.Context, raw json.RawMessage) (any, error) {
	var p deleteMessageParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.ID == "" {
		return nil, &message.ValidationError{Field: "id", Reason: "required"}
	}
	return h.service.DeleteMessage(ctx, p.ID)
}

func decodeParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return &message.ValidationError{Field: "params", Reason: "required"}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &message.ValidationError{Field: "params", Reason: err.Error()}
	}
	return nil
}

// writeOpError maps the error taxonomy onto HTTP statuses: ValidationError
// and malformed input are 400, NotFound 404, StoreUnavailable 503.
func writeOpError(w http.ResponseWriter, err error) {
	var verr *message.ValidationError
	switch {
	case errors.As(err, &verr):
		httputil.WriteError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, message.ErrNotFound):
		httputil.WriteError(w, http.StatusNotFound, "message not found")
	case errors.Is(err, message.ErrStoreUnavailable):
		httputil.WriteError(w, http.StatusServiceUnavailable, "message store unavailable")
	default:
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}
