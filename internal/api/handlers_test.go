package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/boardkit/backend/internal/board"
	"github.com/boardkit/backend/internal/message"
	"github.com/boardkit/backend/internal/pubsub"
)

type queryResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	broker := pubsub.NewBroker()
	t.Cleanup(func() { broker.Close() }) //nolint:errcheck
	service := board.NewService(message.NewMemoryStore(), broker)

	r := mux.NewRouter()
	NewHandlers(service, nil).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func postQuery(t *testing.T, srv *httptest.Server, operation string, params any) (int, queryResponse) {
	t.Helper()

	body := map[string]any{"operation": operation}
	if params != nil {
		body["params"] = params
	}
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	resp, err := http.Post(srv.URL+"/query", "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	defer resp.Body.Close()

	var qr queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, qr
}

func dialSubscription(t *testing.T, srv *httptest.Server, req subscribeRequest) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/query"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := conn.WriteJSON(req); err != nil {
		t.Fatalf("subscribe frame failed: %v", err)
	}
	// Give the server a moment to register the subscription before any
	// mutation is issued.
	time.Sleep(200 * time.Millisecond)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) message.Message {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var m message.Message
	if err := conn.ReadJSON(&m); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return m
}

func TestServeQuery_SendAndView(t *testing.T) {
	srv := newTestServer(t)

	status, qr := postQuery(t, srv, "sendMessage", map[string]string{"name": "alice", "content": "hi"})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", status, qr.Error)
	}

	var sent message.Message
	if err := json.Unmarshal(qr.Data, &sent); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if sent.ID == "" || sent.Name != "alice" || sent.Content != "hi" {
		t.Errorf("unexpected message: %+v", sent)
	}

	status, qr = postQuery(t, srv, "viewMessages", nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	var msgs []message.Message
	if err := json.Unmarshal(qr.Data, &msgs); err != nil {
		t.Fatalf("decode messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0] != sent {
		t.Errorf("expected [%+v], got %+v", sent, msgs)
	}
}

func TestServeQuery_MalformedRequests(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/query", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid body: expected 400, got %d", resp.StatusCode)
	}

	status, _ := postQuery(t, srv, "dropAllMessages", nil)
	if status != http.StatusBadRequest {
		t.Errorf("unknown operation: expected 400, got %d", status)
	}

	status, _ = postQuery(t, srv, "sendMessage", nil)
	if status != http.StatusBadRequest {
		t.Errorf("missing params: expected 400, got %d", status)
	}

	status, _ = postQuery(t, srv, "sendMessage", map[string]string{"name": "", "content": "hi"})
	if status != http.StatusBadRequest {
		t.Errorf("empty name: expected 400, got %d", status)
	}
}

func TestServeQuery_GetMessageNullWhenMissing(t *testing.T) {
	srv := newTestServer(t)

	status, qr := postQuery(t, srv, "getMessage", map[string]string{"id": "no-such-id"})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if string(qr.Data) != "null" {
		t.Errorf("expected null data, got %s", qr.Data)
	}
}

func TestServeQuery_WriteOnMissingIDIs404(t *testing.T) {
	srv := newTestServer(t)

	status, _ := postQuery(t, srv, "updateMessage", map[string]string{"id": "no-such-id", "content": "bye"})
	if status != http.StatusNotFound {
		t.Errorf("update: expected 404, got %d", status)
	}

	status, _ = postQuery(t, srv, "deleteMessage", map[string]string{"id": "no-such-id"})
	if status != http.StatusNotFound {
		t.Errorf("delete: expected 404, got %d", status)
	}
}

func TestServeQuery_LifecycleScenario(t *testing.T) {
	srv := newTestServer(t)

	_, qr := postQuery(t, srv, "sendMessage", map[string]string{"name": "alice", "content": "hi"})
	var sent message.Message
	json.Unmarshal(qr.Data, &sent) //nolint:errcheck

	status, qr := postQuery(t, srv, "updateMessage", map[string]string{"id": sent.ID, "content": "bye"})
	if status != http.StatusOK {
		t.Fatalf("update: expected 200, got %d (%s)", status, qr.Error)
	}

	_, qr = postQuery(t, srv, "getMessage", map[string]string{"id": sent.ID})
	var got message.Message
	json.Unmarshal(qr.Data, &got) //nolint:errcheck
	if got.Content != "bye" {
		t.Errorf("expected updated content, got %+v", got)
	}

	status, qr = postQuery(t, srv, "deleteMessage", map[string]string{"id": sent.ID})
	if status != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", status)
	}
	var deleted string
	json.Unmarshal(qr.Data, &deleted) //nolint:errcheck
	if deleted != sent.ID {
		t.Errorf("expected deleted id %q, got %q", sent.ID, deleted)
	}

	_, qr = postQuery(t, srv, "getMessage", map[string]string{"id": sent.ID})
	if string(qr.Data) != "null" {
		t.Errorf("expected null after delete, got %s", qr.Data)
	}
	_, qr = postQuery(t, srv, "viewMessages", nil)
	if string(qr.Data) != "[]" {
		t.Errorf("expected empty board, got %s", qr.Data)
	}
}

func TestSubscription_ReceiveMessage(t *testing.T) {
	srv := newTestServer(t)

	first := dialSubscription(t, srv, subscribeRequest{Subscribe: "receiveMessage"})
	second := dialSubscription(t, srv, subscribeRequest{Subscribe: "receiveMessage"})

	_, qr := postQuery(t, srv, "sendMessage", map[string]string{"name": "alice", "content": "hi"})
	var sent message.Message
	json.Unmarshal(qr.Data, &sent) //nolint:errcheck

	for i, conn := range []*websocket.Conn{first, second} {
		if got := readMessage(t, conn); got != sent {
			t.Errorf("subscriber %d: expected %+v, got %+v", i, sent, got)
		}
	}
}

func TestSubscription_ReceiveMessageForUser(t *testing.T) {
	srv := newTestServer(t)

	alice := dialSubscription(t, srv, subscribeRequest{Subscribe: "receiveMessageForUser", Name: "alice"})

	postQuery(t, srv, "sendMessage", map[string]string{"name": "bob", "content": "for bob"})
	_, qr := postQuery(t, srv, "sendMessage", map[string]string{"name": "alice", "content": "for alice"})
	var sent message.Message
	json.Unmarshal(qr.Data, &sent) //nolint:errcheck

	// The first frame alice receives must be her own message, not bob's.
	if got := readMessage(t, alice); got != sent {
		t.Errorf("expected %+v, got %+v", sent, got)
	}
}

func TestSubscription_RejectsUnknownField(t *testing.T) {
	srv := newTestServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/query"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(subscribeRequest{Subscribe: "receiveEverything"}); err != nil {
		t.Fatalf("subscribe frame failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var errFrame map[string]string
	if err := conn.ReadJSON(&errFrame); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if errFrame["error"] == "" {
		t.Errorf("expected an error frame, got %v", errFrame)
	}
}

func TestSubscription_PlainGETIsRejected(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/query")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for non-upgrade GET, got %d", resp.StatusCode)
	}
}
