package svm

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type rpcErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rpcHandler returns either a result or a JSON-RPC error for one call.
type rpcHandler func(params json.RawMessage) (interface{}, *rpcErrorBody)

// mockRPCServer is a JSON-RPC endpoint that dispatches on method name and
// counts calls per method.
type mockRPCServer struct {
	*httptest.Server
	mu       sync.Mutex
	calls    map[string]int
	handlers map[string]rpcHandler
}

func newMockRPCServer(t *testing.T, handlers map[string]rpcHandler) *mockRPCServer {
	t.Helper()
	m := &mockRPCServer{calls: make(map[string]int), handlers: handlers}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		m.mu.Lock()
		m.calls[req.Method]++
		handler, ok := m.handlers[req.Method]
		m.mu.Unlock()

		response := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
		}
		if !ok {
			response["error"] = rpcErrorBody{Code: -32601, Message: "Method not found"}
		} else if result, rpcErr := handler(req.Params); rpcErr != nil {
			response["error"] = rpcErr
		} else {
			response["result"] = result
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	t.Cleanup(m.Close)
	return m
}

func (m *mockRPCServer) callCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// failingServer answers every request with HTTP 500.
func failingServer(t *testing.T) *httptest.Server {
	t.Helper()
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	t.Cleanup(s.Close)
	return s
}

func contextValue(value interface{}) map[string]interface{} {
	return map[string]interface{}{
		"context": map[string]interface{}{"slot": 1},
		"value":   value,
	}
}
