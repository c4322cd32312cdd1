package httpapi

import (
	"encoding/json"
	"net/http"
)

// JSON-RPC error codes returned by the protocol endpoint. The server-defined
// codes live in the implementation-reserved range and are part of the public
// contract: clients branch on them.
const (
	// CodeInvalidRequest is the standard JSON-RPC invalid-request code, used
	// for malformed protocol requests such as a termination without a
	// session id.
	CodeInvalidRequest = -32600
	// CodeInternalError is the standard JSON-RPC internal-error code.
	CodeInternalError = -32603
	// CodeAuthRequired is returned when a request carries no API key.
	CodeAuthRequired = -32001
	// CodeRateLimited is returned when session creation exceeds the per-key
	// ceiling.
	CodeRateLimited = -32002
	// CodeHijackDetected is returned when a session is presented from a
	// client that does not match its recorded binding.
	CodeHijackDetected = -32003
)

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcErrorResponse struct {
	JSONRPC string   `json:"jsonrpc"`
	ID      any      `json:"id"`
	Error   rpcError `json:"error"`
}

// writeRPCError writes a JSON-RPC error envelope with the given HTTP status.
// The message must never contain credential material.
func writeRPCError(w http.ResponseWriter, status, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(rpcErrorResponse{
		JSONRPC: "2.0",
		ID:      nil,
		Error:   rpcError{Code: code, Message: message},
	})
}

// writeJSON writes v as a JSON response body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
