package coordinator

import (
	"net/http"
	"sync/atomic"
	"time"

	"searchmcp/internal/session"
)

// Entry is the process-local, ephemeral half of a session: a live MCP server
// with its per-key tool registry and the HTTP transport that fronts it.
// Entries are never persisted; they are rebuilt on demand from the session
// record plus a fresh collection discovery call.
type Entry struct {
	record    *session.Record
	transport http.Handler
	tools     []string
	createdAt time.Time
	closed    atomic.Bool
}

func newEntry(rec *session.Record, transport http.Handler, tools []string) *Entry {
	return &Entry{
		record:    rec,
		transport: transport,
		tools:     tools,
		createdAt: time.Now(),
	}
}

// Record returns the session record this entry was built from.
func (e *Entry) Record() *session.Record {
	return e.record
}

// Tools returns the names of the registered tools.
func (e *Entry) Tools() []string {
	return e.tools
}

// Dispatch hands the request to the session's protocol transport.
func (e *Entry) Dispatch(w http.ResponseWriter, r *http.Request) {
	if e.closed.Load() {
		http.Error(w, "session closed", http.StatusGone)
		return
	}
	e.transport.ServeHTTP(w, r)
}

// Close marks the entry unusable. Closing twice is safe.
func (e *Entry) Close() {
	e.closed.Store(true)
}

// Closed reports whether the entry has been closed.
func (e *Entry) Closed() bool {
	return e.closed.Load()
}
