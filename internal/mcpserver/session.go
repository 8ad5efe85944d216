package mcpserver

import (
	"sync"

	"github.com/google/uuid"

	"github.com/chrlesur/live-memory/internal/authctx"
)

// clientSession is one connected SSE client: its event stream, the
// per-request identity installed when it opened /sse, and a monotonic SSE
// event id counter. A POST to {session_endpoint} looks up the session by
// id and writes its JSON-RPC response onto the matching stream.
type clientSession struct {
	mu          sync.Mutex
	stream      *Stream
	identity    *authctx.Identity
	nextEventID int64
}

func (s *clientSession) send(event string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEventID++
	return s.stream.WriteEvent(s.nextEventID, event, payload)
}

func (s *clientSession) heartbeat() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream.WriteHeartbeat()
}

// sessionRegistry tracks every open SSE connection by session id.
type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*clientSession
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: map[string]*clientSession{}}
}

func (r *sessionRegistry) create(identity *authctx.Identity, stream *Stream) (string, *clientSession) {
	id := uuid.NewString()
	sess := &clientSession{stream: stream, identity: identity}
	r.mu.Lock()
	r.sessions[id] = sess
	r.mu.Unlock()
	return id, sess
}

func (r *sessionRegistry) get(id string) (*clientSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	return sess, ok
}

func (r *sessionRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}
