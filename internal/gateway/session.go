package gateway

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned when routing to a session that does not
// exist or has already been closed.
var ErrSessionNotFound = errors.New("session not found")

// sessionQueueSize bounds both queued calls awaiting dispatch and
// responses waiting for a slow SSE consumer.
const sessionQueueSize = 32

// Session is one live SSE connection. A single worker goroutine executes
// the session's queued calls one at a time in enqueue order, so responses
// reach the stream in the order their calls arrived even when an earlier
// downstream call is slower than a later one.
type Session struct {
	ID string

	queue chan *Response
	work  chan func(context.Context)
	done  chan struct{}
	once  sync.Once

	ctx    context.Context
	cancel context.CancelFunc
}

// Deliveries returns the channel the SSE event loop drains.
func (s *Session) Deliveries() <-chan *Response {
	return s.queue
}

// Done is closed when the session is torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// serve runs queued work until the session closes. Work still queued at
// close time is discarded with the worker.
func (s *Session) serve() {
	for {
		select {
		case fn := <-s.work:
			fn(s.ctx)
		case <-s.done:
			return
		}
	}
}

func (s *Session) close() {
	s.once.Do(func() {
		s.cancel()
		close(s.done)
	})
}

// Registry tracks live SSE sessions by ID.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Open registers a new session under a fresh ID and starts its worker.
func (r *Registry) Open() *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:     uuid.NewString(),
		queue:  make(chan *Response, sessionQueueSize),
		work:   make(chan func(context.Context), sessionQueueSize),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
	go s.serve()

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s
}

// Close removes the session, cancels its work context, and wakes its
// consumer. Queued work and responses are discarded; once Close returns,
// Enqueue and Route for this ID report ErrSessionNotFound.
func (r *Registry) Close(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if ok {
		s.close()
	}
}

// Lookup returns the live session with the given ID.
func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Enqueue schedules fn on the session's worker. Items run one at a time
// in enqueue order; fn receives a context that is cancelled when the
// session closes. Enqueueing to an unknown or closed session returns
// ErrSessionNotFound.
func (r *Registry) Enqueue(id string, fn func(context.Context)) error {
	s, ok := r.Lookup(id)
	if !ok {
		return ErrSessionNotFound
	}

	select {
	case s.work <- fn:
		return nil
	case <-s.done:
		return ErrSessionNotFound
	}
}

// Route queues a response for delivery on the session's SSE stream.
// Routing to an unknown or closed session returns ErrSessionNotFound.
func (r *Registry) Route(id string, resp *Response) error {
	s, ok := r.Lookup(id)
	if !ok {
		return ErrSessionNotFound
	}

	select {
	case s.queue <- resp:
		return nil
	case <-s.done:
		return ErrSessionNotFound
	}
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
