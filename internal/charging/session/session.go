package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/RestComm/charging-server/internal/charging/account"
)

// State of the per-session credit-control flow.
type State int

const (
	// StateAwaitingRequest means no Ledger operation is outstanding.
	StateAwaitingRequest State = iota
	// StateReserving means a Ledger or Rater call is in flight.
	StateReserving
	// StateClosed means the session has been torn down.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitingRequest:
		return "AWAITING_REQUEST"
	case StateReserving:
		return "RESERVING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// UserSessionInfo accumulates the per-Diameter-session state: the subscriber
// identity, the services requested and every credit-control exchange processed
// so far. The history is append-only; the last entry is the reservation
// baseline for the next Update/Termination.
type UserSessionInfo struct {
	// Mu serializes the session flow. A holder owns the whole
	// handle-or-resume step; the store's map lock is never held across it.
	Mu sync.Mutex

	SessionId string
	StartTime time.Time

	SubscriptionId     string
	SubscriptionIdType int

	OriginHost       string
	OriginRealm      string
	DestinationHost  string
	DestinationRealm string

	ServiceIds []uint32

	State State

	// LastRequestNumber is the CC-Request-Number of the last accepted
	// request. -1 until the first request is accepted.
	LastRequestNumber int64

	history []*account.CreditControlInfo

	timer *time.Timer
}

// AppendHistory records a finished exchange.
func (s *UserSessionInfo) AppendHistory(cc *account.CreditControlInfo) {
	s.history = append(s.history, cc)
}

// History returns the append-only exchange list.
func (s *UserSessionInfo) History() []*account.CreditControlInfo {
	return s.history
}

// LastReservation returns the most recent exchange, or nil for a fresh session.
func (s *UserSessionInfo) LastReservation() *account.CreditControlInfo {
	if len(s.history) == 0 {
		return nil
	}
	return s.history[len(s.history)-1]
}

// ArmTimer cancels any outstanding timer and arms a new one. At most one
// timer exists per session.
func (s *UserSessionInfo) ArmTimer(d time.Duration, fire func()) {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(d, fire)
}

// CancelTimer stops the outstanding timer, if any. Safe to call repeatedly.
func (s *UserSessionInfo) CancelTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// LogId renders the session id for log lines, truncated to head..tail with
// the request type and number appended.
func (s *UserSessionInfo) LogId(reqType account.RequestType, reqNumber uint32) string {
	return fmt.Sprintf("SID<%s/%s#%d>", limitString(s.SessionId, 9), reqType, reqNumber)
}

func limitString(str string, limit int) string {
	if len(str) <= 2*limit {
		return str
	}
	return str[:limit] + ".." + str[len(str)-limit:]
}

// Store maps Diameter session ids to their UserSessionInfo. It is the only
// shared mutable structure in the server; all access goes through it.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*UserSessionInfo
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*UserSessionInfo),
	}
}

// GetOrCreate returns the session for the id, creating it on first use.
// The boolean reports whether the session already existed.
func (st *Store) GetOrCreate(sessionId string) (*UserSessionInfo, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if s, ok := st.sessions[sessionId]; ok {
		return s, true
	}
	s := &UserSessionInfo{
		SessionId:         sessionId,
		StartTime:         time.Now(),
		State:             StateAwaitingRequest,
		LastRequestNumber: -1,
	}
	st.sessions[sessionId] = s
	return s, false
}

// Get returns the session for the id, if present.
func (st *Store) Get(sessionId string) (*UserSessionInfo, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s, ok := st.sessions[sessionId]
	return s, ok
}

// Delete removes the session from the store.
func (st *Store) Delete(sessionId string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	delete(st.sessions, sessionId)
}

// Count returns the number of live sessions.
func (st *Store) Count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()

	return len(st.sessions)
}
