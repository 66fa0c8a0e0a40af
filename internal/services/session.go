package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Ananth-NQI/inboxcall-backend/internal/conversation"
)

// DefaultSweepInterval is how often idle sessions are looked for
const DefaultSweepInterval = 1 * time.Minute

// sessionEntry pairs a call session with the 1-slot channel that serializes
// turns on it. evicted is set under the manager lock once the entry has been
// dropped from the map, so late waiters know to start over.
type sessionEntry struct {
	lock    chan struct{}
	session *conversation.CallSession
	evicted bool
}

func newSessionEntry(callID string, now time.Time) *sessionEntry {
	return &sessionEntry{
		lock:    make(chan struct{}, 1),
		session: conversation.NewCallSession(callID, now),
	}
}

func (e *sessionEntry) tryLock() bool {
	select {
	case e.lock <- struct{}{}:
		return true
	default:
		return false
	}
}

func (e *sessionEntry) unlock() { <-e.lock }

// SessionManager owns every live call session. Turns on different calls
// never wait on each other; turns on the same call run one at a time.
type SessionManager struct {
	mu            sync.Mutex
	sessions      map[string]*sessionEntry
	idleTimeout   time.Duration
	sweepInterval time.Duration
	now           func() time.Time

	// sweeper lifecycle
	runMu   sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewSessionManager creates an empty session store. Call Start to begin
// idle eviction.
func NewSessionManager(idleTimeout, sweepInterval time.Duration) *SessionManager {
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	return &SessionManager{
		sessions:      make(map[string]*sessionEntry),
		idleTimeout:   idleTimeout,
		sweepInterval: sweepInterval,
		now:           time.Now,
	}
}

// WithSession runs fn while holding the lock of callID's session. When create
// is set a missing session is started at Greeting and created is true;
// otherwise a missing session yields SessionNotFoundError.
func (sm *SessionManager) WithSession(ctx context.Context, callID string, create bool,
	fn func(s *conversation.CallSession, created bool) error) error {
	for {
		sm.mu.Lock()
		entry, exists := sm.sessions[callID]
		created := false
		if !exists {
			if !create {
				sm.mu.Unlock()
				return &conversation.SessionNotFoundError{CallID: callID}
			}
			entry = newSessionEntry(callID, sm.now())
			sm.sessions[callID] = entry
			created = true
			log.Printf("📞 Session created for call %s", callID)
		}
		sm.mu.Unlock()

		select {
		case entry.lock <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}

		sm.mu.Lock()
		evicted := entry.evicted
		sm.mu.Unlock()
		if evicted {
			// Removed while we waited; look the call up again.
			entry.unlock()
			continue
		}

		err := fn(entry.session, created)
		entry.unlock()
		return err
	}
}

// GetOrCreate returns the session for callID, creating it if needed. The
// returned session must only be mutated through WithSession.
func (sm *SessionManager) GetOrCreate(callID string) *conversation.CallSession {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	entry, exists := sm.sessions[callID]
	if !exists {
		entry = newSessionEntry(callID, sm.now())
		sm.sessions[callID] = entry
		log.Printf("📞 Session created for call %s", callID)
	}
	return entry.session
}

// Exists reports whether callID has a live session.
func (sm *SessionManager) Exists(callID string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	_, exists := sm.sessions[callID]
	return exists
}

// Remove drops the session for callID. It is safe to call while holding the
// session's lock inside WithSession.
func (sm *SessionManager) Remove(callID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if entry, exists := sm.sessions[callID]; exists {
		entry.evicted = true
		delete(sm.sessions, callID)
		log.Printf("👋 Session removed for call %s", callID)
	}
}

// SweepIdle evicts sessions idle for longer than the idle timeout and
// returns how many were removed. Sessions in the middle of a turn are left
// for the next sweep.
func (sm *SessionManager) SweepIdle() int {
	if sm.idleTimeout <= 0 {
		return 0
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	cutoff := sm.now().Add(-sm.idleTimeout)
	removed := 0
	for callID, entry := range sm.sessions {
		if !entry.tryLock() {
			continue
		}
		if entry.session.LastActivity.Before(cutoff) {
			entry.evicted = true
			delete(sm.sessions, callID)
			removed++
			log.Printf("🧹 Evicted idle session for call %s (last activity %s)",
				callID, entry.session.LastActivity.Format(time.RFC3339))
		}
		entry.unlock()
	}
	return removed
}

// Start begins the periodic idle sweep.
func (sm *SessionManager) Start(ctx context.Context) {
	sm.runMu.Lock()
	defer sm.runMu.Unlock()

	if sm.running {
		return
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	sm.cancel = cancel
	sm.done = make(chan struct{})
	sm.running = true

	go sm.runSweeper(sweepCtx)
}

// Stop halts the sweeper and waits for it to exit.
func (sm *SessionManager) Stop() {
	sm.runMu.Lock()
	if !sm.running {
		sm.runMu.Unlock()
		return
	}
	cancel := sm.cancel
	done := sm.done
	sm.runMu.Unlock()

	cancel()
	<-done
}

// IsRunning reports whether the sweeper goroutine is active.
func (sm *SessionManager) IsRunning() bool {
	sm.runMu.Lock()
	defer sm.runMu.Unlock()
	return sm.running
}

func (sm *SessionManager) runSweeper(ctx context.Context) {
	defer func() {
		sm.runMu.Lock()
		sm.running = false
		close(sm.done)
		sm.runMu.Unlock()
	}()

	ticker := time.NewTicker(sm.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("🛑 Session sweeper stopping")
			return
		case <-ticker.C:
			if removed := sm.SweepIdle(); removed > 0 {
				log.Printf("🧹 Swept %d idle sessions, %d active", removed, sm.GetActiveSessions())
			}
		}
	}
}

// GetActiveSessions returns the number of live sessions
func (sm *SessionManager) GetActiveSessions() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.sessions)
}

// SessionStats provides session statistics
type SessionStats struct {
	ActiveSessions  int            `json:"active_sessions"`
	BusySessions    int            `json:"busy_sessions"`
	SessionsByMode  map[string]int `json:"sessions_by_mode"`
	AverageDuration float64        `json:"average_duration_minutes"`
	AverageTurns    float64        `json:"average_turns"`
}

// GetSessionStats returns current session statistics. Sessions mid-turn are
// counted as busy and left out of the per-mode breakdown.
func (sm *SessionManager) GetSessionStats() *SessionStats {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	stats := &SessionStats{
		ActiveSessions: len(sm.sessions),
		SessionsByMode: make(map[string]int),
	}

	now := sm.now()
	totalDuration := 0.0
	totalTurns := 0
	sampled := 0

	for _, entry := range sm.sessions {
		if !entry.tryLock() {
			stats.BusySessions++
			continue
		}
		stats.SessionsByMode[entry.session.Mode.String()]++
		totalDuration += now.Sub(entry.session.CreatedAt).Minutes()
		totalTurns += entry.session.TurnCount
		sampled++
		entry.unlock()
	}

	if sampled > 0 {
		stats.AverageDuration = totalDuration / float64(sampled)
		stats.AverageTurns = float64(totalTurns) / float64(sampled)
	}

	return stats
}
