package storage

import (
	"context"
	"fmt"
	"sync"

	"littlebot/internal/logger"
	"littlebot/internal/model"

	"go.uber.org/zap"
)

// ChannelOpener opens (or reuses) the direct message channel with a user
type ChannelOpener interface {
	OpenDirectMessage(ctx context.Context, teamID, userID string) (string, error)
}

type sessionKey struct {
	teamID string
	userID string
}

type sessionEntry struct {
	mu     sync.Mutex
	record *model.SessionRecord
}

// SessionStore keeps one SessionRecord per (team, user) for the lifetime of
// the process. Every access to a record happens under that record's lock.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[sessionKey]*sessionEntry
	opener   ChannelOpener
}

// NewSessionStore creates a store that opens DM channels through opener
func NewSessionStore(opener ChannelOpener) *SessionStore {
	return &SessionStore{
		sessions: make(map[sessionKey]*sessionEntry),
		opener:   opener,
	}
}

func (s *SessionStore) entry(teamID, userID string) *sessionEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sessionKey{teamID: teamID, userID: userID}
	e, ok := s.sessions[key]
	if !ok {
		e = &sessionEntry{}
		s.sessions[key] = e
	}
	return e
}

// with runs fn on the record while holding its lock, creating the record
// (and its DM channel) first if needed.
func (s *SessionStore) with(ctx context.Context, teamID, userID string, fn func(rec *model.SessionRecord, created bool) error) error {
	e := s.entry(teamID, userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	created := false
	if e.record == nil {
		channel, err := s.opener.OpenDirectMessage(ctx, teamID, userID)
		if err != nil {
			return fmt.Errorf("failed to open session for %s/%s: %w", teamID, userID, err)
		}
		e.record = model.NewSessionRecord(teamID, userID, channel)
		created = true
	}
	return fn(e.record, created)
}

// GetOrCreate returns the record for (team, user), opening a DM channel the
// first time the pair is seen. Callers that mutate the record should use
// WithSession instead.
func (s *SessionStore) GetOrCreate(ctx context.Context, teamID, userID string) (*model.SessionRecord, error) {
	var rec *model.SessionRecord
	err := s.with(ctx, teamID, userID, func(r *model.SessionRecord, _ bool) error {
		rec = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// WithSession runs fn with exclusive access to the (team, user) record
func (s *SessionStore) WithSession(ctx context.Context, teamID, userID string, fn func(rec *model.SessionRecord) error) error {
	return s.with(ctx, teamID, userID, func(r *model.SessionRecord, _ bool) error {
		return fn(r)
	})
}

// MarkAttachmentComplete flips slot to complete and then runs publish (which
// may be nil) under the same lock, so the update that reaches Slack is the
// one that was just made. A missing record is created and logged.
func (s *SessionStore) MarkAttachmentComplete(ctx context.Context, teamID, userID string, slot model.SlotName, publish func(rec *model.SessionRecord) error) error {
	return s.with(ctx, teamID, userID, func(r *model.SessionRecord, created bool) error {
		if created {
			logger.GetLogger().Warn("completing attachment on a session with no onboarding message",
				zap.String("team_id", teamID),
				zap.String("user_id", userID),
				zap.String("slot", string(slot)))
		}
		if !r.MarkComplete(slot) {
			return fmt.Errorf("unknown attachment slot %q", slot)
		}
		if publish == nil {
			return nil
		}
		return publish(r)
	})
}

// Len returns the number of (team, user) pairs with a record
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, e := range s.sessions {
		e.mu.Lock()
		if e.record != nil {
			n++
		}
		e.mu.Unlock()
	}
	return n
}
