// Package votes owns the set of issues the current session has voted on.
//
// Membership is eventually consistent with the server. Cast and Retract are
// confirm-then-reflect: the set changes only after the server confirms, so a
// failed cast never shows a false "voted" state. Check is the authoritative
// reconciliation and overrides prior optimistic state. Responses are applied
// with last-dispatch-wins ordering per issue: each operation takes a
// monotonic sequence number at dispatch, and a response is dropped if a
// later-dispatched operation for the same issue has already been applied.
package votes

import (
	"context"
	"log/slog"
	"net/url"
	"sync"

	"github.com/mkline/civicsync/transport"
)

// Store owns the vote set.
type Store struct {
	mu      sync.RWMutex
	tc      *transport.Client
	voted   map[string]bool
	applied map[string]uint64 // per-issue seq of the last applied response
	seq     uint64
	lastErr error
	log     *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.log = logger }
}

// New creates a votes store talking through tc.
func New(tc *transport.Client, opts ...Option) *Store {
	s := &Store{
		tc:      tc,
		voted:   make(map[string]bool),
		applied: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = slog.New(slog.DiscardHandler)
	}
	return s
}

// HasVoted reports set membership for the issue. It is a projection of
// client state, never of a server vote-count field.
func (s *Store) HasVoted(issueID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.voted[issueID]
}

// Voted returns the ids currently in the set, in no particular order.
func (s *Store) Voted() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.voted))
	for id := range s.voted {
		ids = append(ids, id)
	}
	return ids
}

// LastError returns the error recorded by the most recent failed operation.
func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// next reserves a dispatch sequence number.
func (s *Store) next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// apply sets membership for issueID unless a later-dispatched response has
// already been applied. Idempotent per (issueID, voted).
func (s *Store) apply(issueID string, seq uint64, voted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq <= s.applied[issueID] {
		s.log.Debug("dropping stale vote response", "issue", issueID)
		return
	}
	s.applied[issueID] = seq
	if voted {
		s.voted[issueID] = true
	} else {
		delete(s.voted, issueID)
	}
}

func (s *Store) fail(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// Cast votes for the issue. Membership is added only after the server
// confirms.
func (s *Store) Cast(ctx context.Context, issueID string) error {
	seq := s.next()
	path := "/api/vote/issues/" + url.PathEscape(issueID) + "/upvote"
	if err := s.tc.PostJSON(ctx, path, nil, nil); err != nil {
		s.fail(err)
		return err
	}
	s.apply(issueID, seq, true)
	return nil
}

// Retract removes the vote for the issue, symmetric to Cast.
func (s *Store) Retract(ctx context.Context, issueID string) error {
	seq := s.next()
	path := "/api/vote/issues/" + url.PathEscape(issueID) + "/vote"
	if err := s.tc.Delete(ctx, path, nil); err != nil {
		s.fail(err)
		return err
	}
	s.apply(issueID, seq, false)
	return nil
}

type voteStatus struct {
	HasVoted bool `json:"hasVoted"`
}

// Check reconciles membership against the server: the response sets
// membership to the server boolean exactly, correcting any drift from
// earlier optimistic mutations. Call it when entering a detail view.
func (s *Store) Check(ctx context.Context, issueID string) (bool, error) {
	seq := s.next()
	path := "/api/vote/issues/" + url.PathEscape(issueID) + "/vote-status"
	var status voteStatus
	if err := s.tc.GetJSON(ctx, path, nil, &status); err != nil {
		s.fail(err)
		return false, err
	}
	s.apply(issueID, seq, status.HasVoted)
	return status.HasVoted, nil
}
