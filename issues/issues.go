// Package issues owns the issue collection state: the paginated filtered
// list, the single detail slot, the current user's own issues, and the map
// variant.
//
// Each operation family tracks its own lifecycle independently, so a failed
// detail fetch never blanks the list and vice versa. The list fetch is keyed
// to the query generation current at dispatch: a response whose generation no
// longer matches is dropped silently, which makes the last SetQuery the
// winner regardless of network ordering.
package issues

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/mkline/civicsync/civic"
	"github.com/mkline/civicsync/transport"
)

// ErrSuperseded is returned by FetchList when the query changed while the
// fetch was in flight. The response was discarded and store state is
// untouched; callers normally ignore it.
var ErrSuperseded = errors.New("query superseded")

// OpState is the lifecycle state of one operation family.
type OpState int

const (
	OpIdle OpState = iota
	OpPending
	OpSucceeded
	OpFailed
)

// Page is one page of list results. It is replaced wholesale on every
// successful list fetch, never merged.
type Page struct {
	Items      []civic.Issue
	Page       int
	Total      int
	Limit      int
	TotalPages int
}

type opStatus struct {
	state OpState
	err   error
}

// Store owns issue state. All mutation happens inside the operations defined
// here, at response-handling points, under the store lock.
type Store struct {
	mu  sync.RWMutex
	tc  *transport.Client
	gen uint64

	query      Query
	page       Page
	detail     *civic.Issue
	userIssues []civic.Issue
	mapIssues  []civic.Issue

	list, det, user, mapv, create, update, del opStatus

	log      *slog.Logger
	validate *validator.Validate
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.log = logger }
}

// New creates an issues store talking through tc, starting at DefaultQuery.
func New(tc *transport.Client, opts ...Option) *Store {
	s := &Store{
		tc:       tc,
		query:    DefaultQuery(),
		page:     Page{Page: 1, Limit: 10, TotalPages: 1},
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = slog.New(slog.DiscardHandler)
	}
	return s
}

// Query returns the current query.
func (s *Store) Query() Query {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.query
}

// Page returns the current list page.
func (s *Store) Page() Page {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.page
}

// Detail returns the detail slot, or nil when empty.
func (s *Store) Detail() *civic.Issue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.detail == nil {
		return nil
	}
	d := *s.detail
	return &d
}

// UserIssues returns the issues owned by the current session.
func (s *Store) UserIssues() []civic.Issue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]civic.Issue, len(s.userIssues))
	copy(out, s.userIssues)
	return out
}

// MapIssues returns the map variant of the collection.
func (s *Store) MapIssues() []civic.Issue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]civic.Issue, len(s.mapIssues))
	copy(out, s.mapIssues)
	return out
}

// ListState returns the list fetch family's state and last error.
func (s *Store) ListState() (OpState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list.state, s.list.err
}

// DetailState returns the detail fetch family's state and last error.
func (s *Store) DetailState() (OpState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.det.state, s.det.err
}

// SetQuery merges u into the current query. Any change to search, category,
// status, or sort resets the page to 1; a stale page position in a new filter
// is never shown. Every effective change bumps the query generation, which
// invalidates in-flight list fetches. The merged query is returned.
func (s *Store) SetQuery(u QueryUpdate) Query {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.query
	q := old
	if u.Search != nil {
		q.Search = *u.Search
	}
	if u.Category != nil {
		q.Category = *u.Category
	}
	if u.Status != nil {
		q.Status = *u.Status
	}
	if u.Sort != nil {
		q.Sort = *u.Sort
	}
	if u.Limit != nil && *u.Limit > 0 {
		q.Limit = *u.Limit
	}
	if !q.sameFilters(old) {
		q.Page = 1
	} else if u.Page != nil && *u.Page >= 1 {
		q.Page = *u.Page
	}

	if q != old {
		s.query = q
		s.gen++
	}
	return q
}

// listResponse is the wire shape of the list endpoint. The authoritative
// count field is "total"; the client-held limit, not the server echo, drives
// the page math.
type listResponse struct {
	Data struct {
		Issues []civic.Issue `json:"issues"`
		Page   int           `json:"page"`
		Total  int           `json:"total"`
	} `json:"data"`
}

func totalPages(total, limit int) int {
	if limit <= 0 {
		return 1
	}
	n := (total + limit - 1) / limit
	if n < 1 {
		n = 1
	}
	return n
}

// FetchList fetches the page described by the current query and replaces the
// stored Page wholesale. If the query changes while the fetch is in flight
// the late response is dropped and ErrSuperseded returned. On a transport
// failure the previous page is retained and the error recorded.
func (s *Store) FetchList(ctx context.Context) (Page, error) {
	s.mu.Lock()
	q := s.query
	gen := s.gen
	s.list.state = OpPending
	s.mu.Unlock()

	vals, err := q.values()
	if err != nil {
		return Page{}, err
	}

	var resp listResponse
	err = s.tc.GetJSON(ctx, "/api/issues", vals, &resp)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		s.log.Debug("dropping stale list response", "page", q.Page, "category", q.Category)
		return s.page, ErrSuperseded
	}
	if err != nil {
		s.list = opStatus{state: OpFailed, err: err}
		return s.page, err
	}

	s.page = Page{
		Items:      resp.Data.Issues,
		Page:       resp.Data.Page,
		Total:      resp.Data.Total,
		Limit:      q.Limit,
		TotalPages: totalPages(resp.Data.Total, q.Limit),
	}
	s.list = opStatus{state: OpSucceeded}
	return s.page, nil
}

type detailResponse struct {
	Data civic.Issue `json:"data"`
}

// FetchDetail fetches one issue by id into the detail slot.
func (s *Store) FetchDetail(ctx context.Context, id string) (*civic.Issue, error) {
	s.mu.Lock()
	s.det.state = OpPending
	s.mu.Unlock()

	var resp detailResponse
	err := s.tc.GetJSON(ctx, "/api/issues/"+url.PathEscape(id), nil, &resp)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.det = opStatus{state: OpFailed, err: err}
		return nil, err
	}
	s.detail = &resp.Data
	s.det = opStatus{state: OpSucceeded}
	d := resp.Data
	return &d, nil
}

// ClearDetail empties the detail slot. Call when leaving a detail view so a
// fast navigation to a different id never shows the previous issue.
func (s *Store) ClearDetail() {
	s.mu.Lock()
	s.detail = nil
	s.det = opStatus{}
	s.mu.Unlock()
}

// FetchUserIssues replaces the set of issues owned by the current session.
func (s *Store) FetchUserIssues(ctx context.Context) ([]civic.Issue, error) {
	s.mu.Lock()
	s.user.state = OpPending
	s.mu.Unlock()

	var items []civic.Issue
	err := s.tc.GetJSON(ctx, "/api/issues/user", nil, &items)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.user = opStatus{state: OpFailed, err: err}
		return nil, err
	}
	s.userIssues = items
	s.user = opStatus{state: OpSucceeded}
	out := make([]civic.Issue, len(items))
	copy(out, items)
	return out, nil
}

// FetchMapIssues fetches the geo-tagged variant of the collection.
func (s *Store) FetchMapIssues(ctx context.Context) ([]civic.Issue, error) {
	s.mu.Lock()
	s.mapv.state = OpPending
	s.mu.Unlock()

	var items []civic.Issue
	err := s.tc.GetJSON(ctx, "/api/map", nil, &items)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.mapv = opStatus{state: OpFailed, err: err}
		return nil, err
	}
	s.mapIssues = items
	s.mapv = opStatus{state: OpSucceeded}
	out := make([]civic.Issue, len(items))
	copy(out, items)
	return out, nil
}

// CanEdit reports whether the client should offer edit/delete for the issue:
// the acting identity owns it and it is still Pending. This is a usability
// gate, not a security boundary; the server re-checks.
func CanEdit(u *civic.User, issue civic.Issue) bool {
	return issue.OwnedBy(u) && issue.Status == civic.StatusPending
}
