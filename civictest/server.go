// Package civictest provides an in-process fake of the civic-issue reporting
// service for tests and examples.
//
// The fake implements the endpoints the SDK consumes, with in-memory state,
// bearer-token auth, and the wire shapes of the real service. Failure
// injection and per-request delays make request-ordering and error-path tests
// deterministic without touching the network.
package civictest

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mkline/civicsync/civic"
)

type account struct {
	user     civic.User
	password string
}

// Server is a fake reporting service.
type Server struct {
	mu       sync.Mutex
	accounts map[string]*account       // by email
	tokens   map[string]string         // token -> user id
	issues   []*civic.Issue            // newest first
	votes    map[string]map[string]bool // user id -> issue id

	failStatus  int
	failMessage string

	// ListDelay, when set, is consulted with the raw query of each list
	// request and the handler sleeps for the returned duration before
	// responding. Used to force response reordering in tests.
	ListDelay func(q url.Values) time.Duration

	httpSrv *httptest.Server
}

// New starts a fake service on a local listener. Callers should defer Close.
func New() *Server {
	s := &Server{
		accounts: make(map[string]*account),
		tokens:   make(map[string]string),
		votes:    make(map[string]map[string]bool),
	}

	r := chi.NewRouter()
	r.Use(s.failureMiddleware)
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)
		r.Get("/auth/me", s.handleMe)
		r.Get("/auth/logout", s.handleLogout)

		r.Get("/issues", s.handleListIssues)
		r.Get("/issues/user", s.handleUserIssues)
		r.Get("/issues/{id}", s.handleGetIssue)
		r.Post("/issues", s.handleCreateIssue)
		r.Put("/issues/{id}", s.handleUpdateIssue)
		r.Delete("/issues/{id}", s.handleDeleteIssue)
		r.Get("/map", s.handleMapIssues)

		r.Post("/vote/issues/{id}/upvote", s.handleCastVote)
		r.Delete("/vote/issues/{id}/vote", s.handleRetractVote)
		r.Get("/vote/issues/{id}/vote-status", s.handleVoteStatus)

		r.Get("/analytics/category-count", s.handleCategoryCounts)
		r.Get("/analytics/daily-submissions", s.handleDailySubmissions)
		r.Get("/analytics/most-voted", s.handleMostVoted)
	})

	s.httpSrv = httptest.NewServer(r)
	return s
}

// URL returns the base URL of the fake service.
func (s *Server) URL() string {
	return s.httpSrv.URL
}

// Close shuts the fake service down.
func (s *Server) Close() {
	s.httpSrv.Close()
}

// FailNext makes the next request fail with the given status and message,
// regardless of endpoint. Subsequent requests behave normally.
func (s *Server) FailNext(status int, message string) {
	s.mu.Lock()
	s.failStatus = status
	s.failMessage = message
	s.mu.Unlock()
}

func (s *Server) failureMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		status, message := s.failStatus, s.failMessage
		s.failStatus, s.failMessage = 0, ""
		s.mu.Unlock()
		if status != 0 {
			writeError(w, status, message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SeedUser registers an account directly and returns its user record.
func (s *Server) SeedUser(name, email, password string) civic.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := civic.User{ID: uuid.NewString(), Name: name, Email: email}
	s.accounts[email] = &account{user: u, password: password}
	return u
}

// SeedIssue adds an issue directly and returns it. Issues are served newest
// first, matching the service's default sort.
func (s *Server) SeedIssue(issue civic.Issue) civic.Issue {
	s.mu.Lock()
	defer s.mu.Unlock()
	if issue.ID == "" {
		issue.ID = uuid.NewString()
	}
	if issue.Status == "" {
		issue.Status = civic.StatusPending
	}
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = time.Now()
	}
	stored := issue
	s.issues = append([]*civic.Issue{&stored}, s.issues...)
	return stored
}

// TokenFor mints a bearer token for a seeded user, bypassing login.
func (s *Server) TokenFor(u civic.User) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := uuid.NewString()
	s.tokens[token] = u.ID
	return token
}

// RevokeAll invalidates every outstanding token, so the next authenticated
// request observes a 401.
func (s *Server) RevokeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]string)
}

// authenticate resolves the bearer token on r to a user id.
func (s *Server) authenticate(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) <= len(prefix) || h[:len(prefix)] != prefix {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.tokens[h[len(prefix):]]
	return id, ok
}

func (s *Server) userByID(id string) *civic.User {
	for _, acct := range s.accounts {
		if acct.user.ID == id {
			u := acct.user
			return &u
		}
	}
	return nil
}

func (s *Server) issueByID(id string) *civic.Issue {
	for _, issue := range s.issues {
		if issue.ID == id {
			return issue
		}
	}
	return nil
}
