package civictest

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mkline/civicsync/civic"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type authPayload struct {
	User  civic.User `json:"user"`
	Token string     `json:"token"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.mu.Lock()
	if _, exists := s.accounts[req.Email]; exists {
		s.mu.Unlock()
		writeError(w, http.StatusBadRequest, "Email already registered")
		return
	}
	u := civic.User{ID: uuid.NewString(), Name: req.Name, Email: req.Email}
	s.accounts[req.Email] = &account{user: u, password: req.Password}
	token := uuid.NewString()
	s.tokens[token] = u.ID
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, authPayload{User: u, Token: token})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.mu.Lock()
	acct, ok := s.accounts[req.Email]
	if !ok || acct.password != req.Password {
		s.mu.Unlock()
		writeError(w, http.StatusBadRequest, "Invalid credentials")
		return
	}
	token := uuid.NewString()
	s.tokens[token] = acct.user.ID
	u := acct.user
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, authPayload{User: u, Token: token})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.authenticate(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	s.mu.Lock()
	u := s.userByID(uid)
	s.mu.Unlock()
	if u == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	const prefix = "Bearer "
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, prefix) {
		s.mu.Lock()
		delete(s.tokens, h[len(prefix):])
		s.mu.Unlock()
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (s *Server) handleListIssues(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if s.ListDelay != nil {
		time.Sleep(s.ListDelay(q))
	}

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 {
		limit = 10
	}
	search := strings.ToLower(q.Get("search"))
	category := q.Get("category")
	status := q.Get("status")
	oldestFirst := q.Get("sort") == "1"

	s.mu.Lock()
	var matched []civic.Issue
	for _, issue := range s.issues {
		if category != "" && issue.Category != category {
			continue
		}
		if status != "" && issue.Status != status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(issue.Title), search) &&
			!strings.Contains(strings.ToLower(issue.Description), search) {
			continue
		}
		matched = append(matched, *issue)
	}
	s.mu.Unlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if oldestFirst {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"issues": matched[start:end],
			"page":   page,
			"total":  total,
		},
	})
}

func (s *Server) handleGetIssue(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	issue := s.issueByID(chi.URLParam(r, "id"))
	s.mu.Unlock()
	if issue == nil {
		writeError(w, http.StatusNotFound, "Issue not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": issue})
}

func (s *Server) handleUserIssues(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.authenticate(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	s.mu.Lock()
	var owned []civic.Issue
	for _, issue := range s.issues {
		if issue.Author != nil && issue.Author.ID == uid {
			owned = append(owned, *issue)
		}
	}
	s.mu.Unlock()
	if owned == nil {
		owned = []civic.Issue{}
	}
	writeJSON(w, http.StatusOK, owned)
}

func (s *Server) handleMapIssues(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	var tagged []civic.Issue
	for _, issue := range s.issues {
		if issue.Latitude != 0 || issue.Longitude != 0 {
			tagged = append(tagged, *issue)
		}
	}
	s.mu.Unlock()
	if tagged == nil {
		tagged = []civic.Issue{}
	}
	writeJSON(w, http.StatusOK, tagged)
}

func (s *Server) handleCreateIssue(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.authenticate(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	s.mu.Lock()
	author := s.userByID(uid)
	s.mu.Unlock()

	lat, _ := strconv.ParseFloat(r.FormValue("latitude"), 64)
	lng, _ := strconv.ParseFloat(r.FormValue("longitude"), 64)
	issue := civic.Issue{
		ID:          uuid.NewString(),
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Category:    r.FormValue("category"),
		Location:    r.FormValue("location"),
		Latitude:    lat,
		Longitude:   lng,
		Status:      civic.StatusPending,
		Author:      author,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if f, header, err := r.FormFile("image"); err == nil {
		f.Close()
		issue.ImageURL = "/uploads/" + header.Filename
	}

	s.mu.Lock()
	stored := issue
	s.issues = append([]*civic.Issue{&stored}, s.issues...)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, issue)
}

func (s *Server) handleUpdateIssue(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.authenticate(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	issue := s.issueByID(chi.URLParam(r, "id"))
	if issue == nil {
		writeError(w, http.StatusNotFound, "Issue not found")
		return
	}
	if issue.Author == nil || issue.Author.ID != uid {
		writeError(w, http.StatusForbidden, "Not the issue owner")
		return
	}

	for field, apply := range map[string]*string{
		"title":       &issue.Title,
		"description": &issue.Description,
		"category":    &issue.Category,
		"location":    &issue.Location,
	} {
		if v := r.FormValue(field); v != "" {
			*apply = v
		}
	}
	if r.FormValue("removeImage") == "true" {
		issue.ImageURL = ""
	}
	if f, header, err := r.FormFile("image"); err == nil {
		f.Close()
		issue.ImageURL = "/uploads/" + header.Filename
	}
	issue.UpdatedAt = time.Now()

	writeJSON(w, http.StatusOK, issue)
}

func (s *Server) handleDeleteIssue(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.authenticate(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, issue := range s.issues {
		if issue.ID != id {
			continue
		}
		if issue.Author == nil || issue.Author.ID != uid {
			writeError(w, http.StatusForbidden, "Not the issue owner")
			return
		}
		s.issues = append(s.issues[:i], s.issues[i+1:]...)
		writeJSON(w, http.StatusOK, map[string]string{"message": "Issue deleted"})
		return
	}
	writeError(w, http.StatusNotFound, "Issue not found")
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.authenticate(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	issue := s.issueByID(id)
	if issue == nil {
		writeError(w, http.StatusNotFound, "Issue not found")
		return
	}
	if s.votes[uid] == nil {
		s.votes[uid] = make(map[string]bool)
	}
	if s.votes[uid][id] {
		writeError(w, http.StatusBadRequest, "Already voted")
		return
	}
	s.votes[uid][id] = true
	issue.VoteCount++
	writeJSON(w, http.StatusOK, map[string]string{"issueId": id})
}

func (s *Server) handleRetractVote(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.authenticate(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	issue := s.issueByID(id)
	if issue == nil {
		writeError(w, http.StatusNotFound, "Issue not found")
		return
	}
	if !s.votes[uid][id] {
		writeError(w, http.StatusBadRequest, "No vote to remove")
		return
	}
	delete(s.votes[uid], id)
	issue.VoteCount--
	writeJSON(w, http.StatusOK, map[string]string{"issueId": id})
}

func (s *Server) handleVoteStatus(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.authenticate(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	hasVoted := s.votes[uid][id]
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]bool{"hasVoted": hasVoted})
}

func (s *Server) handleCategoryCounts(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	counts := make(map[string]int)
	for _, issue := range s.issues {
		counts[issue.Category]++
	}
	s.mu.Unlock()

	rows := make([]civic.CategoryCount, 0, len(counts))
	for category, n := range counts {
		rows = append(rows, civic.CategoryCount{Category: category, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Category < rows[j].Category })
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleDailySubmissions(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	counts := make(map[string]int)
	for _, issue := range s.issues {
		counts[issue.CreatedAt.Format("2006-01-02")]++
	}
	s.mu.Unlock()

	rows := make([]civic.DailyCount, 0, len(counts))
	for date, n := range counts {
		rows = append(rows, civic.DailyCount{Date: date, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date < rows[j].Date })
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleMostVoted(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	top := make(map[string]int)
	for _, issue := range s.issues {
		if issue.VoteCount > top[issue.Category] {
			top[issue.Category] = issue.VoteCount
		}
	}
	s.mu.Unlock()

	rows := make([]civic.CategoryMax, 0, len(top))
	for category, votes := range top {
		rows = append(rows, civic.CategoryMax{Category: category, MaxVotes: votes})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Category < rows[j].Category })
	writeJSON(w, http.StatusOK, rows)
}
