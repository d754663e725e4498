package issues_test

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkline/civicsync/civic"
	"github.com/mkline/civicsync/civictest"
	"github.com/mkline/civicsync/issues"
	"github.com/mkline/civicsync/transport"
)

type staticCreds string

func (s staticCreds) Credential() (string, bool) {
	return string(s), s != ""
}

func newStore(t *testing.T, srv *civictest.Server, token string) *issues.Store {
	t.Helper()
	tc, err := transport.New(srv.URL())
	require.NoError(t, err)
	tc.SetCredentialSource(staticCreds(token))
	return issues.New(tc)
}

func seedCategory(srv *civictest.Server, category string, n int) {
	base := time.Now().Add(-time.Duration(n) * time.Hour)
	for i := 0; i < n; i++ {
		srv.SeedIssue(civic.Issue{
			Title:     fmt.Sprintf("%s issue %d", category, i),
			Category:  category,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
	}
}

func TestSetQuery(t *testing.T) {
	srv := civictest.New()
	defer srv.Close()
	s := newStore(t, srv, "")

	t.Run("FilterChangeResetsPage", func(t *testing.T) {
		q := s.SetQuery(issues.QueryUpdate{Page: issues.Int(3)})
		require.Equal(t, 3, q.Page)

		q = s.SetQuery(issues.QueryUpdate{Category: issues.Str("Water")})
		assert.Equal(t, 1, q.Page, "category change resets page")
		assert.Equal(t, "Water", q.Category)

		q = s.SetQuery(issues.QueryUpdate{Page: issues.Int(2)})
		q = s.SetQuery(issues.QueryUpdate{Status: issues.Str(civic.StatusResolved)})
		assert.Equal(t, 1, q.Page, "status change resets page")

		q = s.SetQuery(issues.QueryUpdate{Page: issues.Int(2)})
		q = s.SetQuery(issues.QueryUpdate{Search: issues.Str("pothole")})
		assert.Equal(t, 1, q.Page, "search change resets page")

		q = s.SetQuery(issues.QueryUpdate{Page: issues.Int(2)})
		q = s.SetQuery(issues.QueryUpdate{Sort: issues.Int(issues.SortOldest)})
		assert.Equal(t, 1, q.Page, "sort change resets page")
	})

	t.Run("PageChangeKeepsFilters", func(t *testing.T) {
		s.SetQuery(issues.QueryUpdate{Category: issues.Str("Road"), Search: issues.Str("lamp")})
		q := s.SetQuery(issues.QueryUpdate{Page: issues.Int(4)})
		assert.Equal(t, 4, q.Page)
		assert.Equal(t, "Road", q.Category)
		assert.Equal(t, "lamp", q.Search)
	})

	t.Run("InvalidValuesIgnored", func(t *testing.T) {
		before := s.Query()
		q := s.SetQuery(issues.QueryUpdate{Page: issues.Int(0), Limit: issues.Int(-5)})
		assert.Equal(t, before, q)
	})
}

func TestFetchListPagination(t *testing.T) {
	srv := civictest.New()
	defer srv.Close()
	seedCategory(srv, "Water", 23)
	seedCategory(srv, "Road", 4)

	s := newStore(t, srv, "")
	s.SetQuery(issues.QueryUpdate{Category: issues.Str("Water")})

	page, err := s.FetchList(t.Context())
	require.NoError(t, err)
	assert.Len(t, page.Items, 10)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 23, page.Total)
	assert.Equal(t, 3, page.TotalPages, "totalPages derived from total and the client-held limit")
	for _, issue := range page.Items {
		assert.Equal(t, "Water", issue.Category)
	}

	s.SetQuery(issues.QueryUpdate{Page: issues.Int(3)})
	page, err = s.FetchList(t.Context())
	require.NoError(t, err)
	assert.Len(t, page.Items, 3)
	assert.Equal(t, 3, page.Page)
}

func TestFetchListFailureRetainsPreviousPage(t *testing.T) {
	srv := civictest.New()
	defer srv.Close()
	seedCategory(srv, "Road", 5)

	s := newStore(t, srv, "")
	page, err := s.FetchList(t.Context())
	require.NoError(t, err)
	require.Len(t, page.Items, 5)

	srv.FailNext(http.StatusInternalServerError, "boom")
	_, err = s.FetchList(t.Context())
	require.Error(t, err)

	got := s.Page()
	assert.Len(t, got.Items, 5, "previous page retained on transient error")
	state, stateErr := s.ListState()
	assert.Equal(t, issues.OpFailed, state)
	assert.Error(t, stateErr)
}

func TestStaleListResponseIsDropped(t *testing.T) {
	srv := civictest.New()
	defer srv.Close()
	seedCategory(srv, "Water", 3)
	seedCategory(srv, "Road", 2)

	started := make(chan struct{})
	srv.ListDelay = func(q url.Values) time.Duration {
		if q.Get("category") == "Water" {
			close(started)
			return 150 * time.Millisecond
		}
		return 0
	}

	s := newStore(t, srv, "")

	// Dispatch a fetch for Water, then supersede it with Road while the
	// Water response is still in flight.
	s.SetQuery(issues.QueryUpdate{Category: issues.Str("Water")})
	firstErr := make(chan error, 1)
	go func() {
		_, err := s.FetchList(t.Context())
		firstErr <- err
	}()
	<-started

	s.SetQuery(issues.QueryUpdate{Category: issues.Str("Road")})
	page, err := s.FetchList(t.Context())
	require.NoError(t, err)
	require.Len(t, page.Items, 2)

	require.ErrorIs(t, <-firstErr, issues.ErrSuperseded)

	// The stored page reflects the last query issued, not the late arrival.
	got := s.Page()
	require.Len(t, got.Items, 2)
	for _, issue := range got.Items {
		assert.Equal(t, "Road", issue.Category)
	}
}

func TestFetchDetailAndClear(t *testing.T) {
	srv := civictest.New()
	defer srv.Close()
	seeded := srv.SeedIssue(civic.Issue{Title: "Broken lamp", Category: "Electricity"})

	s := newStore(t, srv, "")
	detail, err := s.FetchDetail(t.Context(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, "Broken lamp", detail.Title)
	require.NotNil(t, s.Detail())

	s.ClearDetail()
	assert.Nil(t, s.Detail(), "detail slot cleared when leaving the view")
}

func TestCreatePrependsWithoutRefetch(t *testing.T) {
	srv := civictest.New()
	defer srv.Close()
	u := srv.SeedUser("Ada", "ada@example.com", "pw")
	token := srv.TokenFor(u)

	s := newStore(t, srv, token)
	created, err := s.Create(t.Context(), issues.CreateInput{
		Title:       "Pothole",
		Description: "Deep pothole on Main St",
		Category:    "Road",
		Location:    "Main St 42",
	})
	require.NoError(t, err)
	assert.Equal(t, civic.StatusPending, created.Status, "server assigns the initial status")

	mine := s.UserIssues()
	require.Len(t, mine, 1)
	assert.Equal(t, created.ID, mine[0].ID, "new issue prepended locally, no refetch")

	second, err := s.Create(t.Context(), issues.CreateInput{
		Title:       "Flooded underpass",
		Description: "Standing water",
		Category:    "Water",
		Location:    "Underpass 3",
	})
	require.NoError(t, err)
	mine = s.UserIssues()
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID, "newest first")
}

func TestCreateValidation(t *testing.T) {
	srv := civictest.New()
	defer srv.Close()
	s := newStore(t, srv, "")

	_, err := s.Create(t.Context(), issues.CreateInput{Title: "No description"})
	var verr *civic.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "description", verr.Field)
}

func TestCreateWithImage(t *testing.T) {
	srv := civictest.New()
	defer srv.Close()
	u := srv.SeedUser("Ada", "ada@example.com", "pw")

	s := newStore(t, srv, srv.TokenFor(u))
	created, err := s.Create(t.Context(), issues.CreateInput{
		Title:       "Pothole",
		Description: "With photo",
		Category:    "Road",
		Location:    "Main St",
		ImageName:   "pothole.jpg",
		Image:       strings.NewReader("jpeg-bytes"),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ImageURL)
}

func TestUpdateRemoveImageIsDistinctFromOmission(t *testing.T) {
	srv := civictest.New()
	defer srv.Close()
	u := srv.SeedUser("Ada", "ada@example.com", "pw")
	seeded := srv.SeedIssue(civic.Issue{
		Title:    "Pothole",
		Category: "Road",
		Author:   &u,
		ImageURL: "/uploads/before.jpg",
	})

	s := newStore(t, srv, srv.TokenFor(u))

	// Omission preserves the existing attachment.
	updated, err := s.Update(t.Context(), seeded.ID, issues.UpdateInput{
		Title: issues.Str("Pothole (updated)"),
	})
	require.NoError(t, err)
	assert.Equal(t, "/uploads/before.jpg", updated.ImageURL)

	// The explicit flag clears it.
	updated, err = s.Update(t.Context(), seeded.ID, issues.UpdateInput{RemoveImage: true})
	require.NoError(t, err)
	assert.Empty(t, updated.ImageURL)
}

func TestUpdateReplacesUserSetAndDetailSlot(t *testing.T) {
	srv := civictest.New()
	defer srv.Close()
	u := srv.SeedUser("Ada", "ada@example.com", "pw")
	seeded := srv.SeedIssue(civic.Issue{Title: "Old title", Category: "Road", Author: &u})

	s := newStore(t, srv, srv.TokenFor(u))
	_, err := s.FetchUserIssues(t.Context())
	require.NoError(t, err)
	_, err = s.FetchDetail(t.Context(), seeded.ID)
	require.NoError(t, err)

	_, err = s.Update(t.Context(), seeded.ID, issues.UpdateInput{Title: issues.Str("New title")})
	require.NoError(t, err)

	mine := s.UserIssues()
	require.Len(t, mine, 1)
	assert.Equal(t, "New title", mine[0].Title)
	require.NotNil(t, s.Detail())
	assert.Equal(t, "New title", s.Detail().Title)
}

func TestUpdateValidation(t *testing.T) {
	srv := civictest.New()
	defer srv.Close()
	s := newStore(t, srv, "")

	_, err := s.Update(t.Context(), "some-id", issues.UpdateInput{Title: issues.Str("")})
	var verr *civic.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "title", verr.Field)
}

func TestDeleteMutatesUserSetOnly(t *testing.T) {
	srv := civictest.New()
	defer srv.Close()
	u := srv.SeedUser("Ada", "ada@example.com", "pw")
	seeded := srv.SeedIssue(civic.Issue{Title: "Doomed", Category: "Other", Author: &u})

	s := newStore(t, srv, srv.TokenFor(u))
	_, err := s.FetchList(t.Context())
	require.NoError(t, err)
	_, err = s.FetchUserIssues(t.Context())
	require.NoError(t, err)
	require.Len(t, s.UserIssues(), 1)
	require.Len(t, s.Page().Items, 1)

	require.NoError(t, s.Delete(t.Context(), seeded.ID))

	assert.Empty(t, s.UserIssues())
	assert.Len(t, s.Page().Items, 1,
		"list membership depends on filters the delete doesn't know; it updates on the next fetch")

	page, err := s.FetchList(t.Context())
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestDeleteFailureKeepsUserSet(t *testing.T) {
	srv := civictest.New()
	defer srv.Close()
	u := srv.SeedUser("Ada", "ada@example.com", "pw")
	seeded := srv.SeedIssue(civic.Issue{Title: "Sturdy", Category: "Other", Author: &u})

	s := newStore(t, srv, srv.TokenFor(u))
	_, err := s.FetchUserIssues(t.Context())
	require.NoError(t, err)

	srv.FailNext(http.StatusInternalServerError, "boom")
	err = s.Delete(t.Context(), seeded.ID)
	require.Error(t, err)
	assert.Len(t, s.UserIssues(), 1)
}

func TestFetchMapIssues(t *testing.T) {
	srv := civictest.New()
	defer srv.Close()
	srv.SeedIssue(civic.Issue{Title: "Tagged", Category: "Road", Latitude: 52.52, Longitude: 13.405})
	srv.SeedIssue(civic.Issue{Title: "Untagged", Category: "Road"})

	s := newStore(t, srv, "")
	items, err := s.FetchMapIssues(t.Context())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Tagged", items[0].Title)
}

func TestCanEdit(t *testing.T) {
	owner := &civic.User{ID: "u1"}
	other := &civic.User{ID: "u2"}
	pending := civic.Issue{Author: owner, Status: civic.StatusPending}
	progressed := civic.Issue{Author: owner, Status: civic.StatusInProgress}

	assert.True(t, issues.CanEdit(owner, pending))
	assert.False(t, issues.CanEdit(other, pending), "only the owner may edit")
	assert.False(t, issues.CanEdit(owner, progressed), "editing closes once the issue progresses")
	assert.False(t, issues.CanEdit(nil, pending))
}
