package analytics_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkline/civicsync/analytics"
	"github.com/mkline/civicsync/civic"
	"github.com/mkline/civicsync/civictest"
	"github.com/mkline/civicsync/transport"
)

func newStore(t *testing.T, srv *civictest.Server) *analytics.Store {
	t.Helper()
	tc, err := transport.New(srv.URL())
	require.NoError(t, err)
	return analytics.New(tc)
}

func seed(srv *civictest.Server) {
	day := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	srv.SeedIssue(civic.Issue{Title: "a", Category: "Road", VoteCount: 4, CreatedAt: day})
	srv.SeedIssue(civic.Issue{Title: "b", Category: "Road", VoteCount: 9, CreatedAt: day})
	srv.SeedIssue(civic.Issue{Title: "c", Category: "Water", VoteCount: 2, CreatedAt: day.AddDate(0, 0, 1)})
}

func TestFetchAllDatasets(t *testing.T) {
	srv := civictest.New()
	defer srv.Close()
	seed(srv)
	s := newStore(t, srv)

	categories, err := s.FetchCategoryCounts(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []civic.CategoryCount{
		{Category: "Road", Count: 2},
		{Category: "Water", Count: 1},
	}, categories)

	daily, err := s.FetchDailySubmissions(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []civic.DailyCount{
		{Date: "2026-08-01", Count: 2},
		{Date: "2026-08-02", Count: 1},
	}, daily)

	mostVoted, err := s.FetchMostVoted(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []civic.CategoryMax{
		{Category: "Road", MaxVotes: 9},
		{Category: "Water", MaxVotes: 2},
	}, mostVoted)

	assert.True(t, s.Ready())
	assert.False(t, s.Loading())
}

func TestFailureDomainsAreIsolated(t *testing.T) {
	srv := civictest.New()
	defer srv.Close()
	seed(srv)
	s := newStore(t, srv)

	_, err := s.FetchCategoryCounts(t.Context())
	require.NoError(t, err)

	srv.FailNext(http.StatusInternalServerError, "boom")
	_, err = s.FetchDailySubmissions(t.Context())
	require.Error(t, err)

	// The failed dataset doesn't disturb the cached one.
	assert.NotEmpty(t, s.CategoryCounts())
	assert.Empty(t, s.DailySubmissions())
	assert.False(t, s.Ready(), "not ready until every dataset has data")

	// A retry heals just the failed dataset.
	_, err = s.FetchDailySubmissions(t.Context())
	require.NoError(t, err)
	_, err = s.FetchMostVoted(t.Context())
	require.NoError(t, err)
	assert.True(t, s.Ready())
}

func TestReadyRequiresAllThree(t *testing.T) {
	srv := civictest.New()
	defer srv.Close()
	seed(srv)
	s := newStore(t, srv)

	assert.False(t, s.Ready())
	_, err := s.FetchCategoryCounts(t.Context())
	require.NoError(t, err)
	assert.False(t, s.Ready())
	_, err = s.FetchDailySubmissions(t.Context())
	require.NoError(t, err)
	assert.False(t, s.Ready())
	_, err = s.FetchMostVoted(t.Context())
	require.NoError(t, err)
	assert.True(t, s.Ready())
}
