package civicsync_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkline/civicsync"
	"github.com/mkline/civicsync/civic"
	"github.com/mkline/civicsync/civictest"
	"github.com/mkline/civicsync/credstore"
	"github.com/mkline/civicsync/issues"
	"github.com/mkline/civicsync/session"
	"github.com/mkline/civicsync/transport"
)

func TestUnauthorizedAnywhereEvictsSession(t *testing.T) {
	srv := civictest.New()
	defer srv.Close()
	srv.SeedUser("Ada", "ada@example.com", "hunter22")

	creds := credstore.NewMemory()
	expired := 0
	client, err := civicsync.New(srv.URL(), creds,
		civicsync.WithSessionExpiredHook(func() { expired++ }))
	require.NoError(t, err)

	_, err = client.Session.Login(t.Context(), "ada@example.com", "hunter22")
	require.NoError(t, err)
	stored, _ := creds.Load()
	require.NotEmpty(t, stored)

	// The server forgets the token; the next authenticated operation of any
	// store observes a 401.
	srv.RevokeAll()
	_, err = client.Issues.FetchUserIssues(t.Context())
	require.Error(t, err, "the triggering operation still rejects")
	assert.True(t, errors.Is(err, transport.ErrUnauthorized))

	stored, _ = creds.Load()
	assert.Empty(t, stored, "credential cleared from durable storage")
	assert.Equal(t, session.PhaseIdle, client.Session.Phase())
	assert.Nil(t, client.Session.User())
	assert.Equal(t, 1, expired, "session-expired hook invoked")
}

func TestBadRequestNotifiesGlobally(t *testing.T) {
	srv := civictest.New()
	defer srv.Close()
	srv.SeedUser("Ada", "ada@example.com", "hunter22")

	var notices []string
	client, err := civicsync.New(srv.URL(), credstore.NewMemory(),
		civicsync.WithNotifier(func(msg string) { notices = append(notices, msg) }))
	require.NoError(t, err)

	_, err = client.Session.Login(t.Context(), "ada@example.com", "wrong")
	require.Error(t, err, "caller still sees the rejection")
	assert.Equal(t, []string{"Invalid credentials"}, notices)
}

func TestEndToEnd(t *testing.T) {
	srv := civictest.New()
	defer srv.Close()

	client, err := civicsync.New(srv.URL(), credstore.NewMemory())
	require.NoError(t, err)

	_, err = client.Session.Register(t.Context(), session.RegisterInput{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "hunter22",
		Confirm:  "hunter22",
	})
	require.NoError(t, err)

	created, err := client.Issues.Create(t.Context(), issues.CreateInput{
		Title:       "Pothole",
		Description: "Deep pothole on Main St",
		Category:    "Road",
		Location:    "Main St 42",
		Latitude:    52.52,
		Longitude:   13.405,
	})
	require.NoError(t, err)
	assert.True(t, issues.CanEdit(client.Session.User(), *created))

	page, err := client.Issues.FetchList(t.Context())
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, 1, page.TotalPages)

	require.NoError(t, client.Votes.Cast(t.Context(), created.ID))
	voted, err := client.Votes.Check(t.Context(), created.ID)
	require.NoError(t, err)
	assert.True(t, voted)

	mapped, err := client.Issues.FetchMapIssues(t.Context())
	require.NoError(t, err)
	require.Len(t, mapped, 1)

	counts, err := client.Analytics.FetchCategoryCounts(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []civic.CategoryCount{{Category: "Road", Count: 1}}, counts)

	require.NoError(t, client.Session.Logout(t.Context()))
	assert.Nil(t, client.Session.User())
}
