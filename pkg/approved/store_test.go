package approved_test

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overture-stack/dac-permissions-reconciler/pkg/approved"
)

func TestProject_DeduplicatesByEmailKeepingFirstOccurrence(t *testing.T) {
	expiryA := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	expiryB := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	apps := []approved.Application{
		{ID: "app-1", ApplicantEmail: "alice@x.org", Collaborators: []string{"bob@x.org"}, ExpiresAt: expiryA},
		{ID: "app-2", ApplicantEmail: "bob@x.org", Collaborators: []string{"carol@x.org"}, ExpiresAt: expiryB},
	}

	users := approved.Project(apps)

	require.Len(t, users, 3)
	byEmail := map[string]int{}
	for i, u := range users {
		byEmail[u.Email] = i
	}
	// bob first appeared as alice's collaborator in app-1: app-1's expiry wins.
	assert.Equal(t, expiryA, users[byEmail["bob@x.org"]].AppExpiry)
	assert.Equal(t, "app-1", users[byEmail["bob@x.org"]].AppID)
	assert.Equal(t, expiryA, users[byEmail["alice@x.org"]].AppExpiry)
	assert.Equal(t, expiryB, users[byEmail["carol@x.org"]].AppExpiry)
}

func TestProject_EmptyInput(t *testing.T) {
	assert.Empty(t, approved.Project(nil))
}

func TestPostgresStore_FetchApprovedApplications(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expiry := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "applicant_email", "expires_at", "array_agg"}).
		AddRow("app-1", "alice@x.org", expiry, "{bob@x.org}")
	mock.ExpectQuery("SELECT a.id, a.applicant_email").WillReturnRows(rows)

	store := approved.NewPostgresStoreFromDB(db)
	apps, err := store.FetchApprovedApplications(context.Background())
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "alice@x.org", apps[0].ApplicantEmail)
	assert.Equal(t, []string{"bob@x.org"}, apps[0].Collaborators)

	require.NoError(t, mock.ExpectationsWereMet())
}
