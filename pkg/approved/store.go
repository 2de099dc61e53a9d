// Package approved implements the Approved-User Projection (component C):
// reading approved applications from the authoritative store and
// projecting them into a deduplicated list of ApprovedUser, one entry per
// applicant and per collaborator, keeping the first occurrence by email.
package approved

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/overture-stack/dac-permissions-reconciler/pkg/dacmodel"
)

// Application is one approved application as read from the authoritative
// store, before projection to per-person ApprovedUser entries.
type Application struct {
	ID           string
	ApplicantEmail string
	Collaborators  []string
	ExpiresAt      time.Time
}

// Store is the authoritative store read by this projection. No network
// activity beyond a single query; a read failure is fatal and propagated
// as-is.
type Store interface {
	FetchApprovedApplications(ctx context.Context) ([]Application, error)
}

// PostgresStore reads approved applications from a Postgres-backed
// application database via lib/pq.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a PostgresStore against dsn.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening application database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromDB wraps an already-open *sql.DB, used by tests with
// go-sqlmock.
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const fetchApprovedApplicationsQuery = `
SELECT a.id, a.applicant_email, a.expires_at,
       COALESCE(array_agg(c.email) FILTER (WHERE c.email IS NOT NULL), '{}')
FROM applications a
LEFT JOIN application_collaborators c ON c.application_id = a.id
WHERE a.state = 'APPROVED'
GROUP BY a.id, a.applicant_email, a.expires_at
`

// FetchApprovedApplications reads every application currently in the
// APPROVED state, along with its applicant, collaborators and expiry.
func (s *PostgresStore) FetchApprovedApplications(ctx context.Context) ([]Application, error) {
	rows, err := s.db.QueryContext(ctx, fetchApprovedApplicationsQuery)
	if err != nil {
		return nil, fmt.Errorf("error querying approved applications: %w", err)
	}
	defer rows.Close()

	var apps []Application
	for rows.Next() {
		var app Application
		var collaborators []string
		if err := rows.Scan(&app.ID, &app.ApplicantEmail, &app.ExpiresAt, pq.Array(&collaborators)); err != nil {
			return nil, fmt.Errorf("error scanning approved application row: %w", err)
		}
		app.Collaborators = collaborators
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating approved application rows: %w", err)
	}
	return apps, nil
}

// Project derives the deduplicated ApprovedUser list from apps: one entry
// for the applicant and one for each collaborator, keeping the first
// occurrence by email.
func Project(apps []Application) []dacmodel.ApprovedUser {
	seen := make(map[string]struct{})
	var users []dacmodel.ApprovedUser

	add := func(email string, app Application) {
		if email == "" {
			return
		}
		if _, ok := seen[email]; ok {
			return
		}
		seen[email] = struct{}{}
		users = append(users, dacmodel.ApprovedUser{
			Email:     email,
			AppExpiry: app.ExpiresAt,
			AppID:     app.ID,
		})
	}

	for _, app := range apps {
		add(app.ApplicantEmail, app)
		for _, collaborator := range app.Collaborators {
			add(collaborator, app)
		}
	}
	return users
}
