// Package dacmodel holds the data model shared by every reconciler
// component.
package dacmodel

import (
	"time"

	"github.com/overture-stack/dac-permissions-reconciler/pkg/ids"
)

// Dataset belongs to the DAC under reconciliation. Fetched once per job
// run, never mutated.
type Dataset struct {
	AccessionID ids.DatasetId `json:"accession_id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
}

// PlatformUser is a user record as reported by the external platform.
// Email may be null even when ID is present; ID is the true primary key.
type PlatformUser struct {
	ID          int64               `json:"id"`
	Username    string              `json:"username"`
	Email       *string             `json:"email"`
	AccessionID ids.UserAccessionId `json:"accession_id"`
}

// ApprovedUser is the local projection of an approved application: one
// entry for the applicant, one for each collaborator.
type ApprovedUser struct {
	Email     string
	AppExpiry time.Time
	AppID     string
}

// ResolvedUser merges a PlatformUser with the ApprovedUser that produced
// it. Keys of the ResolvedMap it belongs to are precisely the usernames
// authorized for the DAC for the duration of the run.
type ResolvedUser struct {
	PlatformUser
	AppExpiry time.Time
	AppID     string
}

// ResolvedMap indexes ResolvedUser by platform username.
type ResolvedMap map[string]ResolvedUser

// Permission is an existing grant on the platform. Immutable from the
// engine's perspective: only created or revoked, never edited.
type Permission struct {
	PermissionID       int64         `json:"permission_id"`
	Username           string        `json:"username"`
	UserAccessionID    ids.UserAccessionId `json:"user_accession_id"`
	DatasetAccessionID ids.DatasetId `json:"dataset_accession_id"`
	DacAccessionID     ids.DacId     `json:"dac_accession_id"`
}

// PermissionRequest asks the platform for a grant. Construction-only: it
// becomes a Permission only after being approved.
type PermissionRequest struct {
	RequestID          int64         `json:"request_id,omitempty"`
	Username           string        `json:"username"`
	DatasetAccessionID ids.DatasetId `json:"dataset_accession_id"`
	RequestData        RequestData   `json:"request_data"`
}

// RequestData carries the human-readable comment identifying the DAC as
// grantor.
type RequestData struct {
	Comment string `json:"comment"`
}

// ApprovePermissionRequest approves a pending PermissionRequest. ExpiresAt
// must equal the approving application's expiry instant (invariant in §3).
type ApprovePermissionRequest struct {
	RequestID int64     `json:"request_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RevokePermissionRequest revokes an existing Permission.
type RevokePermissionRequest struct {
	ID     int64  `json:"id"`
	Reason string `json:"reason"`
}
