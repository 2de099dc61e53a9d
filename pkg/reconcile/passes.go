package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/overture-stack/dac-permissions-reconciler/pkg/dacclient"
	"github.com/overture-stack/dac-permissions-reconciler/pkg/dacmodel"
	"github.com/overture-stack/dac-permissions-reconciler/pkg/ids"
	"github.com/overture-stack/dac-permissions-reconciler/pkg/jobreport"
)

// createMissingPermissions is Pass 1: for every resolved user, fetch
// their current permissions, diff against the full dataset list, and
// create+approve whatever is missing. One user's failure does not stop
// the others; it is recorded as an error and the run continues.
func (r *Reconciler) createMissingPermissions(ctx context.Context, datasets []dacmodel.Dataset, resolved dacmodel.ResolvedMap, comment string) jobreport.CreationReport {
	report := jobreport.CreationReport{UsersExpected: len(resolved)}

	for username, user := range resolved {
		existingResult, err := r.client.GetUserPermissions(ctx, user.ID, len(datasets))
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("user %s: could not fetch existing permissions: %s", username, err))
			continue
		}
		have := make(map[ids.DatasetId]struct{}, len(existingResult.Success))
		for _, p := range existingResult.Success {
			have[p.DatasetAccessionID] = struct{}{}
		}

		var missing []dacmodel.PermissionRequest
		for _, ds := range datasets {
			if _, ok := have[ds.AccessionID]; ok {
				continue
			}
			missing = append(missing, dacmodel.PermissionRequest{
				Username:           username,
				DatasetAccessionID: ds.AccessionID,
				RequestData:        dacmodel.RequestData{Comment: comment},
			})
		}
		report.PermissionsMissingCount += len(missing)
		if len(missing) == 0 {
			report.UsersProcessed++
			continue
		}

		granted, createErrs := r.createAndApprove(ctx, username, missing, user.AppExpiry)
		report.PermissionsGrantedCount += granted
		report.Errors = append(report.Errors, createErrs...)
		if len(createErrs) == 0 && granted == len(missing) {
			report.UsersProcessed++
		}
	}

	report.Status = jobreport.DeriveStatus(len(report.Errors), report.UsersProcessed, report.UsersExpected)
	return report
}

// createAndApprove chunks requests to the configured MaxBatchSize, creates each
// chunk, then approves whatever the platform accepted with expiresAt.
// Returns the count of permissions actually granted and any per-chunk
// errors, each already prefixed with username for the caller's report.
func (r *Reconciler) createAndApprove(ctx context.Context, username string, requests []dacmodel.PermissionRequest, expiresAt time.Time) (int, []string) {
	var granted int
	var errs []string

	for _, chunk := range dacclient.Chunk(requests, r.cfg.MaxBatchSize) {
		createResult, err := r.client.CreatePermissionRequests(ctx, chunk)
		if err != nil {
			errs = append(errs, fmt.Sprintf("user %s: could not create %d permission requests: %s", username, len(chunk), err))
			continue
		}
		for _, f := range createResult.Failure {
			errs = append(errs, fmt.Sprintf("user %s: permission request rejected: %s", username, f.Error))
		}
		if len(createResult.Success) == 0 {
			continue
		}

		toApprove := make([]dacmodel.ApprovePermissionRequest, 0, len(createResult.Success))
		for _, created := range createResult.Success {
			toApprove = append(toApprove, dacmodel.ApprovePermissionRequest{
				RequestID: created.RequestID,
				ExpiresAt: expiresAt,
			})
		}
		for _, approveChunk := range dacclient.Chunk(toApprove, r.cfg.MaxBatchSize) {
			numGranted, err := r.client.ApprovePermissionRequests(ctx, approveChunk)
			if err != nil {
				errs = append(errs, fmt.Sprintf("user %s: could not approve %d permission requests: %s", username, len(approveChunk), err))
				continue
			}
			granted += numGranted
		}
	}
	return granted, errs
}

// revokeStalePermissions is Pass 2: for every dataset, page through its
// current permissions and revoke any held by a username not present in
// resolved. A dataset only counts as processed when every stale
// permission found was actually revoked and the post-revoke check found
// none left. A stale permission seen by the post-revoke check sets
// HasIncorrectPermissionsCount; neither case is retried, since a second pass within the same run risks
// looping forever against a platform that never converges.
func (r *Reconciler) revokeStalePermissions(ctx context.Context, datasets []dacmodel.Dataset, resolved dacmodel.ResolvedMap) jobreport.RevocationReport {
	report := jobreport.RevocationReport{DatasetsExpected: len(datasets)}

	for _, ds := range datasets {
		revoked, toRevokeCount, sawStaleAfterRevoke, err := r.revokeStaleForDataset(ctx, ds.AccessionID, resolved)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("dataset %s: %s", ds.AccessionID, err))
			continue
		}
		report.NumRevoked += revoked
		if sawStaleAfterRevoke {
			report.HasIncorrectPermissionsCount = true
		}
		if revoked == toRevokeCount && !sawStaleAfterRevoke {
			report.DatasetsProcessed++
		}
	}

	report.Status = jobreport.DeriveStatus(len(report.Errors), report.DatasetsProcessed, report.DatasetsExpected)
	return report
}

func (r *Reconciler) revokeStaleForDataset(ctx context.Context, datasetID ids.DatasetId, resolved dacmodel.ResolvedMap) (int, int, bool, error) {
	var toRevoke []dacmodel.RevokePermissionRequest
	offset := r.cfg.DefaultPageOffset
	limit := r.cfg.DefaultPageLimit

	for {
		page, err := r.client.GetDatasetPermissionsPage(ctx, r.cfg.DacID, datasetID, limit, offset)
		if err != nil {
			return 0, 0, false, fmt.Errorf("could not fetch permissions page at offset %d: %w", offset, err)
		}
		for _, p := range page.Success {
			if _, ok := resolved[p.Username]; !ok {
				toRevoke = append(toRevoke, dacmodel.RevokePermissionRequest{
					ID:     p.PermissionID,
					Reason: "user no longer authorized for this DAC",
				})
			}
		}
		if len(page.Success)+len(page.Failure) < limit {
			break
		}
		offset += limit
	}

	var revoked int
	for _, chunk := range dacclient.Chunk(toRevoke, r.cfg.MaxBatchSize) {
		numRevoked, err := r.client.RevokePermissions(ctx, chunk)
		if err != nil {
			return revoked, len(toRevoke), false, fmt.Errorf("could not revoke %d permissions: %w", len(chunk), err)
		}
		revoked += numRevoked
	}

	sawStaleAfterRevoke, err := r.hasStaleAfterRevoke(ctx, datasetID, resolved)
	if err != nil {
		return revoked, len(toRevoke), false, fmt.Errorf("could not verify post-revoke state: %w", err)
	}
	return revoked, len(toRevoke), sawStaleAfterRevoke, nil
}

// hasStaleAfterRevoke re-reads the first page of a dataset's permissions
// after revocation to detect a platform that silently ignored a revoke
// (the HasIncorrectPermissionsCount flag).
func (r *Reconciler) hasStaleAfterRevoke(ctx context.Context, datasetID ids.DatasetId, resolved dacmodel.ResolvedMap) (bool, error) {
	page, err := r.client.GetDatasetPermissionsPage(ctx, r.cfg.DacID, datasetID, r.cfg.DefaultPageLimit, r.cfg.DefaultPageOffset)
	if err != nil {
		return false, err
	}
	for _, p := range page.Success {
		if _, ok := resolved[p.Username]; !ok {
			return true, nil
		}
	}
	return false, nil
}
