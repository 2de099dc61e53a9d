// Package reconcile implements the Reconciler (component E): the two-pass
// orchestrator that creates missing permissions and revokes stale ones,
// producing a JobReport at the end of the run.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/overture-stack/dac-permissions-reconciler/internal/log"
	"github.com/overture-stack/dac-permissions-reconciler/internal/metrics"
	"github.com/overture-stack/dac-permissions-reconciler/pkg/approved"
	"github.com/overture-stack/dac-permissions-reconciler/pkg/dacmodel"
	"github.com/overture-stack/dac-permissions-reconciler/pkg/ids"
	"github.com/overture-stack/dac-permissions-reconciler/pkg/jobreport"
	"github.com/overture-stack/dac-permissions-reconciler/pkg/resolver"
	"github.com/overture-stack/dac-permissions-reconciler/pkg/schema"
)

// PlatformClient is the subset of the API Client the Reconciler depends on.
type PlatformClient interface {
	resolver.PlatformUserFetcher
	GetDatasets(ctx context.Context, dacID ids.DacId) (schema.ParseManyResult[dacmodel.Dataset], error)
	GetUserPermissions(ctx context.Context, userID int64, limit int) (schema.ParseManyResult[dacmodel.Permission], error)
	GetDatasetPermissionsPage(ctx context.Context, dacID ids.DacId, datasetID ids.DatasetId, limit, offset int) (schema.ParseManyResult[dacmodel.Permission], error)
	CreatePermissionRequests(ctx context.Context, chunk []dacmodel.PermissionRequest) (schema.ParseManyResult[dacmodel.PermissionRequest], error)
	ApprovePermissionRequests(ctx context.Context, chunk []dacmodel.ApprovePermissionRequest) (int, error)
	RevokePermissions(ctx context.Context, chunk []dacmodel.RevokePermissionRequest) (int, error)
}

// Config carries the Reconciler's pagination/batch settings.
type Config struct {
	DacID             ids.DacId
	DefaultPageLimit  int
	DefaultPageOffset int
	MaxBatchSize      int
	JobName           string
}

// Reconciler is the two-pass orchestrator: create missing permissions,
// then revoke stale ones. It exclusively owns the ResolvedMap, per-user
// request queues, the pagination cursor and the evolving report for a
// single run.
type Reconciler struct {
	cfg    Config
	client PlatformClient
	store  approved.Store
	logger log.Logger

	state State
}

// New builds a Reconciler for a single DAC.
func New(cfg Config, client PlatformClient, store approved.Store, logger log.Logger) *Reconciler {
	if cfg.DefaultPageLimit <= 0 {
		cfg.DefaultPageLimit = 50
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 2000
	}
	if cfg.JobName == "" {
		cfg.JobName = "dac-permissions-reconciler"
	}
	return &Reconciler{cfg: cfg, client: client, store: store, logger: logger, state: StateIdle}
}

// RunReconciliation executes a single reconciliation run and returns the
// resulting JobReport. There is no standing scheduler here; a caller
// invokes this once per run.
func (r *Reconciler) RunReconciliation(ctx context.Context) *jobreport.JobReport {
	report := &jobreport.JobReport{
		JobName:   r.cfg.JobName,
		StartedAt: time.Now(),
	}

	r.state = StateFetchingDatasets
	datasetsResult, err := r.client.GetDatasets(ctx, r.cfg.DacID)
	if err != nil {
		r.state = StateAborted
		report.FinishedAt = time.Now()
		report.Success = false
		report.Error = fmt.Sprintf("fatal: could not enumerate datasets for DAC %s: %s", r.cfg.DacID, err)
		r.logger.Error(err, "datasets fetch failed, aborting run", "dac", r.cfg.DacID)
		return report
	}
	datasets := datasetsResult.Success
	for _, f := range datasetsResult.Failure {
		r.logger.Error(fmt.Errorf("%s", f.Error), "dataset record failed schema validation, skipping", "index", f.Index)
	}
	r.logger.Info("datasets fetched", "dac", r.cfg.DacID, "count", len(datasets), "fingerprint", datasetsFingerprint(datasets))

	r.state = StateResolvingUsers
	approvedApps, err := r.store.FetchApprovedApplications(ctx)
	if err != nil {
		r.state = StateAborted
		report.FinishedAt = time.Now()
		report.Success = false
		report.Error = fmt.Sprintf("fatal: could not read approved applications: %s", err)
		r.logger.Error(err, "approved-user projection read failed, aborting run")
		return report
	}
	approvedUsers := approved.Project(approvedApps)
	resolvedMap := resolver.Resolve(ctx, r.client, approvedUsers, r.logger)

	r.state = StateCreatingPermissions
	comment, err := renderGrantorComment(r.cfg.DacID)
	if err != nil {
		comment = fmt.Sprintf("Access approved by DAC %s", r.cfg.DacID)
		r.logger.Error(err, "grantor comment template failed, using fallback")
	}
	createStart := time.Now()
	report.Details.PermissionsCreated = r.createMissingPermissions(ctx, datasets, resolvedMap, comment)
	report.Details.PermissionsCreated.ApprovedDacoUsersCount = len(approvedUsers)
	report.Details.PermissionsCreated.ApprovedEgaUsersCount = len(resolvedMap)
	metrics.ObservePhaseDuration("create", time.Since(createStart).Seconds())
	metrics.RecordPermissionsCreated(report.Details.PermissionsCreated.PermissionsGrantedCount)
	metrics.RecordErrors("create", len(report.Details.PermissionsCreated.Errors))

	r.state = StateRevokingPermissions
	revokeStart := time.Now()
	report.Details.PermissionsRevoked = r.revokeStalePermissions(ctx, datasets, resolvedMap)
	metrics.ObservePhaseDuration("revoke", time.Since(revokeStart).Seconds())
	metrics.RecordPermissionsRevoked(report.Details.PermissionsRevoked.NumRevoked)
	metrics.RecordErrors("revoke", len(report.Details.PermissionsRevoked.Errors))

	r.state = StateReporting
	report.FinishedAt = time.Now()
	report.Success = len(report.Details.PermissionsCreated.Errors) == 0 && len(report.Details.PermissionsRevoked.Errors) == 0
	r.state = StateIdle
	return report
}
