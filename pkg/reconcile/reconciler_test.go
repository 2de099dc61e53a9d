package reconcile_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overture-stack/dac-permissions-reconciler/internal/log"
	"github.com/overture-stack/dac-permissions-reconciler/pkg/approved"
	"github.com/overture-stack/dac-permissions-reconciler/pkg/dacerr"
	"github.com/overture-stack/dac-permissions-reconciler/pkg/dacmodel"
	"github.com/overture-stack/dac-permissions-reconciler/pkg/ids"
	"github.com/overture-stack/dac-permissions-reconciler/pkg/jobreport"
	"github.com/overture-stack/dac-permissions-reconciler/pkg/reconcile"
	"github.com/overture-stack/dac-permissions-reconciler/pkg/schema"
)

var (
	datasetA = dacmodel.Dataset{AccessionID: ids.DatasetId("EGAD00000000001"), Title: "A"}
	datasetB = dacmodel.Dataset{AccessionID: ids.DatasetId("EGAD00000000002"), Title: "B"}
)

// fakeStore is an approved.Store backed by an in-memory slice.
type fakeStore struct {
	apps []approved.Application
	err  error
}

func (f *fakeStore) FetchApprovedApplications(context.Context) ([]approved.Application, error) {
	return f.apps, f.err
}

// fakeClient is a reconcile.PlatformClient driven entirely from in-memory
// state, keyed by email, user id and dataset id, so a test can assert on exactly which create
// and revoke calls the two passes issued.
type fakeClient struct {
	datasets          []dacmodel.Dataset
	datasetsErr       error
	usersByEmail      map[string]*dacmodel.PlatformUser
	permsByUser       map[int64][]dacmodel.Permission
	permsByDataset    map[ids.DatasetId][]dacmodel.Permission
	nextPermissionID  int64
	nextRequestID     int64
	createdRequests   []dacmodel.PermissionRequest
	approvedRequests  []dacmodel.ApprovePermissionRequest
	revokedIDs        []int64
}

func (f *fakeClient) GetDatasets(context.Context, ids.DacId) (schema.ParseManyResult[dacmodel.Dataset], error) {
	if f.datasetsErr != nil {
		return schema.ParseManyResult[dacmodel.Dataset]{}, f.datasetsErr
	}
	return schema.ParseManyResult[dacmodel.Dataset]{Success: f.datasets}, nil
}

func (f *fakeClient) GetUserByEmail(_ context.Context, email string) (*dacmodel.PlatformUser, error) {
	if u, ok := f.usersByEmail[email]; ok {
		return u, nil
	}
	return nil, dacerr.New(dacerr.KindNotFound, "no such user")
}

func (f *fakeClient) GetUserPermissions(_ context.Context, userID int64, _ int) (schema.ParseManyResult[dacmodel.Permission], error) {
	return schema.ParseManyResult[dacmodel.Permission]{Success: f.permsByUser[userID]}, nil
}

func (f *fakeClient) GetDatasetPermissionsPage(_ context.Context, _ ids.DacId, datasetID ids.DatasetId, limit, offset int) (schema.ParseManyResult[dacmodel.Permission], error) {
	all := f.permsByDataset[datasetID]
	if offset >= len(all) {
		return schema.ParseManyResult[dacmodel.Permission]{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return schema.ParseManyResult[dacmodel.Permission]{Success: all[offset:end]}, nil
}

func (f *fakeClient) CreatePermissionRequests(_ context.Context, chunk []dacmodel.PermissionRequest) (schema.ParseManyResult[dacmodel.PermissionRequest], error) {
	var success []dacmodel.PermissionRequest
	for _, req := range chunk {
		f.nextRequestID++
		req.RequestID = f.nextRequestID
		f.createdRequests = append(f.createdRequests, req)
		success = append(success, req)
	}
	return schema.ParseManyResult[dacmodel.PermissionRequest]{Success: success}, nil
}

func (f *fakeClient) ApprovePermissionRequests(_ context.Context, chunk []dacmodel.ApprovePermissionRequest) (int, error) {
	f.approvedRequests = append(f.approvedRequests, chunk...)
	for _, approval := range chunk {
		for _, req := range f.createdRequests {
			if req.RequestID != approval.RequestID {
				continue
			}
			f.nextPermissionID++
			user := f.lookupUserByUsername(req.Username)
			perm := dacmodel.Permission{
				PermissionID:       f.nextPermissionID,
				Username:           req.Username,
				DatasetAccessionID: req.DatasetAccessionID,
			}
			if user != nil {
				perm.UserAccessionID = user.AccessionID
				f.permsByUser[user.ID] = append(f.permsByUser[user.ID], perm)
			}
			f.permsByDataset[req.DatasetAccessionID] = append(f.permsByDataset[req.DatasetAccessionID], perm)
		}
	}
	return len(chunk), nil
}

func (f *fakeClient) RevokePermissions(_ context.Context, chunk []dacmodel.RevokePermissionRequest) (int, error) {
	for _, revoke := range chunk {
		f.revokedIDs = append(f.revokedIDs, revoke.ID)
		for ds, perms := range f.permsByDataset {
			f.permsByDataset[ds] = removePermission(perms, revoke.ID)
		}
		for uid, perms := range f.permsByUser {
			f.permsByUser[uid] = removePermission(perms, revoke.ID)
		}
	}
	return len(chunk), nil
}

func (f *fakeClient) lookupUserByUsername(username string) *dacmodel.PlatformUser {
	for _, u := range f.usersByEmail {
		if u.Username == username {
			return u
		}
	}
	return nil
}

func removePermission(perms []dacmodel.Permission, id int64) []dacmodel.Permission {
	var kept []dacmodel.Permission
	for _, p := range perms {
		if p.PermissionID != id {
			kept = append(kept, p)
		}
	}
	return kept
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		usersByEmail:   map[string]*dacmodel.PlatformUser{},
		permsByUser:    map[int64][]dacmodel.Permission{},
		permsByDataset: map[ids.DatasetId][]dacmodel.Permission{},
	}
}

func TestRunReconciliation_CreatesMissingPermissionsForNewUser(t *testing.T) {
	client := newFakeClient()
	client.datasets = []dacmodel.Dataset{datasetA, datasetB}
	client.usersByEmail["alice@example.org"] = &dacmodel.PlatformUser{ID: 1, Username: "alice", AccessionID: ids.UserAccessionId("EGAW00000000001")}

	store := &fakeStore{apps: []approved.Application{
		{ID: "app-1", ApplicantEmail: "alice@example.org", ExpiresAt: time.Now().Add(24 * time.Hour)},
	}}

	engine := reconcile.New(reconcile.Config{
		DacID:            ids.DacId("EGAC00000000001"),
		DefaultPageLimit: 50,
		MaxBatchSize:     2000,
	}, client, store, log.NewFake())

	report := engine.RunReconciliation(context.Background())

	require.True(t, report.Success)
	assert.Equal(t, jobreport.StatusSuccess, report.Details.PermissionsCreated.Status)
	assert.Equal(t, 2, report.Details.PermissionsCreated.PermissionsMissingCount)
	assert.Equal(t, 2, report.Details.PermissionsCreated.PermissionsGrantedCount)
	assert.Len(t, client.createdRequests, 2)
	assert.Len(t, client.approvedRequests, 2)
}

func TestRunReconciliation_RevokesPermissionForRemovedUser(t *testing.T) {
	client := newFakeClient()
	client.datasets = []dacmodel.Dataset{datasetA}
	client.permsByDataset[datasetA.AccessionID] = []dacmodel.Permission{
		{PermissionID: 99, Username: "bob", DatasetAccessionID: datasetA.AccessionID},
	}

	store := &fakeStore{} // no approved applications: bob is no longer authorized

	engine := reconcile.New(reconcile.Config{
		DacID:            ids.DacId("EGAC00000000001"),
		DefaultPageLimit: 50,
		MaxBatchSize:     2000,
	}, client, store, log.NewFake())

	report := engine.RunReconciliation(context.Background())

	require.True(t, report.Success)
	assert.Equal(t, 1, report.Details.PermissionsRevoked.NumRevoked)
	assert.Contains(t, client.revokedIDs, int64(99))
	assert.False(t, report.Details.PermissionsRevoked.HasIncorrectPermissionsCount)
}

func TestRunReconciliation_UnresolvableUserIsSkippedNotFatal(t *testing.T) {
	client := newFakeClient()
	client.datasets = []dacmodel.Dataset{datasetA}
	// "ghost@example.org" is approved locally but unknown to the platform.
	store := &fakeStore{apps: []approved.Application{
		{ID: "app-1", ApplicantEmail: "ghost@example.org", ExpiresAt: time.Now().Add(24 * time.Hour)},
	}}

	engine := reconcile.New(reconcile.Config{
		DacID:            ids.DacId("EGAC00000000001"),
		DefaultPageLimit: 50,
		MaxBatchSize:     2000,
	}, client, store, log.NewFake())

	report := engine.RunReconciliation(context.Background())

	require.True(t, report.Success)
	assert.Equal(t, 0, report.Details.PermissionsCreated.UsersExpected)
	assert.Empty(t, client.createdRequests)
}

func TestRunReconciliation_DatasetsFetchFailureAborts(t *testing.T) {
	client := newFakeClient()
	client.datasetsErr = dacerr.New(dacerr.KindServerError, "platform unavailable")

	store := &fakeStore{}

	engine := reconcile.New(reconcile.Config{DacID: ids.DacId("EGAC00000000001")}, client, store, log.NewFake())

	report := engine.RunReconciliation(context.Background())

	assert.False(t, report.Success)
	assert.NotEmpty(t, report.Error)
	assert.Zero(t, report.Details.PermissionsCreated.UsersProcessed)
	assert.Zero(t, report.Details.PermissionsRevoked.DatasetsProcessed)
}

func TestRunReconciliation_StoreReadFailureAborts(t *testing.T) {
	client := newFakeClient()
	client.datasets = []dacmodel.Dataset{datasetA}

	store := &fakeStore{err: assertionError("database unreachable")}

	engine := reconcile.New(reconcile.Config{DacID: ids.DacId("EGAC00000000001")}, client, store, log.NewFake())

	report := engine.RunReconciliation(context.Background())

	assert.False(t, report.Success)
	assert.NotEmpty(t, report.Error)
}

type assertionError string

func (e assertionError) Error() string { return string(e) }
