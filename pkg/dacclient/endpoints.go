package dacclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/overture-stack/dac-permissions-reconciler/pkg/dacerr"
	"github.com/overture-stack/dac-permissions-reconciler/pkg/dacmodel"
	"github.com/overture-stack/dac-permissions-reconciler/pkg/ids"
	"github.com/overture-stack/dac-permissions-reconciler/pkg/schema"
)

// GetDatasets returns every dataset released under dacID.
// GET /dacs/{dacId}/datasets
func (c *Client) GetDatasets(ctx context.Context, dacID ids.DacId) (schema.ParseManyResult[dacmodel.Dataset], error) {
	body, _, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   fmt.Sprintf("/dacs/%s/datasets", dacID),
	})
	if err != nil {
		return schema.ParseManyResult[dacmodel.Dataset]{}, err
	}
	result, err := schema.ParseMany[dacmodel.Dataset](datasetSchema, body)
	if err != nil {
		return result, dacerr.Wrap(dacerr.KindFatalBootstrap, "datasets response failed top-level validation", err)
	}
	return result, nil
}

// GetUserByEmail resolves one platform user by email.
// GET /users/{email}
func (c *Client) GetUserByEmail(ctx context.Context, email string) (*dacmodel.PlatformUser, error) {
	body, _, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   fmt.Sprintf("/users/%s", email),
	})
	if err != nil {
		return nil, err
	}
	user, err := schema.ValidateOne[dacmodel.PlatformUser](platformUserSchema, body)
	if err != nil {
		return nil, dacerr.Wrap(dacerr.KindSchemaFailure, "platform user response failed schema validation", err)
	}
	return &user, nil
}

// GetDatasetPermissionsPage returns one page of permissions for a dataset
// within the DAC. Pagination is driven by the caller.
// GET /dacs/{dacId}/permissions?dataset_accession_id=&limit=&offset=
func (c *Client) GetDatasetPermissionsPage(ctx context.Context, dacID ids.DacId, datasetID ids.DatasetId, limit, offset int) (schema.ParseManyResult[dacmodel.Permission], error) {
	body, _, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   fmt.Sprintf("/dacs/%s/permissions", dacID),
		query: map[string]string{
			"dataset_accession_id": string(datasetID),
			"limit":                fmt.Sprintf("%d", limit),
			"offset":               fmt.Sprintf("%d", offset),
		},
	})
	if err != nil {
		return schema.ParseManyResult[dacmodel.Permission]{}, err
	}
	return schema.ParseMany[dacmodel.Permission](permissionSchema, body)
}

// GetUserPermissions returns every permission held by the given platform
// user id, capped by limit (the caller passes the known dataset count).
// GET /permissions?user_id=&limit=
func (c *Client) GetUserPermissions(ctx context.Context, userID int64, limit int) (schema.ParseManyResult[dacmodel.Permission], error) {
	body, _, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/permissions",
		query: map[string]string{
			"user_id": fmt.Sprintf("%d", userID),
			"limit":   fmt.Sprintf("%d", limit),
		},
	})
	if err != nil {
		return schema.ParseManyResult[dacmodel.Permission]{}, err
	}
	return schema.ParseMany[dacmodel.Permission](permissionSchema, body)
}

// CreatePermissionRequests creates permission requests in bulk. chunk must
// not exceed MaxBatch elements; the client does not chunk on the caller's
// behalf.
// POST /requests
func (c *Client) CreatePermissionRequests(ctx context.Context, chunk []dacmodel.PermissionRequest) (schema.ParseManyResult[dacmodel.PermissionRequest], error) {
	if len(chunk) > MaxBatch {
		return schema.ParseManyResult[dacmodel.PermissionRequest]{}, dacerr.New(dacerr.KindBadRequest, fmt.Sprintf("chunk of %d exceeds MaxBatch %d", len(chunk), MaxBatch))
	}
	payload, err := json.Marshal(chunk)
	if err != nil {
		return schema.ParseManyResult[dacmodel.PermissionRequest]{}, dacerr.Wrap(dacerr.KindBadRequest, "could not encode permission requests", err)
	}
	body, _, err := c.do(ctx, request{method: http.MethodPost, path: "/requests", body: payload})
	if err != nil {
		return schema.ParseManyResult[dacmodel.PermissionRequest]{}, err
	}

	var envelope struct {
		Success []json.RawMessage `json:"success"`
		Failure []json.RawMessage `json:"failure"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return schema.ParseManyResult[dacmodel.PermissionRequest]{}, dacerr.Wrap(dacerr.KindSchemaFailure, "create-requests envelope decode failure", err)
	}

	successBytes, err := json.Marshal(envelope.Success)
	if err != nil {
		return schema.ParseManyResult[dacmodel.PermissionRequest]{}, dacerr.Wrap(dacerr.KindSchemaFailure, "could not re-encode success items", err)
	}
	result, err := schema.ParseMany[dacmodel.PermissionRequest](permissionRequestSchema, successBytes)
	if err != nil {
		return result, dacerr.Wrap(dacerr.KindSchemaFailure, "create-requests success items failed validation", err)
	}
	for range envelope.Failure {
		result.Failure = append(result.Failure, schema.FailureItem{Error: "rejected by platform"})
	}
	return result, nil
}

// ApprovePermissionRequests approves permission requests in bulk.
// PUT /requests
func (c *Client) ApprovePermissionRequests(ctx context.Context, chunk []dacmodel.ApprovePermissionRequest) (int, error) {
	if len(chunk) > MaxBatch {
		return 0, dacerr.New(dacerr.KindBadRequest, fmt.Sprintf("chunk of %d exceeds MaxBatch %d", len(chunk), MaxBatch))
	}
	payload, err := json.Marshal(chunk)
	if err != nil {
		return 0, dacerr.Wrap(dacerr.KindBadRequest, "could not encode approval requests", err)
	}
	body, _, err := c.do(ctx, request{method: http.MethodPut, path: "/requests", body: payload})
	if err != nil {
		return 0, err
	}
	var out struct {
		NumGranted int `json:"num_granted"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, dacerr.Wrap(dacerr.KindSchemaFailure, "approve-requests response decode failure", err)
	}
	return out.NumGranted, nil
}

// RevokePermissions revokes permissions in bulk.
// DELETE /permissions (body carries the list)
func (c *Client) RevokePermissions(ctx context.Context, chunk []dacmodel.RevokePermissionRequest) (int, error) {
	if len(chunk) > MaxBatch {
		return 0, dacerr.New(dacerr.KindBadRequest, fmt.Sprintf("chunk of %d exceeds MaxBatch %d", len(chunk), MaxBatch))
	}
	payload, err := json.Marshal(chunk)
	if err != nil {
		return 0, dacerr.Wrap(dacerr.KindBadRequest, "could not encode revoke requests", err)
	}
	body, _, err := c.do(ctx, request{method: http.MethodDelete, path: "/permissions", body: payload})
	if err != nil {
		return 0, err
	}
	var out struct {
		NumRevoked int `json:"num_revoked"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, dacerr.Wrap(dacerr.KindSchemaFailure, "revoke response decode failure", err)
	}
	return out.NumRevoked, nil
}

// Chunk partitions items into slices of at most size elements (design
// §4.2's chunking contract; callers must not exceed MaxBatch per request).
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) == 0 {
		return nil
	}
	var chunks [][]T
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[i:end])
	}
	return chunks
}
