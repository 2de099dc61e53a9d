// Package resolver implements the User Resolver (component D): resolving
// each approved user to the external platform's user record by email and
// producing the ResolvedMap consumed by the Reconciler.
package resolver

import (
	"context"

	"github.com/overture-stack/dac-permissions-reconciler/internal/log"
	"github.com/overture-stack/dac-permissions-reconciler/pkg/dacerr"
	"github.com/overture-stack/dac-permissions-reconciler/pkg/dacmodel"
)

// PlatformUserFetcher is the subset of the API Client the resolver depends
// on.
type PlatformUserFetcher interface {
	GetUserByEmail(ctx context.Context, email string) (*dacmodel.PlatformUser, error)
}

// Resolve calls GetUserByEmail for every approved user and builds the
// ResolvedMap keyed by platform-reported username. NotFound, SchemaFailure
// (an invalid user record), ServerError or any other error is logged and the
// user is omitted;
// resolution continues for the remaining users.
func Resolve(ctx context.Context, client PlatformUserFetcher, approvedUsers []dacmodel.ApprovedUser, logger log.Logger) dacmodel.ResolvedMap {
	resolved := make(dacmodel.ResolvedMap, len(approvedUsers))

	for _, au := range approvedUsers {
		platformUser, err := client.GetUserByEmail(ctx, au.Email)
		if err != nil {
			logger.Error(err, "could not resolve approved user, omitting from reconciliation", "email", au.Email, "kind", kindOf(err))
			continue
		}
		resolved[platformUser.Username] = dacmodel.ResolvedUser{
			PlatformUser: *platformUser,
			AppExpiry:    au.AppExpiry,
			AppID:        au.AppID,
		}
	}
	return resolved
}

func kindOf(err error) dacerr.Kind {
	var de *dacerr.Error
	if e, ok := err.(*dacerr.Error); ok {
		de = e
		return de.Kind
	}
	return dacerr.KindServerError
}
