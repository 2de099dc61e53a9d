package resolver_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overture-stack/dac-permissions-reconciler/internal/log"
	"github.com/overture-stack/dac-permissions-reconciler/pkg/dacerr"
	"github.com/overture-stack/dac-permissions-reconciler/pkg/dacmodel"
	"github.com/overture-stack/dac-permissions-reconciler/pkg/ids"
	"github.com/overture-stack/dac-permissions-reconciler/pkg/resolver"
)

type fakeFetcher struct {
	byEmail map[string]*dacmodel.PlatformUser
}

func (f *fakeFetcher) GetUserByEmail(_ context.Context, email string) (*dacmodel.PlatformUser, error) {
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, dacerr.New(dacerr.KindNotFound, "no such user")
}

func TestResolve_UnresolvableUserIsOmittedNotFatal(t *testing.T) {
	fetcher := &fakeFetcher{byEmail: map[string]*dacmodel.PlatformUser{
		"alice@x.org": {ID: 1, Username: "alice", AccessionID: ids.UserAccessionId("EGAW00000000001")},
	}}

	approvedUsers := []dacmodel.ApprovedUser{
		{Email: "alice@x.org", AppExpiry: time.Now(), AppID: "app-1"},
		{Email: "ghost@x.org", AppExpiry: time.Now(), AppID: "app-2"},
	}

	resolved := resolver.Resolve(context.Background(), fetcher, approvedUsers, log.NewFake())

	require.Len(t, resolved, 1)
	assert.Contains(t, resolved, "alice")
	assert.NotContains(t, resolved, "ghost")
}
