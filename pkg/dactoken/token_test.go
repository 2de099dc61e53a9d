package dactoken_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/overture-stack/dac-permissions-reconciler/internal/log"
	"github.com/overture-stack/dac-permissions-reconciler/pkg/dactoken"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_Acquire_ConcurrentCallersShareOneFetch(t *testing.T) {
	var posts int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&posts, 1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"tok-1","token_type":"Bearer","expires_in":3600,"refresh_token":"r1"}`)
	}))
	defer srv.Close()

	mgr := dactoken.NewManager(dactoken.Config{
		AuthBaseURL: srv.URL,
		RealmName:   "dac",
		ClientID:    "client",
		Username:    "user",
		Password:    "pass",
	}, log.NewFake())

	const n = 20
	var wg sync.WaitGroup
	tokens := make([]*dactoken.Token, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := mgr.Acquire(context.Background())
			require.NoError(t, err)
			tokens[i] = tok
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&posts))
	for _, tok := range tokens {
		require.NotNil(t, tok)
		assert.Equal(t, "tok-1", tok.AccessToken)
	}
}

func TestManager_Acquire_InvalidResponseFailsCleanly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"bogus": true}`)
	}))
	defer srv.Close()

	mgr := dactoken.NewManager(dactoken.Config{
		AuthBaseURL: srv.URL,
		RealmName:   "dac",
		ClientID:    "client",
		Username:    "user",
		Password:    "pass",
	}, log.NewFake())

	_, err := mgr.Acquire(context.Background())
	require.Error(t, err)
}

func TestManager_Invalidate_ForcesRefetch(t *testing.T) {
	var posts int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&posts, 1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"tok-%d","token_type":"Bearer","expires_in":3600,"refresh_token":"r"}`, n)
	}))
	defer srv.Close()

	mgr := dactoken.NewManager(dactoken.Config{
		AuthBaseURL: srv.URL,
		RealmName:   "dac",
		ClientID:    "client",
		Username:    "user",
		Password:    "pass",
	}, log.NewFake())

	first, err := mgr.Acquire(context.Background())
	require.NoError(t, err)

	mgr.Invalidate()

	second, err := mgr.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first.AccessToken, second.AccessToken)
	assert.Equal(t, int64(2), atomic.LoadInt64(&posts))
}
