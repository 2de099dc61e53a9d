// Package dactoken implements the Token Manager (component A): a
// single-slot, single-flight cache of the access credential used to talk to
// the external DAC platform.
package dactoken

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/overture-stack/dac-permissions-reconciler/internal/log"
	"github.com/overture-stack/dac-permissions-reconciler/pkg/dacerr"
)

// tokenResponseSchema is the contract for the identity provider's token
// endpoint response body.
const tokenResponseSchema = `{
  "type": "object",
  "required": ["access_token", "token_type", "expires_in"],
  "properties": {
    "access_token": {"type": "string", "minLength": 1},
    "token_type": {"type": "string"},
    "expires_in": {"type": "integer"},
    "refresh_token": {"type": "string"}
  }
}`

// Token is a credential believed valid (not known expired) for talking to
// the external DAC platform.
type Token struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`

	fetchedAt time.Time
}

// Config carries the settings needed to reach the identity provider.
type Config struct {
	AuthBaseURL    string
	RealmName      string
	ClientID       string
	Username       string
	Password       string
	VerificationKey *rsa.PublicKey
	HTTPClient     *http.Client
}

// Manager maintains the single-slot token cache.
// At most one fetch is in flight at a time; concurrent Acquire calls made
// while a fetch is running observe the result of that same fetch.
type Manager struct {
	cfg    Config
	logger log.Logger

	mu    sync.Mutex
	token *Token

	group singleflight.Group
}

// NewManager builds a Token Manager for cfg.
func NewManager(cfg Config, logger log.Logger) *Manager {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Manager{cfg: cfg, logger: logger}
}

// Acquire returns a token that is believed valid. If the cached token is
// missing or fails verification, exactly one fetch is performed regardless
// of how many goroutines call Acquire concurrently.
func (m *Manager) Acquire(ctx context.Context) (*Token, error) {
	m.mu.Lock()
	cached := m.token
	m.mu.Unlock()

	if cached != nil {
		if err := m.verify(cached); err == nil {
			return cached, nil
		} else if !dacerr.Is(err, dacerr.KindTokenExpired) {
			m.logger.Error(err, "token verification failed for a non-expiry reason, forcing refresh")
		}
	}

	v, err, _ := m.group.Do("acquire", func() (any, error) {
		m.mu.Lock()
		current := m.token
		m.mu.Unlock()
		if current != nil && current != cached {
			// Another fetch completed after this caller read the slot.
			return current, nil
		}
		return m.fetch(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Token), nil
}

// Invalidate clears the cached slot so the next Acquire forces a fetch.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.token = nil
	m.mu.Unlock()
}

// verify checks the access token's RS256 signature and standard expiry
// claims against the configured public key.
func (m *Manager) verify(t *Token) error {
	if m.cfg.VerificationKey == nil {
		// No verification key configured: fall back to the cached fetch time
		// and the provider-reported lifetime.
		if time.Since(t.fetchedAt) >= time.Duration(t.ExpiresIn)*time.Second {
			return dacerr.New(dacerr.KindTokenExpired, "cached token past its reported lifetime")
		}
		return nil
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}))
	_, err := parser.Parse(t.AccessToken, func(*jwt.Token) (any, error) {
		return m.cfg.VerificationKey, nil
	})
	if err == nil {
		return nil
	}
	if isExpiredErr(err) {
		return dacerr.Wrap(dacerr.KindTokenExpired, "access token expired", err)
	}
	return dacerr.Wrap(dacerr.KindInvalidTokenResponse, "access token failed verification", err)
}

func isExpiredErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "expired")
}

// fetch performs the password-grant POST to the identity provider's token
// endpoint and validates the response shape.
func (m *Manager) fetch(ctx context.Context) (*Token, error) {
	endpoint := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", strings.TrimRight(m.cfg.AuthBaseURL, "/"), m.cfg.RealmName)

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("client_id", m.cfg.ClientID)
	form.Set("username", m.cfg.Username)
	form.Set("password", m.cfg.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, dacerr.Wrap(dacerr.KindInvalidTokenResponse, "could not build token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, dacerr.Wrap(dacerr.KindInvalidTokenResponse, "token request failed", err)
	}
	defer resp.Body.Close()

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, dacerr.Wrap(dacerr.KindInvalidTokenResponse, "could not decode token response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, dacerr.New(dacerr.KindInvalidTokenResponse, fmt.Sprintf("token endpoint returned status %d", resp.StatusCode))
	}

	var token Token
	if err := validateTokenResponse(raw, &token); err != nil {
		return nil, dacerr.Wrap(dacerr.KindInvalidTokenResponse, "token response failed schema validation", err)
	}
	token.fetchedAt = time.Now()

	m.mu.Lock()
	m.token = &token
	m.mu.Unlock()

	return &token, nil
}
