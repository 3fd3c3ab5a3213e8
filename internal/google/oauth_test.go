package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/calm-cli/calm/internal/apperr"
	"github.com/calm-cli/calm/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.ConfigDir = filepath.Join(t.TempDir(), "calm")
	return cfg
}

func clientJSON(tokenURL string) []byte {
	return []byte(fmt.Sprintf(`{"installed":{"client_id":"id.apps.googleusercontent.com","client_secret":"secret","auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":%q,"redirect_uris":["http://localhost"]}}`, tokenURL))
}

func fileMode(t *testing.T, path string) os.FileMode {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	return info.Mode().Perm()
}

func TestImportClientJSON(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"installed client", string(clientJSON("https://oauth2.googleapis.com/token")), false},
		{"web client", `{"web":{"client_id":"id","client_secret":"s","auth_uri":"https://a","token_uri":"https://t","redirect_uris":["http://localhost"]}}`, false},
		{"neither installed nor web", `{"other":{}}`, true},
		{"not json", `client_id=abc`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			err := ImportClientJSON(cfg, []byte(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, apperr.InvalidArgument)
				assert.False(t, HasClient(cfg))
				return
			}
			require.NoError(t, err)
			assert.True(t, HasClient(cfg))
			assert.Equal(t, os.FileMode(0600), fileMode(t, cfg.CredentialsPath()))
		})
	}
}

func TestImportClientFile(t *testing.T) {
	cfg := testConfig(t)

	err := ImportClientFile(cfg, filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials.json not found")

	src := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(src, clientJSON("https://oauth2.googleapis.com/token"), 0644))
	require.NoError(t, ImportClientFile(cfg, src))

	conf, err := LoadOAuthConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "id.apps.googleusercontent.com", conf.ClientID)
	assert.Equal(t, DefaultOAuthScopes, conf.Scopes)
}

func TestLoadOAuthConfigMissingClient(t *testing.T) {
	cfg := testConfig(t)

	_, err := LoadOAuthConfig(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.Auth)
	assert.Contains(t, err.Error(), "calm configure oauth")
}

func TestSaveAndLoadToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	tok := &oauth2.Token{
		AccessToken:  "access",
		TokenType:    "Bearer",
		RefreshToken: "refresh",
		Expiry:       time.Date(2025, 8, 14, 10, 0, 0, 0, time.UTC),
	}

	require.NoError(t, SaveToken(path, tok))
	assert.Equal(t, os.FileMode(0600), fileMode(t, path))

	got, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, tok.AccessToken, got.AccessToken)
	assert.Equal(t, tok.RefreshToken, got.RefreshToken)
	assert.True(t, tok.Expiry.Equal(got.Expiry))
}

func TestResetTokens(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, ImportClientJSON(cfg, clientJSON("https://oauth2.googleapis.com/token")))
	require.NoError(t, SaveToken(cfg.TokenPath(), &oauth2.Token{AccessToken: "a"}))

	removed, err := ResetTokens(cfg, false)
	require.NoError(t, err)
	assert.Equal(t, []string{cfg.TokenPath()}, removed)
	assert.False(t, HasToken(cfg))
	assert.True(t, HasClient(cfg))

	// Nothing left to remove but the client
	removed, err = ResetTokens(cfg, true)
	require.NoError(t, err)
	assert.Equal(t, []string{cfg.CredentialsPath()}, removed)
	assert.False(t, HasClient(cfg))
}

func TestCallbackHandler(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantCode   string
		wantErr    bool
		wantResult bool
	}{
		{"code accepted", "state=s1&code=abc", http.StatusOK, "abc", false, true},
		{"state mismatch", "state=other&code=abc", http.StatusBadRequest, "", false, false},
		{"missing code", "state=s1", http.StatusBadRequest, "", false, false},
		{"consent denied", "error=access_denied", http.StatusBadRequest, "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := make(chan callbackResult, 1)
			rec := httptest.NewRecorder()
			callbackHandler("s1", results).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			select {
			case res := <-results:
				require.True(t, tt.wantResult, "unexpected result %+v", res)
				assert.Equal(t, tt.wantCode, res.code)
				assert.Equal(t, tt.wantErr, res.err != nil)
			default:
				assert.False(t, tt.wantResult, "expected a callback result")
			}
		})
	}
}

// tokenEndpoint serves the OAuth token endpoint for both the code exchange
// and refresh grants.
func tokenEndpoint(t *testing.T, fail bool) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		if fail {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "fresh-" + r.Form.Get("grant_type"),
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestFileTokenProviderValidToken(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, SaveToken(cfg.TokenPath(), &oauth2.Token{
		AccessToken: "still-good",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	}))

	tok, err := NewFileTokenProvider(cfg).GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "still-good", tok.AccessToken)
}

func TestFileTokenProviderRefreshesExpiredToken(t *testing.T) {
	srv, calls := tokenEndpoint(t, false)
	cfg := testConfig(t)
	require.NoError(t, ImportClientJSON(cfg, clientJSON(srv.URL)))
	require.NoError(t, SaveToken(cfg.TokenPath(), &oauth2.Token{
		AccessToken:  "stale",
		TokenType:    "Bearer",
		RefreshToken: "keep-me",
		Expiry:       time.Now().Add(-time.Hour),
	}))

	tok, err := NewFileTokenProvider(cfg).GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh-refresh_token", tok.AccessToken)
	assert.Equal(t, int32(1), calls.Load())

	persisted, err := LoadToken(cfg.TokenPath())
	require.NoError(t, err)
	assert.Equal(t, "fresh-refresh_token", persisted.AccessToken)
	assert.Equal(t, "keep-me", persisted.RefreshToken)
}

func TestFileTokenProviderAuthFailures(t *testing.T) {
	t.Run("no token", func(t *testing.T) {
		cfg := testConfig(t)
		require.NoError(t, ImportClientJSON(cfg, clientJSON("https://oauth2.googleapis.com/token")))

		_, err := NewFileTokenProvider(cfg).GetToken(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, apperr.Auth)
	})

	t.Run("no client", func(t *testing.T) {
		cfg := testConfig(t)

		_, err := NewFileTokenProvider(cfg).GetToken(context.Background())
		assert.ErrorIs(t, err, apperr.Auth)
	})

	t.Run("refresh rejected", func(t *testing.T) {
		srv, _ := tokenEndpoint(t, true)
		cfg := testConfig(t)
		require.NoError(t, ImportClientJSON(cfg, clientJSON(srv.URL)))
		require.NoError(t, SaveToken(cfg.TokenPath(), &oauth2.Token{
			AccessToken:  "stale",
			RefreshToken: "revoked",
			Expiry:       time.Now().Add(-time.Hour),
		}))

		_, err := NewFileTokenProvider(cfg).GetToken(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, apperr.Auth)
	})
}

func TestFileTokenProviderInteractive(t *testing.T) {
	srv, _ := tokenEndpoint(t, false)
	cfg := testConfig(t)
	require.NoError(t, ImportClientJSON(cfg, clientJSON(srv.URL)))

	// The "browser" follows the consent URL straight back to the loopback
	// redirect with a code.
	browser := func(authURL string) error {
		u, err := url.Parse(authURL)
		if err != nil {
			return err
		}
		q := u.Query()
		redirect := q.Get("redirect_uri") + "?state=" + url.QueryEscape(q.Get("state")) + "&code=granted"
		go func() {
			resp, err := http.Get(redirect)
			if err == nil {
				resp.Body.Close()
			}
		}()
		return nil
	}

	var out strings.Builder
	p := NewFileTokenProvider(cfg, WithInteractive(&out, browser))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	tok, err := p.GetToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fresh-authorization_code", tok.AccessToken)
	assert.Contains(t, out.String(), "Open this URL")
	assert.True(t, HasToken(cfg))
	assert.Equal(t, os.FileMode(0600), fileMode(t, cfg.TokenPath()))
}

type countingProvider struct {
	calls atomic.Int32
	err   error
}

func (p *countingProvider) GetToken(context.Context) (*oauth2.Token, error) {
	p.calls.Add(1)
	if p.err != nil {
		return nil, p.err
	}
	return &oauth2.Token{AccessToken: "t", Expiry: time.Now().Add(time.Hour)}, nil
}

func TestTokenSourceReusesToken(t *testing.T) {
	p := &countingProvider{}
	ts := TokenSource(context.Background(), p)

	for range 3 {
		tok, err := ts.Token()
		require.NoError(t, err)
		assert.Equal(t, "t", tok.AccessToken)
	}
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestTokenSourcePropagatesErrors(t *testing.T) {
	p := &countingProvider{err: apperr.New(apperr.KindAuth, "oauth.token", "revoked")}

	_, err := TokenSource(context.Background(), p).Token()
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.Auth))
}
