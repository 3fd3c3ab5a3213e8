package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/oauth2"

	"github.com/calm-cli/calm/internal/apperr"
	"github.com/calm-cli/calm/internal/config"
	"github.com/calm-cli/calm/internal/instrumentation"
	"github.com/calm-cli/calm/internal/logging"
)

// TokenProvider is an interface for providing OAuth tokens for Google APIs
type TokenProvider interface {
	// GetToken returns a currently valid token. Failures are AuthErrors.
	GetToken(ctx context.Context) (*oauth2.Token, error)
}

// FileTokenProvider provides tokens persisted in the config directory and
// refreshes them when they expire.
type FileTokenProvider struct {
	cfg     *config.Config
	metrics *instrumentation.Metrics
	logger  *slog.Logger

	// interactive enables the browser flow when no usable token exists
	interactive bool
	out         io.Writer
	openBrowser func(string) error

	mu sync.Mutex
}

// ProviderOption customizes a FileTokenProvider.
type ProviderOption func(*FileTokenProvider)

// WithProviderMetrics records authorization and refresh outcomes on m.
func WithProviderMetrics(m *instrumentation.Metrics) ProviderOption {
	return func(p *FileTokenProvider) { p.metrics = m }
}

// WithProviderLogger sets the logger used for debug output.
func WithProviderLogger(l *slog.Logger) ProviderOption {
	return func(p *FileTokenProvider) { p.logger = l }
}

// WithInteractive lets GetToken run the loopback authorization flow,
// printing instructions to out.
func WithInteractive(out io.Writer, openBrowser func(string) error) ProviderOption {
	return func(p *FileTokenProvider) {
		p.interactive = true
		p.out = out
		p.openBrowser = openBrowser
	}
}

// NewFileTokenProvider creates a new file-based token provider
func NewFileTokenProvider(cfg *config.Config, opts ...ProviderOption) *FileTokenProvider {
	p := &FileTokenProvider{
		cfg:    cfg,
		logger: logging.Discard(),
		out:    io.Discard,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GetToken loads token.json, refreshing and re-persisting it when expired.
// Without a usable token it runs the interactive flow if enabled and fails
// with an AuthError otherwise.
func (p *FileTokenProvider) GetToken(ctx context.Context) (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tok, err := LoadToken(p.cfg.TokenPath())
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		tok = nil
	default:
		p.logger.Debug("ignoring unreadable token file", logging.Err(err))
		tok = nil
	}

	if tok != nil && tok.Valid() {
		return tok, nil
	}

	conf, err := LoadOAuthConfig(p.cfg)
	if err != nil {
		return nil, err
	}

	if tok != nil && tok.RefreshToken != "" {
		fresh, err := p.refresh(ctx, conf, tok)
		if err == nil {
			return fresh, nil
		}
		if !p.interactive {
			return nil, err
		}
		p.logger.Debug("token refresh failed, reauthorizing", logging.Err(err))
	} else if tok != nil {
		p.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultExpired)
	}

	if !p.interactive {
		return nil, apperr.New(apperr.KindAuth, "oauth.token",
			"no valid token at %s; run: calm configure oauth", p.cfg.TokenPath())
	}
	return p.authorize(ctx, conf)
}

func (p *FileTokenProvider) refresh(ctx context.Context, conf *oauth2.Config, tok *oauth2.Token) (*oauth2.Token, error) {
	fresh, err := conf.TokenSource(ctx, tok).Token()
	if err != nil {
		p.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultFailure)
		return nil, apperr.Wrap(apperr.KindAuth, "oauth.refresh", err)
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = tok.RefreshToken
	}
	p.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultSuccess)

	if err := SaveToken(p.cfg.TokenPath(), fresh); err != nil {
		return nil, apperr.Wrap(apperr.KindAuth, "oauth.refresh", err)
	}
	p.logger.Debug("refreshed OAuth token", slog.Time("expiry", fresh.Expiry))
	return fresh, nil
}

func (p *FileTokenProvider) authorize(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error) {
	tok, err := Authorize(ctx, conf, p.out, p.openBrowser)
	if err != nil {
		p.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		return nil, err
	}
	p.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultSuccess)

	if err := SaveToken(p.cfg.TokenPath(), tok); err != nil {
		return nil, apperr.Wrap(apperr.KindAuth, "oauth.authorize", fmt.Errorf("failed to save token: %w", err))
	}
	return tok, nil
}

type providerSource struct {
	ctx      context.Context
	provider TokenProvider
}

func (s providerSource) Token() (*oauth2.Token, error) {
	return s.provider.GetToken(s.ctx)
}

// TokenSource adapts provider to an oauth2.TokenSource that reuses a token
// until it expires.
func TokenSource(ctx context.Context, provider TokenProvider) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, providerSource{ctx: ctx, provider: provider})
}
