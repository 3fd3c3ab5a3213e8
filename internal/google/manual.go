package google

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/calm-cli/calm/internal/apperr"
	"github.com/calm-cli/calm/internal/config"
)

// manualRedirectURL receives the consent redirect when no loopback listener
// runs. The browser shows an error page with the code in its address bar.
const manualRedirectURL = "http://localhost"

// ManualAuthURL returns the consent URL of the copy-the-code flow used when
// calm cannot open a browser itself, e.g. behind an MCP client.
func ManualAuthURL(cfg *config.Config) (string, error) {
	conf, err := LoadOAuthConfig(cfg)
	if err != nil {
		return "", err
	}
	conf.RedirectURL = manualRedirectURL
	return conf.AuthCodeURL("calm", oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// SaveAuthCode exchanges a code from ManualAuthURL and persists the token.
// The whole redirect URL may be passed instead of the bare code.
func SaveAuthCode(ctx context.Context, cfg *config.Config, code string) error {
	const op = "oauth.exchange"

	code = authCodeFrom(code)
	if code == "" {
		return apperr.Invalid(op, "authorization code must not be empty")
	}

	conf, err := LoadOAuthConfig(cfg)
	if err != nil {
		return err
	}
	conf.RedirectURL = manualRedirectURL

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return apperr.Wrap(apperr.KindAuth, op, fmt.Errorf("failed to exchange auth code: %w", err))
	}
	return SaveToken(cfg.TokenPath(), tok)
}

func authCodeFrom(s string) string {
	s = strings.TrimSpace(s)
	if u, err := url.Parse(s); err == nil && u.Scheme != "" {
		if code := u.Query().Get("code"); code != "" {
			return code
		}
	}
	return s
}
