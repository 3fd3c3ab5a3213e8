package google

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/calm-cli/calm/internal/apperr"
	"github.com/calm-cli/calm/internal/config"
)

// authTimeout bounds how long the loopback flow waits for the browser.
const authTimeout = 5 * time.Minute

// HasToken checks if an OAuth token has been persisted
func HasToken(cfg *config.Config) bool {
	_, err := os.Stat(cfg.TokenPath())
	return err == nil
}

// HasClient checks if an OAuth client has been imported
func HasClient(cfg *config.Config) bool {
	_, err := os.Stat(cfg.CredentialsPath())
	return err == nil
}

// ImportClientJSON validates a desktop OAuth client definition and stores it
// as credentials.json with owner-only permissions.
func ImportClientJSON(cfg *config.Config, raw []byte) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return apperr.Invalid("oauth.import", "invalid OAuth client JSON: %v", err)
	}
	_, installed := top["installed"]
	_, web := top["web"]
	if !installed && !web {
		return apperr.Invalid("oauth.import", "invalid OAuth client JSON (need 'installed' or 'web')")
	}
	if _, err := google.ConfigFromJSON(raw, DefaultOAuthScopes...); err != nil {
		return apperr.Invalid("oauth.import", "invalid OAuth client JSON: %v", err)
	}

	if err := cfg.EnsureDir(); err != nil {
		return err
	}
	return writePrivate(cfg.CredentialsPath(), raw)
}

// ImportClientFile reads a credentials.json from path and imports it.
func ImportClientFile(cfg *config.Config, path string) error {
	abs, err := filepath.Abs(expandHome(path))
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	raw, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.Invalid("oauth.import", "credentials.json not found: %s", abs)
		}
		return fmt.Errorf("failed to read %s: %w", abs, err)
	}
	return ImportClientJSON(cfg, raw)
}

// LoadOAuthConfig builds the OAuth2 configuration from the imported client.
func LoadOAuthConfig(cfg *config.Config) (*oauth2.Config, error) {
	raw, err := os.ReadFile(cfg.CredentialsPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.New(apperr.KindAuth, "oauth.config",
				"missing OAuth client at %s; run: calm configure oauth", cfg.CredentialsPath())
		}
		return nil, apperr.Wrap(apperr.KindAuth, "oauth.config", err)
	}

	conf, err := google.ConfigFromJSON(raw, DefaultOAuthScopes...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindAuth, "oauth.config", err)
	}
	return conf, nil
}

// LoadToken reads a persisted token.
func LoadToken(path string) (*oauth2.Token, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("failed to parse token file %s: %w", path, err)
	}
	return &tok, nil
}

// SaveToken persists tok with owner-only permissions.
func SaveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	raw, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	return writePrivate(path, raw)
}

// ResetTokens deletes the persisted token, and the imported client as well
// when all is set. It returns the paths that were removed.
func ResetTokens(cfg *config.Config, all bool) ([]string, error) {
	paths := []string{cfg.TokenPath()}
	if all {
		paths = append(paths, cfg.CredentialsPath())
	}

	var removed []string
	for _, p := range paths {
		err := os.Remove(p)
		switch {
		case err == nil:
			removed = append(removed, p)
		case errors.Is(err, os.ErrNotExist):
		default:
			return removed, fmt.Errorf("failed to remove %s: %w", p, err)
		}
	}
	return removed, nil
}

// Authorize runs the installed-app flow. It listens on a random loopback
// port, prints the consent URL to out, tries openBrowser, and exchanges the
// returned code for a token.
func Authorize(ctx context.Context, conf *oauth2.Config, out io.Writer, openBrowser func(string) error) (*oauth2.Token, error) {
	const op = "oauth.authorize"

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, apperr.Wrap(apperr.KindAuth, op, fmt.Errorf("failed to start loopback listener: %w", err))
	}

	flow := *conf
	flow.RedirectURL = fmt.Sprintf("http://%s/", ln.Addr().String())

	state, err := randomState()
	if err != nil {
		ln.Close()
		return nil, apperr.Wrap(apperr.KindAuth, op, err)
	}
	verifier := oauth2.GenerateVerifier()
	authURL := flow.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))

	results := make(chan callbackResult, 1)
	srv := &http.Server{
		Handler:           callbackHandler(state, results),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() { _ = srv.Serve(ln) }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	fmt.Fprintf(out, "Open this URL in your browser to authorize calm:\n\n  %s\n\n", authURL)
	if openBrowser != nil {
		if err := openBrowser(authURL); err != nil {
			fmt.Fprintln(out, "Could not open a browser automatically; open the URL above manually.")
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	var res callbackResult
	select {
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperr.New(apperr.KindAuth, op, "timed out waiting for authorization")
	case res = <-results:
	}
	if res.err != nil {
		return nil, apperr.Wrap(apperr.KindAuth, op, res.err)
	}

	tok, err := flow.Exchange(ctx, res.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindAuth, op, fmt.Errorf("failed to exchange auth code: %w", err))
	}
	return tok, nil
}

type callbackResult struct {
	code string
	err  error
}

// callbackHandler receives the redirect from the consent screen.
func callbackHandler(state string, results chan<- callbackResult) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}

		q := r.URL.Query()
		var res callbackResult
		switch {
		case q.Get("error") != "":
			res.err = fmt.Errorf("authorization denied: %s", q.Get("error"))
			http.Error(w, res.err.Error(), http.StatusBadRequest)
		case q.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		case q.Get("code") == "":
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		default:
			res.code = q.Get("code")
			fmt.Fprintln(w, "calm is authorized. You can close this window.")
		}

		select {
		case results <- res:
		default:
		}
	})
}

// OpenBrowser opens url with the platform's default handler.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func writePrivate(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	// WriteFile keeps the mode of an existing file
	return os.Chmod(path, 0600)
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
