package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/desertthunder/prism/internal/shared"
)

const DefaultAuthTimeout = 2 * time.Minute

// Authorizer runs the installed-app OAuth flow on a loopback callback server.
type Authorizer struct {
	// Addr overrides the listen address. By default the host and port of the config's redirect URL are used.
	Addr    string
	Open    func(url string) error
	Out     io.Writer
	Timeout time.Duration
	Logger  *log.Logger
}

// NewAuthorizer returns an Authorizer that opens the consent page in the system browser and prints instructions to
// out.
func NewAuthorizer(addr string, out io.Writer, logger *log.Logger) *Authorizer {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	if out == nil {
		out = io.Discard
	}
	return &Authorizer{Addr: addr, Open: shared.OpenBrowser, Out: out, Timeout: DefaultAuthTimeout, Logger: logger}
}

// Authorize asks the user for consent and exchanges the returned code for a token. It gives up when ctx ends or the
// timeout passes.
func (a *Authorizer) Authorize(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	addr, path, err := a.callbackAddr(config.RedirectURL)
	if err != nil {
		return nil, err
	}

	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	handler := NewOAuthHandler(config, state, path)
	router := NewBasicRouter()
	router.Use(RequestLogger(a.Logger))
	router.Handler(handler)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	httpServer := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}

	serverErrors := make(chan error, 1)
	go func() {
		a.Logger.Info("waiting for OAuth callback", "addr", listener.Addr().String(), "path", path)
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			a.Logger.Warn("error shutting down callback server", "err", err)
		}
	}()

	authURL := config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintln(a.Out, "→ Opening browser for YouTube authorization...")
	if a.Open == nil || a.Open(authURL) != nil {
		fmt.Fprintf(a.Out, "⚠ Could not open a browser. Open this URL to continue:\n%s\n\n", authURL)
	}

	timeout := a.Timeout
	if timeout <= 0 {
		timeout = DefaultAuthTimeout
	}
	fmt.Fprintf(a.Out, "→ Waiting for authorization (%s timeout)...\n", timeout)
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var result OAuthResult
	select {
	case result = <-handler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("callback server: %w", err)
	case <-timer.C:
		return nil, fmt.Errorf("%w: authorization not completed within %s", shared.ErrTimeout, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, result.Error())
	}
	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}
	return result.Token, nil
}

// callbackAddr derives the listen address and callback path from the redirect URL.
func (a *Authorizer) callbackAddr(redirect string) (addr, path string, err error) {
	u, err := url.Parse(redirect)
	if err != nil || u.Host == "" {
		if a.Addr == "" {
			return "", "", fmt.Errorf("%w: redirect_uri %q has no host", shared.ErrInvalidConfig, redirect)
		}
		return a.Addr, DefaultCallbackPath, nil
	}

	path = u.Path
	if path == "" || path == "/" {
		path = DefaultCallbackPath
	}
	if a.Addr != "" {
		return a.Addr, path, nil
	}
	if u.Port() == "" {
		return "", "", fmt.Errorf("%w: redirect_uri %q needs an explicit port", shared.ErrInvalidConfig, redirect)
	}
	return net.JoinHostPort(u.Hostname(), u.Port()), path, nil
}
