package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/desertthunder/prism/internal/shared"
)

func tokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"invalid_grant"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"access","refresh_token":"refresh","token_type":"Bearer","expires_in":3600}`)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func testConfig(tokenURL, redirect string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  redirect,
		Scopes:       []string{"https://www.googleapis.com/auth/youtube"},
		Endpoint:     oauth2.Endpoint{AuthURL: "https://accounts.example.com/auth", TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams},
	}
}

func TestOAuthHandler(t *testing.T) {
	ts := tokenServer(t)

	callback := func(h *OAuthHandler, query string) *httptest.ResponseRecorder {
		router := NewBasicRouter()
		router.Handler(h)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?"+query, nil))
		return rec
	}

	t.Run("exchanges code for token", func(t *testing.T) {
		h := NewOAuthHandler(testConfig(ts.URL, ""), "state-1", "")
		rec := callback(h, "state=state-1&code=good-code")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if !strings.Contains(rec.Body.String(), "YouTube access granted") {
			t.Errorf("unexpected body %q", rec.Body.String())
		}

		result := <-h.Result()
		if result.Error() != nil {
			t.Fatalf("unexpected error: %v", result.Error())
		}
		if result.Token.AccessToken != "access" || result.Token.RefreshToken != "refresh" {
			t.Errorf("unexpected token %+v", result.Token)
		}
	})

	t.Run("rejects state mismatch", func(t *testing.T) {
		h := NewOAuthHandler(testConfig(ts.URL, ""), "state-1", "")
		rec := callback(h, "state=forged&code=good-code")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if result := <-h.Result(); result.Error() == nil || result.Token != nil {
			t.Errorf("expected state error, got %+v", result)
		}
	})

	t.Run("reports denied consent", func(t *testing.T) {
		h := NewOAuthHandler(testConfig(ts.URL, ""), "state-1", "")
		rec := callback(h, "state=state-1&error=access_denied")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		result := <-h.Result()
		if result.Error() == nil || !strings.Contains(result.Error().Error(), "access_denied") {
			t.Errorf("expected access_denied error, got %v", result.Error())
		}
	})

	t.Run("reports failed exchange", func(t *testing.T) {
		h := NewOAuthHandler(testConfig(ts.URL, ""), "state-1", "")
		rec := callback(h, "state=state-1&code=bad-code")
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
		if result := <-h.Result(); result.Error() == nil {
			t.Error("expected exchange error")
		}
	})

	t.Run("processes one callback only", func(t *testing.T) {
		h := NewOAuthHandler(testConfig(ts.URL, ""), "state-1", "/oauth2callback")
		router := NewBasicRouter()
		router.Handler(h)

		for i, want := range []int{http.StatusOK, http.StatusBadRequest} {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth2callback?state=state-1&code=good-code", nil))
			if rec.Code != want {
				t.Errorf("callback %d: expected %d, got %d", i+1, want, rec.Code)
			}
		}
	})
}

func TestBasicRouter(t *testing.T) {
	t.Run("filters methods", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "pong")
		}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if rec.Body.String() != "pong" {
			t.Errorf("expected pong, got %q", rec.Body.String())
		}
	})

	t.Run("applies middleware in order", func(t *testing.T) {
		var order []string
		tag := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(tag("first"), tag("second"))
		router.Use(RequestLogger(shared.NewLogger(nil)))
		router.Handle(http.MethodGet, "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		}))
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		if got := strings.Join(order, ","); got != "first,second,handler" {
			t.Errorf("unexpected order %s", got)
		}
	})
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestAuthorizer(t *testing.T) {
	ts := tokenServer(t)

	t.Run("completes flow through the browser", func(t *testing.T) {
		redirect := fmt.Sprintf("http://127.0.0.1:%d/callback", freePort(t))
		var out strings.Builder
		a := NewAuthorizer("", &out, nil)
		a.Open = func(authURL string) error {
			u, err := url.Parse(authURL)
			if err != nil {
				return err
			}
			q := u.Query()
			if q.Get("access_type") != "offline" || q.Get("prompt") != "consent" {
				t.Errorf("expected offline consent request, got %s", u.RawQuery)
			}
			go func() {
				resp, err := http.Get(redirect + "?state=" + url.QueryEscape(q.Get("state")) + "&code=good-code")
				if err == nil {
					resp.Body.Close()
				}
			}()
			return nil
		}

		token, err := a.Authorize(context.Background(), testConfig(ts.URL, redirect))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if token.AccessToken != "access" {
			t.Errorf("unexpected token %+v", token)
		}
		if strings.Contains(out.String(), "Could not open") {
			t.Errorf("did not expect fallback instructions: %s", out.String())
		}
	})

	t.Run("prints URL when browser fails", func(t *testing.T) {
		redirect := fmt.Sprintf("http://127.0.0.1:%d/callback", freePort(t))
		var out strings.Builder
		a := NewAuthorizer("", &out, nil)
		a.Open = func(string) error { return errors.New("no browser") }
		a.Timeout = 50 * time.Millisecond

		_, err := a.Authorize(context.Background(), testConfig(ts.URL, redirect))
		if !errors.Is(err, shared.ErrTimeout) {
			t.Fatalf("expected timeout, got %v", err)
		}
		if !strings.Contains(out.String(), "https://accounts.example.com/auth?") {
			t.Errorf("expected auth URL in output, got %s", out.String())
		}
	})

	t.Run("stops with context", func(t *testing.T) {
		redirect := fmt.Sprintf("http://127.0.0.1:%d/callback", freePort(t))
		ctx, cancel := context.WithCancel(context.Background())
		a := NewAuthorizer("", nil, nil)
		a.Open = func(string) error {
			cancel()
			return nil
		}

		if _, err := a.Authorize(ctx, testConfig(ts.URL, redirect)); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestCallbackAddr(t *testing.T) {
	tests := []struct {
		name     string
		addr     string
		redirect string
		wantAddr string
		wantPath string
		wantErr  bool
	}{
		{name: "from redirect", redirect: "http://localhost:8080/callback", wantAddr: "localhost:8080", wantPath: "/callback"},
		{name: "default path", redirect: "http://127.0.0.1:9000", wantAddr: "127.0.0.1:9000", wantPath: DefaultCallbackPath},
		{name: "override addr", addr: "0.0.0.0:3000", redirect: "http://localhost:3000/cb", wantAddr: "0.0.0.0:3000", wantPath: "/cb"},
		{name: "missing port", redirect: "http://localhost/callback", wantErr: true},
		{name: "missing host", redirect: "", wantErr: true},
		{name: "missing host with addr", addr: "localhost:8080", redirect: "", wantAddr: "localhost:8080", wantPath: DefaultCallbackPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Authorizer{Addr: tt.addr}
			addr, path, err := a.callbackAddr(tt.redirect)
			if tt.wantErr {
				if !errors.Is(err, shared.ErrInvalidConfig) {
					t.Errorf("expected invalid config error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if addr != tt.wantAddr || path != tt.wantPath {
				t.Errorf("got %s %s, want %s %s", addr, path, tt.wantAddr, tt.wantPath)
			}
		})
	}
}
