// Package server runs the short-lived loopback HTTP server that completes Google's installed-app OAuth flow.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [Middleware] wraps handlers in reverse order
// (last added executes first). [BasicRouter] uses [http.ServeMux] internally with method filtering, and
// [RequestLogger] logs each request through charmbracelet/log.
//
// # OAuth Callback Handler
//
// [OAuthHandler] validates the state parameter, exchanges the authorization code for tokens and sends the result
// through a channel. It only processes one callback.
//
// # Authorizer
//
// [Authorizer.Authorize] ties it together: it listens on the host and port of the configured redirect URI, opens the
// consent page in a browser, waits for the callback and shuts the server down. Its method value satisfies
// services.Authorizer, so the credential provider can run the flow whenever no usable token is cached.
package server
