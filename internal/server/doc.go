// Package server hosts the Fiber diagnostics service and the shared upstream
// HTTP client. The app only serves paths under the /-/ prefix: health and
// cache state for operators, plus whatever the routes package attaches.
// Every response carries an X-Request-ID generated by the request middleware,
// and handler errors are rendered as {code, message} with a status derived
// from the apperr code.
package server
