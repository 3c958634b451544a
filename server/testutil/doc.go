// Package testutil builds a fully wired captiongen HTTP server for tests:
// the production middleware stack on an ephemeral httptest listener.
package testutil
