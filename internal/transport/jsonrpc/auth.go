// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jsonrpc

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// extractBearerToken reads the Authorization: Bearer <token> header. Unlike
// an HTTP REST surface, this transport has no cookies or query-string
// fallback to support: a WebSocket upgrade request is the only handshake
// point, so the header is the single source of truth.
func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(auth[len("Bearer "):])
}

// authStatus checks r against expectedKey and returns the HTTP status to
// reject the handshake with: 401 when the header is absent, 403 when it
// does not match, 0 when the request is authorized. An empty expectedKey
// disables authentication entirely, matching the opt-in --api-key flag.
// The comparison is constant-time.
func authStatus(r *http.Request, expectedKey string) int {
	if expectedKey == "" {
		return 0
	}
	if r.Header.Get("Authorization") == "" {
		return http.StatusUnauthorized
	}
	got := extractBearerToken(r)
	if subtle.ConstantTimeCompare([]byte(got), []byte(expectedKey)) != 1 {
		return http.StatusForbidden
	}
	return 0
}

// originAllowed reports whether r's Origin header is permitted. No Origin
// header (a non-browser client) is always allowed; an empty allowed list
// permits every origin. Matching is a constant-time byte comparison.
func originAllowed(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(allowed) == 0 {
		return true
	}
	ok := false
	for _, a := range allowed {
		if a == "*" || subtle.ConstantTimeCompare([]byte(a), []byte(origin)) == 1 {
			ok = true
		}
	}
	return ok
}
