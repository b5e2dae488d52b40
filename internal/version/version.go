// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package version carries build-time identity, set via linker flags.
package version

var (
	// Version is the daemon's release version, populated by the build system
	// (ldflags) or falling back to this default in development builds.
	Version = "v0.1.0-dev"

	// Commit is the git short hash of the build.
	Commit = "unknown"

	// Date is the build timestamp.
	Date = "unknown"

	// JSONRPCVersion is the JSON-RPC protocol version this daemon speaks.
	JSONRPCVersion = "2.0"
)
