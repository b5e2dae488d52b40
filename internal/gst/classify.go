// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package gst

import "strings"

// unsupportedMediaPatterns is the pinned, versioned set of substrings that
// classify a framework error message as a capability shortfall rather than
// a program bug. Sensitive to framework wording; treat as versioned.
var unsupportedMediaPatterns = []string{
	"no suitable",
	"missing plugin",
	"missing element",
	"codec not found",
	"could not determine type",
	"unhandled",
	"not supported",
	"unsupported",
	"no decoder",
	"no encoder",
	"no demuxer",
	"no muxer",
	"format not supported",
	"caps not supported",
	"not negotiated",
	"stream type not supported",
}

// classifyUnsupportedMedia matches msg (case-insensitively) against the
// pinned pattern set. It allocates at most one lowercased copy of msg. A
// match returns (msg, true); otherwise ("no classification", false).
func classifyUnsupportedMedia(msg string) (string, bool) {
	lower := strings.ToLower(msg)
	for _, pattern := range unsupportedMediaPatterns {
		if strings.Contains(lower, pattern) {
			return msg, true
		}
	}
	return "no classification", false
}

// isUnsupportedMedia reports whether msg classifies as unsupported media.
func isUnsupportedMedia(msg string) bool {
	_, ok := classifyUnsupportedMedia(msg)
	return ok
}
