// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package gst

import "github.com/go-gst/go-gst/gst"

// Init initializes the native framework process-wide. It must be called
// exactly once before any Pipeline is constructed.
func Init() {
	gst.Init(nil)
}

// RuntimeVersion reports the linked framework's version string, e.g.
// "GStreamer 1.22.0".
func RuntimeVersion() string {
	return gst.VersionString()
}
