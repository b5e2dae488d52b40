// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	FieldCorrelationID = "correlation_id"
	FieldRequestID     = "request_id"
	FieldPipelineID    = "pipeline_id"
	FieldConnectionID  = "connection_id"
	FieldComponent     = "component"
	FieldEvent         = "event"
	FieldOldState      = "old_state"
	FieldNewState      = "new_state"
)
