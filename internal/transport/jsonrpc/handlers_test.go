// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jsonrpc

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/gpopd/gpopd/internal/event"
	"github.com/gpopd/gpopd/internal/manager"
)

func newTestManager() *manager.Manager {
	return manager.New(10, event.NewBroadcast())
}

func dispatchRaw(t *testing.T, m *manager.Manager, method, params string) Response {
	t.Helper()
	req := Request{JSONRPC: "2.0", ID: "1", Method: method}
	if params != "" {
		req.Params = json.RawMessage(params)
	}
	return Dispatch(m, req)
}

func TestDispatchUnknownMethod(t *testing.T) {
	resp := dispatchRaw(t, newTestManager(), "does_not_exist", "")
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("response error = %+v, want code %d", resp.Error, CodeMethodNotFound)
	}
	if resp.ID != "1" {
		t.Errorf("response id = %q, want the request id echoed back", resp.ID)
	}
}

func TestDispatchCreatePipelineEmptyDescription(t *testing.T) {
	resp := dispatchRaw(t, newTestManager(), "create_pipeline", `{"description":""}`)
	if resp.Error == nil || resp.Error.Code != CodeCreationFailed {
		t.Fatalf("response error = %+v, want code %d", resp.Error, CodeCreationFailed)
	}
	if resp.Error.Message == "" {
		t.Error("error message must be non-empty")
	}
}

func TestDispatchCreatePipelineOverlongDescription(t *testing.T) {
	desc := strings.Repeat("a", 64*1024+1)
	params, _ := json.Marshal(createPipelineParams{Description: desc})
	resp := dispatchRaw(t, newTestManager(), "create_pipeline", string(params))
	if resp.Error == nil || resp.Error.Code != CodeDescriptionTooLong {
		t.Fatalf("response error = %+v, want code %d", resp.Error, CodeDescriptionTooLong)
	}
}

func TestDispatchMalformedParams(t *testing.T) {
	resp := dispatchRaw(t, newTestManager(), "create_pipeline", `{"description":`)
	if resp.Error == nil || resp.Error.Code != CodeInvalidParams {
		t.Fatalf("response error = %+v, want code %d", resp.Error, CodeInvalidParams)
	}
}

func TestDispatchSetStateRejectsUnknownState(t *testing.T) {
	resp := dispatchRaw(t, newTestManager(), "set_state", `{"pipeline_id":"0","state":"flying"}`)
	if resp.Error == nil || resp.Error.Code != CodeInvalidParams {
		t.Fatalf("response error = %+v, want code %d", resp.Error, CodeInvalidParams)
	}
}

func TestDispatchPipelineNotFound(t *testing.T) {
	for _, method := range []string{"remove_pipeline", "get_pipeline_info"} {
		resp := dispatchRaw(t, newTestManager(), method, `{"pipeline_id":"99"}`)
		if resp.Error == nil || resp.Error.Code != CodePipelineNotFound {
			t.Errorf("%s error = %+v, want code %d", method, resp.Error, CodePipelineNotFound)
		}
	}
}

func TestDispatchOmittedPipelineIDSubstitutesZero(t *testing.T) {
	// With an empty registry, play on the implicit id "0" must surface a
	// not-found error for "0" rather than an invalid-params complaint.
	resp := dispatchRaw(t, newTestManager(), "play", `{}`)
	if resp.Error == nil || resp.Error.Code != CodePipelineNotFound {
		t.Fatalf("response error = %+v, want code %d", resp.Error, CodePipelineNotFound)
	}
	if !strings.Contains(resp.Error.Message, `"0"`) {
		t.Errorf("error message %q should reference the substituted id 0", resp.Error.Message)
	}
}

func TestDispatchListPipelinesEmpty(t *testing.T) {
	resp := dispatchRaw(t, newTestManager(), "list_pipelines", `{}`)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	result, ok := resp.Result.(listPipelinesResult)
	if !ok {
		t.Fatalf("result type = %T, want listPipelinesResult", resp.Result)
	}
	if len(result.Pipelines) != 0 {
		t.Errorf("pipelines = %v, want empty", result.Pipelines)
	}
	// The wire shape must carry the key even when empty.
	raw, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"pipelines":[]`) {
		t.Errorf("wire shape %s should carry an empty pipelines array", raw)
	}
}

func TestDispatchGetPipelineCount(t *testing.T) {
	resp := dispatchRaw(t, newTestManager(), "get_pipeline_count", `{}`)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	result, ok := resp.Result.(countResult)
	if !ok {
		t.Fatalf("result type = %T, want countResult", resp.Result)
	}
	if result.Count != 0 {
		t.Errorf("count = %d, want 0", result.Count)
	}
}

func TestDispatchGetVersion(t *testing.T) {
	resp := dispatchRaw(t, newTestManager(), "get_version", `{}`)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	result, ok := resp.Result.(versionResult)
	if !ok {
		t.Fatalf("result type = %T, want versionResult", resp.Result)
	}
	if result.Version == "" {
		t.Error("version must be non-empty")
	}
}

func TestBuildSnapshotMissingPipeline(t *testing.T) {
	_, err := BuildSnapshot(newTestManager(), json.RawMessage(`{"pipeline_id":"7"}`))
	if err == nil {
		t.Fatal("expected an error for a snapshot of a missing pipeline")
	}
}
