// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jsonrpc

import (
	"encoding/json"
	"fmt"

	"github.com/gpopd/gpopd/internal/gst"
	"github.com/gpopd/gpopd/internal/manager"
	"github.com/gpopd/gpopd/internal/metrics"
	"github.com/gpopd/gpopd/internal/version"
)

// handlerFunc processes one request's already-extracted params and returns
// a result (marshaled into Response.Result) or an error to translate into
// an ErrorInfo.
type handlerFunc func(m *manager.Manager, params json.RawMessage) (any, error)

var methods = map[string]handlerFunc{
	"list_pipelines":     handleListPipelines,
	"create_pipeline":    handleCreatePipeline,
	"remove_pipeline":    handleRemovePipeline,
	"get_pipeline_info":  handleGetPipelineInfo,
	"update_pipeline":    handleUpdatePipeline,
	"set_state":          handleSetState,
	"play":               handlePlay,
	"pause":              handlePause,
	"stop":               handleStop,
	"get_position":       handleGetPosition,
	"get_version":        handleGetVersion,
	"get_info":           handleGetInfo,
	"get_pipeline_count": handleGetPipelineCount,
}

// Dispatch executes req against m and returns its wire response. The
// "snapshot" method is handled separately by the server because its
// result bypasses the envelope entirely.
func Dispatch(m *manager.Manager, req Request) Response {
	handler, ok := methods[req.Method]
	if !ok {
		metrics.RecordJSONRPCRequest(req.Method, false)
		return errorResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}

	result, err := handler(m, req.Params)
	if err != nil {
		metrics.RecordJSONRPCRequest(req.Method, false)
		return errorResponse(req.ID, codeForError(err), err.Error())
	}
	metrics.RecordJSONRPCRequest(req.Method, true)
	return successResponse(req.ID, result)
}

func toPipelineInfoResult(info manager.Info) pipelineInfoResult {
	return pipelineInfoResult{
		ID:          info.ID,
		Description: info.Description,
		State:       info.State,
		Streaming:   info.Streaming,
	}
}

func handleListPipelines(m *manager.Manager, _ json.RawMessage) (any, error) {
	infos := m.ListPipelines()
	result := listPipelinesResult{Pipelines: make([]pipelineInfoResult, 0, len(infos))}
	for _, info := range infos {
		result.Pipelines = append(result.Pipelines, toPipelineInfoResult(info))
	}
	return result, nil
}

func handleCreatePipeline(m *manager.Manager, params json.RawMessage) (any, error) {
	var p createPipelineParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, invalidParams(err)
	}
	id, err := m.AddPipeline(p.Description)
	if err != nil {
		return nil, err
	}
	return pipelineCreatedResult{PipelineID: id}, nil
}

func handleRemovePipeline(m *manager.Manager, params json.RawMessage) (any, error) {
	var p pipelineIDParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, invalidParams(err)
	}
	if err := m.RemovePipeline(resolvePipelineID(p.PipelineID)); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}

func handleGetPipelineInfo(m *manager.Manager, params json.RawMessage) (any, error) {
	var p pipelineIDParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, invalidParams(err)
	}
	info, err := m.GetPipelineInfo(resolvePipelineID(p.PipelineID))
	if err != nil {
		return nil, err
	}
	return toPipelineInfoResult(info), nil
}

func handleUpdatePipeline(m *manager.Manager, params json.RawMessage) (any, error) {
	var p updatePipelineParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, invalidParams(err)
	}
	if err := m.UpdatePipeline(resolvePipelineID(p.PipelineID), p.Description); err != nil {
		return nil, err
	}
	return successResult{Success: true}, nil
}

func handleSetState(m *manager.Manager, params json.RawMessage) (any, error) {
	var p setStateParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, invalidParams(err)
	}
	state, err := gst.ParseState(p.State)
	if err != nil {
		return nil, invalidParams(err)
	}
	if err := m.SetState(resolvePipelineID(p.PipelineID), state); err != nil {
		return nil, err
	}
	return successResult{Success: true}, nil
}

func sugarStateHandler(op func(m *manager.Manager, id string) error) handlerFunc {
	return func(m *manager.Manager, params json.RawMessage) (any, error) {
		var p optionalPipelineIDParams
		if len(params) > 0 {
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, invalidParams(err)
			}
		}
		if err := op(m, resolvePipelineID(p.PipelineID)); err != nil {
			return nil, err
		}
		return successResult{Success: true}, nil
	}
}

var (
	handlePlay  = sugarStateHandler(func(m *manager.Manager, id string) error { return m.Play(id) })
	handlePause = sugarStateHandler(func(m *manager.Manager, id string) error { return m.Pause(id) })
	handleStop  = sugarStateHandler(func(m *manager.Manager, id string) error { return m.Stop(id) })
)

func handleGetPosition(m *manager.Manager, params json.RawMessage) (any, error) {
	var p optionalPipelineIDParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, invalidParams(err)
		}
	}
	position, duration, err := m.GetPosition(resolvePipelineID(p.PipelineID))
	if err != nil {
		return nil, err
	}
	result := positionResult{Progress: progressOf(position, duration)}
	if position.OK {
		result.PositionNs = &position.Nanoseconds
	}
	if duration.OK {
		result.DurationNs = &duration.Nanoseconds
	}
	return result, nil
}

func handleGetVersion(_ *manager.Manager, _ json.RawMessage) (any, error) {
	return versionResult{Version: version.Version}, nil
}

func handleGetInfo(_ *manager.Manager, _ json.RawMessage) (any, error) {
	return infoResult{
		DaemonVersion:    version.Version,
		GStreamerVersion: gst.RuntimeVersion(),
		JSONRPCVersion:   version.JSONRPCVersion,
	}, nil
}

func handleGetPipelineCount(m *manager.Manager, _ json.RawMessage) (any, error) {
	return countResult{Count: m.PipelineCount()}, nil
}

// BuildSnapshot executes the snapshot method. Its result bypasses the
// JSON-RPC envelope entirely (no "jsonrpc"/"id" wrapper), a legacy shape
// preserved for wire compatibility.
func BuildSnapshot(m *manager.Manager, params json.RawMessage) (any, error) {
	var p snapshotParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, invalidParams(err)
		}
	}

	var infos []manager.Info
	if p.PipelineID == "" {
		infos = m.ListPipelines()
	} else {
		info, err := m.GetPipelineInfo(p.PipelineID)
		if err != nil {
			return nil, err
		}
		infos = []manager.Info{info}
	}

	snaps := make([]pipelineSnapshot, 0, len(infos))
	for _, info := range infos {
		dot, err := m.GetDot(info.ID, p.Details)
		if err != nil {
			continue
		}
		snaps = append(snaps, pipelineSnapshot{ID: info.ID, Dot: dot})
	}
	return snapshotResponse{Type: "SnapshotResponse", Pipelines: snaps}, nil
}
