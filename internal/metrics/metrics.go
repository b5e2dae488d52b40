// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics exposes Prometheus instrumentation for the pipeline daemon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PipelinesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gpop_pipelines_active",
		Help: "Number of pipelines currently registered with the manager",
	})

	PipelineAddTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gpop_pipeline_add_total",
		Help: "Total number of pipeline add attempts by result",
	}, []string{"result"})

	PipelineRemoveTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gpop_pipeline_remove_total",
		Help: "Total number of pipelines removed from the manager",
	})

	PipelineUpdateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gpop_pipeline_update_total",
		Help: "Total number of pipeline update (replace-in-place) attempts by result",
	}, []string{"result"})

	BusEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gpop_bus_events_total",
		Help: "Total number of GStreamer bus events observed, by event kind",
	}, []string{"event"})

	BusLagTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gpop_bus_lag_total",
		Help: "Total number of broadcast-lag events delivered to subscribers",
	})

	JSONRPCRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gpop_jsonrpc_requests_total",
		Help: "Total number of JSON-RPC requests handled, by method and result",
	}, []string{"method", "result"})

	WSClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gpop_ws_clients",
		Help: "Number of currently connected WebSocket clients",
	})
)

// RecordPipelineAdd records the outcome of a pipeline-add attempt and
// updates the active-pipeline gauge on success.
func RecordPipelineAdd(ok bool) {
	if ok {
		PipelineAddTotal.WithLabelValues("ok").Inc()
		PipelinesActive.Inc()
		return
	}
	PipelineAddTotal.WithLabelValues("error").Inc()
}

// RecordPipelineRemove records a pipeline removal and decrements the
// active-pipeline gauge.
func RecordPipelineRemove() {
	PipelineRemoveTotal.Inc()
	PipelinesActive.Dec()
}

// RecordPipelineUpdate records the outcome of a pipeline update
// (replace-in-place) attempt.
func RecordPipelineUpdate(ok bool) {
	if ok {
		PipelineUpdateTotal.WithLabelValues("ok").Inc()
		return
	}
	PipelineUpdateTotal.WithLabelValues("error").Inc()
}

// RecordBusEvent tags a bus event by kind ("error", "eos",
// "state_changed", "unsupported"); an empty kind is recorded as "unknown".
func RecordBusEvent(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	BusEventsTotal.WithLabelValues(kind).Inc()
}

// RecordBusLag records a broadcast-lag signal delivered to a subscriber.
func RecordBusLag() {
	BusLagTotal.Inc()
}

// RecordJSONRPCRequest tags a completed JSON-RPC call by method and result
// ("ok" or "error").
func RecordJSONRPCRequest(method string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	JSONRPCRequestsTotal.WithLabelValues(method, result).Inc()
}
