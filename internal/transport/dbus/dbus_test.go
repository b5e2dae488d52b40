// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package dbus

import (
	"testing"

	"github.com/gpopd/gpopd/internal/event"
	"github.com/gpopd/gpopd/internal/manager"
)

func newTestManager() *manager.Manager {
	return manager.New(10, event.NewBroadcast())
}

func TestPipelineObjectPath(t *testing.T) {
	if got := pipelineObjectPath(0); got != "/org/gpop/Pipeline0" {
		t.Errorf("pipelineObjectPath(0) = %q, want /org/gpop/Pipeline0", got)
	}
	if got := pipelineObjectPath(42); got != "/org/gpop/Pipeline42" {
		t.Errorf("pipelineObjectPath(42) = %q, want /org/gpop/Pipeline42", got)
	}
}

func TestPipelinePropertyValuesFallbackForMissingID(t *testing.T) {
	values := pipelinePropertyValues(newTestManager(), "7")
	if values["Id"] != "7" {
		t.Errorf("Id = %v, want the requested id even when unregistered", values["Id"])
	}
	if values["Streaming"] != false {
		t.Errorf("Streaming = %v, want false for an unregistered pipeline", values["Streaming"])
	}
}

func TestManagerIfaceAddPipelineRejectsEmptyDescription(t *testing.T) {
	iface := &managerIface{m: newTestManager()}
	_, derr := iface.AddPipeline("")
	if derr == nil {
		t.Fatal("AddPipeline(\"\") expected a dbus error")
	}
	if len(derr.Body) == 0 {
		t.Error("dbus error should carry the core error message in its body")
	}
}

func TestManagerIfaceRemovePipelineNotFound(t *testing.T) {
	iface := &managerIface{m: newTestManager()}
	if derr := iface.RemovePipeline("99"); derr == nil {
		t.Fatal("RemovePipeline on a missing id expected a dbus error")
	}
}

func TestPipelineIfaceSetStateRejectsUnknownState(t *testing.T) {
	iface := &pipelineIface{m: newTestManager(), id: "0"}
	ok, derr := iface.SetState("flying")
	if derr == nil {
		t.Fatal("SetState(\"flying\") expected a dbus error")
	}
	if ok {
		t.Error("SetState must report false on failure")
	}
}

func TestPipelineIfaceOperationsOnMissingPipeline(t *testing.T) {
	iface := &pipelineIface{m: newTestManager(), id: "0"}

	if ok, derr := iface.Play(); derr == nil || ok {
		t.Error("Play on a missing pipeline expected (false, error)")
	}
	if _, derr := iface.GetDot("all"); derr == nil {
		t.Error("GetDot on a missing pipeline expected an error")
	}
	pos, dur, derr := iface.GetPosition()
	if derr == nil {
		t.Fatal("GetPosition on a missing pipeline expected an error")
	}
	if pos != -1 || dur != -1 {
		t.Errorf("GetPosition = (%d, %d), want (-1, -1) when unavailable", pos, dur)
	}
}

func TestPipelineIntrospectionCarriesSignals(t *testing.T) {
	iface := pipelineIntrospection()
	want := map[string]bool{"state_changed": false, "error": false, "eos": false}
	for _, sig := range iface.Signals {
		if _, ok := want[sig.Name]; ok {
			want[sig.Name] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("pipeline interface missing signal %q", name)
		}
	}
}

func TestManagerIntrospectionCarriesLifecycleSignals(t *testing.T) {
	iface := managerIntrospection()
	want := map[string]bool{"pipeline_added": false, "pipeline_removed": false}
	for _, sig := range iface.Signals {
		if _, ok := want[sig.Name]; ok {
			want[sig.Name] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("manager interface missing signal %q", name)
		}
	}
}
