// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package dbus

import (
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/gpopd/gpopd/internal/gst"
	"github.com/gpopd/gpopd/internal/manager"
)

// PipelineInterfaceName is the DBus interface name implemented by
// pipelineIface.
const PipelineInterfaceName = "org.gpop.Pipeline"

// pipelineObjectPath returns the object path for the pipeline registered at
// the given DBus-local index. The index is independent of the pipeline's
// own manager-assigned id: it is assigned on first DBus registration and
// never reused within this process's lifetime.
func pipelineObjectPath(index uint32) dbus.ObjectPath {
	return dbus.ObjectPath(fmt.Sprintf("/org/gpop/Pipeline%d", index))
}

// pipelineIface implements org.gpop.Pipeline for one registered pipeline,
// identified by its manager id.
type pipelineIface struct {
	m  *manager.Manager
	id string
}

func (i *pipelineIface) SetState(state string) (bool, *dbus.Error) {
	target, err := gst.ParseState(state)
	if err != nil {
		return false, dbus.MakeFailedError(err)
	}
	if err := i.m.SetState(i.id, target); err != nil {
		return false, dbus.MakeFailedError(err)
	}
	return true, nil
}

func (i *pipelineIface) Play() (bool, *dbus.Error) {
	if err := i.m.Play(i.id); err != nil {
		return false, dbus.MakeFailedError(err)
	}
	return true, nil
}

func (i *pipelineIface) Pause() (bool, *dbus.Error) {
	if err := i.m.Pause(i.id); err != nil {
		return false, dbus.MakeFailedError(err)
	}
	return true, nil
}

func (i *pipelineIface) Stop() (bool, *dbus.Error) {
	if err := i.m.Stop(i.id); err != nil {
		return false, dbus.MakeFailedError(err)
	}
	return true, nil
}

// GetDot returns a DOT topology dump at the requested detail. An empty
// details string is treated the same as "all".
func (i *pipelineIface) GetDot(details string) (string, *dbus.Error) {
	dot, err := i.m.GetDot(i.id, details)
	if err != nil {
		return "", dbus.MakeFailedError(err)
	}
	return dot, nil
}

// GetPosition returns (position, duration) in nanoseconds; either is -1
// when the framework cannot report it.
func (i *pipelineIface) GetPosition() (int64, int64, *dbus.Error) {
	position, duration, err := i.m.GetPosition(i.id)
	if err != nil {
		return -1, -1, dbus.MakeFailedError(err)
	}
	pos, dur := int64(-1), int64(-1)
	if position.OK {
		pos = position.Nanoseconds
	}
	if duration.OK {
		dur = duration.Nanoseconds
	}
	return pos, dur, nil
}

func (i *pipelineIface) Update(description string) (bool, *dbus.Error) {
	if err := i.m.UpdatePipeline(i.id, description); err != nil {
		return false, dbus.MakeFailedError(err)
	}
	return true, nil
}

// pipelinePropertyValues computes the current Id/Description/State/
// Streaming property values for export.
func pipelinePropertyValues(m *manager.Manager, id string) map[string]any {
	info, err := m.GetPipelineInfo(id)
	if err != nil {
		return map[string]any{
			"Id":          id,
			"Description": "",
			"State":       gst.StateVoidPending.String(),
			"Streaming":   false,
		}
	}
	return map[string]any{
		"Id":          info.ID,
		"Description": info.Description,
		"State":       info.State,
		"Streaming":   info.Streaming,
	}
}
