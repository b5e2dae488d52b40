// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package dbus exposes the pipeline manager on the session bus at
// org.gpop: one org.gpop.Manager object, and one org.gpop.Pipeline object
// per registered pipeline, kept in sync with the manager's event fan-out.
package dbus

import (
	"github.com/godbus/dbus/v5"

	"github.com/gpopd/gpopd/internal/gst"
	"github.com/gpopd/gpopd/internal/manager"
	"github.com/gpopd/gpopd/internal/version"
)

// ServiceName is the well-known bus name this daemon requests.
const ServiceName = "org.gpop"

// ManagerObjectPath is the fixed object path of the manager interface.
const ManagerObjectPath = dbus.ObjectPath("/org/gpop/Manager")

// ManagerInterfaceName is the DBus interface name implemented by managerIface.
const ManagerInterfaceName = "org.gpop.Manager"

// managerIface implements org.gpop.Manager by delegating every call to a
// manager.Manager. Method signatures follow the godbus convention: the
// final return value is always *dbus.Error, nil on success.
type managerIface struct {
	m *manager.Manager
}

func (i *managerIface) AddPipeline(description string) (string, *dbus.Error) {
	id, err := i.m.AddPipeline(description)
	if err != nil {
		return "", dbus.MakeFailedError(err)
	}
	return id, nil
}

func (i *managerIface) RemovePipeline(id string) *dbus.Error {
	if err := i.m.RemovePipeline(id); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

func (i *managerIface) GetPipelineDesc(id string) (string, *dbus.Error) {
	desc, err := i.m.GetPipelineDescription(id)
	if err != nil {
		return "", dbus.MakeFailedError(err)
	}
	return desc, nil
}

func (i *managerIface) UpdatePipeline(id, description string) *dbus.Error {
	if err := i.m.UpdatePipeline(id, description); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// managerPropertyValues computes the current Pipelines/Version/
// GStreamerVersion property values for export.
func managerPropertyValues(m *manager.Manager) map[string]any {
	return map[string]any{
		"Pipelines":        uint32(m.PipelineCount()),
		"Version":          version.Version,
		"GStreamerVersion": gst.RuntimeVersion(),
	}
}
