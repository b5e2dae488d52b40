// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package dbus

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"

	"github.com/gpopd/gpopd/internal/event"
	"github.com/gpopd/gpopd/internal/gst"
	"github.com/gpopd/gpopd/internal/log"
	"github.com/gpopd/gpopd/internal/manager"
)

// Server owns the session-bus connection, the single manager object, and
// the dynamic set of per-pipeline objects kept in sync with the manager's
// event fan-out. One Server per process.
type Server struct {
	conn *dbus.Conn
	m    *manager.Manager

	mu        sync.Mutex
	indexOf   map[string]uint32 // pipeline id -> dbus-local index
	propsOf   map[uint32]*prop.Properties
	nextIndex uint32

	managerProps *prop.Properties
	sub          *event.Subscription
}

// NewServer connects to the session bus, requests ServiceName, and exports
// the fixed Manager object. Registration of per-pipeline objects happens
// later, driven by Run, as pipeline_added/removed events arrive.
func NewServer(m *manager.Manager) (*Server, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("dbus: connect session bus: %w", err)
	}

	reply, err := conn.RequestName(ServiceName, dbus.NameFlagDoNotQueue)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("dbus: request name %s: %w", ServiceName, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		_ = conn.Close()
		return nil, fmt.Errorf("dbus: name %s already owned", ServiceName)
	}

	s := &Server{
		conn:    conn,
		m:       m,
		indexOf: make(map[string]uint32),
		propsOf: make(map[uint32]*prop.Properties),
	}

	if err := s.exportManager(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return s, nil
}

func (s *Server) exportManager() error {
	iface := &managerIface{m: s.m}
	if err := s.conn.Export(iface, ManagerObjectPath, ManagerInterfaceName); err != nil {
		return fmt.Errorf("dbus: export manager object: %w", err)
	}

	values := managerPropertyValues(s.m)
	propSpec := prop.Map{
		ManagerInterfaceName: {
			"pipelines":         {Value: values["Pipelines"], Writable: false, Emit: prop.EmitTrue, Callback: nil},
			"version":           {Value: values["Version"], Writable: false, Emit: prop.EmitTrue, Callback: nil},
			"gstreamer_version": {Value: values["GStreamerVersion"], Writable: false, Emit: prop.EmitTrue, Callback: nil},
		},
	}
	props, err := prop.Export(s.conn, ManagerObjectPath, propSpec)
	if err != nil {
		return fmt.Errorf("dbus: export manager properties: %w", err)
	}
	s.managerProps = props

	node := &introspect.Node{
		Name: string(ManagerObjectPath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
			managerIntrospection(),
		},
	}
	return s.conn.Export(introspect.NewIntrospectable(node), ManagerObjectPath, "org.freedesktop.DBus.Introspectable")
}

func managerIntrospection() introspect.Interface {
	return introspect.Interface{
		Name: ManagerInterfaceName,
		Methods: []introspect.Method{
			{Name: "AddPipeline", Args: []introspect.Arg{
				{Name: "description", Type: "s", Direction: "in"},
				{Name: "id", Type: "s", Direction: "out"},
			}},
			{Name: "RemovePipeline", Args: []introspect.Arg{
				{Name: "id", Type: "s", Direction: "in"},
			}},
			{Name: "GetPipelineDesc", Args: []introspect.Arg{
				{Name: "id", Type: "s", Direction: "in"},
				{Name: "description", Type: "s", Direction: "out"},
			}},
			{Name: "UpdatePipeline", Args: []introspect.Arg{
				{Name: "id", Type: "s", Direction: "in"},
				{Name: "description", Type: "s", Direction: "in"},
			}},
		},
		Properties: []introspect.Property{
			{Name: "pipelines", Type: "u", Access: "read"},
			{Name: "version", Type: "s", Access: "read"},
			{Name: "gstreamer_version", Type: "s", Access: "read"},
		},
		Signals: []introspect.Signal{
			{Name: "pipeline_added", Args: []introspect.Arg{
				{Name: "id", Type: "s"}, {Name: "description", Type: "s"},
			}},
			{Name: "pipeline_removed", Args: []introspect.Arg{
				{Name: "id", Type: "s"},
			}},
		},
	}
}

// Run subscribes to the manager's event fan-out and forwards
// pipeline_added/pipeline_removed into object-server register/unregister,
// and per-pipeline events into property updates and signals. It blocks
// until ctx is cancelled.
func (s *Server) Run(ctx context.Context) {
	logger := log.WithComponent("dbus")
	s.sub = s.m.Subscribe()
	defer s.sub.Close()

	for {
		delivery, err := s.sub.Recv(ctx)
		if err != nil {
			logger.Debug().Err(err).Msg("dbus event forwarder stopping")
			return
		}
		if delivery.Lagged > 0 {
			logger.Warn().Uint64("lagged", delivery.Lagged).Msg("dbus event forwarder lagged")
		}
		s.handle(delivery.Event)
	}
}

func (s *Server) handle(ev event.Event) {
	logger := log.WithComponent("dbus")
	switch ev.Kind {
	case event.KindPipelineAdded:
		if err := s.registerPipeline(ev.ID); err != nil {
			logger.Error().Err(err).Str(log.FieldPipelineID, ev.ID).Msg("failed to export pipeline object")
			return
		}
		s.managerProps.SetMust(ManagerInterfaceName, "pipelines", uint32(s.m.PipelineCount()))
		_ = s.conn.Emit(ManagerObjectPath, ManagerInterfaceName+".pipeline_added", ev.ID, ev.Description)

	case event.KindPipelineUpdated:
		if props, ok := s.propsFor(ev.ID); ok {
			props.SetMust(PipelineInterfaceName, "description", ev.Description)
		}

	case event.KindPipelineRemoved:
		s.unregisterPipeline(ev.ID)
		s.managerProps.SetMust(ManagerInterfaceName, "pipelines", uint32(s.m.PipelineCount()))
		_ = s.conn.Emit(ManagerObjectPath, ManagerInterfaceName+".pipeline_removed", ev.ID)

	case event.KindStateChanged:
		if props, ok := s.propsFor(ev.ID); ok {
			props.SetMust(PipelineInterfaceName, "state", ev.NewState)
			props.SetMust(PipelineInterfaceName, "streaming", ev.NewState == gst.StatePlaying.String())
		}
		if path, ok := s.pathFor(ev.ID); ok {
			_ = s.conn.Emit(path, PipelineInterfaceName+".state_changed", ev.OldState, ev.NewState)
		}

	case event.KindError, event.KindUnsupported:
		if path, ok := s.pathFor(ev.ID); ok {
			_ = s.conn.Emit(path, PipelineInterfaceName+".error", ev.Message)
		}

	case event.KindEOS:
		if path, ok := s.pathFor(ev.ID); ok {
			_ = s.conn.Emit(path, PipelineInterfaceName+".eos")
		}
	}
}

func (s *Server) pathFor(id string) (dbus.ObjectPath, bool) {
	s.mu.Lock()
	index, ok := s.indexOf[id]
	s.mu.Unlock()
	if !ok {
		return "", false
	}
	return pipelineObjectPath(index), true
}

func (s *Server) propsFor(id string) (*prop.Properties, bool) {
	s.mu.Lock()
	index, ok := s.indexOf[id]
	if !ok {
		s.mu.Unlock()
		return nil, false
	}
	props, ok := s.propsOf[index]
	s.mu.Unlock()
	return props, ok
}

// registerPipeline assigns id the next free dbus-local index and exports
// its object. The index is independent of id and never reused within this
// process's lifetime.
func (s *Server) registerPipeline(id string) error {
	s.mu.Lock()
	index := s.nextIndex
	s.nextIndex++
	s.indexOf[id] = index
	s.mu.Unlock()

	path := pipelineObjectPath(index)
	iface := &pipelineIface{m: s.m, id: id}
	if err := s.conn.Export(iface, path, PipelineInterfaceName); err != nil {
		return fmt.Errorf("dbus: export pipeline object %s: %w", path, err)
	}

	values := pipelinePropertyValues(s.m, id)
	propSpec := prop.Map{
		PipelineInterfaceName: {
			"id":          {Value: values["Id"], Writable: false, Emit: prop.EmitTrue},
			"description": {Value: values["Description"], Writable: false, Emit: prop.EmitTrue},
			"state":       {Value: values["State"], Writable: false, Emit: prop.EmitTrue},
			"streaming":   {Value: values["Streaming"], Writable: false, Emit: prop.EmitTrue},
		},
	}
	props, err := prop.Export(s.conn, path, propSpec)
	if err != nil {
		return fmt.Errorf("dbus: export pipeline properties %s: %w", path, err)
	}

	s.mu.Lock()
	s.propsOf[index] = props
	s.mu.Unlock()

	node := &introspect.Node{
		Name: string(path),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
			pipelineIntrospection(),
		},
	}
	if err := s.conn.Export(introspect.NewIntrospectable(node), path, "org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("dbus: export pipeline introspection %s: %w", path, err)
	}
	return nil
}

func (s *Server) unregisterPipeline(id string) {
	s.mu.Lock()
	index, ok := s.indexOf[id]
	if ok {
		delete(s.indexOf, id)
		delete(s.propsOf, index)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	path := pipelineObjectPath(index)
	_ = s.conn.Export(nil, path, PipelineInterfaceName)
	_ = s.conn.Export(nil, path, "org.freedesktop.DBus.Introspectable")
	_ = s.conn.Export(nil, path, "org.freedesktop.DBus.Properties")
}

func pipelineIntrospection() introspect.Interface {
	return introspect.Interface{
		Name: PipelineInterfaceName,
		Methods: []introspect.Method{
			{Name: "SetState", Args: []introspect.Arg{
				{Name: "state", Type: "s", Direction: "in"},
				{Name: "ok", Type: "b", Direction: "out"},
			}},
			{Name: "Play", Args: []introspect.Arg{{Name: "ok", Type: "b", Direction: "out"}}},
			{Name: "Pause", Args: []introspect.Arg{{Name: "ok", Type: "b", Direction: "out"}}},
			{Name: "Stop", Args: []introspect.Arg{{Name: "ok", Type: "b", Direction: "out"}}},
			{Name: "GetDot", Args: []introspect.Arg{
				{Name: "detail", Type: "s", Direction: "in"},
				{Name: "dot", Type: "s", Direction: "out"},
			}},
			{Name: "GetPosition", Args: []introspect.Arg{
				{Name: "position_ns", Type: "x", Direction: "out"},
				{Name: "duration_ns", Type: "x", Direction: "out"},
			}},
			{Name: "Update", Args: []introspect.Arg{
				{Name: "description", Type: "s", Direction: "in"},
				{Name: "ok", Type: "b", Direction: "out"},
			}},
		},
		Properties: []introspect.Property{
			{Name: "id", Type: "s", Access: "read"},
			{Name: "description", Type: "s", Access: "read"},
			{Name: "state", Type: "s", Access: "read"},
			{Name: "streaming", Type: "b", Access: "read"},
		},
		Signals: []introspect.Signal{
			{Name: "state_changed", Args: []introspect.Arg{
				{Name: "old", Type: "s"}, {Name: "new", Type: "s"},
			}},
			{Name: "error", Args: []introspect.Arg{{Name: "message", Type: "s"}}},
			{Name: "eos"},
		},
	}
}

// Close releases the well-known name and closes the bus connection.
func (s *Server) Close() error {
	_, _ = s.conn.ReleaseName(ServiceName)
	return s.conn.Close()
}
