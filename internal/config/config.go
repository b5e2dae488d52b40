// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config resolves the daemon's process interface: command-line
// flags with environment-variable fallbacks, following the precedence
// flag > environment variable > default.
package config

import (
	"flag"
	"fmt"
)

const (
	defaultPort         = 9000
	defaultBind         = "127.0.0.1"
	defaultMaxPipelines = 100
)

// stringList collects repeatable flag values, e.g. -p <desc> -p <desc>.
type stringList []string

func (s *stringList) String() string {
	if s == nil {
		return ""
	}
	return fmt.Sprintf("%v", []string(*s))
}

func (s *stringList) Set(value string) error {
	*s = append(*s, value)
	return nil
}

// Config is the fully resolved daemon configuration, combining CLI flags,
// environment variables, and defaults.
type Config struct {
	// Port is the TCP port the JSON-RPC/WebSocket listener binds to.
	Port int
	// Bind is the address the listener binds to.
	Bind string
	// InitialPipelines are gst-launch description strings started at boot,
	// in the order given.
	InitialPipelines []string
	// Playback puts the daemon into playback-mode: start every pipeline in
	// InitialPipelines, wait for each to reach a terminal state, then exit
	// with a code reflecting whether any hit an error or unsupported media.
	Playback bool
	// NoDBus disables the session-bus transport.
	NoDBus bool
	// NoWebSocket disables the JSON-RPC/WebSocket transport.
	NoWebSocket bool
	// APIKey, if set, is required via the Authorization header on the
	// WebSocket handshake.
	APIKey string
	// AllowedOrigins restricts the WebSocket handshake's Origin header.
	// Empty means no restriction.
	AllowedOrigins []string
	// MaxPipelines bounds the number of concurrently registered pipelines.
	MaxPipelines int
}

// Parse resolves a Config from the given CLI arguments (typically
// os.Args[1:]) and the process environment. Flags take precedence over
// environment variables, which take precedence over defaults.
func Parse(args []string) (Config, error) {
	fs := flag.NewFlagSet("gpopd", flag.ContinueOnError)

	port := fs.Int("P", 0, "port to listen on")
	fs.IntVar(port, "port", *port, "port to listen on")
	bind := fs.String("b", "", "address to bind to")
	fs.StringVar(bind, "bind", *bind, "address to bind to")

	var pipelines stringList
	fs.Var(&pipelines, "p", "gst-launch pipeline description to start at boot (repeatable)")
	fs.Var(&pipelines, "pipeline", "gst-launch pipeline description to start at boot (repeatable)")

	playback := fs.Bool("x", false, "playback mode: run every initial pipeline to completion and exit")
	fs.BoolVar(playback, "playback-mode", *playback, "playback mode: run every initial pipeline to completion and exit")

	noDBus := fs.Bool("no-dbus", false, "disable the session-bus transport")
	noWebSocket := fs.Bool("no-websocket", false, "disable the JSON-RPC/WebSocket transport")
	apiKey := fs.String("api-key", "", "required bearer token for WebSocket clients")

	var origins stringList
	fs.Var(&origins, "allowed-origin", "allowed WebSocket Origin header value (repeatable)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port:             resolveInt(*port, "GPOP_PORT", defaultPort, fs, "P", "port"),
		Bind:             resolveString(*bind, "GPOP_BIND", defaultBind, fs, "b", "bind"),
		InitialPipelines: []string(pipelines),
		Playback:         *playback,
		NoDBus:           resolveBool(*noDBus, "GPOP_NO_DBUS", fs, "no-dbus"),
		NoWebSocket:      resolveBool(*noWebSocket, "GPOP_NO_WEBSOCKET", fs, "no-websocket"),
		APIKey:           resolveAPIKey(*apiKey, fs),
		AllowedOrigins:   []string(origins),
		MaxPipelines:     ParseInt("GPOP_MAX_PIPELINES", defaultMaxPipelines),
	}

	return cfg, nil
}

// resolveAPIKey resolves the WebSocket API key: the --api-key flag wins,
// then GPOP_API_KEY, then the legacy GPOPD_API_KEY spelling.
func resolveAPIKey(flagValue string, fs *flag.FlagSet) string {
	if flagExplicitlySet(fs, "api-key") {
		return flagValue
	}
	return ParseStringWithAlias("GPOP_API_KEY", "GPOPD_API_KEY", "")
}

// resolveString returns flagValue if the flag was explicitly set, else the
// environment variable, else defaultValue.
func resolveString(flagValue, envKey, defaultValue string, fs *flag.FlagSet, flagNames ...string) string {
	if flagExplicitlySet(fs, flagNames...) {
		return flagValue
	}
	return ParseString(envKey, defaultValue)
}

// resolveInt mirrors resolveString for integer flags.
func resolveInt(flagValue int, envKey string, defaultValue int, fs *flag.FlagSet, flagNames ...string) int {
	if flagExplicitlySet(fs, flagNames...) {
		return flagValue
	}
	return ParseInt(envKey, defaultValue)
}

// resolveBool mirrors resolveString for boolean flags; the default is
// always false (these are opt-in switches).
func resolveBool(flagValue bool, envKey string, fs *flag.FlagSet, flagNames ...string) bool {
	if flagExplicitlySet(fs, flagNames...) {
		return flagValue
	}
	return ParseBool(envKey, false)
}

// flagExplicitlySet reports whether any of the named flags appeared on the
// command line, as opposed to merely holding its zero-value default.
func flagExplicitlySet(fs *flag.FlagSet, names ...string) bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	found := false
	fs.Visit(func(f *flag.Flag) {
		if set[f.Name] {
			found = true
		}
	})
	return found
}
