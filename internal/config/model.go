package config

import (
	"fmt"
	"sort"
	"time"
)

// Transports a proxy can use.
const (
	TransportHTTP      = "http"
	TransportWebSocket = "websocket"
	TransportSocketIO  = "socketio"
)

// Model is the unified representation of a graph file. Every entry becomes a
// branch of the root tree under its name; names are unique across kinds.
type Model struct {
	Data      map[string]*Data
	Variables map[string]*Variable
	Proxies   map[string]*Proxy
	Envs      map[string]*Env
	Fetches   map[string]*Fetch
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{
		Data:      make(map[string]*Data),
		Variables: make(map[string]*Variable),
		Proxies:   make(map[string]*Proxy),
		Envs:      make(map[string]*Env),
		Fetches:   make(map[string]*Fetch),
	}
}

// Data is a constant branch. Objects become trees and lists become arrays.
type Data struct {
	Name  string
	Value any
}

// Variable is a settable branch.
type Variable struct {
	Name    string
	Default any
}

// Env is a branch holding the environment variables starting with Prefix.
type Env struct {
	Name   string
	Prefix string
}

// Fetch is a branch holding the latest response of an HTTP endpoint.
type Fetch struct {
	Name     string
	URL      string
	Method   string
	Headers  map[string]string
	Interval time.Duration
}

// Proxy is a branch standing for the root of a remote graph.
type Proxy struct {
	Name               string
	URL                string
	Transport          string
	Namespace          string
	InsecureSkipVerify bool

	Retries    int
	RetryDelay time.Duration
	Timeout    time.Duration
	Batch      bool
	Log        bool
}

// Names returns every branch name in sorted order.
func (m *Model) Names() []string {
	var names []string
	for n := range m.Data {
		names = append(names, n)
	}
	for n := range m.Variables {
		names = append(names, n)
	}
	for n := range m.Proxies {
		names = append(names, n)
	}
	for n := range m.Envs {
		names = append(names, n)
	}
	for n := range m.Fetches {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Has reports whether a branch named name exists.
func (m *Model) Has(name string) bool {
	_, d := m.Data[name]
	_, v := m.Variables[name]
	_, p := m.Proxies[name]
	_, e := m.Envs[name]
	_, f := m.Fetches[name]
	return d || v || p || e || f
}

// Validate checks a fetch definition.
func (f *Fetch) Validate() error {
	if f.URL == "" {
		return fmt.Errorf("fetch %q: url is required", f.Name)
	}
	return nil
}

// Validate checks a proxy definition.
func (p *Proxy) Validate() error {
	if p.URL == "" {
		return fmt.Errorf("proxy %q: url is required", p.Name)
	}
	switch p.Transport {
	case TransportHTTP, TransportWebSocket, TransportSocketIO:
	default:
		return fmt.Errorf("proxy %q: unknown transport %q", p.Name, p.Transport)
	}
	if p.Retries < 0 {
		return fmt.Errorf("proxy %q: retries must not be negative", p.Name)
	}
	return nil
}
