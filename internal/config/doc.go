// Package config defines the format-agnostic model of a graph file and the
// Loader interface that produces it.
//
// A Model describes the root tree of a served graph: plain data branches,
// variables and proxies to other graphs. Concrete loaders, such as the HCL
// one, live in separate packages.
package config
