// Package nodes is the built-in node library: value trees and arrays,
// variables and side effects, references into the graph, functions and
// actions, control flow, operators, and adapters that bring goroutine-based
// sources (futures, streams, events) into the graph.
//
// Every constructor returns an immutable *graph.Node. Node types are
// registered by Module, so a registry used to decode definitions must include
// it:
//
//	reg := graph.NewRegistry(&nodes.Module{}, &collection.Module{})
//
// # Stateful nodes
//
// Variable, Set, Reset, Dispatch, FromFuture, FromStream, OnGlobalEvent and
// Scope own per-node state. Their state lives as long as the graph node does:
// once the last subscriber goes away the node is evicted, goroutines are
// cancelled and late results are dropped. Subscribing again starts from the
// initial state.
//
// Set, Reset and Dispatch perform their effect once per activation. Running
// the same definition again in the same context while it is still alive
// reuses the first outcome.
package nodes
