// Package graph implements the reactive, lazily evaluated dependency graph at
// the heart of lazygraph: immutable node definitions, their activation into
// memoized graph nodes, operation dispatch, and the subscription engine that
// keeps results live.
//
// # Why Graph Package Exists
//
// Consumers describe *what* they want as a tree of definitions (a Ref, a
// Query, a Computed value) and subscribe to it. The engine activates the
// definitions on demand, caches every (node, operation) computation, records
// which computations read which, and recomputes only what an upstream change
// actually touched. Everything that is asynchronous (futures, streams, remote
// proxies) is represented structurally by the pending sentinel, so no handler
// has to special-case waiting.
//
// # Architecture
//
//	  Subscribe(def)                      stateful node changes
//	        │                                      │
//	        ▼                                      ▼
//	┌───────────────┐  Dispatch   ┌────────────────────────────┐
//	│ Subscription  │────────────▶│ computation (node, op)      │
//	│ (observer)    │◀────────────│ result, deps, dependents,   │
//	└───────────────┘  notify     │ dirty flag                  │
//	                              └──────────────┬─────────────┘
//	                                             │ activate
//	                                             ▼
//	                              ┌────────────────────────────┐
//	                              │ Scope registry              │
//	                              │ (definition, context) →     │
//	                              │ GraphNode                   │
//	                              └────────────────────────────┘
//
// **Definitions** (Node) are immutable and compared by a canonical key, so
// two structurally equal definitions share a cache entry.
//
// **Graph nodes** (GraphNode) are definitions activated inside a Scope and a
// Context. For a given scope, (definition, context identity) maps to at most
// one live graph node.
//
// **Operations** are typed requests (evaluate, get-child, get-items, call,
// set, length). A node type registers one OperationHandler per operation it
// supports. Handlers declare Dependencies, resolved until their predicate
// holds, and return an Outcome: a definition, a graph node or an Action that
// redirects the request to another node.
//
// # Concurrency Model
//
// The engine is single threaded. All graph work runs as tasks on a Loop; a
// task submitted while another is running is queued and executed afterwards
// on the goroutine that owns the loop. Goroutines owned by stateful nodes
// (futures, streams, transports) hand their results back with Graph.Do.
//
// At the end of every task the engine flushes: each subscription whose
// computation was marked dirty during the task is recomputed once and its
// observer notified if the result changed. Several mutations inside one task
// therefore produce a single emission.
//
// # Lifetime
//
// Computations live while they have subscribers or dependents. Graph nodes
// are reference counted by the computations, contexts and item lists that use
// them. When the count drops to zero the node is evicted from its scope and
// its type's OnDispose runs, which is where stateful nodes cancel goroutines
// and release remote interest. Resubscribing later activates a fresh node.
package graph
