// Package query resolves declarative query shapes against a graph.
//
// A query selects fields with Key and collections with Entries, nested to any
// depth, and resolves to a tree of plain values mirroring the shape. Every
// query is compiled to a query-set and answered by Respond, the same
// traversal the remote server runs, so a query that crosses a proxy is sent
// as a single request.
package query
