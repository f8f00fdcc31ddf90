// Package sources provides branches whose values come from outside the
// graph: the process environment and HTTP endpoints.
//
// A fetched endpoint is requested when the branch is first activated and,
// with a poll interval, again on every tick while anything watches it.
// Subscribers see every changed response.
package sources
