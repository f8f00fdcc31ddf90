// Package collection implements the collection transform algebra: filter,
// map, sort, slice, count, group and positional picks, composed over any
// node that supports get-items.
//
// Transforms are definitions. Apply attaches them to a target; nested Apply
// calls append their transforms to the ones already attached, so a chain of
// Apply nodes issues a single get-items request to the innermost source.
// When a proxied collection is the source, the whole transform list crosses
// the proxy in one request and is evaluated by the remote graph.
//
// Transform definitions are activated in the context of the node that issues
// the get-items request. References inside them (a filter threshold kept in a
// Variable, a page offset) therefore resolve relative to the issuer, and the
// transform reruns when the referenced state changes.
package collection
