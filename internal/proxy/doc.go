// Package proxy makes the nodes of a remote graph usable as local nodes.
//
// A proxy node (New) stands for the root of a remote graph. Asking it for a
// child returns a proxied node carrying the remote path; proxied nodes
// support the usual operations by registering fragment requests with the
// proxy's client. Each fragment is a query-set rooted at the remote root,
// for example
//
//	root {get-child "users" {get-child 0 {evaluate}}}
//
// Fragments with the same request are shared between the graph nodes that
// ask for them. A fragment lives while one of them is alive: evicting the
// last one cancels the request context, which stops streaming transports.
//
// Requests travel through a pipeline of middlewares ending in a transport:
//
//	proxy.New(
//		middleware.Logging(),
//		middleware.Retry(3, time.Second),
//		middleware.Batch(proxy.NextTick()),
//		httptransport.Client("http://localhost:8080/query", decoder),
//	)
//
// Responses update the fragment and invalidate its watchers. Errors produced
// by the remote graph keep their code and are located below the proxy:
// RemotePath is the path inside the remote graph and Path is the proxy's own
// path followed by it. Failed requests become network errors.
//
// A query crossing the proxy is answered by one query-set request for the
// whole subtree below the proxied node (the query-set operation), so a query
// selecting many remote fields costs one round trip.
package proxy
