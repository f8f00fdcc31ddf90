// Package middleware provides the request pipeline stages of proxy nodes:
// batching, retries, timeouts, logging, error rewriting and metrics.
//
// Middlewares wrap the next handler of a pipeline. Order matters: stages
// listed first see requests first and responses last. A typical pipeline
// logs, retries the merged batch and then hands it to a transport:
//
//	proxy.New(
//		middleware.Logging(),
//		middleware.Metrics(prometheus.DefaultRegisterer),
//		middleware.Batch(proxy.NextTick()),
//		middleware.Retry(3, 500*time.Millisecond),
//		middleware.Timeout(5*time.Second),
//		httptransport.Client(url, decoder),
//	)
package middleware
