// Package app contains the application lifecycle: it loads a graph file,
// builds the graph it describes and either serves it to remote proxies or
// resolves one path and prints the result. It is decoupled from any
// specific entrypoint like a CLI.
package app
