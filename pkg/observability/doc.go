/*
Package observability turns executor lifecycle events into Prometheus metrics.

Metrics live in a private registry so several engines (or tests) do not
collide. They can be served over HTTP with Handler or dumped in the node
exporter textfile format with WriteTextfile.
*/
package observability
