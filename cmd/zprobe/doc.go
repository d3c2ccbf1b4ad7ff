// Command zprobe checks that a server is reachable over TCP and answers a
// basic HTTP request within a bounded time.
//
// Usage:
//
//	zprobe [--host 127.0.0.1] [--port 8080] [--settle 0s] [--read-timeout 5s]
//	       [--require-response] [--request PAYLOAD] [--json]
//	zprobe agent [--listen 127.0.0.1:8787] [--interval 30s] [--history FILE]
//	       [--history-ttl 24h] [--shutdown-secs 10] [--watch]
//
// Without a subcommand, zprobe performs a single probe: connect to the
// target, write one fixed GET request, accumulate whatever bytes arrive
// until the peer closes the stream or a read stalls past the idle timeout,
// print the report, and exit 0 on success or 1 on failure. Only failures to
// connect or to send flip the verdict; a silent or resetting peer is
// reported but still counts as success unless --require-response is set.
//
// The agent subcommand runs the same probe on a schedule behind a local
// control-plane HTTP server (see internal/api for the endpoint surface).
// Environment variables prefixed ZPROBE_ provide defaults; flags take
// precedence. The process blocks on SIGINT/SIGTERM for graceful shutdown
// and intentionally avoids daemonizing itself.
package main
