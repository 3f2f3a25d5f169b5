// Package server exposes the query pipeline over HTTP.
//
// POST /search accepts {"query": string} and responds with a
// newline-delimited JSON stream; each line is one staged pipeline event
// serialized as {"type": "quota"|"category"|"agents"|"final", "data": ...},
// written and flushed before the next stage runs. GET /api/agents lists
// publicly visible registered agents, and GET /health is a liveness check.
//
// Caller identity arrives from the fronting auth layer via the X-User-Key
// header; requests without it are treated as anonymous, keyed by client IP.
package server
