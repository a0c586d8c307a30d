// Package server hosts the Fiber HTTP surface over the cache facade. It wires
// a namespace registry built from config into the four cache operations
// (match/put/delete/keys), attaches request-ID and recover middlewares, and
// renders misses and validation failures as structured JSON so local clients
// can share one persistent store across processes. Keep exports narrow and
// accept explicit dependencies; admin surfaces live under /-/ paths.
package server
