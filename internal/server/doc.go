// Package server implements the HTTP surface of the file hub. It wires the
// chi router, the session guard and the middleware chain around the
// credential service, the file store and the aggregator, and provides the
// lifecycle helpers used by tests and the production binary.
package server
