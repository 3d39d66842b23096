// Package relationaldb defines the relational storage contract of the
// settlement core: configuration, typed errors and the database lifecycle
// interface. The postgres subpackage provides the implementation.
package relationaldb

import "context"

// Database is the lifecycle interface of a relational store.
type Database interface {
	// Open connects and initializes the schema idempotently.
	Open(ctx context.Context) error
	// Close releases the connection pool.
	Close(ctx context.Context) error
	// Ping tests the connection.
	Ping(ctx context.Context) error
}
