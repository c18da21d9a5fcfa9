// Package driver implements the user-facing operations of cmec-driver:
// setup, register, unregister, list and run.
//
// Every operation re-reads the library and run configuration from disk.
// Mutations happen under the library lock and are written back in full; a
// register or unregister that fails half way restores the file it already
// changed.
package driver
