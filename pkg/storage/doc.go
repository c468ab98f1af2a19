// Package storage provides durable adapters for the client store storage
// port: each store persists one opaque JSON payload under a single
// namespaced key ("clientstate/<store>").
//
// Adapters:
//   - Memory keeps payloads in process, for tests and ephemeral sessions.
//   - File writes one JSON file per key below a base directory using a
//     temp file and rename.
//   - SQLite keeps payloads in a single table of a modernc.org/sqlite
//     database, for tools that scan or share many stores.
//
// All adapters satisfy clientstate.Storage structurally; this package does
// not import the root package.
package storage
