// Package storage provides key/value stores backing the preload record.
//
// Stores:
//   - Memory: process-local map, used in tests and ephemeral deployments
//   - File: a single JSON document written atomically via temp file and rename
//
// Both stores apply SetMany as one commit, so the three preload entries are
// never observed partially written.
package storage
