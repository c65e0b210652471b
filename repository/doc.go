// Package repository provides the generic repository over Bun used by the
// roster entities, plus the team, player and player-with-team repositories
// layered on it. SQL text comes from package sqlgen; every mutating call runs
// in its own transaction and storage failures surface as *StorageError.
package repository
