// Package database opens and manages the relational store behind the roster
// repositories: configuration loading and validation, dialect and driver
// selection, the bounded connection pool, health checks, query hooks, driver
// error classification, table migrations with foreign keys, and SQL file
// seeding. Everything hangs off a *Database returned by Open; there is no
// package-level state.
package database
