// Package sqlgen reads the declared shape of an entity struct (table name,
// ordered columns, identity, value kinds) and builds the SQL text the
// generic repository executes: insert column and value lists, partial update
// assignments, selects and deletes. Executable statements bind their values;
// literal rendering exists for logs and for callers that need the plain text.
package sqlgen
