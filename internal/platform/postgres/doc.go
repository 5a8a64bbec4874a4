// Package postgres provides PostgreSQL implementations of the store
// interfaces, using database/sql over the pgx driver. Driver-level errors
// are mapped onto the store package's sentinel errors so callers never
// depend on PostgreSQL specifics.
package postgres
