// Package database provides the PostgreSQL connection pool backing the
// chat archiver.
package database
