// Package archiver persists chat messages to PostgreSQL in batches.
//
// Messages are accepted through a buffered channel so the dispatch path
// never blocks on the database. Rows are flushed when the batch is full
// or the flush interval elapses, and inserts are deduplicated on message
// id so a replay after reconnect does not double-write.
package archiver
