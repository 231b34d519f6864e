// Package storage provides the dedup store that records which events have
// already been seen.
//
// The store is an append-only set keyed by event identity (the "Hash" key).
// Each entry also carries the event's fields and the time it was first seen so
// the table can be inspected by hand. Four backends implement Store: DynamoDB
// (the deployed table), Redis, SQLite and a local JSON file under
// ~/.local/share/mothership-events/.
package storage
