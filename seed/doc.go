// Package seed turns a directory of markdown documents into a populated
// vector index, exactly once.
//
// Whether seeding is needed is inferred from index non-emptiness rather
// than a stored flag, so a crashed or failed run is retried on the next
// process start. The package supports concurrent embedding across
// documents, retry with exponential backoff around embedding calls, and
// progress tracking.
package seed
