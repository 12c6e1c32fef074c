/*
Package session orchestrates generation batches.

A Manager keeps at most one batch in flight (optionally across replicas through a
ports.DistributedLocker), fans tokens out to a bounded worker pool, persists every
produced token and tracks the observable Progress of the batch. A failing token
never aborts its siblings; cancellation is cooperative and checked between
pipeline phases.
*/
package session
