/*
Package ports defines the driven ports (interfaces) of the Strata generator.

These interfaces decouple the generation core from external implementations,
allowing batches to run against in-memory, filesystem, Redis or SQLite backends.

# Key Interfaces

  - SeenSet: batch scoped set of ComboKeys with atomic insert-if-absent.
  - ArtifactStore: persists token images and metadata records.
  - Ledger: durable history of emitted tokens across batches.
  - RuleLoader: retrieves the rule configuration for a batch.
  - DistributedLocker: guarantees a single in-flight batch across replicas.
*/
package ports
