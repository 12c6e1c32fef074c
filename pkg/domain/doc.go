/*
Package domain contains the core domain model of the Strata generator.

It defines the vocabulary shared by every stage of token generation: trait options
discovered in the asset library, the rules and tag groups that constrain them, the
per-attempt Assignment, and the artifacts emitted for each token. This package is kept
pure and free of I/O, following Hexagonal Architecture principles.

# Key Entities

  - Option: one selectable trait value, identified by (category, value, context).
  - Rule: an exclusion or requirement relation between option selectors.
  - TagGroup: a named partition of options used for group exclusivity.
  - Assignment: the category to option mapping built during one generation attempt.
  - ComboKey: the canonical identity of an Assignment, used for duplicate detection.
  - TokenMetadata: the per-token description record written next to the image.
*/
package domain
