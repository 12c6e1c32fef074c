/*
Package strata is a layered trait generation engine: it assembles collections
of unique tokens (images plus metadata) out of a library of transparent layers.

Each token is built by drawing one option per category with weighted sampling.
Rules exclude or require pairs of options, chosen options establish a context
that restricts what later categories may offer, tag groups keep a token inside
a single theme, and every combination is checked for uniqueness within the
batch before it is composited and persisted.

# Project layout

	my-collection/
	  layers/<category>/[<context>/...]<value>.png
	  layerorder.json        top-most category first
	  rules.json|rules.yaml  weights, showTo, specific rules, tags, overrides
	  custom/tokens.json     hand-made tokens emitted ahead of generated ones
	  output/images, output/metadata

# Usage

	eng, err := strata.New("./my-collection")
	if err != nil {
		log.Fatal(err)
	}

	sess, err := eng.Start(ctx, domain.BatchRequest{Count: 1000})
	if err != nil {
		log.Fatal(err)
	}

	progress, err := sess.Wait(ctx)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("%d done, %d failed", progress.Done, progress.Failed)

Batches run in the background on a bounded worker pool; Cancel stops them
cooperatively and Progress reports their state at any time. Storage, the
batch seen-set and the rule source are ports, so the same engine runs on the
local filesystem, in memory, or against Redis and SQLite.
*/
package strata
