/*
Package dsl provides a Go DSL for programmatically constructing Strata rule sets.

It allows developers to define weights, constraints, tag groups and context
overrides with a fluent builder instead of relying on external YAML or JSON
files. Names go through the same sanitization as rule documents, so
"Sky Blue" and "sky_blue" address the same option.

Example usage:

	b := dsl.New()

	b.Category("Background").
		Weight("Sky Blue", 80).
		Weight("Sunset", 20)

	b.Rule("Hat", "Crown").
		Excludes("Hair", "Bald")

	b.Rule("Hat", "Helmet").
		Requires("Hair", "Short")

	b.Tag("element", "fire", dsl.Item("Skin", "Lava"))

	loader, err := b.Build()
	// ... pass loader to strata.New(dir, strata.WithLoader(loader))
*/
package dsl
