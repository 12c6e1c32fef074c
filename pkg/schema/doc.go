// Package schema carries the error types used to report configuration problems.
//
// A ValidationError pinpoints one offending entry by its dotted key
// (for example "specific[2].exclude_with[0]" or "tags.element.fire").
// Loaders collect them into an AggregateError so a single report lists every
// problem at once:
//
//	if err := store.Err(); err != nil {
//	    for _, msg := range schema.Messages(err) {
//	        log.Println(msg)
//	    }
//	}
package schema
