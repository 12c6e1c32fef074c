package middleware

import "github.com/aretw0/strata/pkg/ports"

// Middleware allows wrapping an ArtifactStore to add behavior.
type Middleware func(ports.ArtifactStore) ports.ArtifactStore

// Chain applies middlewares so that the first one is the outermost.
func Chain(store ports.ArtifactStore, mws ...Middleware) ports.ArtifactStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}

// passthrough forwards every call to next; middlewares embed it and
// override what they change.
type passthrough struct {
	ports.ArtifactStore
}
