// Package registry provides the locator endpoint bootstrap sources used
// by resolver and client: where to find the Cocaine locator itself, not
// a replacement for the locator's own resolve protocol. The locator
// remains the one and only full service-discovery mechanism; this
// package only answers "which address(es) is the locator listening on".
package registry

import "context"

// LocatorSource supplies the locator endpoint set a client or resolver
// dials. StaticSource serves the spec's default; EtcdSource lets an
// operator push updates to that set at runtime.
type LocatorSource interface {
	// Get returns the current locator endpoint set.
	Get(ctx context.Context) ([]string, error)

	// Watch emits an updated endpoint set whenever the source changes.
	// Implementations that never change (StaticSource) may return a
	// channel that's never written to.
	Watch(ctx context.Context) <-chan []string
}

// DefaultLocatorEndpoint is the conventional default locator address.
const DefaultLocatorEndpoint = "[::]:10053"

// StaticSource is a fixed, never-changing locator endpoint set.
type StaticSource struct {
	endpoints []string
}

// NewStaticSource returns a StaticSource serving endpoints verbatim, or
// DefaultLocatorEndpoint if none are given.
func NewStaticSource(endpoints ...string) *StaticSource {
	if len(endpoints) == 0 {
		endpoints = []string{DefaultLocatorEndpoint}
	}
	return &StaticSource{endpoints: endpoints}
}

func (s *StaticSource) Get(ctx context.Context) ([]string, error) {
	return s.endpoints, nil
}

func (s *StaticSource) Watch(ctx context.Context) <-chan []string {
	return nil
}
