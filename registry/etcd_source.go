// etcd_source.go is a read-only watcher over one key prefix: the
// operator-maintained set of locator endpoints. Registration, TTL
// leases, and per-service keys are a service-discovery concern for the
// services themselves — out of scope here, since the locator's own
// resolve protocol is this module's only such mechanism.
package registry

import (
	"context"
	"strings"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdSource watches an etcd key prefix for locator endpoint changes.
// Each key under the prefix holds one "host:port" value; Get and Watch
// report the full set of values currently present.
type EtcdSource struct {
	client *clientv3.Client
	prefix string
}

// NewEtcdSource creates an etcd client for the given endpoints and
// returns a source reading locator endpoint entries under prefix; no
// watch runs until Watch is called.
func NewEtcdSource(etcdEndpoints []string, prefix string) (*EtcdSource, error) {
	c, err := clientv3.New(clientv3.Config{Endpoints: etcdEndpoints})
	if err != nil {
		return nil, err
	}
	return &EtcdSource{client: c, prefix: prefix}, nil
}

// Get returns the locator endpoints currently stored under the prefix.
func (s *EtcdSource) Get(ctx context.Context) ([]string, error) {
	resp, err := s.client.Get(ctx, s.prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}
	endpoints := make([]string, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		if v := strings.TrimSpace(string(kv.Value)); v != "" {
			endpoints = append(endpoints, v)
		}
	}
	return endpoints, nil
}

// Watch emits the full endpoint set every time any key under the prefix
// changes — any event triggers a full re-fetch rather than an
// incremental patch, keeping the consumer's view simple at the cost of
// an extra round trip per change.
func (s *EtcdSource) Watch(ctx context.Context) <-chan []string {
	ch := make(chan []string, 1)
	go func() {
		defer close(ch)
		watchChan := s.client.Watch(ctx, s.prefix, clientv3.WithPrefix())
		for range watchChan {
			endpoints, err := s.Get(ctx)
			if err != nil {
				continue
			}
			select {
			case ch <- endpoints:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}
