package cache

import "fmt"

// Transport carries one entry from node `from` into the store dst of node
// `to`. It is the seam where a multi-process deployment puts its RPC: the
// engine only ever writes into another node's store through it, during
// migration and replication.
type Transport[V any] interface {
	Send(from, to string, dst Store[V], key string, v V) (ev Eviction[V], evicted bool, err error)
}

// TransportFunc adapts a plain function to Transport.
type TransportFunc[V any] func(from, to string, dst Store[V], key string, v V) (Eviction[V], bool, error)

func (f TransportFunc[V]) Send(from, to string, dst Store[V], key string, v V) (Eviction[V], bool, error) {
	return f(from, to, dst, key, v)
}

// LocalTransport writes straight into dst. It never fails.
type LocalTransport[V any] struct{}

func (LocalTransport[V]) Send(_, _ string, dst Store[V], key string, v V) (Eviction[V], bool, error) {
	ev, evicted := dst.Put(key, v)
	return ev, evicted, nil
}

// send runs one transfer with up to MigrationRetries extra attempts.
// The returned error wraps ErrMigrationTransport and the last cause.
func (c *engine[V]) send(from, to string, dst Store[V], key string, v V) (Eviction[V], bool, error) {
	var last error
	attempts := 1 + c.opt.MigrationRetries
	for i := 1; i <= attempts; i++ {
		ev, evicted, err := c.opt.Transport.Send(from, to, dst, key, v)
		if err == nil {
			return ev, evicted, nil
		}
		last = err
		c.log.Warningf("send %q %s -> %s: attempt %d/%d failed: %v", key, from, to, i, attempts, err)
	}
	return Eviction[V]{}, false, fmt.Errorf("%w: key %q %s -> %s: %w", ErrMigrationTransport, key, from, to, last)
}
