package kgo

import (
	"context"
	"math/rand"
)

// connectAny implements spec.md §6's connect_any: shuffle the given
// endpoints and dial them in order, returning the first connection
// that completes its full handshake. If every endpoint fails, the
// caller gets a BootstrapError aggregating each attempt's reason.
func connectAny(ctx context.Context, endpoints []Endpoint, cfg Config) (*Connection, error) {
	if len(endpoints) == 0 {
		return nil, &BootstrapError{}
	}
	order := make([]int, len(endpoints))
	for i := range order {
		order[i] = i
	}
	rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	attempts := make([]BootstrapEndpointError, 0, len(endpoints))
	for _, idx := range order {
		ep := endpoints[idx]
		c, err := Start(ctx, ep.Host, ep.Port, cfg)
		if err == nil {
			return c, nil
		}
		attempts = append(attempts, BootstrapEndpointError{Endpoint: ep, Reason: err})
	}
	return nil, &BootstrapError{Attempts: attempts}
}

// withConnection implements spec.md §6's with_connection: bootstrap a
// scratch connection via connectAny, run fn against it, and always
// stop it afterward regardless of fn's outcome.
//
// Per spec.md §4.8 ("open a connection to any endpoint with
// nolink=true") and §6, the scratch connection's lifecycle must be
// independent of the caller's ctx — it is torn down only by the
// deferred Stop below, never by ctx cancellation — so NoLink is forced
// on for this connection regardless of what the caller's cfg says.
func withConnection[T any](ctx context.Context, endpoints []Endpoint, cfg Config, fn func(*Connection) (T, error)) (T, error) {
	var zero T
	scratchCfg := cfg
	scratchCfg.NoLink = true
	c, err := connectAny(ctx, endpoints, scratchCfg)
	if err != nil {
		return zero, err
	}
	defer c.Stop()
	return fn(c)
}

// ConnectPartitionLeader implements spec.md §6's connect_partition_leader:
// bootstrap against endpoints, discover the current leader for
// (topic, partition) via the scratch connection, then open a fresh
// connection directly to that leader and hand it back. leaderCfg, if
// non-nil, overrides cfg for the leader connection (e.g. a different
// client_id); otherwise cfg is reused verbatim.
func ConnectPartitionLeader(ctx context.Context, endpoints []Endpoint, cfg Config, topic string, partition int32, leaderCfg *Config) (*Connection, error) {
	leader, err := withConnection(ctx, endpoints, cfg, func(c *Connection) (PartitionLeader, error) {
		return discoverLeader(ctx, c, topic, partition, cfg.RequestTimeout)
	})
	if err != nil {
		return nil, err
	}
	use := cfg
	if leaderCfg != nil {
		use = *leaderCfg
	}
	return Start(ctx, leader.Host, leader.Port, use)
}

// ConnectCoordinator implements spec.md §6's connect_coordinator: the
// same bootstrap-discover-reconnect flow as ConnectPartitionLeader, but
// resolving a group or transaction coordinator instead of a partition
// leader.
func ConnectCoordinator(ctx context.Context, endpoints []Endpoint, cfg Config, key string, kind CoordinatorKind, coordCfg *Config) (*Connection, error) {
	coord, err := withConnection(ctx, endpoints, cfg, func(c *Connection) (Coordinator, error) {
		return discoverCoordinator(ctx, c, key, kind, cfg.RequestTimeout)
	})
	if err != nil {
		return nil, err
	}
	use := cfg
	if coordCfg != nil {
		use = *coordCfg
	}
	return Start(ctx, coord.Host, coord.Port, use)
}

// shuffled builds the same kind of random permutation connectAny
// builds inline, but from a caller-supplied rand source. connectAny
// does not call it; it shuffles with the package-global source.
func shuffled(n int, r *rand.Rand) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	r.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
	return order
}
