package probe

import (
	"context"
	"fmt"

	redisclient "github.com/opsdeck/opsdeck/internal/infra/redisx"
)

// RedisProber checks the cache with a PING over an existing client.
type RedisProber struct {
	name   string
	client *redisclient.Client
}

// NewRedisProber creates a prober over an existing Redis client.
func NewRedisProber(name string, client *redisclient.Client) *RedisProber {
	return &RedisProber{name: name, client: client}
}

func (p *RedisProber) Name() string { return p.name }

func (p *RedisProber) Probe(ctx context.Context) error {
	if err := p.client.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}
