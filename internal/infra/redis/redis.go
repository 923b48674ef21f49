package redis

import (
	"fmt"

	radix "github.com/mediocregopher/radix/v3"

	"github.com/krismos64/Staka-livres-sub003/internal/config"
)

// New creates a Redis connection pool.
func New(cfg *config.RedisConfig) (radix.Client, error) {
	pool, err := radix.NewPool("tcp", cfg.Addr, 10)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return pool, nil
}
