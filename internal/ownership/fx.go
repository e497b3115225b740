package ownership

import (
	"strings"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/smallbiznis/gavel/internal/config"
	"github.com/smallbiznis/gavel/internal/ownership/lock"
	"github.com/smallbiznis/gavel/internal/ownership/repository"
	"github.com/smallbiznis/gavel/internal/ownership/service"
)

// NewRedisClient builds the shared redis client, or nil when no address is
// configured. Single-node deployments run without redis.
func NewRedisClient(cfg config.Config) *redis.Client {
	addr := strings.TrimSpace(cfg.Redis.Addr)
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.Redis.Password),
		DB:       cfg.Redis.DB,
	})
}

var Module = fx.Module("ownership",
	fx.Provide(
		NewRedisClient,
		lock.NewLocker,
		repository.Provide,
		service.Provide,
	),
)
