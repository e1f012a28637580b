package config

import "strings"

// StorageBackend names a StateStore implementation.
type StorageBackend string

const (
	StorageSQLite StorageBackend = "sqlite"
	StorageRedis  StorageBackend = "redis"
	StorageMemory StorageBackend = "memory"
)

// StorageConfig selects and configures the persisted state store.
type StorageConfig struct {
	Backend    StorageBackend `env:"BACKEND"     envDefault:"sqlite"`
	SQLitePath string         `env:"SQLITE_PATH" envDefault:"promptopt.db"`
	Redis      RedisConfig    `envPrefix:"REDIS_"`
}

// Sanitize normalises the backend name, falling back to sqlite for unknown values.
func (c *StorageConfig) Sanitize() {
	switch b := StorageBackend(trimLower(string(c.Backend))); b {
	case StorageSQLite, StorageRedis, StorageMemory:
		c.Backend = b
	default:
		c.Backend = StorageSQLite
	}
	if c.SQLitePath = strings.TrimSpace(c.SQLitePath); c.SQLitePath == "" {
		c.SQLitePath = "promptopt.db"
	}
	c.Redis.Sanitize()
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	// Addr is a host:port pair or a redis:// URL.
	Addr               string   `env:"ADDR"                 envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	DB                 int      `env:"DB"                   envDefault:"0"`
	Prefix             string   `env:"PREFIX"               envDefault:"promptopt:"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:""`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
}

// Sanitize trims addresses and disables sentinel mode when no nodes are configured.
func (c *RedisConfig) Sanitize() {
	c.Addr = strings.TrimSpace(c.Addr)
	if c.Prefix = strings.TrimSpace(c.Prefix); c.Prefix == "" {
		c.Prefix = "promptopt:"
	}
	nodes := c.SentinelNodes[:0]
	for _, n := range c.SentinelNodes {
		if n = strings.TrimSpace(n); n != "" {
			nodes = append(nodes, n)
		}
	}
	c.SentinelNodes = nodes
	if len(c.SentinelNodes) == 0 {
		c.UseSentinel = false
	}
	if c.DB < 0 {
		c.DB = 0
	}
}
