package config

import (
	"fmt"
	"strings"
)

// DBConfig contains PostgreSQL database configuration.
type DBConfig struct {
	Host     string `env:"HOST"                    envDefault:"localhost"`
	Port     int    `env:"PORT"                    envDefault:"5432"`
	User     string `env:"USER"                    envDefault:"hotelease"`
	Password string `env:"PASSWORD"                envDefault:"hotelease"`
	Name     string `env:"NAME"                    envDefault:"hotelease"`
	SSLMode  string `env:"SSL_MODE"                envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
	// KeyPrefix namespaces every key written by the broker.
	KeyPrefix string `env:"KEY_PREFIX" envDefault:"hotelease:"`
}

// DirectoryBackend selects where role lookups are served from.
type DirectoryBackend string

const (
	// DirectoryBackendPostgres reads the app_users table.
	DirectoryBackendPostgres DirectoryBackend = "postgres"
	// DirectoryBackendStatic serves records from DIRECTORY_STATIC_ENTRIES.
	DirectoryBackendStatic DirectoryBackend = "static"
)

// UnmarshalText implements encoding.TextUnmarshaler for DirectoryBackend.
func (d *DirectoryBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "postgres", "static":
		*d = DirectoryBackend(v)
		return nil
	default:
		return fmt.Errorf("invalid DirectoryBackend: %q (valid options: postgres, static)", v)
	}
}

// DirectoryConfig configures the role directory.
type DirectoryConfig struct {
	Backend DirectoryBackend `env:"DIRECTORY_BACKEND" envDefault:"postgres"`
	// StaticEntries holds user_id:role[:status] triples separated by ';'.
	StaticEntries []string `env:"DIRECTORY_STATIC_ENTRIES" envSeparator:";"`
}

// Sanitize trims blank static entries.
func (d *DirectoryConfig) Sanitize() {
	out := d.StaticEntries[:0]
	for _, e := range d.StaticEntries {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	d.StaticEntries = out
}
