// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - New returns a Config populated with defaults.
//   - Load layers defaults, an optional YAML file and TAPSCORE_* env vars.
//   - The tap cooldown window is a build-time constant and is not configurable.
package config

// Score store drivers.
const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8000".
	Addr string `koanf:"addr"`

	// SlotPath is the SQLite database file backing the durable slot.
	SlotPath string `koanf:"slot_path"`

	// SlotBusyTimeoutMS is passed to SQLite as busy_timeout.
	SlotBusyTimeoutMS int `koanf:"slot_busy_timeout_ms"`

	// ScoreStore selects the remote score store driver: mongo or memory.
	ScoreStore string `koanf:"score_store"`

	// MongoURI, MongoDatabase and ScoreCollection locate the user score documents.
	MongoURI        string `koanf:"mongo_uri"`
	MongoDatabase   string `koanf:"mongo_database"`
	ScoreCollection string `koanf:"score_collection"`

	// RemoteTimeoutMS bounds a single remote store call.
	RemoteTimeoutMS int `koanf:"remote_timeout_ms"`

	// SeedFile optionally seeds the memory score store from YAML.
	SeedFile string `koanf:"seed_file"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":8000",
		SlotPath:          "temp_uid.db",
		SlotBusyTimeoutMS: 5000,
		ScoreStore:        StoreMongo,
		MongoURI:          "mongodb://localhost:27017",
		MongoDatabase:     "tapscore",
		ScoreCollection:   "user_scores",
		RemoteTimeoutMS:   5000,
	}
}
