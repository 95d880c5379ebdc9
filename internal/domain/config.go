package domain

import "time"

// Config holds the complete Harrier configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines infrastructure choices
	Tier Tier `json:"tier"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Engine configuration
	Analysis AnalysisConfig `json:"analysis"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// AnalysisConfig holds the scoring and training parameters.
type AnalysisConfig struct {
	// Anomaly detection
	Contamination   float64 `json:"contamination"`   // isolation forest outlier fraction
	ZScoreThreshold float64 `json:"zscoreThreshold"` // amount z-score rule
	EarlyHourMins   int     `json:"earlyHourMins"`   // before this = anomalous (minutes)
	LateHourMins    int     `json:"lateHourMins"`    // after this = anomalous (minutes)

	// Profiling
	HighRiskLocations []string `json:"highRiskLocations"`

	// Training
	TestSize    float64 `json:"testSize"` // held-out fraction
	RandomSeed  int64   `json:"randomSeed"`
	CVFolds     int     `json:"cvFolds"`
	ModelDir    string  `json:"modelDir"`
	TrainOnRun  bool    `json:"trainOnRun"`  // retrain during analysis if no saved model
	SaveOnTrain bool    `json:"saveOnTrain"` // persist the selected model package
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled"`
	ServiceName  string `json:"serviceName"`
	ExporterType string `json:"exporterType"`
	Endpoint     string `json:"endpoint"`
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity is the single-node tier with SQLite + channels.
	TierCommunity Tier = "community"

	// TierPro is the tier with PostgreSQL + NATS + Redis.
	TierPro Tier = "pro"
)

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 60,
		},
		Tier: TierCommunity,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./harrier.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Analysis: DefaultAnalysisConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "harrier",
		},
	}
}

// DefaultAnalysisConfig returns the reference engine parameters.
func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		Contamination:     0.1,
		ZScoreThreshold:   3.0,
		EarlyHourMins:     300,  // 05:00
		LateHourMins:      1320, // 22:00
		HighRiskLocations: []string{"AE-DXB", "HK-HKG"},
		TestSize:          0.3,
		RandomSeed:        42,
		CVFolds:           5,
		ModelDir:          "models",
		TrainOnRun:        true,
		SaveOnTrain:       true,
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "harrier",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
