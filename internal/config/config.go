package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Tracing   TracingConfig `mapstructure:"tracing"`
	Redis     RedisConfig
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Quiz      QuizConfig      `mapstructure:"quiz"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	Locks     LocksConfig     `mapstructure:"locks"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate     bool `mapstructure:"-"`
	MigrateOnly      bool `mapstructure:"-"`
	RebuildAnalytics bool `mapstructure:"-"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Driver    string
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool   `mapstructure:"parse_time"`
	Path      string // sqlite 文件路径
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	ServiceName       string `mapstructure:"service_name"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// QuizConfig 控制会话创建、计时与超时评分策略
type QuizConfig struct {
	SecondsPerQuestion   int    `mapstructure:"seconds_per_question"`
	DefaultQuestionCount int    `mapstructure:"default_question_count"`
	MaxQuestionCount     int    `mapstructure:"max_question_count"`
	TimeoutScoring       string `mapstructure:"timeout_scoring"` // attempted | total
	AbandonAfterHours    int    `mapstructure:"abandon_after_hours"`
	SweepIntervalSeconds int    `mapstructure:"sweep_interval_seconds"`
}

type AnalyticsConfig struct {
	BatchSize    int `mapstructure:"batch_size"`
	BatchPauseMS int `mapstructure:"batch_pause_ms"`
	Concurrency  int `mapstructure:"concurrency"`
}

type JobsConfig struct {
	Backend   string `mapstructure:"backend"` // memory | asynq
	Workers   int    `mapstructure:"workers"`
	QueueSize int    `mapstructure:"queue_size"`
	MaxRetry  int    `mapstructure:"max_retry"`
}

type LocksConfig struct {
	Backend    string `mapstructure:"backend"` // memory | redis
	TTLSeconds int    `mapstructure:"ttl_seconds"`
}

const (
	TimeoutScoringAttempted = "attempted"
	TimeoutScoringTotal     = "total"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parse_time", true)
	v.SetDefault("database.path", "quiz_engine.db")
	v.SetDefault("jwt.expire_hours", 72)
	v.SetDefault("tracing.service_name", "quiz-engine")
	v.SetDefault("rate_limit.max_requests", 6000)
	v.SetDefault("rate_limit.window_minutes", 1)

	v.SetDefault("quiz.seconds_per_question", 90)
	v.SetDefault("quiz.default_question_count", 10)
	v.SetDefault("quiz.max_question_count", 200)
	v.SetDefault("quiz.timeout_scoring", TimeoutScoringAttempted)
	v.SetDefault("quiz.abandon_after_hours", 24*7)
	v.SetDefault("quiz.sweep_interval_seconds", 60)

	v.SetDefault("analytics.batch_size", 50)
	v.SetDefault("analytics.batch_pause_ms", 100)
	v.SetDefault("analytics.concurrency", 4)

	v.SetDefault("jobs.backend", "memory")
	v.SetDefault("jobs.workers", 4)
	v.SetDefault("jobs.queue_size", 256)
	v.SetDefault("jobs.max_retry", 3)

	v.SetDefault("locks.backend", "memory")
	v.SetDefault("locks.ttl_seconds", 10)
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("QUIZ_ENGINE")
	v.AutomaticEnv()
	setDefaults(v)

	// Database
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	v.BindEnv("server.mode", "SERVER_MODE")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	// Jobs / locks
	v.BindEnv("jobs.backend", "JOBS_BACKEND")
	v.BindEnv("locks.backend", "LOCKS_BACKEND")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验跨字段约束
func (c *Config) Validate() error {
	if c.Server.Mode == "release" && len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(c.JWT.Secret))
	}
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Quiz.TimeoutScoring {
	case TimeoutScoringAttempted, TimeoutScoringTotal:
	default:
		return fmt.Errorf("quiz.timeout_scoring must be %q or %q, got %q", TimeoutScoringAttempted, TimeoutScoringTotal, c.Quiz.TimeoutScoring)
	}
	if c.Quiz.SecondsPerQuestion <= 0 {
		return fmt.Errorf("quiz.seconds_per_question must be positive")
	}
	if c.Analytics.BatchSize <= 0 {
		return fmt.Errorf("analytics.batch_size must be positive")
	}
	if c.Jobs.Backend == "asynq" && !c.Redis.Enabled {
		return fmt.Errorf("jobs.backend=asynq requires redis.enabled")
	}
	if c.Locks.Backend == "redis" && !c.Redis.Enabled {
		return fmt.Errorf("locks.backend=redis requires redis.enabled")
	}
	return nil
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}
