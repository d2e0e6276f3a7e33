package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const defaultPath = "./configs/config.local.yaml"

type HTTP struct {
	Host            string
	Port            int
	ReadTimeoutSec  int
	WriteTimeoutSec int
	IdleTimeoutSec  int
}

type CORS struct {
	AllowOrigins []string
}

type App struct {
	Name string
	Env  string
	HTTP HTTP
	CORS CORS
}

type Rotate struct {
	Enable     bool
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type Log struct {
	Level  string
	JSON   bool
	Rotate Rotate
}

type Session struct {
	TTLHours         int
	SweepIntervalMin int
}

type Redis struct {
	Addr        string `mapstructure:"addr"`
	Password    string `mapstructure:"password"`
	DB          int    `mapstructure:"db"`
	StatsTTLSec int    `mapstructure:"statsTTLSec"`
}

type DB struct {
	Driver             string
	DSN                string
	Username           string
	Password           string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	AutoMigrate        bool
	LogLevel           string
}

type Limits struct {
	RPS               float64
	Burst             int
	PerIPRPS          float64
	PerIPBurst        int
	Concurrency       int64
	MaxBodyMB         int64
	RequestTimeoutSec int
}

type Seed struct {
	Demo bool
}

type Freshservice struct {
	Domain     string
	APIKey     string `mapstructure:"apiKey"`
	BaseURL    string `mapstructure:"baseURL"`
	TimeoutSec int
	RPS        float64 // 出站限速，0 不限
}

type Config struct {
	App          App
	Log          Log
	DB           DB
	Redis        Redis `mapstructure:"redis"`
	Session      Session
	Limits       Limits
	Seed         Seed
	Freshservice Freshservice
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "invoicesys")
	v.SetDefault("app.env", "local")
	v.SetDefault("app.http.host", "0.0.0.0")
	v.SetDefault("app.http.port", 3001)
	v.SetDefault("app.http.readTimeoutSec", 5)
	v.SetDefault("app.http.writeTimeoutSec", 15)
	v.SetDefault("app.http.idleTimeoutSec", 60)
	v.SetDefault("app.cors.allowOrigins", []string{"http://localhost:5173"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.rotate.filename", "logs/invoicesys.log")
	v.SetDefault("log.rotate.maxSizeMB", 100)
	v.SetDefault("log.rotate.maxBackups", 7)
	v.SetDefault("log.rotate.maxAgeDays", 30)

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "data/invoicesys.db")
	v.SetDefault("db.maxOpenConns", 20)
	v.SetDefault("db.maxIdleConns", 5)
	v.SetDefault("db.connMaxLifetimeMin", 30)
	v.SetDefault("db.autoMigrate", true)
	v.SetDefault("db.logLevel", "warn")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.statsTTLSec", 30)

	v.SetDefault("session.ttlHours", 7*24)
	v.SetDefault("session.sweepIntervalMin", 10)

	v.SetDefault("limits.rps", 200)
	v.SetDefault("limits.burst", 400)
	v.SetDefault("limits.perIPRPS", 20)
	v.SetDefault("limits.perIPBurst", 40)
	v.SetDefault("limits.concurrency", 300)
	v.SetDefault("limits.maxBodyMB", 16)
	v.SetDefault("limits.requestTimeoutSec", 10)

	v.SetDefault("seed.demo", false)

	v.SetDefault("freshservice.domain", "")
	v.SetDefault("freshservice.apiKey", "")
	v.SetDefault("freshservice.baseURL", "")
	v.SetDefault("freshservice.timeoutSec", 15)
	v.SetDefault("freshservice.rps", 2)
}

// Load 读取 YAML + APP_ 前缀环境变量。默认路径不存在时只用默认值。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	explicit := path != ""
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		explicit = path != ""
	}
	if path == "" {
		path = defaultPath
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var pe *os.PathError
		if explicit || !errors.As(err, &pe) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

// MustLoad 启动阶段使用，失败直接退出
func MustLoad(path string) *Config {
	c, err := Load(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return c
}
