// Конфигурация сервисов: .env, необязательный YAML файл, переменные окружения (в порядке приоритета)
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Env      string   `yaml:"env"`
	HTTP     HTTP     `yaml:"http"`
	GRPC     GRPC     `yaml:"grpc"`
	Database Database `yaml:"database"`
	Cache    Cache    `yaml:"cache"`
	Mongo    Mongo    `yaml:"mongo"`
	Rabbit   Rabbit   `yaml:"rabbit"`
	Kafka    Kafka    `yaml:"kafka"`
	Fraud    Fraud    `yaml:"fraud"`
	Ledger   Ledger   `yaml:"ledger"`
	Auth     Auth     `yaml:"auth"`
	Otel     Otel     `yaml:"otel"`
}

type HTTP struct {
	Port         string        `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
}

type GRPC struct {
	Port string `yaml:"port"`
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Database struct {
	Driver     string `yaml:"driver"`
	Host       string `yaml:"host"`
	Port       string `yaml:"port"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	Name       string `yaml:"name"`
	MaxConns   int32  `yaml:"maxConns"`
	SQLitePath string `yaml:"sqlitePath"`
}

func (d Database) PostgresDSN() (string, error) {
	if d.Host == "" {
		return "", fmt.Errorf("env POINTS_DB is not set")
	}
	if d.Port == "" {
		return "", fmt.Errorf("env POINTS_DB_PORT is not set")
	}
	if d.User == "" {
		return "", fmt.Errorf("env POINTS_DB_USER is not set")
	}
	if d.Password == "" {
		return "", fmt.Errorf("env POINTS_DB_PASSWORD is not set")
	}
	if d.Name == "" {
		return "", fmt.Errorf("env POINTS_DB_BASE is not set")
	}
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.Name, nil
}

type Cache struct {
	URL      string        `yaml:"url"`
	User     string        `yaml:"user"`
	Password string        `yaml:"password"`
	TTL      time.Duration `yaml:"ttl"`
}

func (c Cache) Enabled() bool { return c.URL != "" }

type Mongo struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

func (m Mongo) Enabled() bool { return m.URI != "" }

type Rabbit struct {
	URL      string `yaml:"url"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	VHost    string `yaml:"vhost"`
	Workers  int    `yaml:"workers"`
}

func (r Rabbit) AMQPURL() (string, error) {
	if r.URL == "" {
		return "", fmt.Errorf("env RABBIT_URL is not set")
	}
	if r.Port == "" {
		return "", fmt.Errorf("env RABBIT_PORT is not set")
	}
	if r.User == "" {
		return "", fmt.Errorf("env RABBIT_USER is not set")
	}
	if r.Password == "" {
		return "", fmt.Errorf("env RABBIT_PASSWORD is not set")
	}
	return "amqp://" + r.User + ":" + r.Password + "@" + r.URL + ":" + r.Port + "/" + r.VHost, nil
}

type Kafka struct {
	URL     string `yaml:"url"`
	Port    string `yaml:"port"`
	Topic   string `yaml:"topic"`
	Group   string `yaml:"group"`
	Workers int    `yaml:"workers"`
}

func (k Kafka) Broker() (string, error) {
	if k.URL == "" {
		return "", fmt.Errorf("env KAFKA_ISSUE_URL is not set")
	}
	if k.Port == "" {
		return "", fmt.Errorf("env KAFKA_ISSUE_PORT is not set")
	}
	return k.URL + ":" + k.Port, nil
}

// Пороги проверок на мошенничество, общие для всех брендов
type Fraud struct {
	WindowMinutes        int             `yaml:"windowMinutes"`
	MaxMintsPerWindow    int             `yaml:"maxMintsPerWindow"`
	LargeAmountThreshold decimal.Decimal `yaml:"largeAmountThreshold"`
}

type Ledger struct {
	MaxMetadataBytes int  `yaml:"maxMetadataBytes"`
	StrictBalance    bool `yaml:"strictBalance"`
}

const (
	AuthJWT    = "jwt"
	AuthStatic = "static"
)

type Auth struct {
	Mode      string `yaml:"mode"`
	JWTSecret string `yaml:"jwtSecret"`
	JWTIssuer string `yaml:"jwtIssuer"`
	DevUserID string `yaml:"devUserId"`
	DevAdmin  bool     `yaml:"devAdmin"`
	DevBrands []string `yaml:"devBrands"`
}

type Otel struct {
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"serviceName"`
}

func Default() *Config {
	return &Config{
		Env:      "prod",
		HTTP:     HTTP{Port: "8080", ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second},
		GRPC:     GRPC{Port: "9090"},
		Database: Database{Driver: DriverPostgres, SQLitePath: "rewards.db"},
		Cache:    Cache{TTL: 5 * time.Minute},
		Mongo:    Mongo{Database: "rewardsDB"},
		Rabbit:   Rabbit{VHost: "points", Workers: 5},
		Kafka:    Kafka{Topic: "issuance", Group: "issuance_loyalty", Workers: 5},
		Fraud: Fraud{
			WindowMinutes:        60,
			MaxMintsPerWindow:    10,
			LargeAmountThreshold: decimal.NewFromInt(10000),
		},
		Ledger: Ledger{MaxMetadataBytes: 8 * 1024},
		Auth:   Auth{Mode: AuthJWT},
		Otel:   Otel{ServiceName: "rewards"},
	}
}

// Load читает конфигурацию. Отсутствие .env не ошибка
func Load() (*Config, error) {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg := Default()
	if path := os.Getenv("REWARDS_CONFIG_FILE"); path != "" {
		if err = cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err = cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err = yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() (err error) {
	setString(&c.Env, "APP_ENV")
	setString(&c.HTTP.Port, "POINTS_HTTP_PORT")
	setString(&c.GRPC.Port, "POINTS_GRPC_PORT")

	setString(&c.Database.Driver, "POINTS_DB_DRIVER")
	setString(&c.Database.Host, "POINTS_DB")
	setString(&c.Database.Port, "POINTS_DB_PORT")
	setString(&c.Database.User, "POINTS_DB_USER")
	setString(&c.Database.Password, "POINTS_DB_PASSWORD")
	setString(&c.Database.Name, "POINTS_DB_BASE")
	setString(&c.Database.SQLitePath, "POINTS_SQLITE_PATH")
	var maxConns int
	if maxConns, err = getEnvInt("POINTS_DB_MAX_CONNS", int(c.Database.MaxConns)); err != nil {
		return err
	}
	c.Database.MaxConns = int32(maxConns)

	setString(&c.Cache.URL, "POINTS_CACHE_URL")
	setString(&c.Cache.User, "POINTS_CACHE_USER")
	setString(&c.Cache.Password, "POINTS_CACHE_PWD")
	if c.Cache.TTL, err = getEnvDuration("POINTS_CACHE_TTL", c.Cache.TTL); err != nil {
		return err
	}

	setString(&c.Mongo.URI, "FRAUD_MONGO")
	setString(&c.Mongo.Database, "FRAUD_MONGO_DB")

	setString(&c.Rabbit.URL, "RABBIT_URL")
	setString(&c.Rabbit.Port, "RABBIT_PORT")
	setString(&c.Rabbit.User, "RABBIT_USER")
	setString(&c.Rabbit.Password, "RABBIT_PASSWORD")
	setString(&c.Rabbit.VHost, "RABBIT_VHOST")
	if c.Rabbit.Workers, err = getEnvInt("POINTS_REDEEM_COUNT", c.Rabbit.Workers); err != nil {
		return err
	}

	setString(&c.Kafka.URL, "KAFKA_ISSUE_URL")
	setString(&c.Kafka.Port, "KAFKA_ISSUE_PORT")
	setString(&c.Kafka.Topic, "KAFKA_ISSUE_TOPIC")
	setString(&c.Kafka.Group, "KAFKA_ISSUE_GROUP")
	if c.Kafka.Workers, err = getEnvInt("POINTS_ISSUE_COUNT", c.Kafka.Workers); err != nil {
		return err
	}

	if c.Fraud.WindowMinutes, err = getEnvInt("FRAUD_WINDOW_MINUTES", c.Fraud.WindowMinutes); err != nil {
		return err
	}
	if c.Fraud.MaxMintsPerWindow, err = getEnvInt("FRAUD_MAX_MINTS", c.Fraud.MaxMintsPerWindow); err != nil {
		return err
	}
	if v := os.Getenv("FRAUD_LARGE_AMOUNT"); v != "" {
		if c.Fraud.LargeAmountThreshold, err = decimal.NewFromString(v); err != nil {
			return fmt.Errorf("env FRAUD_LARGE_AMOUNT: %w", err)
		}
	}

	if c.Ledger.MaxMetadataBytes, err = getEnvInt("POINTS_METADATA_MAX_BYTES", c.Ledger.MaxMetadataBytes); err != nil {
		return err
	}
	if c.Ledger.StrictBalance, err = getEnvBool("POINTS_STRICT_BALANCE", c.Ledger.StrictBalance); err != nil {
		return err
	}

	setString(&c.Auth.Mode, "AUTH_MODE")
	setString(&c.Auth.JWTSecret, "AUTH_JWT_SECRET")
	setString(&c.Auth.JWTIssuer, "AUTH_JWT_ISSUER")
	setString(&c.Auth.DevUserID, "AUTH_DEV_USER")
	if c.Auth.DevAdmin, err = getEnvBool("AUTH_DEV_ADMIN", c.Auth.DevAdmin); err != nil {
		return err
	}
	if v := os.Getenv("AUTH_DEV_BRANDS"); v != "" {
		c.Auth.DevBrands = splitList(v)
	}

	setString(&c.Otel.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&c.Otel.ServiceName, "OTEL_SERVICE_NAME")
	return nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Fraud.WindowMinutes <= 0 {
		return fmt.Errorf("fraud window must be positive")
	}
	if c.Fraud.MaxMintsPerWindow < 0 {
		return fmt.Errorf("fraud max mints must not be negative")
	}
	if !c.Fraud.LargeAmountThreshold.IsPositive() {
		return fmt.Errorf("fraud large amount threshold must be positive")
	}
	if c.Ledger.MaxMetadataBytes <= 0 {
		return fmt.Errorf("metadata limit must be positive")
	}
	switch c.Auth.Mode {
	case AuthJWT:
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("env AUTH_JWT_SECRET is not set")
		}
	case AuthStatic:
		if c.Auth.DevUserID == "" {
			return fmt.Errorf("env AUTH_DEV_USER is not set")
		}
	default:
		return fmt.Errorf("unknown auth mode %q", c.Auth.Mode)
	}
	return nil
}

func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

// Логгер: в dev режиме человекочитаемый
func (c *Config) NewLogger() (*zap.Logger, error) {
	if c.IsDev() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// список через запятую, пустые элементы пропускаются
func splitList(v string) []string {
	var list []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("env %s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("env %s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("env %s: %w", key, err)
	}
	return d, nil
}
