// Package config предоставляет структуру конфигурации сервиса и функции
// загрузки из файла/переменных окружения с предсказуемым приоритетом.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config: корневая конфигурация сервиса.
// Источники значений (по убыванию приоритета):
//  1. явный путь через флаг --config;
//  2. путь в переменной окружения CONFIG_PATH;
//  3. файл .yaml из рабочей директории;
//  4. переменные окружения (cleanenv).
type Config struct {
	Env      string        `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTPConfig    `yaml:"http"`
	GRPC     GRPCConfig    `yaml:"grpc"`
	Auth     AuthConfig    `yaml:"auth"`
	DB       DBConfig      `yaml:"db"`
	Redis    RedisConfig   `yaml:"redis"`
	Broker   BrokerConfig  `yaml:"broker"`
	Timeouts TimeoutConfig `yaml:"timeouts"`
	Janitor  JanitorConfig `yaml:"janitor"`
}

// TimeoutConfig: таймауты сервиса.
type TimeoutConfig struct {
	Service time.Duration `yaml:"service" env:"SERVICE_TIMEOUT" env-default:"5s"`
}

// HTTPConfig: сетевые настройки публичного REST API.
type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
}

// GRPCConfig описывает сетевые настройки внутреннего gRPC-сервера.
type GRPCConfig struct {
	Host string `yaml:"host" env:"GRPC_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"GRPC_PORT" env-default:"50051"`
}

// Addr возвращает адрес в формате host:port.
func (g HTTPConfig) Addr() string {
	return net.JoinHostPort(g.Host, g.Port)
}

// Addr возвращает адрес в формате host:port.
func (g GRPCConfig) Addr() string {
	return net.JoinHostPort(g.Host, g.Port)
}

// AuthConfig содержит параметры выпуска и валидации токенов.
type AuthConfig struct {
	JWTSecret         string        `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	AccessTokenTTL    time.Duration `yaml:"access_token_ttl" env:"ACCESS_TOKEN_TTL" env-default:"120m"`
	RefreshTokenTTL   time.Duration `yaml:"refresh_token_ttl" env:"REFRESH_TOKEN_TTL" env-default:"720h"`
	RefreshTokenBytes int           `yaml:"refresh_token_bytes" env:"REFRESH_TOKEN_BYTES" env-default:"32"`
	Issuer            string        `yaml:"issuer"   env:"ISSUER" env-default:"storefront-auth"`
	Audience          []string      `yaml:"audience" env:"AUDIENCE" env-default:"storefront"`
}

// DBConfig: настройки подключения к базе данных.
type DBConfig struct {
	DatabaseURL string `yaml:"db_url" env:"DATABASE_URL" env-required:"true"`
}

// RedisConfig: кэш состояния refresh-токенов. Пустой URL отключает кэш.
type RedisConfig struct {
	RedisURL string `yaml:"redis_url" env:"REDIS_URL"`
	Prefix   string `yaml:"prefix" env:"REDIS_PREFIX" env-default:"auth:rt:"`
}

// BrokerConfig: публикация доменных событий в RabbitMQ. Пустой URL отключает публикацию.
type BrokerConfig struct {
	URL      string `yaml:"url" env:"AMQP_URL"`
	Exchange string `yaml:"exchange" env:"AMQP_EXCHANGE" env-default:"storefront.events"`
}

// JanitorConfig: периодическая очистка истёкших refresh-токенов.
type JanitorConfig struct {
	Period    time.Duration `yaml:"period" env:"JANITOR_PERIOD" env-default:"30m"`
	Retention time.Duration `yaml:"retention" env:"JANITOR_RETENTION" env-default:"720h"`
}

const localConfig = "local.yaml"

// MustLoad: обёртка над Load с panic при ошибке.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load загружает конфигурацию. Источник выбирается по приоритету:
// явный путь, CONFIG_PATH, ./local.yaml, только ENV.
// ENV-переменные всегда накладываются поверх значений из файла.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	var cfg Config

	p := resolvePath(path)
	if p == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("%s: no config file and env is incomplete: %w", op, err)
		}

		return &cfg, nil
	}

	if _, err := os.Stat(p); err != nil {
		return nil, fmt.Errorf("%s: config file %q: %w", op, p, err)
	}

	if err := cleanenv.ReadConfig(p, &cfg); err != nil {
		return nil, fmt.Errorf("%s: read %q: %w", op, p, err)
	}

	return &cfg, nil
}

// resolvePath возвращает путь к файлу конфигурации или "" (только ENV).
func resolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}

	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}

	if _, err := os.Stat(localConfig); err == nil {
		return localConfig
	}

	return ""
}
