// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env"`
	StorageConnectionString string `yaml:"storage_connection_string"`
	MigrationsPath          string `yaml:"migrations_path" env-default:"./migrations"`
	RedisConnection         `yaml:"redis_connection"`
	RabbitConnection        `yaml:"rabbit_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	Panel                   `yaml:"panel"`
	Gateways                `yaml:"gateways"`
	Referral                `yaml:"referral"`
	Trial                   `yaml:"trial"`
	Broadcast               `yaml:"broadcast"`
	Telegram                `yaml:"telegram"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
	CacheTTL     time.Duration `yaml:"cache_ttl" env-default:"5m"`
}

// RabbitConnection структура для настройки подключения к RabbitMQ
type RabbitConnection struct {
	RabbitMQURL        string        `yaml:"rabbitmq_url"`
	RabbitMQMaxRetries int           `yaml:"rabbitmq_max_retries" env-default:"10"`
	RabbitMQRetryDelay time.Duration `yaml:"rabbitmq_retry_delay" env-default:"3s"`
}

// JWTToken структура для работы с jwt-токеном админского API
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
}

// Panel структура для настройки клиента VPN-панели
type Panel struct {
	PanelBaseURL string        `yaml:"panel_base_url"`
	PanelToken   string        `yaml:"panel_token"`
	PanelTimeout time.Duration `yaml:"panel_timeout" env-default:"10s"`
}

// Gateways хранит реквизиты платёжных шлюзов
type Gateways struct {
	YookassaShopID    string `yaml:"yookassa_shop_id"`
	YookassaSecretKey string `yaml:"yookassa_secret_key"`
	CryptomusMerchant string `yaml:"cryptomus_merchant"`
	CryptomusAPIKey   string `yaml:"cryptomus_api_key"`
	PlategaMerchant   string `yaml:"platega_merchant"`
	PlategaSecretKey  string `yaml:"platega_secret_key"`
	ReturnURL         string `yaml:"return_url"`
	WebhookSecret     string `yaml:"webhook_secret"`
}

// Referral задаёт системные проценты трёх уровней реферальной программы
type Referral struct {
	Level1Percent int `yaml:"level1_percent" env-default:"10"`
	Level2Percent int `yaml:"level2_percent" env-default:"5"`
	Level3Percent int `yaml:"level3_percent" env-default:"2"`
}

// Trial описывает параметры пробного доступа
type Trial struct {
	TrialDurationDays int    `yaml:"trial_duration_days" env-default:"3"`
	TrialTrafficBytes int64  `yaml:"trial_traffic_bytes"`
	TrialDeviceLimit  int    `yaml:"trial_device_limit" env-default:"1"`
	TrialSquadUUID    string `yaml:"trial_squad_uuid"`
	TrialStrategy     string `yaml:"trial_strategy" env-default:"NO_RESET"`
}

// Broadcast настраивает планировщик авторассылок
type Broadcast struct {
	BroadcastCron string `yaml:"broadcast_cron" env-default:"0 * * * *"`
}

// Telegram хранит токен бота для отправителя уведомлений
type Telegram struct {
	BotToken string `yaml:"bot_token"`
}

// MustLoad функция для загрузки конфига, путь берётся из CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}
