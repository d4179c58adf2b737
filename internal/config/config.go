package config

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddr string
	LogLevel string

	// remote question-answering backend
	BackendURL         string
	FeedbackBackendURL string
	FeedbackTimeout    time.Duration
	DefaultCompanyID   string
	DefaultLanguage    string

	DBDSN         string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// rabbitMQ
	RabbitURL         string
	RabbitQueue       string
	WorkerConcurrency int

	// messenger platform
	MessengerVerifyToken string
	MessengerAppSecret   string
	MessengerPageToken   string
	MessengerCompanyID   string
	MessengerGraphURL    string

	// terminal client
	RelayURL     string
	StoreBackend string
	StorePath    string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("log_level", "info")

	v.SetDefault("backend_url", "http://localhost:8000")
	v.SetDefault("feedback_backend_url", "")
	v.SetDefault("feedback_timeout", "5s")
	v.SetDefault("default_company_id", "d6738c8d-7e4d-4406-a298-8a640620879c")
	v.SetDefault("default_language", "français")

	// DSN demo：
	// app:apppass@tcp(127.0.0.1:3306)/ask_widget?charset=utf8mb4&parseTime=true&loc=Local
	v.SetDefault("db_dsn", "file:ask_widget.db?_pragma=busy_timeout(5000)")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)

	v.SetDefault("rabbit_url", "")
	v.SetDefault("rabbit_queue", "messenger_jobs")
	v.SetDefault("worker_concurrency", 2)

	v.SetDefault("messenger_verify_token", "")
	v.SetDefault("messenger_app_secret", "")
	v.SetDefault("messenger_page_token", "")
	v.SetDefault("messenger_company_id", "b28cfe88-807b-49de-97f7-fd974cfd0d17")
	v.SetDefault("messenger_graph_url", "https://graph.facebook.com/v20.0")

	v.SetDefault("relay_url", "http://localhost:8080")
	v.SetDefault("store_backend", "sqlite")
	v.SetDefault("store_path", "chat_client.db")
}

// Load reads defaults, then an optional config.yaml, then environment
// variables (upper-cased keys, e.g. BACKEND_URL).
func Load() Config {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Printf("[config] read config file failed, using env and defaults: %v", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// older deployments name the backends NEXT_PUBLIC_API_URL / RAG_BACKEND_URL
	_ = v.BindEnv("backend_url", "BACKEND_URL", "NEXT_PUBLIC_API_URL")
	_ = v.BindEnv("feedback_backend_url", "FEEDBACK_BACKEND_URL", "RAG_BACKEND_URL")

	return fromViper(v)
}

func fromViper(v *viper.Viper) Config {
	feedbackURL := strings.TrimSpace(v.GetString("feedback_backend_url"))
	if feedbackURL == "" {
		feedbackURL = v.GetString("backend_url")
	}

	timeout := v.GetDuration("feedback_timeout")
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	concurrency := v.GetInt("worker_concurrency")
	if concurrency <= 0 {
		concurrency = 2
	}
	if concurrency > 50 {
		concurrency = 50
	}

	return Config{
		HTTPAddr: v.GetString("http_addr"),
		LogLevel: v.GetString("log_level"),

		BackendURL:         strings.TrimRight(v.GetString("backend_url"), "/"),
		FeedbackBackendURL: strings.TrimRight(feedbackURL, "/"),
		FeedbackTimeout:    timeout,
		DefaultCompanyID:   v.GetString("default_company_id"),
		DefaultLanguage:    v.GetString("default_language"),

		DBDSN:         v.GetString("db_dsn"),
		RedisAddr:     v.GetString("redis_addr"),
		RedisPassword: v.GetString("redis_password"),
		RedisDB:       v.GetInt("redis_db"),

		RabbitURL:         v.GetString("rabbit_url"),
		RabbitQueue:       v.GetString("rabbit_queue"),
		WorkerConcurrency: concurrency,

		MessengerVerifyToken: v.GetString("messenger_verify_token"),
		MessengerAppSecret:   v.GetString("messenger_app_secret"),
		MessengerPageToken:   v.GetString("messenger_page_token"),
		MessengerCompanyID:   v.GetString("messenger_company_id"),
		MessengerGraphURL:    strings.TrimRight(v.GetString("messenger_graph_url"), "/"),

		RelayURL:     strings.TrimRight(v.GetString("relay_url"), "/"),
		StoreBackend: strings.ToLower(v.GetString("store_backend")),
		StorePath:    v.GetString("store_path"),
	}
}
