package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// APITimeout is the upper bound for every backend call.
const APITimeout = 10 * time.Second

type (
	apiConfig struct {
		BaseURL string
		Timeout time.Duration
	}

	firebaseConfig struct {
		APIKey            string
		AuthDomain        string
		ProjectID         string
		StorageBucket     string
		MessagingSenderID string
		AppID             string
		CredentialsFile   string
		IdentityURL       string
		OTPTimeout        time.Duration
	}

	storageConfig struct {
		Driver        string // memory | file | redis | postgres
		Path          string
		Namespace     string
		RedisAddr     string
		RedisPassword string
		RedisDB       int
		DatabaseURL   string
	}

	serverConfig struct {
		Host            string
		DebugHost       string
		ShutdownTimeout time.Duration
	}

	sessionConfig struct {
		RefreshLeeway time.Duration
	}

	notificationsConfig struct {
		PollInterval time.Duration
	}

	Config struct {
		Env             string // DEV (local; default), TEST, QA, PROD
		Build           string
		Debug           bool
		TestMode        bool
		AppName         string
		SecretKey       string
		DefaultSchoolID string
		RollbarToken    string
		WorkDir         string

		API           apiConfig
		Firebase      firebaseConfig
		Storage       storageConfig
		Server        serverConfig
		Session       sessionConfig
		Notifications notificationsConfig
	}
)

// NewConfig loads the configuration from defaults, the optional `config/.env.<env>` file and the environment.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Thuto")
	v.SetDefault("secretKey", "v8#t2u!q7k0z$4m9e1x&p6r3w5y(c)bn")
	v.SetDefault("defaultSchoolId", "1")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("api_base_url", "http://localhost:8080/api")
	v.SetDefault("firebase_api_key", "")
	v.SetDefault("firebase_auth_domain", "")
	v.SetDefault("firebase_project_id", "")
	v.SetDefault("firebase_storage_bucket", "")
	v.SetDefault("firebase_messaging_sender_id", "")
	v.SetDefault("firebase_app_id", "")
	v.SetDefault("firebase_credentials_file", "")
	v.SetDefault("firebase_identity_url", "https://identitytoolkit.googleapis.com/v1")
	v.SetDefault("firebase_otp_timeout", 5*time.Minute)
	v.SetDefault("storage_driver", "memory")
	v.SetDefault("storage_path", filepath.Join(os.TempDir(), "thuto", "session.json"))
	v.SetDefault("storage_namespace", "default")
	v.SetDefault("storage_redis_addr", "localhost:6379")
	v.SetDefault("storage_redis_password", "")
	v.SetDefault("storage_redis_db", 0)
	v.SetDefault("storage_database_url", "")
	v.SetDefault("server_host", "localhost:3000")
	v.SetDefault("server_debug_host", "localhost:4000")
	v.SetDefault("server_shutdown_timeout", 5*time.Second)
	v.SetDefault("session_refresh_leeway", 2*time.Minute)
	v.SetDefault("notifications_poll_interval", 30*time.Second)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	// the API base URL override is read without the env prefix too
	baseURL := v.GetString("api_base_url")
	if override := os.Getenv("API_BASE_URL"); override != "" {
		baseURL = override
	}

	return &Config{
		Env:             env,
		Build:           v.GetString("build"),
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("testMode"),
		AppName:         v.GetString("appName"),
		SecretKey:       v.GetString("secretKey"),
		DefaultSchoolID: v.GetString("defaultSchoolId"),
		RollbarToken:    v.GetString("rollbarToken"),
		WorkDir:         wd,
		API: apiConfig{
			BaseURL: strings.TrimRight(baseURL, "/"),
			Timeout: APITimeout,
		},
		Firebase: firebaseConfig{
			APIKey:            v.GetString("firebase_api_key"),
			AuthDomain:        v.GetString("firebase_auth_domain"),
			ProjectID:         v.GetString("firebase_project_id"),
			StorageBucket:     v.GetString("firebase_storage_bucket"),
			MessagingSenderID: v.GetString("firebase_messaging_sender_id"),
			AppID:             v.GetString("firebase_app_id"),
			CredentialsFile:   v.GetString("firebase_credentials_file"),
			IdentityURL:       strings.TrimRight(v.GetString("firebase_identity_url"), "/"),
			OTPTimeout:        v.GetDuration("firebase_otp_timeout"),
		},
		Storage: storageConfig{
			Driver:        strings.ToLower(v.GetString("storage_driver")),
			Path:          v.GetString("storage_path"),
			Namespace:     v.GetString("storage_namespace"),
			RedisAddr:     v.GetString("storage_redis_addr"),
			RedisPassword: v.GetString("storage_redis_password"),
			RedisDB:       v.GetInt("storage_redis_db"),
			DatabaseURL:   v.GetString("storage_database_url"),
		},
		Server: serverConfig{
			Host:            v.GetString("server_host"),
			DebugHost:       v.GetString("server_debug_host"),
			ShutdownTimeout: v.GetDuration("server_shutdown_timeout"),
		},
		Session: sessionConfig{
			RefreshLeeway: v.GetDuration("session_refresh_leeway"),
		},
		Notifications: notificationsConfig{
			PollInterval: v.GetDuration("notifications_poll_interval"),
		},
	}
}
