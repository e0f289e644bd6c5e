package configuration

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"crosspost/infrastructure/logger"

	"github.com/spf13/viper"
)

type Config struct {
	Database    Database    `json:"database"`
	App         App         `json:"app"`
	Pubsub      Pubsub      `json:"pubsub"`
	ServiceBus  ServiceBus  `json:"serviceBus"`
	RedisClient RedisClient `json:"redisClient"`
	Logger      Logger      `json:"logger"`
	Media       Media       `json:"media"`
	Dispatcher  Dispatcher  `json:"dispatcher"`
	Simulation  Simulation  `json:"simulation"`
	Platforms   Platforms   `json:"platforms"`
}

type App struct {
	Port        int    `json:"port"`
	SecretKey   string `json:"secretKey"`
	TLSEnabled  bool   `json:"tlsEnabled"`
	TLSCertFile string `json:"tlsCertFile"`
	TLSKeyFile  string `json:"tlsKeyFile"`
}

type Database struct {
	Psql  Db `json:"psql"`
	Mssql Db `json:"mssql"`
	Mongo Db `json:"mongo"`
}

type Db struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
}

type Pubsub struct {
	ProjectID  string `json:"projectID"`
	AuditTopic string `json:"auditTopic"`
}

type ServiceBus struct {
	Namespace  string `json:"namespace"`
	AuditQueue string `json:"auditQueue"`
}

type RedisClient struct {
	Host         string `json:"host"`
	Port         string `json:"port"`
	Password     string `json:"password"`
	DatabaseName string `json:"databaseName"`
	Username     string `json:"username"`
}

type Logger struct {
	Format string `json:"format"`
}

// Media configures the public URL base under which uploaded files are
// mirrored by the external storage collaborator.
type Media struct {
	PublicBaseURL string `json:"publicBaseURL"`
}

// Dispatcher bounds the job executor.
type Dispatcher struct {
	Workers        int `json:"workers"`
	QueueSize      int `json:"queueSize"`
	MaxAttempts    int `json:"maxAttempts"`
	BackoffSeconds int `json:"backoffSeconds"`
	// Hard wall-clock timeouts per protocol class, in seconds.
	DirectTimeoutSeconds  int `json:"directTimeoutSeconds"`
	PollingTimeoutSeconds int `json:"pollingTimeoutSeconds"`
}

// Simulation configures the sentinel-token development seam.
type Simulation struct {
	SentinelToken string `json:"sentinelToken"`
	DelayMillis   int    `json:"delayMillis"`
}

// Platforms holds per-platform API configuration injected into each adapter
// at construction. Base URLs are overridable so tests can point adapters at
// local servers.
type Platforms struct {
	YouTube   YouTube        `json:"youtube"`
	Instagram PlatformClient `json:"instagram"`
	TikTok    PlatformClient `json:"tiktok"`
	Facebook  PlatformClient `json:"facebook"`
	X         PlatformClient `json:"x"`
	Snapchat  PlatformClient `json:"snapchat"`
	Pinterest PlatformClient `json:"pinterest"`
}

type YouTube struct {
	ClientID     string   `json:"clientId"`
	ClientSecret string   `json:"clientSecret"`
	RedirectURI  string   `json:"redirectURI"`
	Scopes       []string `json:"scopes"`
}

type PlatformClient struct {
	APIBaseURL    string `json:"apiBaseURL"`
	UploadBaseURL string `json:"uploadBaseURL"`
	TokenURL      string `json:"tokenURL"`
	ClientID      string `json:"clientId"`
	ClientSecret  string `json:"clientSecret"`
	ChunkSize     int64  `json:"chunkSize"`
}

var C Config

func init() {
	LoadConfig()
	initApp(&C)
	initDatabase(&C)
	initDispatcher(&C)
	initPlatforms(&C)
}

func LoadConfig() {
	name := getConfig()
	viper.SetConfigName(name)
	viper.SetConfigType("json")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")
	viper.AddConfigPath("../../")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logger.GetLogger().Warn("Config file not found")
		} else {
			logger.GetLogger().WithField("error", err).Error("Error reading config file")
		}
	}

	logger.GetLogger().WithField("config", name).Info("Config set up successfully")
	if err := viper.Unmarshal(&C); err != nil {
		logger.GetLogger().WithField("error", err).Error("Viper unable to decode into struct")
	}
}

func getConfig() string {
	name := "config"
	env := os.Getenv("ENV")
	if env != "" {
		name = fmt.Sprintf("%s-%s", name, env)
	}
	return name
}

func initDatabase(C *Config) {
	if C.Database.Psql.Name == "" {
		C.Database.Psql.Name = os.Getenv("DB_NAME")
	}
	if C.Database.Psql.Host == "" {
		C.Database.Psql.Host = os.Getenv("DB_HOST")
	}
	if C.Database.Psql.User == "" {
		C.Database.Psql.User = os.Getenv("DB_USER")
	}
	if C.Database.Psql.Password == "" {
		C.Database.Psql.Password = os.Getenv("DB_PASSWORD")
	}
	if C.Database.Psql.Port == "" {
		C.Database.Psql.Port = os.Getenv("DB_PORT")
	}

	// Optional MSSQL config via environment (Azure SQL in production)
	if v := os.Getenv("MSSQL_DB_NAME"); v != "" && C.Database.Mssql.Name == "" {
		C.Database.Mssql.Name = v
	}
	if v := os.Getenv("MSSQL_HOST"); v != "" && C.Database.Mssql.Host == "" {
		C.Database.Mssql.Host = v
	}
	if v := os.Getenv("MSSQL_USER"); v != "" && C.Database.Mssql.User == "" {
		C.Database.Mssql.User = v
	}
	if v := os.Getenv("MSSQL_PASSWORD"); v != "" && C.Database.Mssql.Password == "" {
		C.Database.Mssql.Password = v
	}
	if C.Database.Mssql.Port == "" {
		if v := os.Getenv("MSSQL_PORT"); v != "" {
			C.Database.Mssql.Port = v
		} else {
			C.Database.Mssql.Port = "1433"
		}
	}
}

func initApp(C *Config) {
	if v := os.Getenv("SECRET_KEY"); v != "" {
		C.App.SecretKey = v
	}
	// Port resolution order (env overrides config): APP_PORT -> PORT -> config -> default 10010
	if v := os.Getenv("APP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	} else if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			C.App.Port = p
		}
	}
	if C.App.Port == 0 {
		C.App.Port = 10010
	}
	if v := os.Getenv("TLS_ENABLED"); v != "" {
		switch v {
		case "1", "true", "TRUE", "True":
			C.App.TLSEnabled = true
		case "0", "false", "FALSE", "False":
			C.App.TLSEnabled = false
		}
	}
	if C.App.TLSCertFile == "" {
		C.App.TLSCertFile = os.Getenv("TLS_CERT_FILE")
	}
	if C.App.TLSKeyFile == "" {
		C.App.TLSKeyFile = os.Getenv("TLS_KEY_FILE")
	}
	if C.App.SecretKey == "" {
		logger.GetLogger().Warn("App.SecretKey not set; JWT authentication will fail. Provide SECRET_KEY via environment.")
	}
}

func initDispatcher(C *Config) {
	if C.Dispatcher.Workers == 0 {
		C.Dispatcher.Workers = 4
	}
	if C.Dispatcher.QueueSize == 0 {
		C.Dispatcher.QueueSize = 256
	}
	if C.Dispatcher.MaxAttempts == 0 {
		C.Dispatcher.MaxAttempts = 3
	}
	if C.Dispatcher.BackoffSeconds == 0 {
		C.Dispatcher.BackoffSeconds = 2
	}
	if C.Dispatcher.DirectTimeoutSeconds == 0 {
		C.Dispatcher.DirectTimeoutSeconds = 120
	}
	if C.Dispatcher.PollingTimeoutSeconds == 0 {
		C.Dispatcher.PollingTimeoutSeconds = 1800
	}
}

func initPlatforms(C *Config) {
	defaults := map[string]struct {
		cfg      *PlatformClient
		api      string
		upload   string
		tokenURL string
	}{
		"instagram": {&C.Platforms.Instagram, "https://graph.facebook.com/v19.0", "", "https://graph.facebook.com/v19.0/oauth/access_token"},
		"tiktok":    {&C.Platforms.TikTok, "https://open.tiktokapis.com/v2", "https://open-upload.tiktokapis.com", "https://open.tiktokapis.com/v2/oauth/token/"},
		"facebook":  {&C.Platforms.Facebook, "https://graph.facebook.com/v19.0", "", "https://graph.facebook.com/v19.0/oauth/access_token"},
		"x":         {&C.Platforms.X, "https://api.twitter.com/2", "https://upload.twitter.com/1.1", "https://api.twitter.com/2/oauth2/token"},
		"snapchat":  {&C.Platforms.Snapchat, "https://adsapi.snapchat.com/v1", "", "https://accounts.snapchat.com/login/oauth2/access_token"},
		"pinterest": {&C.Platforms.Pinterest, "https://api.pinterest.com/v5", "", "https://api.pinterest.com/v5/oauth/token"},
	}
	for _, d := range defaults {
		if d.cfg.APIBaseURL == "" {
			d.cfg.APIBaseURL = d.api
		}
		if d.cfg.UploadBaseURL == "" {
			d.cfg.UploadBaseURL = d.upload
		}
		if d.cfg.TokenURL == "" {
			d.cfg.TokenURL = d.tokenURL
		}
	}
	// 8 MB chunks for the resumable upload protocols unless configured
	if C.Platforms.TikTok.ChunkSize == 0 {
		C.Platforms.TikTok.ChunkSize = 8 * 1024 * 1024
	}
	if C.Platforms.X.ChunkSize == 0 {
		C.Platforms.X.ChunkSize = 5 * 1024 * 1024
	}
	if C.Simulation.DelayMillis == 0 {
		C.Simulation.DelayMillis = 2000
	}
	if C.Media.PublicBaseURL == "" {
		if v := os.Getenv("MEDIA_PUBLIC_BASE_URL"); v != "" {
			C.Media.PublicBaseURL = v
		}
	}
}

// DirectTimeout is the hard timeout for single-call publish protocols.
func (d Dispatcher) DirectTimeout() time.Duration {
	return time.Duration(d.DirectTimeoutSeconds) * time.Second
}

// PollingTimeout is the hard timeout for protocols with server-side
// processing polls or chunked uploads.
func (d Dispatcher) PollingTimeout() time.Duration {
	return time.Duration(d.PollingTimeoutSeconds) * time.Second
}
