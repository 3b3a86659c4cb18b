package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host               string
		Addr               string
		DebugHost          string
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
		AllowedOrigins     []string
	}

	DatabaseConfig struct {
		Engine     string // postgres | mongo | memory
		Host       string
		Port       string
		Name       string
		User       string
		Password   string
		DisableTLS bool
		MongoURI   string
		Timeout    time.Duration
	}

	PaymentBackendConfig struct {
		URL      string
		Timeout  time.Duration
		Currency string
	}

	GatewayConfig struct {
		KeyID        string // public, embeddable
		MerchantName string
	}

	SMTPConfig struct {
		Host     string
		Port     int
		User     string
		Password string
	}

	EventsConfig struct {
		Driver   string // amqp | kafka | none
		URL      string
		Exchange string
		Brokers  []string
		Topic    string
	}

	Config struct {
		Env             string
		Build           string
		AppName         string
		Debug           bool
		TestMode        bool
		SecretKey       string
		FrontendBaseURL string
		SupportEmail    string
		RollbarToken    string
		SendgridApiKey  string
		OTLPEndpoint    string

		Server         ServerConfig
		Database       DatabaseConfig
		PaymentBackend PaymentBackendConfig
		Gateway        GatewayConfig
		SMTP           SMTPConfig
		Events         EventsConfig

		defaultFromEmail string
	}
)

func (c *DatabaseConfig) Address() string {
	return c.Host + ":" + c.Port
}

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: "noreply@localhost"}
	}
	if addr.Name == "" {
		addr.Name = c.AppName
	}
	return *addr
}

// NewConfig loads the configuration from defaults, `config/.env.<env>` (if any) and the environment.
// Environment variables are prefixed with the upper-cased env name, e.g. DEV_DATABASE_HOST.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "EduSource")
	v.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "EduSource <noreply@localhost>")
	v.SetDefault("supportEmail", "support@edusource.local")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.allowedOrigins", []string{"http://localhost:3000"})

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "edusource")
	v.SetDefault("database.user", "edusource")
	v.SetDefault("database.password", "")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.mongoURI", "mongodb://localhost:27017")
	v.SetDefault("database.timeout", 5*time.Second)

	v.SetDefault("paymentBackend.url", "http://localhost:3001/api/razorpay")
	v.SetDefault("paymentBackend.timeout", 15*time.Second)
	v.SetDefault("paymentBackend.currency", "INR")

	v.SetDefault("gateway.keyID", "")
	v.SetDefault("gateway.merchantName", "EduSource")

	v.SetDefault("smtp.port", 587)
	v.SetDefault("events.driver", "none")
	v.SetDefault("events.exchange", "edusource.events")
	v.SetDefault("events.topic", "enrollments")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:              env,
		Build:            v.GetString("build"),
		AppName:          v.GetString("appName"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		SecretKey:        v.GetString("secretKey"),
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		SupportEmail:     v.GetString("supportEmail"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		OTLPEndpoint:     v.GetString("otlpEndpoint"),
		defaultFromEmail: v.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Host:               v.GetString("server.host"),
			Addr:               v.GetString("server.addr"),
			DebugHost:          v.GetString("server.debugHost"),
			ShutdownTimeout:    v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta: v.GetDuration("server.jwtExpirationDelta"),
			AllowedOrigins:     v.GetStringSlice("server.allowedOrigins"),
		},
		Database: DatabaseConfig{
			Engine:     v.GetString("database.engine"),
			Host:       v.GetString("database.host"),
			Port:       v.GetString("database.port"),
			Name:       v.GetString("database.name"),
			User:       v.GetString("database.user"),
			Password:   v.GetString("database.password"),
			DisableTLS: v.GetBool("database.disableTLS"),
			MongoURI:   v.GetString("database.mongoURI"),
			Timeout:    v.GetDuration("database.timeout"),
		},
		PaymentBackend: PaymentBackendConfig{
			URL:      v.GetString("paymentBackend.url"),
			Timeout:  v.GetDuration("paymentBackend.timeout"),
			Currency: v.GetString("paymentBackend.currency"),
		},
		Gateway: GatewayConfig{
			KeyID:        v.GetString("gateway.keyID"),
			MerchantName: v.GetString("gateway.merchantName"),
		},
		SMTP: SMTPConfig{
			Host:     v.GetString("smtp.host"),
			Port:     v.GetInt("smtp.port"),
			User:     v.GetString("smtp.user"),
			Password: v.GetString("smtp.password"),
		},
		Events: EventsConfig{
			Driver:   v.GetString("events.driver"),
			URL:      v.GetString("events.url"),
			Exchange: v.GetString("events.exchange"),
			Brokers:  v.GetStringSlice("events.brokers"),
			Topic:    v.GetString("events.topic"),
		},
	}
}
