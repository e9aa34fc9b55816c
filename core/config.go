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

// Conf is the application configuration. It is set once by InitConf
// (main, CLIs and test helpers) before any other package is used.
var Conf *Config

type (
	ServerConfig struct {
		Host                      string
		Port                      string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	OTPConfig struct {
		SignupTimeout  time.Duration
		ResetTimeout   time.Duration
		ResendCooldown time.Duration
		MaxAttempts    int
	}

	Config struct {
		Debug    bool
		TestMode bool
		Env      string
		Build    string
		WorkDir  string

		AppName          string
		SecretKey        []byte
		FrontendBaseURL  string
		DefaultFromEmail mail.Address

		DatabaseURL     string
		SendgridAPIKey  string
		RollbarToken    string
		RecaptchaSecret string

		Server ServerConfig
		OTP    OTPConfig
	}
)

func (c *Config) Address() string { return c.Server.Host + ":" + c.Server.Port }

// InitConf loads the configuration from defaults, an optional
// config/.env.<env> file and ENV-prefixed environment variables.
func InitConf() {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Mwelekeo")
	v.SetDefault("secretKey", "y0w*3&t@1e#5m$ngu8^vu(o!p9a-z+k4q7d2jc6xh%sfb_rlwi")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("serverHost", "")
	v.SetDefault("serverPort", "8080")
	v.SetDefault("shutdownTimeout", 20*time.Second)
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("otpSignupTimeout", 10*time.Minute)
	v.SetDefault("otpResetTimeout", 10*time.Minute)
	v.SetDefault("otpResendCooldown", time.Minute)
	v.SetDefault("otpMaxAttempts", 5)
	v.SetDefault("databaseURL", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("recaptchaSecret", "")

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	Conf = &Config{
		Debug:    v.GetBool("debug"),
		TestMode: v.GetBool("testMode"),
		Env:      env,
		Build:    v.GetString("build"),
		WorkDir:  wd,

		AppName:          v.GetString("appName"),
		SecretKey:        []byte(v.GetString("secretKey")),
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		DefaultFromEmail: mail.Address{Name: v.GetString("appName"), Address: v.GetString("defaultFromEmail")},

		DatabaseURL:     v.GetString("databaseURL"),
		SendgridAPIKey:  v.GetString("sendgridApiKey"),
		RollbarToken:    v.GetString("rollbarToken"),
		RecaptchaSecret: v.GetString("recaptchaSecret"),

		Server: ServerConfig{
			Host:                      v.GetString("serverHost"),
			Port:                      v.GetString("serverPort"),
			ShutdownTimeout:           v.GetDuration("shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwtRefreshExpirationDelta"),
		},
		OTP: OTPConfig{
			SignupTimeout:  v.GetDuration("otpSignupTimeout"),
			ResetTimeout:   v.GetDuration("otpResetTimeout"),
			ResendCooldown: v.GetDuration("otpResendCooldown"),
			MaxAttempts:    v.GetInt("otpMaxAttempts"),
		},
	}
}
