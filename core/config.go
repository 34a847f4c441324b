package core

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type (
	Config struct {
		AppName      string
		Env          string // DEV (local; default), TEST, QA, PROD
		Build        string
		Debug        bool
		TestMode     bool
		WorkDir      string
		RollbarToken string
		LogLevel     string

		Server   ServerConfig
		Database DatabaseConfig
		Redis    RedisConfig
		RabbitMQ RabbitMQConfig
		Schedule ScheduleConfig
	}

	ServerConfig struct {
		Host            string
		Port            int
		RequestTimeout  time.Duration
		ShutdownTimeout time.Duration
		DisableReqLogs  bool
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		AutoMigrate   bool
	}

	// RedisConfig enables the distributed teacher lock when Address is set.
	RedisConfig struct {
		Address  string
		Password string
		DB       int
		LockTTL  time.Duration
	}

	// RabbitMQConfig enables schedule event publishing when URL is set.
	RabbitMQConfig struct {
		URL      string
		Exchange string
	}

	ScheduleConfig struct {
		Weekdays []string
	}
)

func (c ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("appName", "Horarios")
	v.SetDefault("build", "dev")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("rollbarToken", "")
	v.SetDefault("logLevel", "debug")

	v.SetDefault("serverHost", "")
	v.SetDefault("serverPort", 8080)
	v.SetDefault("serverRequestTimeout", 10*time.Second)
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("serverDisableReqLogs", false)

	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", 5432)
	v.SetDefault("dbName", "horarios")
	v.SetDefault("dbUser", "horarios")
	v.SetDefault("dbPassword", "")
	v.SetDefault("dbAdminUser", "")
	v.SetDefault("dbAdminPassword", "")
	v.SetDefault("dbDisableTLS", true)
	v.SetDefault("dbAutoMigrate", false)

	v.SetDefault("redisAddress", "")
	v.SetDefault("redisPassword", "")
	v.SetDefault("redisDB", 0)
	v.SetDefault("redisLockTTL", 15*time.Second)

	v.SetDefault("rabbitmqURL", "")
	v.SetDefault("rabbitmqExchange", "horarios.events")

	v.SetDefault("scheduleWeekdays", "Lunes,Martes,Miércoles,Jueves,Viernes")
}

// NewConfig loads the configuration for the environment named by $ENV.
// Values come from (highest priority first): $<ENV>_<KEY> variables,
// config/.env.<env> under workDir, then defaults.
func NewConfig(workDir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "checking %s", dotEnvPath)
	}
	v.AutomaticEnv()

	return &Config{
		AppName:      v.GetString("appName"),
		Env:          env,
		Build:        v.GetString("build"),
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		WorkDir:      workDir,
		RollbarToken: v.GetString("rollbarToken"),
		LogLevel:     v.GetString("logLevel"),
		Server: ServerConfig{
			Host:            v.GetString("serverHost"),
			Port:            v.GetInt("serverPort"),
			RequestTimeout:  v.GetDuration("serverRequestTimeout"),
			ShutdownTimeout: v.GetDuration("serverShutdownTimeout"),
			DisableReqLogs:  v.GetBool("serverDisableReqLogs"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("dbEngine"),
			Host:          v.GetString("dbHost"),
			Port:          v.GetInt("dbPort"),
			Name:          v.GetString("dbName"),
			User:          v.GetString("dbUser"),
			Password:      v.GetString("dbPassword"),
			AdminUser:     v.GetString("dbAdminUser"),
			AdminPassword: v.GetString("dbAdminPassword"),
			DisableTLS:    v.GetBool("dbDisableTLS"),
			AutoMigrate:   v.GetBool("dbAutoMigrate"),
		},
		Redis: RedisConfig{
			Address:  v.GetString("redisAddress"),
			Password: v.GetString("redisPassword"),
			DB:       v.GetInt("redisDB"),
			LockTTL:  v.GetDuration("redisLockTTL"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      v.GetString("rabbitmqURL"),
			Exchange: v.GetString("rabbitmqExchange"),
		},
		Schedule: ScheduleConfig{
			Weekdays: splitList(v.GetString("scheduleWeekdays")),
		},
	}, nil
}

func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = CleanString(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
