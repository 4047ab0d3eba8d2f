package config

import "github.com/spf13/viper"

type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`
	ControlKey string `mapstructure:"CONTROL_KEY"`

	ReportURL       string `mapstructure:"REPORT_URL"`
	ReportToken     string `mapstructure:"REPORT_TOKEN"`
	ReportTokenFile string `mapstructure:"REPORT_TOKEN_FILE"`
	Platform        string `mapstructure:"PLATFORM"`

	ORSBaseURL string `mapstructure:"ORS_BASE_URL"`
	ORSAPIKey  string `mapstructure:"ORS_API_KEY"`

	PostgresURL   string `mapstructure:"POSTGRES_URL"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	AMQPURL       string `mapstructure:"AMQP_URL"`

	ProfileFile  string `mapstructure:"PROFILE_FILE"`
	ProfileName  string `mapstructure:"PROFILE_NAME"`
	SimWaypoints string `mapstructure:"SIM_WAYPOINTS"`
}

func Load() Config {
	viper.AutomaticEnv()
	viper.SetDefault("SERVER_PORT", ":8090")
	viper.SetDefault("CONTROL_KEY", "")
	viper.SetDefault("REPORT_URL", "http://localhost:8080/api/driver/location")
	viper.SetDefault("REPORT_TOKEN", "")
	viper.SetDefault("REPORT_TOKEN_FILE", "")
	viper.SetDefault("PLATFORM", "driver-app")
	viper.SetDefault("ORS_BASE_URL", "")
	viper.SetDefault("ORS_API_KEY", "")
	viper.SetDefault("POSTGRES_URL", "")
	viper.SetDefault("REDIS_ADDR", "")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("AMQP_URL", "")
	viper.SetDefault("PROFILE_FILE", "")
	viper.SetDefault("PROFILE_NAME", "standard")
	viper.SetDefault("SIM_WAYPOINTS", "41.0082,28.9784;41.0255,29.0156;41.0430,29.0046")

	var cfg Config
	_ = viper.Unmarshal(&cfg)
	return cfg
}
