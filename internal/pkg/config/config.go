package config

import "time"

type Config struct {
	LifeSmartCfg     *LifeSmartConfig
	MqttCfg          *MqttConfig
	DatabaseURL      string
	MigrationsFolder string
	LogLevel         string
}

type LifeSmartConfig struct {
	BaseURL      string
	PushURL      string
	Username     string
	Password     string
	AppKey       string
	AppToken     string
	Exclude      []string
	PollInterval time.Duration
}

type MqttConfig struct {
	Host     string
	Username string
	Password string
}
