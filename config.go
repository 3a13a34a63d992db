package main

import (
	"attendd/dispatch"
	"attendd/eventpipe"
	"attendd/indicator"
	"attendd/mqtt"
	"attendd/reader"
)

// Config is the main configuration structure for attendd.
type Config struct {
	// MQTT announcer settings (optional)
	MQTT mqtt.Config `yaml:"mqtt"`

	// Reader configuration
	Reader reader.Config `yaml:"reader"`

	// Operator command pipe
	Pipe eventpipe.Config `yaml:"pipe"`

	// Indicator configuration
	Indicator indicator.Config `yaml:"indicator"`

	// Dispatcher tuning
	Dispatch dispatch.Config `yaml:"dispatch"`

	// General settings
	ClientID      string `yaml:"client_id"`
	DBPath        string `yaml:"db_path"`
	RetentionDays int    `yaml:"retention_days"` // 0 disables automatic cleanup
}
