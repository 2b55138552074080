// Package config loads the bridge configuration: YAML file, environment
// overrides for broker credentials, and the record left by portal mode.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v2"

	"github.com/cyberglitchlabs/owon-xdm-remote/internal/provision"
	"github.com/cyberglitchlabs/owon-xdm-remote/internal/scpi"
)

const defaultRecordPath = "mqtt.dat"

type Config struct {
	Serial    SerialConfig    `yaml:"serial"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Dialect   string          `yaml:"dialect"`
	GPIO      GPIOConfig      `yaml:"gpio"`
	Wireless  WirelessConfig  `yaml:"wireless"`
	Provision ProvisionConfig `yaml:"provision"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type SerialConfig struct {
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
}

type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	Port        int    `yaml:"port"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// GPIOConfig names the pins by sysfs number. Values <= 0 disable the
// feature: no LED indicator, activity probe instead of the RX-sense line.
type GPIOConfig struct {
	LEDPin     int `yaml:"led_pin"`
	RXSensePin int `yaml:"rx_sense_pin"`
}

type WirelessConfig struct {
	Interface string `yaml:"interface"`
}

type ProvisionConfig struct {
	Record string `yaml:"record"`
	Listen string `yaml:"listen"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Load reads path and layers the other sources on top: environment
// variables override file values, the provision record fills whatever is
// still empty, then defaults. A missing file is fine; a freshly provisioned
// box may carry nothing but its record.
func Load(path string) (*Config, error) {
	var cfg Config
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.applyRecord(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("MQTT_BROKER"); v != "" {
		c.MQTT.Broker = v
	}
	if v := os.Getenv("MQTT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MQTT_PORT %q: %w", v, err)
		}
		c.MQTT.Port = port
	}
	if v := os.Getenv("MQTT_USERNAME"); v != "" {
		c.MQTT.Username = v
	}
	if v := os.Getenv("MQTT_PASSWORD"); v != "" {
		c.MQTT.Password = v
	}
	return nil
}

func (c *Config) applyRecord() error {
	path := c.Provision.Record
	if path == "" {
		path = defaultRecordPath
	}
	rec, err := provision.Load(path)
	if err != nil {
		return fmt.Errorf("provision record: %w", err)
	}
	if c.MQTT.Broker == "" {
		c.MQTT.Broker = rec.Broker
	}
	if c.MQTT.Port == 0 && rec.Port != 0 {
		c.MQTT.Port = rec.Port
	}
	if c.MQTT.Username == "" {
		c.MQTT.Username = rec.Username
	}
	if c.MQTT.Password == "" {
		c.MQTT.Password = rec.Password
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Serial.Baud == 0 {
		c.Serial.Baud = 115200
	}
	if c.MQTT.Port == 0 {
		c.MQTT.Port = 1883
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "owon-xdm-remote"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "xdm1041"
	}
	if c.Dialect == "" {
		c.Dialect = scpi.DefaultDialect
	}
	if c.GPIO.LEDPin == 0 {
		c.GPIO.LEDPin = -1
	}
	if c.GPIO.RXSensePin == 0 {
		c.GPIO.RXSensePin = -1
	}
	if c.Provision.Record == "" {
		c.Provision.Record = defaultRecordPath
	}
	if c.Provision.Listen == "" {
		c.Provision.Listen = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = ":9100"
	}
}

// Validate checks everything bridge mode needs. Portal mode skips it; a
// fresh box has no broker yet.
func (c *Config) Validate() error {
	if c.Serial.Device == "" {
		return fmt.Errorf("serial.device is required")
	}
	if c.Serial.Baud <= 0 {
		return fmt.Errorf("serial.baud must be positive")
	}
	if c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt broker is not set (config, MQTT_BROKER, or provision record)")
	}
	if c.MQTT.Port < 1 || c.MQTT.Port > 65535 {
		return fmt.Errorf("mqtt.port %d out of range", c.MQTT.Port)
	}
	if _, err := scpi.Lookup(c.Dialect); err != nil {
		return err
	}
	return nil
}
