package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"

	"github.com/linht/gate-remote/radio"
	"github.com/linht/gate-remote/rfm69"
	"github.com/linht/gate-remote/transmit"
)

const envPrefix = "GATE_"

// GateConfig describes the remote being imitated and how often it is sent
type GateConfig struct {
	Carrier     uint32        `yaml:"carrier"`
	Bitrate     uint32        `yaml:"bitrate"`
	OutputPower uint8         `yaml:"output_power"`
	Repeats     uint32        `yaml:"repeats"`
	Delay       time.Duration `yaml:"inter_packet_delay"`
	Attempts    uint32        `yaml:"attempts"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         string        `yaml:"port"`
	Plugins      []string      `yaml:"plugins"`
	DryRun       bool          `yaml:"dry_run"`
	Command      []string      `yaml:"command"`
	Timeout      time.Duration `yaml:"timeout"`
	PasswordHash string        `yaml:"password_hash"`
}

type Config struct {
	Radio  radio.Config `yaml:"radio"`
	Gate   GateConfig   `yaml:"gate"`
	Server ServerConfig `yaml:"server"`
}

func defaultConfig() Config {
	remote := rfm69.GarageRemote()
	return Config{
		Radio: radio.DefaultConfig(),
		Gate: GateConfig{
			Carrier:     remote.CarrierHz,
			Bitrate:     remote.BitrateBps,
			OutputPower: remote.OutputPower,
			Repeats:     transmit.DefaultRepeats,
			Delay:       transmit.DefaultDelay,
			Attempts:    transmit.DefaultAttempts,
		},
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    "80",
			Plugins: []string{"gate"},
			Timeout: 30 * time.Second,
		},
	}
}

// yamlParser lets koanf read YAML through yaml.v3
type yamlParser struct{}

func (yamlParser) Unmarshal(b []byte) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if err := yaml.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (yamlParser) Marshal(m map[string]interface{}) ([]byte, error) {
	return yaml.Marshal(m)
}

// configPath returns the explicit path or the first config file found
func configPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	paths := []string{"/etc/gate-remote/config.yaml", "./config.yaml"}
	for _, path := range paths {
		if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
			slog.Info("Found config file", "path", path)
			return path
		}
	}
	slog.Info("Config file not found, using defaults")
	return ""
}

// envKey maps GATE_RADIO_SPI_DEVICE to radio.spi_device
func envKey(k, v string) (string, any) {
	key := strings.ToLower(strings.TrimPrefix(k, envPrefix))
	return strings.Replace(key, "_", ".", 1), v
}

// loadConfig layers the config file and GATE_* environment variables over
// the built-in defaults
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yamlParser{}); err != nil {
			return cfg, fmt.Errorf("could not read config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        envPrefix,
		TransformFunc: envKey,
	}), nil); err != nil {
		return cfg, fmt.Errorf("could not read environment: %w", err)
	}

	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
