// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ControllerConfig representa a configuração completa do motherctl.
type ControllerConfig struct {
	MissionLink     MissionLinkListen    `yaml:"missionlink"`
	TelemetryStream TelemetryListen      `yaml:"telemetrystream"`
	Observation     ObservationConfig    `yaml:"observation"`
	Fleet           FleetConfig          `yaml:"fleet"`
	MissionLibrary  MissionLibraryConfig `yaml:"mission_library"`
	Storage         StorageConfig        `yaml:"storage"`
	Logging         LoggingInfo          `yaml:"logging"`
}

// MissionLinkListen contém o endereço UDP do endpoint MissionLink.
type MissionLinkListen struct {
	Listen         string        `yaml:"listen"`          // default: ":8080"
	HandshakeRetry int           `yaml:"handshake_retry"` // default: 5
	DataRetry      int           `yaml:"data_retry"`      // default: 5
	AckTimeout     time.Duration `yaml:"ack_timeout"`     // default: 2s
}

// TelemetryListen contém o endereço TCP do servidor TelemetryStream.
type TelemetryListen struct {
	Listen string `yaml:"listen"` // default: ":8081"
	TLS    TLSCfg `yaml:"tls"`
	DSCP   string `yaml:"dscp"` // DSCP code point name (e.g. "AF31"), empty disables marking
}

// TLSCfg configures mutual TLS for the TelemetryStream TCP transport.
// Leaving CACert empty disables TLS and the listener/dialer falls back to
// plain TCP.
type TLSCfg struct {
	CACert string `yaml:"ca_cert"`
	Cert   string `yaml:"cert"`
	Key    string `yaml:"key"`
}

// Enabled reports whether enough fields are set to build a TLS config.
func (t TLSCfg) Enabled() bool {
	return t.CACert != "" && t.Cert != "" && t.Key != ""
}

// ObservationConfig configura a API HTTP de observação (somente leitura).
type ObservationConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"` // default: "127.0.0.1:8082"
}

// FleetConfig controla a preferência de interface de rede para anunciar aos rovers.
type FleetConfig struct {
	PreferredSubnet string `yaml:"preferred_subnet"` // CIDR, ex: "10.0.1.0/24"
}

// MissionLibraryConfig configura o carregamento de missões de disco.
type MissionLibraryConfig struct {
	SearchPaths []string `yaml:"search_paths"`      // default: ["./missions", "/etc/motherctl/missions", "/var/lib/motherctl/missions"]
	RescanCron  string   `yaml:"rescan_cron"`       // expressão cron robfig (default: "@every 5m")
	// RescanOnRequest: nil (campo ausente no YAML) → default true.
	// &false desativa o rescan-on-miss explicitamente.
	RescanOnRequest *bool `yaml:"rescan_on_request"`
}

// RescanOnRequestEnabled resolve o default de RescanOnRequest.
func (m MissionLibraryConfig) RescanOnRequestEnabled() bool {
	if m.RescanOnRequest == nil {
		return true
	}
	return *m.RescanOnRequest
}

// StorageConfig configura onde a telemetria recebida é persistida.
type StorageConfig struct {
	BaseDir  string      `yaml:"base_dir"` // default: "./telemetry"
	Compress bool        `yaml:"compress"`
	S3       S3MirrorCfg `yaml:"s3"`
}

// S3MirrorCfg configura o espelhamento opcional no S3.
type S3MirrorCfg struct {
	Enabled bool   `yaml:"enabled"`
	Bucket  string `yaml:"bucket"`
	Prefix  string `yaml:"prefix"`
	Region  string `yaml:"region"`
}

// LoadControllerConfig lê e valida o arquivo YAML de configuração do motherctl.
func LoadControllerConfig(path string) (*ControllerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading controller config: %w", err)
	}

	var cfg ControllerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing controller config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating controller config: %w", err)
	}

	return &cfg, nil
}

func (c *ControllerConfig) validate() error {
	if c.MissionLink.Listen == "" {
		c.MissionLink.Listen = ":8080"
	}
	if c.MissionLink.HandshakeRetry <= 0 {
		c.MissionLink.HandshakeRetry = 5
	}
	if c.MissionLink.DataRetry <= 0 {
		c.MissionLink.DataRetry = 5
	}
	if c.MissionLink.AckTimeout <= 0 {
		c.MissionLink.AckTimeout = 2 * time.Second
	}

	if c.TelemetryStream.Listen == "" {
		c.TelemetryStream.Listen = ":8081"
	}

	if c.Observation.Enabled && c.Observation.Listen == "" {
		c.Observation.Listen = "127.0.0.1:8082"
	}

	if len(c.MissionLibrary.SearchPaths) == 0 {
		c.MissionLibrary.SearchPaths = []string{
			"./missions",
			"/etc/motherctl/missions",
			"/var/lib/motherctl/missions",
		}
	}
	if c.MissionLibrary.RescanCron == "" {
		c.MissionLibrary.RescanCron = "@every 5m"
	}

	if c.Storage.BaseDir == "" {
		c.Storage.BaseDir = "./telemetry"
	}
	if c.Storage.S3.Enabled {
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when storage.s3.enabled is true")
		}
	}

	c.Logging.setDefaults()

	return nil
}
