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

// RoverConfig representa a configuração completa do binário rover.
type RoverConfig struct {
	Rover           RoverInfo       `yaml:"rover"`
	Controller      ControllerAddr  `yaml:"controller"`
	Telemetry       TelemetryConfig `yaml:"telemetry"`
	MissionExecutor ExecutorConfig  `yaml:"mission_executor"`
	Logging         LoggingInfo     `yaml:"logging"`
}

// RoverInfo identifica o rover perante o controller. Id é o campo de 3
// caracteres transmitido no cabeçalho MissionLink.
type RoverInfo struct {
	ID string `yaml:"id"`
}

// ControllerAddr contém o endereço UDP/TCP do motherctl.
type ControllerAddr struct {
	MissionLinkAddress     string `yaml:"missionlink_address"`
	TelemetryStreamAddress string `yaml:"telemetrystream_address"`
}

// TelemetryConfig controla o agendador de telemetria contínua.
type TelemetryConfig struct {
	Interval          time.Duration `yaml:"interval"`            // default: 10s
	TempDir           string        `yaml:"temp_dir"`            // default: os.TempDir()
	TLS               TLSCfg        `yaml:"tls"`                 // mutual TLS toward the controller's TelemetryStream listener
	DSCP              string        `yaml:"dscp"`                // DSCP code point name applied to the TS TCP socket
	BandwidthLimitBps int64         `yaml:"bandwidth_limit_bps"` // 0 disables throttling
}

// ExecutorConfig controla o executor de missão (fora de escopo em detalhe).
type ExecutorConfig struct {
	ProgressReportRetries int           `yaml:"progress_report_retries"` // default: 3
	ProgressReportDelay   time.Duration `yaml:"progress_report_delay"`   // default: 2s
}

// LoadRoverConfig lê e valida o arquivo YAML de configuração do rover.
func LoadRoverConfig(path string) (*RoverConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rover config: %w", err)
	}

	var cfg RoverConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing rover config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating rover config: %w", err)
	}

	return &cfg, nil
}

func (c *RoverConfig) validate() error {
	if c.Rover.ID == "" {
		return fmt.Errorf("rover.id is required")
	}
	if len(c.Rover.ID) > 3 {
		return fmt.Errorf("rover.id must be at most 3 characters to fit the MissionLink header slot, got %q", c.Rover.ID)
	}
	if c.Controller.MissionLinkAddress == "" {
		return fmt.Errorf("controller.missionlink_address is required")
	}
	if c.Controller.TelemetryStreamAddress == "" {
		return fmt.Errorf("controller.telemetrystream_address is required")
	}

	if c.Telemetry.Interval <= 0 {
		c.Telemetry.Interval = 10 * time.Second
	}
	if c.Telemetry.TempDir == "" {
		c.Telemetry.TempDir = os.TempDir()
	}

	if c.MissionExecutor.ProgressReportRetries <= 0 {
		c.MissionExecutor.ProgressReportRetries = 3
	}
	if c.MissionExecutor.ProgressReportDelay <= 0 {
		c.MissionExecutor.ProgressReportDelay = 2 * time.Second
	}

	c.Logging.setDefaults()

	return nil
}
