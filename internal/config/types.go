// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package config holds the YAML-driven configuration for the controller
// (motherctl) and rover binaries.
package config

// LoggingInfo contém configurações de logging comuns a controller e rover.
type LoggingInfo struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"` // opcional: grava em stdout + arquivo
}

func (l *LoggingInfo) setDefaults() {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "json"
	}
}
