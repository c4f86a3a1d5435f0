// Package config provides the CSE configuration types and their YAML
// loading. All values have working defaults so a CSE can be constructed
// without a configuration file.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// CSEConfig identifies the local CSE and its feature switches.
type CSEConfig struct {
	// ID is the CSE-id (csi), conventionally with a leading slash.
	ID string `json:"id" yaml:"id"`
	// ResourceID is the resource id of the CSEBase.
	ResourceID string `json:"resourceId" yaml:"resourceId"`
	// ResourceName is the resource name of the CSEBase, the first
	// segment of every structured path.
	ResourceName string `json:"resourceName" yaml:"resourceName"`
	// ServiceProviderID is the M2M service provider id.
	ServiceProviderID string `json:"serviceProviderId" yaml:"serviceProviderId"`
	// AdminOriginator bypasses access control.
	AdminOriginator string `json:"adminOriginator" yaml:"adminOriginator"`
	// EnableTransit allows forwarding requests to remote CSEs.
	EnableTransit bool `json:"enableTransit" yaml:"enableTransit"`
}

// LoggingConfig selects log level, format and an optional log file that is
// written in addition to stderr.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
	File   string `json:"file" yaml:"file"`
}

// EventsConfig sizes the lifecycle event queue.
type EventsConfig struct {
	QueueSize int `json:"queueSize" yaml:"queueSize"`
}

// Config is the full CSE configuration.
type Config struct {
	CSE     CSEConfig     `json:"cse" yaml:"cse"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Events  EventsConfig  `json:"events" yaml:"events"`
}

// Default returns a configuration with working defaults.
func Default() *Config {
	return &Config{
		CSE: CSEConfig{
			ID:                "/id-in",
			ResourceID:        "id-in",
			ResourceName:      "cse-in",
			ServiceProviderID: "acme.example.com",
			AdminOriginator:   "CAdmin",
			EnableTransit:     true,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Events:  EventsConfig{QueueSize: 256},
	}
}

// Load reads a YAML configuration file over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for the mistakes a file can introduce.
func (c *Config) Validate() error {
	if c.CSE.ID == "" || c.CSE.ID == "/" {
		return fmt.Errorf("cse.id must be set")
	}
	if !strings.HasPrefix(c.CSE.ID, "/") {
		c.CSE.ID = "/" + c.CSE.ID
	}
	if c.CSE.ResourceID == "" {
		return fmt.Errorf("cse.resourceId must be set")
	}
	if c.CSE.ResourceName == "" {
		return fmt.Errorf("cse.resourceName must be set")
	}
	if strings.Contains(c.CSE.ResourceName, "/") {
		return fmt.Errorf("cse.resourceName must not contain '/'")
	}
	if c.CSE.AdminOriginator == "" {
		return fmt.Errorf("cse.adminOriginator must be set")
	}
	if c.Events.QueueSize <= 0 {
		c.Events.QueueSize = 256
	}
	return nil
}
