// Package config provides configuration management for the fwallow tool.
//
// Configuration is loaded from a YAML file with environment variable
// overrides for sensitive data like API tokens. A single file can describe
// multiple projects, each with its own token, rule mode, and capacity.
//
// Environment Variables:
//   - FWALLOW_TOKEN: default API token for projects without an explicit token
//   - FWALLOW_CAPACITY: default per-rule address capacity override
//   - FWALLOW_MODE: default rule mode (deny or bypass)
//
// Example configuration:
//
//	provider: vercel
//	projects:
//	  - name: site
//	    project_id: prj_abc123
//	    hostname: www.example.com
//	    mode: deny
//	logging: true
//	dry_run: true
//	dns:
//	  - name: "Cloudflare"
//	    ip: "1.1.1.1"
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/dean-jl/fwallow/internal/firewall"
	"gopkg.in/yaml.v2"
)

const Version = "1.0.0"

const (
	EnvToken    = "FWALLOW_TOKEN"
	EnvCapacity = "FWALLOW_CAPACITY"
	EnvMode     = "FWALLOW_MODE"
)

type DNSServer struct {
	Name string `yaml:"name"`
	IP   string `yaml:"ip"`
}

type Config struct {
	Provider   string      `yaml:"provider"`
	APIBaseURL string      `yaml:"api_url,omitempty"`
	Projects   []Project   `yaml:"projects"`
	Capacity   int         `yaml:"capacity,omitempty"`
	Logging    bool        `yaml:"logging"`
	DryRun     bool        `yaml:"dry_run"`
	DNSServers []DNSServer `yaml:"dns"`
}

type Project struct {
	Name      string `yaml:"name"`
	ProjectID string `yaml:"project_id"`
	Token     string `yaml:"token,omitempty"`
	Hostname  string `yaml:"hostname,omitempty"`
	RuleName  string `yaml:"rule_name,omitempty"`
	Mode      string `yaml:"mode,omitempty"`
	Capacity  int    `yaml:"capacity,omitempty"`
	Logging   *bool  `yaml:"logging,omitempty"`
	DryRun    *bool  `yaml:"dry_run,omitempty"`
}

// Validate validates the complete configuration.
func (c *Config) Validate() error {
	if len(c.Projects) == 0 {
		return fmt.Errorf("at least one project is required")
	}
	if c.Capacity < 0 || c.Capacity > firewall.MaxRuleAddresses {
		return fmt.Errorf("capacity must be between 1 and %d, got %d", firewall.MaxRuleAddresses, c.Capacity)
	}
	for i, project := range c.Projects {
		if err := project.validate(); err != nil {
			return fmt.Errorf("project[%d]: %w", i, err)
		}
	}
	return nil
}

func (p *Project) validate() error {
	if p.Name == "" {
		return fmt.Errorf("project name is required")
	}
	if p.ProjectID == "" {
		return fmt.Errorf("project_id is required")
	}
	if p.Token == "" {
		return fmt.Errorf("API token is required (set token or %s)", EnvToken)
	}
	if _, err := firewall.ParseMode(p.Mode); err != nil {
		return err
	}
	if p.Capacity < 0 || p.Capacity > firewall.MaxRuleAddresses {
		return fmt.Errorf("capacity must be between 1 and %d, got %d", firewall.MaxRuleAddresses, p.Capacity)
	}
	return nil
}

// LoadConfig loads and validates a configuration file.
//
// After parsing, per-project defaults are filled in: a missing token falls
// back to FWALLOW_TOKEN, a missing mode to FWALLOW_MODE then "deny", and a
// missing capacity to FWALLOW_CAPACITY, the global capacity, then the remote
// service limit.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config file %s: %w", path, err)
	}

	if config.Provider == "" {
		config.Provider = "vercel"
	}
	if config.Capacity == 0 {
		if env := os.Getenv(EnvCapacity); env != "" {
			capacity, err := strconv.Atoi(env)
			if err != nil {
				return nil, fmt.Errorf("invalid %s value %q: %w", EnvCapacity, env, err)
			}
			config.Capacity = capacity
		} else {
			config.Capacity = firewall.MaxRuleAddresses
		}
	}

	for i := range config.Projects {
		p := &config.Projects[i]
		if p.Token == "" {
			p.Token = os.Getenv(EnvToken)
		}
		if p.Mode == "" {
			p.Mode = os.Getenv(EnvMode)
		}
		if p.Capacity == 0 {
			p.Capacity = config.Capacity
		}
		if p.Logging == nil {
			p.Logging = &config.Logging
		}
		if p.DryRun == nil {
			p.DryRun = &config.DryRun
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &config, nil
}
