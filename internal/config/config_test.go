package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dean-jl/fwallow/internal/firewall"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
provider: vercel
projects:
  - name: site
    project_id: prj_abc
    token: "tok_1"
    hostname: www.example.com
    mode: deny
  - name: staging
    project_id: prj_def
    token: "tok_2"
    mode: bypass
    capacity: 50
dry_run: true
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if len(cfg.Projects) != 2 {
		t.Fatalf("Expected 2 projects, got %d", len(cfg.Projects))
	}
	if cfg.Projects[0].Name != "site" || cfg.Projects[0].Hostname != "www.example.com" {
		t.Errorf("Unexpected first project: %+v", cfg.Projects[0])
	}
	if cfg.Projects[0].Capacity != firewall.MaxRuleAddresses {
		t.Errorf("Expected default capacity %d, got %d", firewall.MaxRuleAddresses, cfg.Projects[0].Capacity)
	}
	if cfg.Projects[1].Capacity != 50 {
		t.Errorf("Expected per-project capacity 50, got %d", cfg.Projects[1].Capacity)
	}
	if cfg.Projects[0].DryRun == nil || !*cfg.Projects[0].DryRun {
		t.Errorf("Expected dry_run to propagate to projects")
	}
}

func TestLoadConfigEnvToken(t *testing.T) {
	t.Setenv(EnvToken, "env_token")
	path := writeConfig(t, `
projects:
  - name: site
    project_id: prj_abc
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Projects[0].Token != "env_token" {
		t.Errorf("Expected token from env, got %q", cfg.Projects[0].Token)
	}
	if cfg.Provider != "vercel" {
		t.Errorf("Expected default provider vercel, got %q", cfg.Provider)
	}
}

func TestLoadConfigEnvCapacity(t *testing.T) {
	t.Setenv(EnvCapacity, "30")
	path := writeConfig(t, `
projects:
  - name: site
    project_id: prj_abc
    token: tok
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Projects[0].Capacity != 30 {
		t.Errorf("Expected capacity 30 from env, got %d", cfg.Projects[0].Capacity)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "No projects",
			content: "provider: vercel\n",
		},
		{
			name: "Missing project_id",
			content: `
projects:
  - name: site
    token: tok
`,
		},
		{
			name: "Missing token",
			content: `
projects:
  - name: site
    project_id: prj_abc
`,
		},
		{
			name: "Bad mode",
			content: `
projects:
  - name: site
    project_id: prj_abc
    token: tok
    mode: allow
`,
		},
		{
			name: "Capacity over service limit",
			content: `
projects:
  - name: site
    project_id: prj_abc
    token: tok
    capacity: 100
`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(EnvToken, "")
			t.Setenv(EnvMode, "")
			if _, err := LoadConfig(writeConfig(t, tc.content)); err == nil {
				t.Errorf("Expected validation error")
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("Expected error for missing file")
	}
}
