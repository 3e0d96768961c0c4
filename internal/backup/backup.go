// Package backup exports firewall rule collections to JSON files and
// restores them, so an operator can snapshot a project's rules before a
// destructive change.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dean-jl/fwallow/internal/firewall"
)

// RuleSet is the on-disk snapshot format.
type RuleSet struct {
	Project    string          `json:"project"`
	Provider   string          `json:"provider"`
	Version    string          `json:"version"`
	ExportedAt time.Time       `json:"exported_at"`
	Rules      []firewall.Rule `json:"rules"`
}

const formatVersion = "1.0"

// Export snapshots every rule in the project scope.
func Export(ctx context.Context, api firewall.RuleAPI, project, provider string) (*RuleSet, error) {
	rules, err := api.ListRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("retrieving rules for backup: %w", err)
	}
	return &RuleSet{
		Project:    project,
		Provider:   provider,
		Version:    formatVersion,
		ExportedAt: time.Now().UTC(),
		Rules:      rules,
	}, nil
}

// DefaultFilename returns a timestamped filename for a project snapshot.
func DefaultFilename(project string) string {
	return fmt.Sprintf("%s-rules-%s.json", project, time.Now().UTC().Format("20060102-150405"))
}

// Write marshals the rule set to path as indented JSON. The path must not
// escape upward through "..".
func (rs *RuleSet) Write(path string) error {
	if err := validatePath(path); err != nil {
		return err
	}
	data, err := json.MarshalIndent(rs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling rule set: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing backup file %s: %w", path, err)
	}
	return nil
}

// Load reads a rule set previously written by Write.
func Load(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading backup file %s: %w", path, err)
	}
	var rs RuleSet
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("parsing backup file %s: %w", path, err)
	}
	if rs.Version == "" || len(rs.Rules) == 0 && rs.Project == "" {
		return nil, fmt.Errorf("backup file %s is not a rule set snapshot", path)
	}
	return &rs, nil
}

// Restore re-inserts every rule from the snapshot. Remote rule ids are not
// preserved; the service assigns new ones. Returns the number restored.
func Restore(ctx context.Context, api firewall.RuleAPI, rs *RuleSet) (int, error) {
	restored := 0
	for _, rule := range rs.Rules {
		if _, err := api.InsertRule(ctx, rule.RuleValue); err != nil {
			return restored, fmt.Errorf("restoring rule %q: %w", rule.Name, err)
		}
		restored++
	}
	return restored, nil
}

func validatePath(path string) error {
	cleaned := filepath.Clean(path)
	if strings.Contains(cleaned, "..") {
		return fmt.Errorf("backup path %q must not contain path traversal", path)
	}
	return nil
}
