// Package config implements the settings surface spec.md §6 describes
// as an external collaborator: a YAML settings file for general server
// configuration (initial topic levels, per-session defaults), and the
// JSON per-interface access-cap / credential files the spec calls out
// by name ("the surrounding tooling may load JSON files for
// per-interface access caps and authentication credentials; the core
// consumes them through a simple key→value settings interface").
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/scpid/scpid/internal/access"
)

// Settings is the general server configuration, loaded once at
// startup from a YAML file (`--config`).
type Settings struct {
	Bind        string            `yaml:"bind"`
	Telnet      string            `yaml:"telnet"`
	Serial      string            `yaml:"serial"`
	Topics      map[string]string `yaml:"topics"`       // topic name -> minimum publish level
	Preload     []string          `yaml:"preload"`       // module paths loaded before accepting connections
	Postload    []string          `yaml:"postload"`
	ExitModule  string            `yaml:"exit_module"`
	WatchModules bool             `yaml:"watch_modules"`

	AccessCapsPath   string `yaml:"access_caps"`   // path to the per-interface access-cap JSON file
	CredentialsPath  string `yaml:"credentials"`    // path to the principal credential JSON file
}

// Load reads and parses a YAML settings file.
func Load(path string) (*Settings, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var s Settings
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &s, nil
}

// TopicLevels resolves Settings.Topics into access.Level values,
// skipping any entry whose level name doesn't parse.
func (s *Settings) TopicLevels() map[string]access.Level {
	out := make(map[string]access.Level, len(s.Topics))
	for name, lvl := range s.Topics {
		if l, ok := access.Parse(lvl); ok {
			out[name] = l
		}
	}
	return out
}

// AccessCaps is the per-interface access-cap JSON file spec.md §6
// names explicitly: the maximum level a session connecting through a
// given interface (tcp/telnet/serial) may ever reach, regardless of
// what ACCess requests.
type AccessCaps struct {
	Interfaces map[string]string `json:"interfaces"`
}

// LoadAccessCaps reads the JSON access-cap file.
func LoadAccessCaps(path string) (*AccessCaps, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var caps AccessCaps
	if err := json.Unmarshal(b, &caps); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &caps, nil
}

// Limit resolves the access cap for a named interface, defaulting to
// access.Full when unspecified (no cap configured).
func (c *AccessCaps) Limit(iface string) access.Level {
	if c == nil {
		return access.Full
	}
	if s, ok := c.Interfaces[iface]; ok {
		if l, ok := access.Parse(s); ok {
			return l
		}
	}
	return access.Full
}

// Credentials is the JSON credential file spec.md §6 names: a set of
// challenge-response secrets keyed by principal name. The core never
// stores these itself (spec.md §1 Non-goals: "credential storage is
// external"); internal/auth consumes a loaded Credentials value
// through its Challenger interface.
type Credentials struct {
	Principals map[string]string `json:"principals"` // name -> shared secret
}

// LoadCredentials reads the JSON credential file.
func LoadCredentials(path string) (*Credentials, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var c Credentials
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &c, nil
}
