package bridge

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the bridge daemon configuration.
type Config struct {
	Addr              string `yaml:"addr"`
	TemplatePath      string `yaml:"template_path"`
	OutputDir         string `yaml:"output_dir"`
	ContactsDB        string `yaml:"contacts_db"`
	SnapshotDir       string `yaml:"snapshot_dir"`
	NoImageCheckpoint bool   `yaml:"noimage_checkpoint"`
	ListHeuristic     bool   `yaml:"list_heuristic"`
	LogLevel          string `yaml:"log_level"`
}

func (c *Config) defaults() {
	if c.Addr == "" {
		c.Addr = "127.0.0.1:8343"
	}
	if c.OutputDir == "" {
		c.OutputDir = "quotes"
	}
	if c.ContactsDB == "" {
		c.ContactsDB = "db/contacts.db"
	}
	if c.SnapshotDir == "" {
		c.SnapshotDir = "snapshots"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// LoadConfigFile reads a YAML config file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.defaults()
	return cfg, nil
}
