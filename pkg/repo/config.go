package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
)

// Config holds repository-local settings, stored as git-style ini at
// .keel/config:
//
//	[user]
//	name  = Ada Lovelace
//	email = ada@example.com
//
//	[vain]
//	default = cafe
type Config struct {
	UserName      string
	UserEmail     string
	VanityDefault string
}

// Ident formats the configured user as "Name <email>".
func (c *Config) Ident() string {
	name := strings.TrimSpace(c.UserName)
	if name == "" {
		name = "unknown"
	}
	email := strings.TrimSpace(c.UserEmail)
	if email == "" {
		return name
	}
	return fmt.Sprintf("%s <%s>", name, email)
}

func (r *Repo) configPath() string {
	return filepath.Join(r.KeelDir, "config")
}

// ReadConfig reads .keel/config. A missing file returns an empty config.
func (r *Repo) ReadConfig() (*Config, error) {
	cfg := &Config{}
	file, err := ini.Load(r.configPath())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	user := file.Section("user")
	cfg.UserName = user.Key("name").String()
	cfg.UserEmail = user.Key("email").String()
	cfg.VanityDefault = file.Section("vain").Key("default").String()
	return cfg, nil
}

// WriteConfig atomically rewrites .keel/config.
func (r *Repo) WriteConfig(cfg *Config) error {
	if cfg == nil {
		cfg = &Config{}
	}

	file := ini.Empty()
	user := file.Section("user")
	if cfg.UserName != "" {
		user.Key("name").SetValue(cfg.UserName)
	}
	if cfg.UserEmail != "" {
		user.Key("email").SetValue(cfg.UserEmail)
	}
	if cfg.VanityDefault != "" {
		file.Section("vain").Key("default").SetValue(cfg.VanityDefault)
	}

	tmp, err := os.CreateTemp(r.KeelDir, ".config-tmp-*")
	if err != nil {
		return fmt.Errorf("write config: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := file.WriteTo(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: close: %w", err)
	}
	if err := os.Rename(tmpName, r.configPath()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: rename: %w", err)
	}
	return nil
}
