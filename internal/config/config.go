package config

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"gopkg.in/yaml.v3"

	"github.com/user/clawbridge/configs"
	"github.com/user/clawbridge/internal/session"
)

type RoleConfig struct {
	Label  string `yaml:"label"`
	Icon   string `yaml:"icon"`
	Compat bool   `yaml:"compat"`
}

type Config struct {
	Port             int                   `yaml:"port"`
	Token            string                `yaml:"token"`
	DBPath           string                `yaml:"db_path"`
	AutoConnect      bool                  `yaml:"auto_connect"`
	AutoConnectDelay time.Duration         `yaml:"auto_connect_delay"`
	CLI              string                `yaml:"cli"`
	Package          string                `yaml:"package"`
	PackageManager   string                `yaml:"package_manager"`
	CompatShell      string                `yaml:"compat_shell"`
	CompatDistro     string                `yaml:"compat_distro"`
	NativeShell      string                `yaml:"native_shell"`
	Roles            map[string]RoleConfig `yaml:"roles"`

	Path string `yaml:"-"`
}

// DefaultPath is ~/.config/clawbridge/config.yaml.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "clawbridge"), nil
}

// Defaults returns the shipped configuration.
func Defaults() (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(configs.DefaultConfig, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse default config: %w", err)
	}
	return cfg, nil
}

// Load reads path, seeding it from the shipped defaults when missing, and
// generates and persists a token when none is set.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	if err := ensureDefaults(path); err != nil {
		return nil, err
	}

	cfg, err := read(path)
	if err != nil {
		return nil, err
	}

	if cfg.Token == "" {
		token, err := generateToken()
		if err != nil {
			return nil, fmt.Errorf("failed to generate token: %w", err)
		}
		cfg.Token = token
		if err := cfg.Save(); err != nil {
			return nil, fmt.Errorf("failed to save config file: %w", err)
		}
	}
	return cfg, nil
}

// read parses path on top of the defaults without writing anything.
func read(path string) (*Config, error) {
	cfg, err := Defaults()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %q: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config %q: %w", path, err)
	}
	cfg.Path = path
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(filepath.Dir(path), "clawbridge.db")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}
	return cfg, nil
}

func ensureDefaults(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat config %q: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, configs.DefaultConfig, 0o600); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", c.Port)
	}
	if strings.TrimSpace(c.CLI) == "" {
		return errors.New("cli must not be empty")
	}
	if strings.TrimSpace(c.Package) == "" {
		return errors.New("package must not be empty")
	}
	if c.AutoConnectDelay < 0 {
		return fmt.Errorf("invalid auto_connect_delay %s", c.AutoConnectDelay)
	}
	for name := range c.Roles {
		if _, err := session.ParseRole(name); err != nil {
			return err
		}
	}
	if _, err := shellquote.Split(c.NativeShell); err != nil {
		return fmt.Errorf("invalid native_shell: %w", err)
	}
	return nil
}

// Save writes the config back to Path.
func (c *Config) Save() error {
	if c.Path == "" {
		return errors.New("config has no path")
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(c.Path, data, 0o600)
}

// Profile builds the session launch profile.
func (c *Config) Profile() session.Profile {
	p := session.DefaultProfile()
	for name, rc := range c.Roles {
		role, err := session.ParseRole(name)
		if err != nil {
			continue
		}
		p.Roles[role] = session.RoleConfig{Label: rc.Label, Icon: rc.Icon, Compat: rc.Compat}
	}

	p.CompatShell = session.Shell{}
	if c.CompatShell != "" {
		p.CompatShell.Path = c.CompatShell
		if c.CompatDistro != "" {
			p.CompatShell.Args = []string{"-d", c.CompatDistro}
		}
	}
	if words, err := shellquote.Split(c.NativeShell); err == nil && len(words) > 0 {
		p.NativeShell = session.Shell{Path: words[0], Args: words[1:]}
	}
	return p
}

func (c *Config) PrimaryLabel() string {
	if rc, ok := c.Roles[string(session.Primary)]; ok && rc.Label != "" {
		return rc.Label
	}
	return "Claw"
}

// Addr is the loopback listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("127.0.0.1:%d", c.Port)
}

func (c *Config) BaseURL() string {
	return "http://" + c.Addr()
}

func generateToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
