package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models stageline.yml.
type Config struct {
	Database DatabaseConfig  `yaml:"database"`
	Server   ServerConfig    `yaml:"server"`
	Logger   LoggerConfig    `yaml:"logger"`
	Pipeline PipelineConfig  `yaml:"pipeline"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

type DatabaseConfig struct {
	// Path overrides the workspace database location.
	Path          string `yaml:"path"`
	BusyTimeoutMS int    `yaml:"busy_timeout_ms"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr"`
	BasePath  string `yaml:"base_path"`
	JWTSecret string `yaml:"jwt_secret"`
	// StageAdminRoles may create, update, reorder, seed and delete stages.
	StageAdminRoles []string `yaml:"stage_admin_roles"`
}

type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

type PipelineConfig struct {
	// CompactOnDelete closes the position gap left by a deleted card.
	CompactOnDelete bool            `yaml:"compact_on_delete"`
	DefaultPageSize int             `yaml:"default_page_size"`
	MaxPageSize     int             `yaml:"max_page_size"`
	RecentLimit     int             `yaml:"recent_limit"`
	DefaultStages   []StageTemplate `yaml:"default_stages"`
}

// StageTemplate is one stage of the default pipeline created by seeding.
type StageTemplate struct {
	Name     string `yaml:"name"`
	Color    string `yaml:"color"`
	SLAHours *int   `yaml:"sla_hours,omitempty"`
	IsFinal  bool   `yaml:"is_final,omitempty"`
	IsLost   bool   `yaml:"is_lost,omitempty"`
}

type WebhookConfig struct {
	URL    string `yaml:"url"`
	Secret string `yaml:"secret,omitempty"`
	// Events lists the actions delivered; empty means all.
	Events []string `yaml:"events,omitempty"`
	// Tenant restricts delivery to one tenant; empty means all.
	Tenant    string `yaml:"tenant,omitempty"`
	TimeoutMS int    `yaml:"timeout_ms,omitempty"`
}

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Database.BusyTimeoutMS < 0 {
		return fmt.Errorf("config.database.busy_timeout_ms must not be negative")
	}
	switch strings.ToLower(c.Logger.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("config.logger.level %q is not one of debug, info, warn, error", c.Logger.Level)
	}
	switch strings.ToLower(c.Logger.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("config.logger.format %q must be text or json", c.Logger.Format)
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	if c.Pipeline.DefaultPageSize < 1 {
		return fmt.Errorf("config.pipeline.default_page_size must be at least 1")
	}
	if c.Pipeline.MaxPageSize < c.Pipeline.DefaultPageSize {
		return fmt.Errorf("config.pipeline.max_page_size must be at least default_page_size")
	}
	if c.Pipeline.RecentLimit < 1 {
		return fmt.Errorf("config.pipeline.recent_limit must be at least 1")
	}
	seen := map[string]bool{}
	for i, st := range c.Pipeline.DefaultStages {
		if st.Name == "" {
			return fmt.Errorf("config.pipeline.default_stages[%d].name is required", i)
		}
		if seen[st.Name] {
			return fmt.Errorf("config.pipeline.default_stages has duplicate stage %s", st.Name)
		}
		seen[st.Name] = true
		if st.Color != "" && !hexColor.MatchString(st.Color) {
			return fmt.Errorf("stage %s has invalid color %s", st.Name, st.Color)
		}
		if st.SLAHours != nil && *st.SLAHours < 1 {
			return fmt.Errorf("stage %s sla_hours must be at least 1", st.Name)
		}
	}
	for i, wh := range c.Webhooks {
		u, err := url.Parse(wh.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("config.webhooks[%d].url %q is not an absolute url", i, wh.URL)
		}
		if wh.TimeoutMS < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout_ms must not be negative", i)
		}
	}
	return nil
}

// BusyTimeout returns the SQLite busy timeout.
func (c *Config) BusyTimeout() time.Duration {
	return time.Duration(c.Database.BusyTimeoutMS) * time.Millisecond
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "stageline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Load reads and validates config from the workspace, falling back to the
// defaults when stageline.yml does not exist.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config.
func Default() *Config {
	var cfg Config
	if err := yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg); err != nil {
		panic(fmt.Sprintf("default config: %v", err))
	}
	return &cfg
}

// FromYAML parses raw YAML over the defaults and validates the result.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `database:
  path: ""
  busy_timeout_ms: 5000

server:
  addr: "127.0.0.1:8080"
  base_path: ""
  jwt_secret: ""
  stage_admin_roles: [OWNER, MANAGER]

logger:
  level: info
  format: text
  output: stderr

pipeline:
  compact_on_delete: true
  default_page_size: 20
  max_page_size: 100
  recent_limit: 50
  default_stages:
    - name: "Novos Leads"
      color: "#6B7280"
      sla_hours: 24
    - name: "Em Triagem"
      color: "#3B82F6"
      sla_hours: 4
    - name: "Orçamento em Elaboração"
      color: "#8B5CF6"
      sla_hours: 8
    - name: "Orçamento Enviado"
      color: "#F59E0B"
      sla_hours: 48
    - name: "Aguardando Aprovação"
      color: "#F97316"
      sla_hours: 72
    - name: "Aprovado"
      color: "#10B981"
    - name: "Em Execução (OS)"
      color: "#06B6D4"
    - name: "Finalizado"
      color: "#22C55E"
      is_final: true
    - name: "Perdido"
      color: "#EF4444"
      is_final: true
      is_lost: true
    - name: "Follow-up"
      color: "#EC4899"
      sla_hours: 168

webhooks: []
`
