package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".creatorhook"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("CREATORHOOK_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := resolveHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := resolveHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

func resolveHomeDir() (string, error) {
	if h := strings.TrimSpace(os.Getenv("CREATORHOOK_HOME")); h != "" {
		if strings.HasPrefix(h, "~") {
			base, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(base, h[1:]), nil
		}
		return h, nil
	}
	return os.UserHomeDir()
}

// Load loads the configuration from file and environment variables.
// Priority: environment > file > defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	// Load process env vars from ~/.config/creatorhook/env (and fallbacks) first.
	LoadEnvFileCandidates()

	path, err := ConfigPath()
	if err != nil {
		return cfg, nil // Use defaults if we can't find config path
	}

	data, err := loadResolvedConfig(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	// Override with environment variables for each group
	groups := []struct {
		prefix string
		spec   any
	}{
		{"CREATORHOOK_PATHS", &cfg.Paths},
		{"CREATORHOOK_WEBHOOK", &cfg.Webhook},
		{"CREATORHOOK_DECODER", &cfg.Decoder},
		{"CREATORHOOK_CHAT", &cfg.Chat},
		{"CREATORHOOK_RELAY", &cfg.Relay},
	}
	for _, g := range groups {
		if err := envconfig.Process(g.prefix, g.spec); err != nil {
			return nil, fmt.Errorf("env %s: %w", g.prefix, err)
		}
	}

	// Dashboard-era variable names.
	if cfg.Webhook.URL == "" {
		cfg.Webhook.URL = strings.TrimSpace(os.Getenv("WEBHOOK_URL"))
	}
	if cfg.Webhook.UserID == "" {
		cfg.Webhook.UserID = strings.TrimSpace(os.Getenv("USER_ID"))
	}

	expandHome(&cfg.Paths.Workspace)
	expandHome(&cfg.Paths.TimelineDB)

	applyDefaults(cfg)
	return cfg, nil
}

// applyDefaults restores defaults for values zeroed by the file or env.
func applyDefaults(cfg *Config) {
	def := DefaultConfig()
	if cfg.Webhook.Timeout <= 0 {
		cfg.Webhook.Timeout = def.Webhook.Timeout
	}
	if strings.TrimSpace(cfg.Decoder.EmptyReply) == "" {
		cfg.Decoder.EmptyReply = def.Decoder.EmptyReply
	}
	if cfg.Chat.Cooldown < 0 {
		cfg.Chat.Cooldown = 0
	}
	if cfg.Chat.ErrorPrefix == "" {
		cfg.Chat.ErrorPrefix = def.Chat.ErrorPrefix
	}
	if strings.TrimSpace(cfg.Relay.Topic) == "" {
		cfg.Relay.Topic = def.Relay.Topic
	}
	if cfg.Paths.TimelineDB == "" && cfg.Paths.Workspace != "" {
		cfg.Paths.TimelineDB = filepath.Join(cfg.Paths.Workspace, "timeline.db")
	}
}

func expandHome(p *string) {
	if strings.HasPrefix(*p, "~") {
		if home, err := resolveHomeDir(); err == nil {
			*p = filepath.Join(home, (*p)[1:])
		}
	}
}

// Validate checks the decoder thresholds and, when requireWebhook is set,
// that a webhook URL is configured.
func (c *Config) Validate(requireWebhook bool) error {
	var errs []error
	if c.Decoder.MinScanLength <= 0 {
		errs = append(errs, fmt.Errorf("decoder.minScanLength must be positive, got %d", c.Decoder.MinScanLength))
	}
	if c.Decoder.MinEmergencyLength <= 0 {
		errs = append(errs, fmt.Errorf("decoder.minEmergencyLength must be positive, got %d", c.Decoder.MinEmergencyLength))
	}
	if c.Decoder.MinRunLength <= 0 {
		errs = append(errs, fmt.Errorf("decoder.minRunLength must be positive, got %d", c.Decoder.MinRunLength))
	}
	if requireWebhook {
		u := strings.TrimSpace(c.Webhook.URL)
		if u == "" {
			errs = append(errs, errors.New("webhook.url is required (set CREATORHOOK_WEBHOOK_URL)"))
		} else if !strings.HasPrefix(u, "keyring:") && !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			errs = append(errs, fmt.Errorf("webhook.url must be http(s) or keyring:<name>, got %q", u))
		}
	}
	if c.Relay.Enabled && strings.TrimSpace(c.Relay.Brokers) == "" {
		errs = append(errs, errors.New("relay.brokers is required when the relay is enabled"))
	}
	return errors.Join(errs...)
}

// Save writes the configuration to the config file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// EnsureDir ensures a directory exists with proper permissions.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func loadResolvedConfig(path string) ([]byte, error) {
	obj, err := loadConfigObject(path, map[string]struct{}{})
	if err != nil {
		return nil, err
	}
	return json.Marshal(obj)
}

// loadConfigObject reads path, merging any "$include" files beneath it and
// substituting ${VAR} references from the environment.
func loadConfigObject(path string, visited map[string]struct{}) (map[string]any, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if _, seen := visited[absPath]; seen {
		return nil, fmt.Errorf("config include cycle detected at %s", absPath)
	}
	visited[absPath] = struct{}{}
	defer delete(visited, absPath)

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		raw = map[string]any{}
	}

	merged := map[string]any{}
	if includeRaw, ok := raw["$include"]; ok {
		includeFiles, err := parseIncludes(includeRaw)
		if err != nil {
			return nil, err
		}
		baseDir := filepath.Dir(absPath)
		for _, includePath := range includeFiles {
			resolvedPath := includePath
			if !filepath.IsAbs(includePath) {
				resolvedPath = filepath.Join(baseDir, includePath)
			}
			child, err := loadConfigObject(resolvedPath, visited)
			if err != nil {
				return nil, err
			}
			deepMerge(merged, child)
		}
	}
	delete(raw, "$include")
	substituteEnvValues(raw)
	deepMerge(merged, raw)
	return merged, nil
}

func parseIncludes(v any) ([]string, error) {
	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, nil
		}
		return []string{t}, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("$include entries must be strings")
			}
			if strings.TrimSpace(s) == "" {
				continue
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("$include must be a string or array of strings")
	}
}

func deepMerge(dst, src map[string]any) {
	for key, val := range src {
		srcMap, srcIsMap := val.(map[string]any)
		if !srcIsMap {
			dst[key] = val
			continue
		}
		dstMap, dstIsMap := dst[key].(map[string]any)
		if !dstIsMap {
			dstMap = map[string]any{}
			dst[key] = dstMap
		}
		deepMerge(dstMap, srcMap)
	}
}

func substituteEnvValues(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = substituteEnvValues(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = substituteEnvValues(item)
		}
		return t
	case string:
		return envPattern.ReplaceAllStringFunc(t, func(match string) string {
			parts := envPattern.FindStringSubmatch(match)
			if len(parts) != 2 {
				return match
			}
			if value, ok := os.LookupEnv(parts[1]); ok {
				return value
			}
			return match
		})
	default:
		return v
	}
}
