// Package cliconfig reads and edits creatorhook configuration by dotted path
// for the config and doctor commands.
package cliconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/KafClaw/creatorhook/internal/config"
	"github.com/KafClaw/creatorhook/internal/secrets"
)

// Get returns the effective config value at a dotted path such as
// "decoder.minScanLength". Env overrides and defaults are applied.
func Get(path string) (any, error) {
	keys, err := parsePath(path)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	res := gjson.GetBytes(data, gjsonPath(keys))
	if !res.Exists() {
		return nil, fmt.Errorf("path not found: %s", path)
	}
	return res.Value(), nil
}

// Set writes a value at path into the config file.
// Value can be JSON or plain string. Unknown paths are rejected so typos do
// not end up silently ignored by Load.
func Set(path, rawValue string) error {
	keys, err := parsePath(path)
	if err != nil {
		return err
	}
	if !knownPath(keys) {
		return fmt.Errorf("unknown config path: %s", path)
	}
	cfgMap, cfgPath, err := loadFileConfigMap()
	if err != nil {
		return err
	}
	setAtPath(cfgMap, keys, parseValue(rawValue))
	if err := validateMap(cfgMap); err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	return saveFileConfigMap(cfgPath, cfgMap)
}

// Unset removes a value at path from the config file, restoring its default.
// StoreWebhookSecret moves the webhook URL into the OS keyring under name
// and points webhook.url at it.
func StoreWebhookSecret(name, url string) error {
	if err := secrets.Store(name, url); err != nil {
		return err
	}
	return Set("webhook.url", secrets.Ref(name))
}

func Unset(path string) error {
	keys, err := parsePath(path)
	if err != nil {
		return err
	}
	cfgMap, cfgPath, err := loadFileConfigMap()
	if err != nil {
		return err
	}
	if !unsetAtPath(cfgMap, keys) {
		return fmt.Errorf("path not found: %s", path)
	}
	return saveFileConfigMap(cfgPath, cfgMap)
}

func loadFileConfigMap() (map[string]any, string, error) {
	cfgPath, err := config.ConfigPath()
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, cfgPath, nil
		}
		return nil, "", err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, "", err
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, cfgPath, nil
}

func saveFileConfigMap(cfgPath string, m map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(cfgPath, data, 0o600)
}

func parsePath(path string) ([]string, error) {
	s := strings.TrimSpace(path)
	if s == "" {
		return nil, fmt.Errorf("path is empty")
	}
	var out []string
	for _, part := range strings.Split(s, ".") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("invalid path %q: empty segment", path)
		}
		out = append(out, part)
	}
	return out, nil
}

// gjsonPath escapes keys so characters with meaning to gjson stay literal.
func gjsonPath(keys []string) string {
	escaped := make([]string, len(keys))
	for i, k := range keys {
		var b strings.Builder
		for _, r := range k {
			switch r {
			case '.', '*', '?', '|', '#', '@', '\\':
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		}
		escaped[i] = b.String()
	}
	return strings.Join(escaped, ".")
}

// knownPath reports whether keys address a field of the config schema.
func knownPath(keys []string) bool {
	data, err := json.Marshal(config.DefaultConfig())
	if err != nil {
		return false
	}
	return gjson.GetBytes(data, gjsonPath(keys)).Exists()
}

// validateMap decodes the edited file over the defaults to catch type errors
// (a string where a number belongs) before the file is written.
func validateMap(m map[string]any) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	cfg := config.DefaultConfig()
	return json.Unmarshal(data, cfg)
}

func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

func setAtPath(root map[string]any, keys []string, value any) {
	cur := root
	for _, k := range keys[:len(keys)-1] {
		next, ok := cur[k].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[k] = next
		}
		cur = next
	}
	cur[keys[len(keys)-1]] = value
}

func unsetAtPath(root map[string]any, keys []string) bool {
	cur := root
	for _, k := range keys[:len(keys)-1] {
		next, ok := cur[k].(map[string]any)
		if !ok {
			return false
		}
		cur = next
	}
	last := keys[len(keys)-1]
	if _, ok := cur[last]; !ok {
		return false
	}
	delete(cur, last)
	return true
}
