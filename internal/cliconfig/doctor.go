package cliconfig

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/KafClaw/creatorhook/internal/config"
	"github.com/KafClaw/creatorhook/internal/relay"
	"github.com/KafClaw/creatorhook/internal/secrets"
	"github.com/KafClaw/creatorhook/internal/timeline"
)

const relayProbeTimeout = 3 * time.Second

type DoctorStatus string

const (
	DoctorPass DoctorStatus = "pass"
	DoctorWarn DoctorStatus = "warn"
	DoctorFail DoctorStatus = "fail"
)

type DoctorCheck struct {
	Name    string
	Status  DoctorStatus
	Message string
}

type DoctorReport struct {
	Checks []DoctorCheck
}

func (r *DoctorReport) add(name string, status DoctorStatus, format string, args ...any) {
	r.Checks = append(r.Checks, DoctorCheck{Name: name, Status: status, Message: fmt.Sprintf(format, args...)})
}

type DoctorOptions struct {
	Fix bool
}

func (r DoctorReport) HasFailures() bool {
	for _, c := range r.Checks {
		if c.Status == DoctorFail {
			return true
		}
	}
	return false
}

func RunDoctor() (DoctorReport, error) {
	return RunDoctorWithOptions(DoctorOptions{})
}

func RunDoctorWithOptions(opts DoctorOptions) (DoctorReport, error) {
	report := DoctorReport{Checks: make([]DoctorCheck, 0, 8)}

	cfgPath, err := config.ConfigPath()
	if err != nil {
		report.add("config_path", DoctorFail, "cannot resolve config path: %v", err)
		return report, nil
	}

	if _, err := os.Stat(cfgPath); err != nil {
		if os.IsNotExist(err) {
			report.add("config_file", DoctorWarn, "config file not found at %s (defaults will be used)", cfgPath)
		} else {
			report.add("config_file", DoctorFail, "cannot access config file: %v", err)
		}
	} else {
		report.add("config_file", DoctorPass, "config file found at %s", cfgPath)
	}

	if opts.Fix {
		envPath, mergedKeys, fixErr := mergeDiscoveredEnvFiles()
		if fixErr != nil {
			report.add("env_merge", DoctorFail, "failed to merge env files: %v", fixErr)
		} else {
			report.add("env_merge", DoctorPass, "merged %d env key(s) into %s", mergedKeys, envPath)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		report.add("config_load", DoctorFail, "config load failed: %v", err)
		return report, nil
	}
	report.add("config_load", DoctorPass, "config loaded successfully")

	if err := cfg.Validate(false); err != nil {
		report.add("config_values", DoctorFail, "%v", strings.ReplaceAll(err.Error(), "\n", "; "))
	} else {
		report.add("config_values", DoctorPass, "decoder thresholds %d/%d/%d",
			cfg.Decoder.MinScanLength, cfg.Decoder.MinEmergencyLength, cfg.Decoder.MinRunLength)
	}

	checkWebhook(&report, cfg)
	checkTimeline(&report, cfg)

	checkRelay(&report, cfg)

	return report, nil
}

func checkRelay(report *DoctorReport, cfg *config.Config) {
	if !cfg.Relay.Enabled {
		report.add("relay", DoctorPass, "relay disabled")
		return
	}
	res, err := relay.Probe(context.Background(), cfg.Relay.Brokers, cfg.Relay.Topic, relayProbeTimeout)
	if err != nil {
		report.add("relay", DoctorFail, "relay probe failed: %v", err)
		return
	}
	status := DoctorPass
	if res.Leaders < res.Partitions {
		status = DoctorWarn
	}
	report.add("relay", status, "topic %s on %s: %d partition(s), %d with leader",
		cfg.Relay.Topic, res.Broker, res.Partitions, res.Leaders)
}

func checkWebhook(report *DoctorReport, cfg *config.Config) {
	raw := strings.TrimSpace(cfg.Webhook.URL)
	if raw == "" {
		report.add("webhook_url", DoctorFail, "webhook.url is empty (set CREATORHOOK_WEBHOOK_URL)")
		return
	}
	if secrets.IsRef(raw) {
		resolved, err := secrets.Resolve(raw)
		if err != nil {
			report.add("webhook_url", DoctorFail, "webhook.url %s: %v", raw, err)
			return
		}
		raw = strings.TrimSpace(resolved)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		report.add("webhook_url", DoctorFail, "webhook.url is not a valid URL: %s", raw)
		return
	}
	switch {
	case u.Scheme == "https":
		report.add("webhook_url", DoctorPass, "webhook at %s", u.Host)
	case u.Scheme == "http" && isLoopbackHost(u.Hostname()):
		report.add("webhook_url", DoctorPass, "webhook at %s (loopback)", u.Host)
	case u.Scheme == "http":
		report.add("webhook_url", DoctorWarn, "webhook.url uses plain http to a non-loopback host (%s)", u.Host)
	default:
		report.add("webhook_url", DoctorFail, "webhook.url scheme %q is not http(s)", u.Scheme)
	}

	if strings.TrimSpace(cfg.Webhook.UserID) == "" {
		report.add("webhook_user", DoctorWarn, "webhook.userId is empty; replies cannot be attributed")
	} else {
		report.add("webhook_user", DoctorPass, "user id %s", cfg.Webhook.UserID)
	}
}

func checkTimeline(report *DoctorReport, cfg *config.Config) {
	dbPath := cfg.Paths.TimelineDB
	if dbPath == "" {
		report.add("timeline_db", DoctorFail, "paths.timelineDb is empty")
		return
	}
	if err := config.EnsureDir(filepath.Dir(dbPath)); err != nil {
		report.add("timeline_db", DoctorFail, "cannot create %s: %v", filepath.Dir(dbPath), err)
		return
	}
	svc, err := timeline.NewTimelineService(dbPath)
	if err != nil {
		report.add("timeline_db", DoctorFail, "cannot open %s: %v", dbPath, err)
		return
	}
	defer svc.Close()
	report.add("timeline_db", DoctorPass, "timeline at %s", dbPath)
}

// mergeDiscoveredEnvFiles folds the known env files into the canonical
// ~/.config/creatorhook/env. Later sources win, the canonical file last.
func mergeDiscoveredEnvFiles() (string, int, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", 0, err
	}
	targetPath := filepath.Join(home, ".config", "creatorhook", "env")
	if err := os.MkdirAll(filepath.Dir(targetPath), 0o700); err != nil {
		return "", 0, err
	}

	cwd, _ := os.Getwd()
	sources := []string{
		filepath.Join(cwd, ".env"),
		filepath.Join(home, config.ConfigDir, ".env"),
		filepath.Join(home, config.ConfigDir, "env"),
		targetPath,
	}

	merged := map[string]string{}
	seen := map[string]struct{}{}
	for _, src := range sources {
		if _, ok := seen[src]; ok {
			continue
		}
		seen[src] = struct{}{}
		kv, err := readEnvFileKV(src)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", 0, fmt.Errorf("read %s: %w", src, err)
		}
		for k, v := range kv {
			merged[k] = v
		}
	}

	if err := writeEnvFileKV(targetPath, merged); err != nil {
		return "", 0, err
	}
	return targetPath, len(merged), nil
}

func readEnvFileKV(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	kv := map[string]string{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		k, v, ok := strings.Cut(line, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			continue
		}
		v = strings.TrimSpace(v)
		if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
			v = v[1 : len(v)-1]
		}
		kv[k] = v
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return kv, nil
}

func writeEnvFileKV(path string, kv map[string]string) error {
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys)+2)
	lines = append(lines, "# creatorhook runtime env (managed by doctor --fix)")
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s=%s", k, kv[k]))
	}
	lines = append(lines, "")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o600); err != nil {
		return err
	}
	return os.Chmod(path, 0o600)
}

func isLoopbackHost(host string) bool {
	h := strings.TrimSpace(strings.ToLower(host))
	if h == "" {
		return false
	}
	if h == "localhost" {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
