package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// ProbeResult summarises a broker check.
type ProbeResult struct {
	Broker     string
	Partitions int
	Leaders    int
}

// Probe dials the first reachable broker, confirms ApiVersions and counts the
// topic's partitions and leaders.
func Probe(ctx context.Context, brokers, topic string, timeout time.Duration) (*ProbeResult, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	var errs []error
	for _, addr := range strings.Split(brokers, ",") {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		res, err := probeBroker(ctx, addr, topic, timeout)
		if err == nil {
			return res, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", addr, err))
	}
	if len(errs) == 0 {
		return nil, errors.New("no brokers configured")
	}
	return nil, errors.Join(errs...)
}

func probeBroker(ctx context.Context, addr, topic string, timeout time.Duration) (*ProbeResult, error) {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialStart := time.Now()
	dialer := &kafka.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		slog.Debug("Relay: probe dial failed", "addr", addr, "dur", time.Since(dialStart).Truncate(time.Millisecond), "error", err)
		return nil, fmt.Errorf("broker dial failed: %w", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))

	if _, err := conn.ApiVersions(); err != nil {
		return nil, fmt.Errorf("ApiVersions failed: %w", err)
	}

	parts, err := conn.ReadPartitions(topic)
	if err != nil {
		return nil, fmt.Errorf("read partitions of %s: %w", topic, err)
	}
	res := &ProbeResult{Broker: addr}
	for _, p := range parts {
		if p.Topic != topic {
			continue
		}
		res.Partitions++
		if p.Leader.Host != "" {
			res.Leaders++
		}
	}
	if res.Partitions == 0 {
		return nil, fmt.Errorf("topic %s not found", topic)
	}
	slog.Debug("Relay: probe ok", "addr", addr, "topic", topic, "partitions", res.Partitions)
	return res, nil
}
