package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Mr-Dark-debug/tokenreplay/pkg/timeutil"
)

type healthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func (c *StatusCmd) Run(a *app) error {
	addr := c.Addr
	if addr == "" {
		addr = a.cfg.Server.Addr
	}
	url := fmt.Sprintf("http://%s/health", addr)

	client := &http.Client{Timeout: a.cfg.HTTP.Timeout}
	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintln(a.out, "⚠ document server is not running.")
		fmt.Fprintln(a.out, "  Start it with: tokenreplay-serve")
		fmt.Fprintf(a.out, "  (tried: %s)\n", url)
		return fmt.Errorf("server unreachable: %w", err)
	}
	defer resp.Body.Close()

	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("decoding health response: %w", err)
	}

	fmt.Fprintln(a.out, "✅ document server is running.")
	fmt.Fprintln(a.out)
	fmt.Fprintf(a.out, "  Address:  %s\n", addr)
	fmt.Fprintf(a.out, "  Status:   %s\n", health.Status)
	fmt.Fprintf(a.out, "  Uptime:   %s\n", timeutil.FormatDuration(time.Duration(health.UptimeSeconds)*time.Second))
	fmt.Fprintf(a.out, "  Metrics:  http://%s/metrics\n", addr)
	return nil
}

func (c *VersionCmd) Run(a *app) error {
	fmt.Fprintf(a.out, "tokenreplay %s (commit: %s, built: %s)\n", version, commit, buildTime)
	return nil
}
