package monitor

import (
	"context"
	"fmt"
	"net/url"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// CheckPingFunc sends one ICMP echo to host and gives up when ctx ends.
// Tests replace it.
var CheckPingFunc = func(ctx context.Context, host string) error {
	pinger, err := probing.NewPinger(host)
	if err != nil {
		return fmt.Errorf("failed to create pinger: %w", err)
	}

	pinger.Count = 1
	pinger.Timeout = 2 * time.Second
	pinger.SetPrivileged(false)

	err = pinger.RunWithContext(ctx)
	if err != nil {
		return err
	}

	if pinger.Statistics().PacketsRecv == 0 {
		return fmt.Errorf("packet loss")
	}
	return nil
}

// probeLine pings the host of rawURL and describes the result for an
// alert. It distinguishes a dead appliance from a dead API.
func probeLine(ctx context.Context, rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return fmt.Sprintf("📡 cannot probe %q: invalid address", rawURL)
	}
	host := u.Hostname()
	if err := CheckPingFunc(ctx, host); err != nil {
		return fmt.Sprintf("📡 %s does not answer ping (%v)", host, err)
	}
	return fmt.Sprintf("📡 %s answers ping, the API is not responding", host)
}
