// Package health evaluates OPNsense gateway status and keeps the latest
// result per instance for the HTTP health endpoints.
package health

import (
	"fmt"
	"strconv"
	"strings"

	"grimm.is/opnwatch/internal/logging"
	"grimm.is/opnwatch/internal/opnsense"
)

// StatusUnavailable is the single problem reported when no gateway data
// could be read.
const StatusUnavailable = "⚠️ gateway status unavailable"

// Report is the result of evaluating one instance's gateways.
type Report struct {
	HasProblem bool     `json:"has_problem"`
	Problems   []string `json:"problems"`
}

// Evaluate inspects every gateway in order. A gateway is flagged offline
// when its status is not "online", and for high latency when its delay
// exceeds highPingMs. Missing data counts as a problem.
func Evaluate(status *opnsense.GatewayStatus, highPingMs float64, logger *logging.Logger) Report {
	if logger == nil {
		logger = logging.WithComponent("health")
	}
	if status == nil || status.Items == nil {
		return Report{HasProblem: true, Problems: []string{StatusUnavailable}}
	}

	problems := []string{}
	for _, gw := range status.Items {
		name := orDefault(gw.Name, "N/A")
		gwStatus := orDefault(gw.Status, "unknown")

		if gwStatus != opnsense.GatewayOnline {
			problems = append(problems, fmt.Sprintf("🔴 Gateway offline: %s (status: %s)", name, gwStatus))
		}

		delay, err := ParseDelay(orDefault(gw.Delay, "0.0ms"))
		if err != nil {
			logger.Error("latency parse failed", "gateway", name, "delay", gw.Delay, "error", err)
			continue
		}
		if delay > highPingMs {
			problems = append(problems, fmt.Sprintf("🟡 High latency: %s (%.2fms)", name, delay))
		}
	}

	return Report{HasProblem: len(problems) > 0, Problems: problems}
}

// ParseDelay parses values like "12.3ms" or "12.3 ms".
func ParseDelay(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "ms")
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
