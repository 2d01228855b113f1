package opnsense

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// NotAvailable is rendered for values the appliance did not report.
const NotAvailable = "N/D"

// The activity endpoint returns the header lines of top(1). These
// expressions are the contract with that output:
//
//	last pid: 12345;  load averages:  0.10,  0.12,  0.09  up 3+04:05:06    10:11:12
//	CPU:  1.2% user,  0.0% nice,  0.8% system,  0.0% interrupt, 98.0% idle
//	Mem: 100M Active, 50M Inact, 50M Wired, 800M Free
var (
	uptimeRe = regexp.MustCompile(`up\s+(?:(\d+)\+)?(\d+):(\d{2}):(\d{2})`)
	idleRe   = regexp.MustCompile(`(\d+\.\d+)%\s+idle`)
	memRe    = map[string]*regexp.Regexp{
		"active": regexp.MustCompile(`(\d+)([KMG])\s+Active`),
		"inact":  regexp.MustCompile(`(\d+)([KMG])\s+Inact`),
		"wired":  regexp.MustCompile(`(\d+)([KMG])\s+Wired`),
		"free":   regexp.MustCompile(`(\d+)([KMG])\s+Free`),
	}
)

// ParseActivity extracts CPU usage, memory usage and uptime from the top(1)
// header lines. Lines that do not parse leave the N/D default in place.
func ParseActivity(headers []string) Activity {
	out := Activity{CPU: NotAvailable, Memory: NotAvailable}
	for _, line := range headers {
		switch {
		case strings.Contains(line, " up "):
			if secs, ok := parseUptime(line); ok {
				out.UptimeSeconds = secs
			}
		case strings.HasPrefix(line, "CPU:"):
			if m := idleRe.FindStringSubmatch(line); m != nil {
				idle, err := strconv.ParseFloat(m[1], 64)
				if err == nil {
					out.CPU = fmt.Sprintf("%.1f", 100.0-idle)
				}
			}
		case strings.HasPrefix(line, "Mem:"):
			if pct, ok := parseMemory(line); ok {
				out.Memory = pct
			}
		}
	}
	return out
}

func parseUptime(line string) (int64, bool) {
	m := uptimeRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	var days int64
	if m[1] != "" {
		days, _ = strconv.ParseInt(m[1], 10, 64)
	}
	h, _ := strconv.ParseInt(m[2], 10, 64)
	min, _ := strconv.ParseInt(m[3], 10, 64)
	s, _ := strconv.ParseInt(m[4], 10, 64)
	return days*86400 + h*3600 + min*60 + s, true
}

func parseMemory(line string) (string, bool) {
	values := make(map[string]float64, len(memRe))
	for key, re := range memRe {
		m := re.FindStringSubmatch(line)
		if m == nil {
			return "", false
		}
		n, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return "", false
		}
		values[key] = n * unitMultiplier(m[2])
	}

	used := values["active"] + values["inact"] + values["wired"]
	total := used + values["free"]
	if total <= 0 {
		return "", false
	}
	return fmt.Sprintf("%.0f", used/total*100), true
}

func unitMultiplier(unit string) float64 {
	switch unit {
	case "G":
		return 1 << 30
	case "M":
		return 1 << 20
	case "K":
		return 1 << 10
	}
	return 1
}
