// Package report renders the Telegram HTML messages: the periodic
// per-instance report, health alerts, the all-clear digest and the
// critical error notice.
package report

import (
	"fmt"
	"html"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"grimm.is/opnwatch/internal/i18n"
	"grimm.is/opnwatch/internal/opnsense"
)

// Input is everything needed to render one instance report. Nil or empty
// fields omit their section.
type Input struct {
	Name         string
	Activity     *opnsense.Activity
	Temperatures []opnsense.Temperature
	Traffic      map[string]opnsense.InterfaceTraffic
	Gateways     *opnsense.GatewayStatus
}

// Formatter renders messages in one language.
type Formatter struct {
	printer    *message.Printer
	footerText string
	footerURL  string
}

// NewFormatter creates a formatter for lang with the given footer link.
func NewFormatter(lang language.Tag, footerText, footerURL string) *Formatter {
	return &Formatter{
		printer:    i18n.NewPrinter(lang),
		footerText: footerText,
		footerURL:  footerURL,
	}
}

func (f *Formatter) label(key string) string {
	return i18n.Label(f.printer, key)
}

// gatewayOK are the status codes rendered with a green icon.
var gatewayOK = map[string]bool{
	"okay":       true,
	"force_down": true,
	"none":       true,
}

// Format renders the periodic report for one instance.
func (f *Formatter) Format(in Input) string {
	parts := []string{fmt.Sprintf(" <b>%s</b> 📍\n", html.EscapeString(in.Name))}

	if a := in.Activity; a != nil {
		parts = append(parts,
			fmt.Sprintf("  - CPU: <code>%s%%</code> | %s: <code>%s%%</code>", a.CPU, f.label(i18n.MsgMemory), a.Memory),
			fmt.Sprintf("  - %s: <code>%s</code>", f.label(i18n.MsgUptime), FormatUptime(a.UptimeSeconds)),
		)
	}

	if avg, ok := AverageCPUTemperature(in.Temperatures); ok {
		parts = append(parts, fmt.Sprintf("  - %s: <code>%.1f°C</code>", f.label(i18n.MsgAvgCPUTemp), avg))
	}

	if in.Gateways != nil && len(in.Gateways.Items) > 0 {
		parts = append(parts, fmt.Sprintf("\n🛰️ <b>%s</b>\n", f.label(i18n.MsgGatewayStatus)))
		for _, gw := range in.Gateways.Items {
			if strings.Contains(gw.Name, "VPN") {
				continue
			}
			icon := "🔴"
			if gatewayOK[gw.Status] {
				icon = "🟢"
			}
			parts = append(parts, fmt.Sprintf("  %s %s: %s\n     %s: <code>%s</code>  %s: <code>%s</code>",
				icon,
				html.EscapeString(orNA(gw.Name)),
				html.EscapeString(orNA(gw.StatusTranslated)),
				f.label(i18n.MsgLoss), html.EscapeString(orNA(gw.Loss)),
				f.label(i18n.MsgLatency), html.EscapeString(orNA(gw.Delay)),
			))
		}
	}

	if len(in.Traffic) > 0 {
		parts = append(parts, fmt.Sprintf("\n📊 <b>%s</b>", f.label(i18n.MsgNetworkTraffic)))
		keys := make([]string, 0, len(in.Traffic))
		for k := range in.Traffic {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, key := range keys {
			iface := in.Traffic[key]
			display := iface.Name
			if display == "" {
				display = key
			}
			display = strings.ToUpper(display)
			if strings.Contains(display, "VPN") {
				continue
			}
			parts = append(parts, fmt.Sprintf("\n   <b>%s:</b>\n    📥 %s: <code>%s</code>\n    📤 %s: <code>%s</code>",
				html.EscapeString(display),
				f.label(i18n.MsgReceived), BytesToGB(countOrZero(iface.BytesReceived)),
				f.label(i18n.MsgTransmitted), BytesToGB(countOrZero(iface.BytesTransmitted)),
			))
		}
	}

	parts = append(parts, f.footer())
	return strings.Join(parts, "\n")
}

func (f *Formatter) footer() string {
	return fmt.Sprintf("\n<a href=\"%s\"><blockquote>%s</blockquote></a>",
		html.EscapeString(f.footerURL), html.EscapeString(f.footerText))
}

// FormatAlert renders the immediate health alert for one instance.
func (f *Formatter) FormatAlert(name string, problems []string) string {
	escaped := make([]string, len(problems))
	for i, p := range problems {
		escaped[i] = html.EscapeString(p)
	}
	return fmt.Sprintf("🚨 <b>%s: %s</b> 🚨\n\n%s",
		f.label(i18n.MsgHealthAlert), html.EscapeString(name), strings.Join(escaped, "\n"))
}

// FormatAllClear renders the periodic digest sent when no instance has a
// problem. next is the health check interval.
func (f *Formatter) FormatAllClear(next time.Duration) string {
	return fmt.Sprintf("✅ <b>%s</b>\n\n%s\n\n<i>%s %.0f %s.</i>",
		f.label(i18n.MsgStatusReport),
		f.label(i18n.MsgAllOperational),
		f.label(i18n.MsgNextCheckIn), next.Minutes(), f.label(i18n.MsgMinutes))
}

// FormatCritical renders the notice for an unexpected failure of the loop.
func (f *Formatter) FormatCritical(err error) string {
	return fmt.Sprintf("🆘 <b>%s</b>\n\n%s\n<code>%s</code>\n\n%s",
		f.label(i18n.MsgCriticalError),
		f.label(i18n.MsgUnhandledError),
		html.EscapeString(fmt.Sprint(err)),
		f.label(i18n.MsgCheckLogs))
}

// FormatPolicyFailure renders the notice sent when an instance could not
// be moved to its desired state.
func (f *Formatter) FormatPolicyFailure(name, state string, err error) string {
	return fmt.Sprintf("⛔ <b>%s</b>: %s → <code>%s</code>\n<code>%s</code>",
		f.label(i18n.MsgPolicyApplyFail), html.EscapeString(name), state, html.EscapeString(fmt.Sprint(err)))
}

// FormatPolicyChange renders the notice sent after a policy was applied.
func (f *Formatter) FormatPolicyChange(name, state string) string {
	return fmt.Sprintf("🔁 <b>%s</b>: %s → <code>%s</code>",
		f.label(i18n.MsgPolicyChanged), html.EscapeString(name), state)
}

// FormatUptime renders seconds as "Nd Nh Nm", omitting zero units.
func FormatUptime(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	days := seconds / 86400
	hours := seconds % 86400 / 3600
	minutes := seconds % 3600 / 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if len(parts) == 0 {
		return "0m"
	}
	return strings.Join(parts, " ")
}

// BytesToGB converts a byte count to binary gigabytes with two decimals.
// Anything that is not an integer renders as "0.00 GB".
func BytesToGB(bytes string) string {
	n, err := strconv.ParseInt(strings.TrimSpace(bytes), 10, 64)
	if err != nil {
		return "0.00 GB"
	}
	return fmt.Sprintf("%.2f GB", float64(n)/(1<<30))
}

var numericTemp = regexp.MustCompile(`^\d+(\.\d*)?$|^\.\d+$`)

// AverageCPUTemperature is the mean of the cpu sensors reporting a plain
// decimal value.
func AverageCPUTemperature(temps []opnsense.Temperature) (float64, bool) {
	var sum float64
	var n int
	for _, t := range temps {
		if t.Type != "cpu" {
			continue
		}
		raw := t.Temperature.String()
		if !numericTemp.MatchString(raw) {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func orNA(s string) string {
	if s == "" {
		return opnsense.NotAvailable
	}
	return s
}

func countOrZero(v opnsense.FlexString) string {
	if v == "" {
		return "0"
	}
	return v.String()
}
