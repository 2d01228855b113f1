package report

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"

	"grimm.is/opnwatch/internal/opnsense"
)

const (
	footerText = "Monitorado por PME TECNOLOGIA"
	footerURL  = "https://pmetecnologia.com.br"
)

var footer = "\n<a href=\"https://pmetecnologia.com.br\"><blockquote>Monitorado por PME TECNOLOGIA</blockquote></a>"

func newEnglish() *Formatter {
	return NewFormatter(language.English, footerText, footerURL)
}

func TestFormat_Empty(t *testing.T) {
	got := newEnglish().Format(Input{Name: "Matriz"})
	assert.Equal(t, " <b>Matriz</b> 📍\n\n"+footer, got)

	// Present but empty collections are treated as absent.
	got = newEnglish().Format(Input{
		Name:         "Matriz",
		Temperatures: []opnsense.Temperature{},
		Traffic:      map[string]opnsense.InterfaceTraffic{},
		Gateways:     &opnsense.GatewayStatus{Items: []opnsense.Gateway{}},
	})
	assert.Equal(t, " <b>Matriz</b> 📍\n\n"+footer, got)
}

func TestFormat_Full(t *testing.T) {
	in := Input{
		Name:     "Matriz",
		Activity: &opnsense.Activity{CPU: "12.5", Memory: "20", UptimeSeconds: 90061},
		Temperatures: []opnsense.Temperature{
			{Type: "cpu", Temperature: "40.0"},
			{Type: "cpu", Temperature: "50"},
			{Type: "cpu", Temperature: "n/a"},
			{Type: "zone", Temperature: "90.0"},
		},
		Gateways: &opnsense.GatewayStatus{Items: []opnsense.Gateway{
			{Name: "WAN_GW", Status: "none", StatusTranslated: "Online", Loss: "0.0 %", Delay: "10.1 ms"},
			{Name: "VPN_GW", Status: "down"},
			{Name: "WAN2_GW", Status: "down", StatusTranslated: "Offline"},
		}},
		Traffic: map[string]opnsense.InterfaceTraffic{
			"wan":  {Name: "wan", BytesReceived: "1073741824", BytesTransmitted: "536870912"},
			"lan":  {Name: "lan", BytesReceived: "bogus", BytesTransmitted: "0"},
			"ovpn": {Name: "ovpnc1 vpn", BytesReceived: "1"},
		},
	}

	want := strings.Join([]string{
		" <b>Matriz</b> 📍\n",
		"  - CPU: <code>12.5%</code> | Memory: <code>20%</code>",
		"  - Uptime: <code>1d 1h 1m</code>",
		"  - Avg CPU temp: <code>45.0°C</code>",
		"\n🛰️ <b>Gateway status:</b>\n",
		"  🟢 WAN_GW: Online\n     Loss: <code>0.0 %</code>  Latency: <code>10.1 ms</code>",
		"  🔴 WAN2_GW: Offline\n     Loss: <code>N/D</code>  Latency: <code>N/D</code>",
		"\n📊 <b>Network traffic</b>",
		"\n   <b>LAN:</b>\n    📥 Received: <code>0.00 GB</code>\n    📤 Transmitted: <code>0.00 GB</code>",
		"\n   <b>WAN:</b>\n    📥 Received: <code>1.00 GB</code>\n    📤 Transmitted: <code>0.50 GB</code>",
		footer,
	}, "\n")

	assert.Equal(t, want, newEnglish().Format(in))
}

func TestFormat_Portuguese(t *testing.T) {
	f := NewFormatter(language.BrazilianPortuguese, footerText, footerURL)
	got := f.Format(Input{
		Name:     "Filial",
		Activity: &opnsense.Activity{CPU: "3.5", Memory: "41", UptimeSeconds: 0},
		Traffic:  map[string]opnsense.InterfaceTraffic{"wan": {BytesReceived: "2147483648"}},
	})

	assert.Contains(t, got, "  - CPU: <code>3.5%</code> | Memória: <code>41%</code>")
	assert.Contains(t, got, "  - Tempo Ligado: <code>0m</code>")
	assert.Contains(t, got, "📊 <b>Tráfego de Rede</b>")
	assert.Contains(t, got, "📥 Recebido: <code>2.00 GB</code>")
	assert.Contains(t, got, "📤 Transmitido: <code>0.00 GB</code>")
}

func TestFormat_EscapesHTML(t *testing.T) {
	got := newEnglish().Format(Input{Name: "R&D <lab>"})
	assert.True(t, strings.HasPrefix(got, " <b>R&amp;D &lt;lab&gt;</b> 📍\n"))
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{0, "0m"},
		{59, "0m"},
		{60, "1m"},
		{3600, "1h"},
		{86400, "1d"},
		{90061, "1d 1h 1m"},
		{2*86400 + 5*60, "2d 5m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatUptime(tt.seconds), "seconds=%d", tt.seconds)
	}
}

func TestBytesToGB(t *testing.T) {
	assert.Equal(t, "1.00 GB", BytesToGB("1073741824"))
	assert.Equal(t, "0.00 GB", BytesToGB("0"))
	assert.Equal(t, "1.50 GB", BytesToGB("1610612736"))
	assert.Equal(t, "0.00 GB", BytesToGB("bogus"))
	assert.Equal(t, "0.00 GB", BytesToGB("1.5"))
	assert.Equal(t, "0.00 GB", BytesToGB(""))
}

func TestAverageCPUTemperature(t *testing.T) {
	_, ok := AverageCPUTemperature(nil)
	assert.False(t, ok)

	_, ok = AverageCPUTemperature([]opnsense.Temperature{{Type: "cpu", Temperature: "-5"}, {Type: "zone", Temperature: "30"}})
	assert.False(t, ok)

	avg, ok := AverageCPUTemperature([]opnsense.Temperature{{Type: "cpu", Temperature: "41."}, {Type: "cpu", Temperature: ".5e1"}, {Type: "cpu", Temperature: "43"}})
	assert.True(t, ok)
	assert.InDelta(t, 42.0, avg, 1e-9)
}

func TestFormatAlert(t *testing.T) {
	got := newEnglish().FormatAlert("Matriz", []string{"🔴 Gateway offline: WAN (status: down)", "🟡 High latency: WAN (75.30ms)"})
	assert.Equal(t, "🚨 <b>FIREWALL HEALTH ALERT: Matriz</b> 🚨\n\n🔴 Gateway offline: WAN (status: down)\n🟡 High latency: WAN (75.30ms)", got)
}

func TestFormatAllClear(t *testing.T) {
	got := newEnglish().FormatAllClear(2 * time.Minute)
	assert.Equal(t, "✅ <b>Status report</b>\n\nAll monitored firewalls are operating normally.\n\n<i>Next check in 2 minutes.</i>", got)

	pt := NewFormatter(language.BrazilianPortuguese, footerText, footerURL).FormatAllClear(2 * time.Minute)
	assert.Contains(t, pt, "Próxima verificação em 2 minutos.")
}

func TestFormatCritical(t *testing.T) {
	got := newEnglish().FormatCritical(errors.New("index <out> of range"))
	assert.Contains(t, got, "🆘 <b>CRITICAL ERROR IN THE MONITOR</b>")
	assert.Contains(t, got, "<code>index &lt;out&gt; of range</code>")
}

func TestFormatPolicyMessages(t *testing.T) {
	f := newEnglish()
	assert.Equal(t, "🔁 <b>Policy applied</b>: Matriz → <code>BLOCKED</code>", f.FormatPolicyChange("Matriz", "BLOCKED"))
	assert.Contains(t, f.FormatPolicyFailure("Matriz", "ALLOWED", errors.New("alias not found")), "<code>alias not found</code>")
}
