package metrics

import (
	"strconv"
	"strings"

	"grimm.is/opnwatch/internal/opnsense"
)

// ObserveGateways updates the per-gateway gauges from a status payload.
// Values that do not parse leave the previous sample in place.
func (r *Registry) ObserveGateways(instance string, status *opnsense.GatewayStatus) {
	if status == nil {
		return
	}
	for _, gw := range status.Items {
		if gw.Name == "" {
			continue
		}
		up := 0.0
		if gw.Status == opnsense.GatewayOnline || gw.Status == "none" {
			up = 1
		}
		r.GatewayUp.WithLabelValues(instance, gw.Name).Set(up)

		if v, ok := parseNumber(gw.Delay, "ms"); ok {
			r.GatewayDelay.WithLabelValues(instance, gw.Name).Set(v)
		}
		if v, ok := parseNumber(gw.Loss, "%"); ok {
			r.GatewayLoss.WithLabelValues(instance, gw.Name).Set(v)
		}
	}
}

// ObserveActivity updates CPU, memory and uptime gauges.
func (r *Registry) ObserveActivity(instance string, a *opnsense.Activity) {
	if a == nil {
		return
	}
	if v, err := strconv.ParseFloat(a.CPU, 64); err == nil {
		r.CPUUsage.WithLabelValues(instance).Set(v)
	}
	if v, err := strconv.ParseFloat(a.Memory, 64); err == nil {
		r.MemoryUsage.WithLabelValues(instance).Set(v)
	}
	r.Uptime.WithLabelValues(instance).Set(float64(a.UptimeSeconds))
}

// ObserveTemperature records the mean CPU temperature.
func (r *Registry) ObserveTemperature(instance string, celsius float64) {
	r.CPUTemperature.WithLabelValues(instance).Set(celsius)
}

// ObserveTraffic records the byte counters of every interface.
func (r *Registry) ObserveTraffic(instance string, traffic map[string]opnsense.InterfaceTraffic) {
	for key, iface := range traffic {
		if v, err := iface.BytesReceived.Int(); err == nil {
			r.InterfaceRx.WithLabelValues(instance, key).Set(float64(v))
		}
		if v, err := iface.BytesTransmitted.Int(); err == nil {
			r.InterfaceTx.WithLabelValues(instance, key).Set(float64(v))
		}
	}
}

// parseNumber reads a float out of strings like "12.3 ms" or "0.0 %".
func parseNumber(s, unit string) (float64, bool) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), unit))
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}
