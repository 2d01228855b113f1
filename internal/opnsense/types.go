package opnsense

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// GatewayOnline is the status marker the health check treats as healthy.
const GatewayOnline = "online"

// Gateway is one entry of routes/gateway/status.
type Gateway struct {
	Name             string `json:"name"`
	Address          string `json:"address"`
	Status           string `json:"status"`
	StatusTranslated string `json:"status_translated"`
	Loss             string `json:"loss"`
	Delay            string `json:"delay"`
	Stddev           string `json:"stddev"`
	Monitor          string `json:"monitor"`
}

// GatewayStatus is the routes/gateway/status payload. A nil Items slice
// means the appliance did not return a gateway collection at all.
type GatewayStatus struct {
	Items  []Gateway `json:"items"`
	Status string    `json:"status"`
}

// Temperature is one sensor of diagnostics/system/system_temperature.
type Temperature struct {
	Device         string     `json:"device"`
	DeviceSeq      FlexString `json:"device_seq"`
	Temperature    FlexString `json:"temperature"`
	Type           string     `json:"type"`
	TypeTranslated string     `json:"type_translated"`
}

// InterfaceTraffic holds the counters of one interface in
// diagnostics/traffic/_interface.
type InterfaceTraffic struct {
	Name             string     `json:"name"`
	BytesReceived    FlexString `json:"bytes received"`
	BytesTransmitted FlexString `json:"bytes transmitted"`
}

// Activity is the parsed result of diagnostics/activity/get_activity.
// CPU and Memory are percentages rendered as text, or "N/D" when the
// header line could not be parsed.
type Activity struct {
	CPU           string
	Memory        string
	UptimeSeconds int64
}

// AliasRow is one row of firewall/alias/searchItem.
type AliasRow struct {
	UUID        string `json:"uuid"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Content     string `json:"content"`
}

// FlexString accepts both JSON strings and numbers, keeping the raw text.
// OPNsense is not consistent about quoting numeric fields.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		// Booleans and objects are kept verbatim rather than rejected.
		*f = FlexString(data)
		return nil
	}
	*f = FlexString(n.String())
	return nil
}

// String returns the raw text.
func (f FlexString) String() string {
	return string(f)
}

// Int parses the value as a base-10 integer.
func (f FlexString) Int() (int64, error) {
	return strconv.ParseInt(string(f), 10, 64)
}
