package opnsense

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Endpoints relative to /api/.
const (
	endpointGatewayStatus = "routes/gateway/status"
	endpointActivity      = "diagnostics/activity/get_activity"
	endpointTemperature   = "diagnostics/system/system_temperature"
	endpointTraffic       = "diagnostics/traffic/_interface"
	endpointAliasSearch   = "firewall/alias/searchItem"
	endpointAliasGet      = "firewall/alias/getItem/"
	endpointAliasSet      = "firewall/alias/setItem/"
	endpointAliasApply    = "firewall/alias/reconfigure"
)

var (
	// ErrAliasNotFound is returned when no alias matches the requested name.
	ErrAliasNotFound = errors.New("alias not found")
	// ErrUnexpectedResult is returned when a write call answers 2xx but
	// does not confirm the change.
	ErrUnexpectedResult = errors.New("unexpected result")
)

// GatewayStatus fetches routes/gateway/status.
func (c *Client) GatewayStatus(ctx context.Context) (*GatewayStatus, error) {
	var status GatewayStatus
	if err := c.doRequest(ctx, http.MethodGet, endpointGatewayStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Activity fetches and parses diagnostics/activity/get_activity.
func (c *Client) Activity(ctx context.Context) (*Activity, error) {
	var raw struct {
		Headers []string `json:"headers"`
	}
	if err := c.doRequest(ctx, http.MethodGet, endpointActivity, nil, &raw); err != nil {
		return nil, err
	}
	activity := ParseActivity(raw.Headers)
	return &activity, nil
}

// Temperatures fetches diagnostics/system/system_temperature.
func (c *Client) Temperatures(ctx context.Context) ([]Temperature, error) {
	var temps []Temperature
	if err := c.doRequest(ctx, http.MethodGet, endpointTemperature, nil, &temps); err != nil {
		return nil, err
	}
	return temps, nil
}

// Traffic fetches diagnostics/traffic/_interface keyed by interface id.
func (c *Client) Traffic(ctx context.Context) (map[string]InterfaceTraffic, error) {
	var raw struct {
		Interfaces map[string]InterfaceTraffic `json:"interfaces"`
	}
	if err := c.doRequest(ctx, http.MethodGet, endpointTraffic, nil, &raw); err != nil {
		return nil, err
	}
	return raw.Interfaces, nil
}

// FindAliasUUID resolves an alias name to its UUID.
func (c *Client) FindAliasUUID(ctx context.Context, name string) (string, error) {
	var resp struct {
		Rows []AliasRow `json:"rows"`
	}
	if err := c.doRequest(ctx, http.MethodGet, endpointAliasSearch, nil, &resp); err != nil {
		return "", err
	}
	for _, row := range resp.Rows {
		if row.Name == name {
			c.logger.Debug("alias resolved", "alias", name, "uuid", row.UUID)
			return row.UUID, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrAliasNotFound, name)
}

// AliasContent returns the selected content entries of an alias, sorted.
func (c *Client) AliasContent(ctx context.Context, uuid string) ([]string, error) {
	var resp struct {
		Alias struct {
			Content map[string]struct {
				Value    string     `json:"value"`
				Selected FlexString `json:"selected"`
			} `json:"content"`
		} `json:"alias"`
	}
	if err := c.doRequest(ctx, http.MethodGet, endpointAliasGet+uuid, nil, &resp); err != nil {
		return nil, err
	}

	var content []string
	for key, opt := range resp.Alias.Content {
		switch strings.ToLower(opt.Selected.String()) {
		case "1", "true":
			if opt.Value != "" {
				content = append(content, opt.Value)
			} else {
				content = append(content, key)
			}
		}
	}
	sort.Strings(content)
	return content, nil
}

// SetAliasContent replaces the content of an alias. The change is staged
// until ApplyAliases is called.
func (c *Client) SetAliasContent(ctx context.Context, uuid string, content []string) error {
	payload := map[string]any{
		"alias": map[string]string{
			"content": strings.Join(content, "\n"),
		},
	}
	var resp struct {
		Result string `json:"result"`
	}
	if err := c.doRequest(ctx, http.MethodPost, endpointAliasSet+uuid, payload, &resp); err != nil {
		return err
	}
	if resp.Result != "saved" {
		return fmt.Errorf("%w: setItem returned result %q", ErrUnexpectedResult, resp.Result)
	}
	return nil
}

// ApplyAliases asks the appliance to reload its aliases.
func (c *Client) ApplyAliases(ctx context.Context) error {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doRequest(ctx, http.MethodPost, endpointAliasApply, nil, &resp); err != nil {
		return err
	}
	if strings.TrimSpace(resp.Status) != "ok" {
		return fmt.Errorf("%w: reconfigure returned status %q", ErrUnexpectedResult, resp.Status)
	}
	return nil
}
