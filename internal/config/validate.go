package config

import (
	"errors"
	"fmt"
	"net"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report HCL attribute names instead of Go field names.
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("hcl"), ",", 2)[0]
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
	})
	return validate
}

// Validate checks the struct tags and the cross-field rules. ApplyDefaults
// must have run first.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if err := structValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			errs = append(errs, ValidationError{
				Field:   fieldPath(fe.Namespace()),
				Message: describe(fe),
			})
		}
	}

	if c.SchemaVersion != CurrentSchemaVersion {
		errs = append(errs, ValidationError{Field: "schema_version", Message: fmt.Sprintf("unsupported version %q", c.SchemaVersion)})
	}

	seen := make(map[string]bool)
	for _, inst := range c.Instances {
		if seen[inst.Name] {
			errs = append(errs, ValidationError{Field: "instance." + inst.Name, Message: "duplicate instance name"})
		}
		seen[inst.Name] = true
		if c.Mode == ModeControl && inst.AliasName == "" {
			errs = append(errs, ValidationError{Field: "instance." + inst.Name + ".alias_name", Message: "required in control mode"})
		}
	}

	if c.Mode == ModeControl {
		if len(c.Policy.BlockedContent) == 0 {
			errs = append(errs, ValidationError{Field: "policy.blocked_content", Message: "required in control mode"})
		}
		if len(c.Policy.AllowedContent) == 0 {
			errs = append(errs, ValidationError{Field: "policy.allowed_content", Message: "required in control mode"})
		}
	}
	if c.Policy.LunchStartAt >= c.Policy.LunchEndAt {
		errs = append(errs, ValidationError{Field: "policy.lunch_end", Message: "must be after lunch_start"})
	}

	if c.Telegram == nil && !c.hasEnabledChannel() {
		errs = append(errs, ValidationError{Field: "telegram", Message: "no notification channel configured"})
	}
	for _, ch := range c.Channels {
		switch ch.Type {
		case "webhook", "slack", "discord":
			if ch.WebhookURL == "" {
				errs = append(errs, ValidationError{Field: "channel." + ch.Name + ".webhook_url", Message: "required for type " + ch.Type})
			}
		case "ntfy":
			if ch.Topic == "" {
				errs = append(errs, ValidationError{Field: "channel." + ch.Name + ".topic", Message: "required for ntfy"})
			}
		}
	}

	if c.MetricsListen != "" {
		if _, port, err := net.SplitHostPort(c.MetricsListen); err != nil || port == "" {
			errs = append(errs, ValidationError{Field: "metrics_listen", Message: fmt.Sprintf("invalid listen address %q", c.MetricsListen)})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (c *Config) hasEnabledChannel() bool {
	for _, ch := range c.Channels {
		if ch.Enabled {
			return true
		}
	}
	return false
}

// fieldPath drops the root struct name: "Config.instance[0].url" -> "instance[0].url".
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("needs at least %s entries", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "url":
		return fmt.Sprintf("%q is not a valid URL", fe.Value())
	case "len", "hexadecimal":
		return "must be a 64 character hex SHA-256 fingerprint"
	}
	return fmt.Sprintf("failed %q validation", fe.Tag())
}
