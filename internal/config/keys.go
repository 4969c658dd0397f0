package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// KeySpec describes a single configuration key.
type KeySpec struct {
	// Name is the CLI-facing key name (e.g. "default-provider").
	Name string

	// Description is a short human-readable explanation shown in help text.
	Description string

	// Get returns the current value for this key from a loaded Config.
	Get func(cfg *Config) string

	// Set parses and applies a value for this key to the given Config (in
	// memory only; the caller is responsible for calling Save).
	Set func(cfg *Config, value string) error
}

// Keys is the authoritative list of all supported configuration keys.
// To add a new option: add a field to Config and append a KeySpec here.
var Keys = []KeySpec{
	stringKey("default-provider", "Cloud provider used when --provider is not specified",
		func(c *Config) *string { return &c.DefaultProvider }),
	stringKey("region", "Region for the aws provider (overrides the SDK default chain)",
		func(c *Config) *string { return &c.Region }),
	intKey("lookback-minutes", "Length of the query window in minutes (default 60)",
		func(c *Config) *int { return &c.LookbackMinutes }),
	intKey("period-seconds", "Aggregation period in seconds (default 300)",
		func(c *Config) *int { return &c.PeriodSeconds }),
	intKey("concurrency", "Maximum concurrent metric queries (default 4)",
		func(c *Config) *int { return &c.Concurrency }),
	intKey("batch-size", "Queries combined into one backend call, 1-500 (default 1)",
		func(c *Config) *int { return &c.BatchSize }),
	intKey("query-timeout-seconds", "Timeout for a single metric query (default 30)",
		func(c *Config) *int { return &c.QueryTimeoutSeconds }),
	stringKey("log-level", "Log level: debug, info, warn or error (default info)",
		func(c *Config) *string { return &c.LogLevel }),
	{
		Name:        "kafka-brokers",
		Description: "Comma-separated Kafka brokers for --output kafka",
		Get:         func(c *Config) string { return strings.Join(c.KafkaBrokers, ",") },
		Set: func(c *Config, v string) error {
			c.KafkaBrokers = splitList(v)
			return nil
		},
	},
	stringKey("kafka-topic", "Kafka topic for --output kafka",
		func(c *Config) *string { return &c.KafkaTopic }),
}

func stringKey(name, desc string, field func(*Config) *string) KeySpec {
	return KeySpec{
		Name:        name,
		Description: desc,
		Get:         func(c *Config) string { return *field(c) },
		Set: func(c *Config, v string) error {
			*field(c) = v
			return nil
		},
	}
}

// intKey accepts non-negative integers; zero resets to the default.
func intKey(name, desc string, field func(*Config) *int) KeySpec {
	return KeySpec{
		Name:        name,
		Description: desc,
		Get: func(c *Config) string {
			if v := *field(c); v != 0 {
				return strconv.Itoa(v)
			}
			return ""
		},
		Set: func(c *Config, v string) error {
			n, err := cast.ToIntE(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s must be an integer: %w", name, err)
			}
			if n < 0 {
				return fmt.Errorf("%s must not be negative, got %d", name, n)
			}
			*field(c) = n
			return nil
		},
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Lookup returns the KeySpec for the given name, or nil if not found.
// The name is matched case-insensitively after trimming whitespace.
func Lookup(name string) *KeySpec {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for i := range Keys {
		if Keys[i].Name == normalized {
			return &Keys[i]
		}
	}
	return nil
}

// KeyNames returns the names of all registered keys.
func KeyNames() []string {
	names := make([]string, len(Keys))
	for i, k := range Keys {
		names[i] = k.Name
	}
	return names
}

// KeysHelp builds a formatted block listing all available keys and their
// descriptions, suitable for inclusion in Cobra Long help text.
func KeysHelp() string {
	if len(Keys) == 0 {
		return ""
	}

	maxLen := 0
	for _, k := range Keys {
		if len(k.Name) > maxLen {
			maxLen = len(k.Name)
		}
	}

	var b strings.Builder
	b.WriteString("Available keys:\n")
	for _, k := range Keys {
		fmt.Fprintf(&b, "  %-*s   %s\n", maxLen, k.Name, k.Description)
	}
	return b.String()
}
