package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ConfigValueType defines the expected type for a configuration value.
type ConfigValueType int

const (
	TypeBool ConfigValueType = iota
	TypeInt
	TypeFloat
	TypeDuration
	TypeString
	TypeEnum
)

// String returns the string representation of ConfigValueType.
func (t ConfigValueType) String() string {
	switch t {
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeDuration:
		return "duration"
	case TypeString:
		return "string"
	case TypeEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// ConfigKeySchema defines a known configuration key with its expected type and validation rules.
type ConfigKeySchema struct {
	Path          string          // Dotted key path (e.g., "storage.backend")
	Type          ConfigValueType // Expected value type for validation
	AllowedValues []string        // Valid values for enum types (empty for non-enums)
	Description   string          // Human-readable description for help text
	Default       interface{}     // Default value
}

// KnownKeys lists the scalar configuration keys that 'symlog config set'
// accepts. Package definitions are edited in the YAML file directly.
var KnownKeys = map[string]ConfigKeySchema{
	"concurrency": {
		Path:        "concurrency",
		Type:        TypeInt,
		Description: "Parallel extractions per batch (1-64)",
		Default:     4,
	},
	"log_level": {
		Path:          "log_level",
		Type:          TypeEnum,
		AllowedValues: []string{"debug", "info", "warn", "error"},
		Description:   "Minimum log level",
		Default:       "info",
	},
	"log_file": {
		Path:        "log_file",
		Type:        TypeString,
		Description: "Write logs to this file instead of stderr",
		Default:     "",
	},
	"output_dir": {
		Path:        "output_dir",
		Type:        TypeString,
		Description: "Directory receiving a rendered CHANGELOG.md per package",
		Default:     "",
	},
	"metrics_file": {
		Path:        "metrics_file",
		Type:        TypeString,
		Description: "Prometheus textfile written after each run",
		Default:     "",
	},
	"otlp_endpoint": {
		Path:        "otlp_endpoint",
		Type:        TypeString,
		Description: "OTLP gRPC endpoint for traces (host:port)",
		Default:     "",
	},
	"storage.backend": {
		Path:          "storage.backend",
		Type:          TypeEnum,
		AllowedValues: []string{"file", "redis", "sqlite", "http"},
		Description:   "Publication backend",
		Default:       "file",
	},
	"storage.dir": {
		Path:        "storage.dir",
		Type:        TypeString,
		Description: "Root directory of the file backend",
		Default:     ".symlog/published",
	},
	"storage.redis_addr": {
		Path:        "storage.redis_addr",
		Type:        TypeString,
		Description: "Redis server address",
		Default:     "localhost:6379",
	},
	"storage.redis_password": {
		Path:        "storage.redis_password",
		Type:        TypeString,
		Description: "Redis password",
		Default:     "",
	},
	"storage.redis_db": {
		Path:        "storage.redis_db",
		Type:        TypeInt,
		Description: "Redis database number (0-15)",
		Default:     0,
	},
	"storage.sqlite_path": {
		Path:        "storage.sqlite_path",
		Type:        TypeString,
		Description: "SQLite database file",
		Default:     ".symlog/symlog.db",
	},
	"storage.http_base_url": {
		Path:        "storage.http_base_url",
		Type:        TypeString,
		Description: "Base URL of the HTTP document store",
		Default:     "",
	},
	"storage.http_token": {
		Path:        "storage.http_token",
		Type:        TypeString,
		Description: "Bearer token for the HTTP document store",
		Default:     "",
	},
	"storage.http_rate": {
		Path:        "storage.http_rate",
		Type:        TypeFloat,
		Description: "HTTP requests per second (0 = unlimited)",
		Default:     0.0,
	},
	"fetch.max_tries": {
		Path:        "fetch.max_tries",
		Type:        TypeInt,
		Description: "Attempts to read the published changelog (1-20)",
		Default:     4,
	},
	"fetch.initial_interval": {
		Path:        "fetch.initial_interval",
		Type:        TypeDuration,
		Description: "First retry delay",
		Default:     "500ms",
	},
	"fetch.max_interval": {
		Path:        "fetch.max_interval",
		Type:        TypeDuration,
		Description: "Upper bound on retry delay",
		Default:     "5s",
	},
	"cache.path": {
		Path:        "cache.path",
		Type:        TypeString,
		Description: "IR cache database (empty disables caching)",
		Default:     ".symlog/ir-cache.db",
	},
	"extractor.command": {
		Path:        "extractor.command",
		Type:        TypeString,
		Description: "Extractor command template containing {{SHA}}",
		Default:     "",
	},
	"extractor.dir": {
		Path:        "extractor.dir",
		Type:        TypeString,
		Description: "Directory of pre-extracted <sha>.json files",
		Default:     "",
	},
	"extractor.timeout": {
		Path:        "extractor.timeout",
		Type:        TypeDuration,
		Description: "Maximum duration of one extraction",
		Default:     "10m",
	},
	"history.path": {
		Path:        "history.path",
		Type:        TypeString,
		Description: "Build run log (empty disables it)",
		Default:     ".symlog/history.yaml",
	},
	"history.max_entries": {
		Path:        "history.max_entries",
		Type:        TypeInt,
		Description: "Entries kept in the run log (0 keeps all)",
		Default:     200,
	},
}

// SortedKeys returns the known key paths in lexical order.
func SortedKeys() []string {
	keys := make([]string, 0, len(KnownKeys))
	for k := range KnownKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ErrUnknownKey is returned when trying to access an unknown configuration key.
type ErrUnknownKey struct {
	Key string
}

func (e ErrUnknownKey) Error() string {
	return "unknown configuration key: " + e.Key
}

// GetKeySchema returns the schema for a known configuration key.
// Returns ErrUnknownKey if the key is not in the registry.
func GetKeySchema(path string) (ConfigKeySchema, error) {
	schema, ok := KnownKeys[path]
	if !ok {
		return ConfigKeySchema{}, ErrUnknownKey{Key: path}
	}
	return schema, nil
}

// InferType determines the ConfigValueType from a string value.
// Order of inference: bool literals -> integers -> durations -> string fallback.
func InferType(value string) ConfigValueType {
	if value == "true" || value == "false" {
		return TypeBool
	}
	if _, err := strconv.Atoi(value); err == nil {
		return TypeInt
	}
	if _, err := time.ParseDuration(value); err == nil {
		return TypeDuration
	}
	return TypeString
}

// ParsedValue represents a configuration value after type inference and validation.
type ParsedValue struct {
	Raw    string      // Original string input from user
	Parsed interface{} // Value converted to correct type
	Type   ConfigValueType
}

// ValidateValue validates a value against the schema for a given key.
// Returns the parsed value or an error with details about what's wrong.
func ValidateValue(key, value string) (ParsedValue, error) {
	schema, err := GetKeySchema(key)
	if err != nil {
		return ParsedValue{}, err
	}
	return validateAgainstSchema(schema, value)
}

// validateAgainstSchema validates a value against a specific schema.
func validateAgainstSchema(schema ConfigKeySchema, value string) (ParsedValue, error) {
	switch schema.Type {
	case TypeBool:
		return parseBoolValue(value)
	case TypeInt:
		return parseIntValue(value)
	case TypeFloat:
		return parseFloatValue(value)
	case TypeDuration:
		return parseDurationValue(value)
	case TypeEnum:
		return parseEnumValue(schema, value)
	case TypeString:
		return ParsedValue{Raw: value, Parsed: value, Type: TypeString}, nil
	default:
		return ParsedValue{}, fmt.Errorf("unsupported type: %v", schema.Type)
	}
}

// parseBoolValue parses and validates a boolean value.
func parseBoolValue(value string) (ParsedValue, error) {
	switch strings.ToLower(value) {
	case "true":
		return ParsedValue{Raw: value, Parsed: true, Type: TypeBool}, nil
	case "false":
		return ParsedValue{Raw: value, Parsed: false, Type: TypeBool}, nil
	default:
		return ParsedValue{}, fmt.Errorf("invalid boolean: %q (expected true or false)", value)
	}
}

// parseIntValue parses and validates an integer value.
func parseIntValue(value string) (ParsedValue, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return ParsedValue{}, fmt.Errorf("invalid integer: %q", value)
	}
	return ParsedValue{Raw: value, Parsed: n, Type: TypeInt}, nil
}

// parseFloatValue parses and validates a float value.
func parseFloatValue(value string) (ParsedValue, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return ParsedValue{}, fmt.Errorf("invalid float: %q", value)
	}
	return ParsedValue{Raw: value, Parsed: f, Type: TypeFloat}, nil
}

// parseDurationValue parses and validates a duration value.
func parseDurationValue(value string) (ParsedValue, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return ParsedValue{}, fmt.Errorf("invalid duration: %q (examples: 5m, 1h30m, 10s)", value)
	}
	return ParsedValue{Raw: value, Parsed: d.String(), Type: TypeDuration}, nil
}

// parseEnumValue validates a value against allowed enum options.
func parseEnumValue(schema ConfigKeySchema, value string) (ParsedValue, error) {
	for _, allowed := range schema.AllowedValues {
		if value == allowed {
			return ParsedValue{Raw: value, Parsed: value, Type: TypeEnum}, nil
		}
	}
	return ParsedValue{}, fmt.Errorf(
		"invalid value: %q (valid options: %s)",
		value,
		strings.Join(schema.AllowedValues, ", "),
	)
}
