package config

import "time"

// GetDefaultConfigTemplate returns a commented project config template.
func GetDefaultConfigTemplate() string {
	return `# symlog configuration
# See 'symlog config keys' for all options

concurrency: 4                        # Parallel extractions per batch (1-64)
log_level: info                       # debug | info | warn | error
log_file: ""                          # Write logs to a file instead of stderr
output_dir: ""                        # Render <package>/CHANGELOG.md here after publishing
metrics_file: ""                      # Prometheus textfile written after each run
otlp_endpoint: ""                     # OTLP gRPC endpoint for traces (host:port)

storage:
  backend: file                       # file | redis | sqlite | http
  dir: .symlog/published              # file backend root
  redis_addr: localhost:6379
  redis_password: ""                  # prefer SYMLOG_STORAGE__REDIS_PASSWORD in .env
  redis_db: 0
  sqlite_path: .symlog/symlog.db
  http_base_url: ""
  http_token: ""                      # prefer SYMLOG_STORAGE__HTTP_TOKEN in .env
  http_rate: 0                        # requests per second, 0 = unlimited

fetch:
  max_tries: 4                        # attempts to read the published changelog
  initial_interval: 500ms
  max_interval: 5s

cache:
  path: .symlog/ir-cache.db           # extracted IR by commit SHA, empty disables

extractor:
  command: ""                         # e.g. "api-extract --repo {{REPO}} --rev {{SHA}}"
  dir: ""                             # read pre-extracted <dir>/<sha>.json instead
  timeout: 10m

history:
  path: .symlog/history.yaml          # one entry per package build, empty disables
  max_entries: 200                    # oldest entries are pruned, 0 keeps all

packages: []
#  - id: "@acme/sdk"
#    name: Acme SDK
#    repo: .
#    tag_pattern: "@acme/sdk@*"
#    max_versions: 20
#    min_version: 1.0.0
#    always_include: []
#    extractor_command: ""
`
}

// GetDefaults returns the default configuration values.
func GetDefaults() map[string]interface{} {
	return map[string]interface{}{
		"concurrency":   4,
		"log_level":     "info",
		"log_file":      "",
		"output_dir":    "",
		"metrics_file":  "",
		"otlp_endpoint": "",
		"storage": map[string]interface{}{
			"backend":        "file",
			"dir":            ".symlog/published",
			"redis_addr":     "localhost:6379",
			"redis_password": "",
			"redis_db":       0,
			"sqlite_path":    ".symlog/symlog.db",
			"http_base_url":  "",
			"http_token":     "",
			"http_rate":      0.0,
		},
		"fetch": map[string]interface{}{
			"max_tries":        4,
			"initial_interval": (500 * time.Millisecond).String(),
			"max_interval":     (5 * time.Second).String(),
		},
		"cache": map[string]interface{}{
			"path": ".symlog/ir-cache.db",
		},
		"extractor": map[string]interface{}{
			"command": "",
			"dir":     "",
			"timeout": (10 * time.Minute).String(),
		},
		"history": map[string]interface{}{
			"path":        ".symlog/history.yaml",
			"max_entries": 200,
		},
	}
}
