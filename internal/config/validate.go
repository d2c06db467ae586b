package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"bifrost-graphql/internal/dialect"
	"bifrost-graphql/internal/naming"
)

// ValidationError represents a configuration validation error with context.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Field, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// ValidationResult contains the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error returns a combined error message if there are validation errors.
func (r *ValidationResult) Error() string {
	if !r.HasErrors() {
		return ""
	}
	var msgs []string
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for errors and returns validation results.
// It returns both errors (fatal) and warnings (non-fatal issues).
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}

	c.Database.validate(result)
	c.Metadata.validate(result)
	c.TreeSync.validate(result)
	c.Server.validate(result)
	c.Observability.validate(result)
	validateNamingConfig(result, c.Naming)

	return result
}

func (d *DatabaseConfig) validate(result *ValidationResult) {
	resolved, dialectErr := dialect.FromName(d.Dialect)
	if dialectErr != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.dialect",
			Message: dialectErr.Error(),
			Hint:    "valid values are: sqlserver, postgres, mysql, sqlite",
		})
	}

	if strings.TrimSpace(d.DSN) == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.dsn",
			Message: "connection string is required",
			Hint:    "set database.dsn or database.dsn_file",
		})
	} else {
		if strings.Contains(d.DSN, passwordPlaceholder) && d.Password == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "database.password",
				Message: "DSN references ${password} but no password is configured",
				Hint:    "set database.password, database.password_file, or database.password_prompt",
			})
		}
		if !strings.Contains(d.DSN, passwordPlaceholder) && d.Password != "" {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Field:   "database.password",
				Message: "password is set but database.dsn carries no ${password} token",
				Hint:    "add ${password} to the DSN where the password belongs",
			})
		}
		if dialectErr == nil {
			if err := d.dsnParseError(); err != nil {
				result.Errors = append(result.Errors, ValidationError{
					Field:   "database.dsn",
					Message: fmt.Sprintf("invalid DSN for dialect %s: %v", resolved.Name(), err),
				})
			}
		}
	}

	// Connection pool validation
	if d.Pool.MaxOpen < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.pool.max_open",
			Message: "max_open cannot be negative",
		})
	}
	if d.Pool.MaxIdle < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.pool.max_idle",
			Message: "max_idle cannot be negative",
		})
	}
	if d.Pool.MaxIdle > d.Pool.MaxOpen && d.Pool.MaxOpen > 0 {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "database.pool.max_idle",
			Message: "max_idle is greater than max_open",
			Hint:    "idle connections will be limited to max_open",
		})
	}
	if dialectErr == nil && resolved == dialect.SQLite && d.Pool.MaxOpen > 1 {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "database.pool.max_open",
			Message: "sqlite serializes writers; concurrent connections can hit SQLITE_BUSY",
			Hint:    "set database.pool.max_open=1 for write-heavy workloads",
		})
	}

	// Connection retry validation
	if d.ConnectionTimeout > 0 && d.ConnectionRetryInterval > d.ConnectionTimeout {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "database.connection_retry_interval",
			Message: "connection_retry_interval is greater than connection_timeout",
			Hint:    "only one connection attempt will be made",
		})
	}
	if d.ConnectionRetryInterval < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.connection_retry_interval",
			Message: "connection_retry_interval cannot be negative",
		})
	}
	if d.ConnectionTimeout > 0 && d.ConnectionRetryInterval == 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.connection_retry_interval",
			Message: "connection_retry_interval must be greater than 0 when connection_timeout is set",
			Hint:    "set a retry interval such as 2s, or set connection_timeout to 0 to disable retries",
		})
	}
	if d.ConnectionTimeout < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.connection_timeout",
			Message: "connection_timeout cannot be negative",
		})
	}
	if d.QueryTimeout < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.query_timeout",
			Message: "query_timeout cannot be negative",
		})
	}
}

func (m *MetadataConfig) validate(result *ValidationResult) {
	if m.TableEnabled && strings.TrimSpace(m.Table) == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "metadata.table",
			Message: "metadata table name cannot be empty when table_enabled is true",
			Hint:    "leave metadata.table unset to use bifrost_metadata",
		})
	}
}

func (t *TreeSyncConfig) validate(result *ValidationResult) {
	if t.MaxDepth < 1 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "treesync.max_depth",
			Message: fmt.Sprintf("max_depth must be at least 1, got %d", t.MaxDepth),
		})
	}
}

func (s *ServerConfig) validate(result *ValidationResult) {
	// Port range validation
	if s.Port < 1 || s.Port > 65535 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port %d is out of valid range (1-65535)", s.Port),
		})
	}

	if s.UserContextHeader == "" {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "server.user_context_header",
			Message: "user context parsing is disabled",
			Hint:    "requests will carry no tenant, role, or audit identity",
		})
	}

	if s.SchemaRefreshInterval < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.schema_refresh_interval",
			Message: "schema_refresh_interval cannot be negative",
		})
	}
	if s.SchemaRefreshInterval > 0 && s.SchemaRefreshInterval < 30*time.Second {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "server.schema_refresh_interval",
			Message: "schema refresh interval is very short",
			Hint:    "each refresh re-reads the full database catalog",
		})
	}

	// CORS validation
	if s.CORSEnabled {
		if len(s.CORSAllowedOrigins) == 0 {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "server.cors_allowed_origins",
				Message: "CORS enabled but no allowed origins configured",
				Hint:    "set cors_allowed_origins or disable CORS",
			})
		}

		hasWildcard := false
		for _, origin := range s.CORSAllowedOrigins {
			if strings.TrimSpace(origin) == "*" {
				hasWildcard = true
				break
			}
		}

		if hasWildcard && s.CORSAllowCredentials {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "server.cors_allowed_origins",
				Message: "wildcard origin (*) cannot be used with credentials",
				Hint:    "use specific origins with credentials, or wildcard without credentials",
			})
		}

		if hasWildcard {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Field:   "server.cors_allowed_origins",
				Message: "CORS wildcard origin enabled",
				Hint:    "use specific origins in production for better security",
			})
		}
	}

	tlsEnabled := s.TLSMode != "" && s.TLSMode != "off"
	if s.CORSEnabled && tlsEnabled && len(s.CORSAllowedOrigins) > 0 {
		onlyHTTP := true
		for _, origin := range s.CORSAllowedOrigins {
			origin = strings.TrimSpace(origin)
			if origin == "" || origin == "*" {
				onlyHTTP = false
				break
			}
			if strings.HasPrefix(origin, "https://") {
				onlyHTTP = false
				break
			}
			if !strings.HasPrefix(origin, "http://") {
				onlyHTTP = false
				break
			}
		}
		if onlyHTTP {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Field:   "server.cors_allowed_origins",
				Message: "CORS allowed origins are http:// only while TLS is enabled",
				Hint:    "use https:// origins when serving over TLS",
			})
		}
	}

	// TLS validation
	validTLSModes := map[string]bool{"": true, "off": true, "auto": true, "file": true}
	if !validTLSModes[s.TLSMode] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.tls_mode",
			Message: fmt.Sprintf("invalid TLS mode %q", s.TLSMode),
			Hint:    "valid values are: off, auto, file",
		})
	}

	if s.TLSMode == "file" {
		if s.TLSCertFile == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "server.tls_cert_file",
				Message: "TLS cert file required when tls_mode is 'file'",
			})
		}
		if s.TLSKeyFile == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "server.tls_key_file",
				Message: "TLS key file required when tls_mode is 'file'",
			})
		}
	}
}

func validateNamingConfig(result *ValidationResult, cfg naming.Config) {
	validateOverrideMap(result, "naming.plural_overrides", cfg.PluralOverrides)
	validateOverrideMap(result, "naming.singular_overrides", cfg.SingularOverrides)
}

func validateOverrideMap(result *ValidationResult, field string, overrides map[string]string) {
	for from, to := range overrides {
		if strings.TrimSpace(from) == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   field,
				Message: "override key cannot be empty",
			})
			continue
		}
		if strings.TrimSpace(to) == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("override for %q cannot be empty", from),
			})
		}
	}
}

func (o *ObservabilityConfig) validate(result *ValidationResult) {
	// Log level validation
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[o.Logging.Level] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.logging.level",
			Message: fmt.Sprintf("invalid log level %q", o.Logging.Level),
			Hint:    "valid values are: debug, info, warn, error",
		})
	}

	// Log format validation
	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[o.Logging.Format] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.logging.format",
			Message: fmt.Sprintf("invalid log format %q", o.Logging.Format),
			Hint:    "valid values are: json, text",
		})
	}

	if o.TraceSampleRatio < 0 || o.TraceSampleRatio > 1 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.trace_sample_ratio",
			Message: fmt.Sprintf("trace_sample_ratio %v is out of range (0.0-1.0)", o.TraceSampleRatio),
		})
	}

	// OTLP protocol validation
	o.OTLP.validate("observability.otlp", result)

	// Signal-specific OTLP validation
	if o.Traces != nil {
		o.Traces.validate("observability.traces", result)
	}
	if o.Logs != nil {
		o.Logs.validate("observability.logs", result)
	}
	if o.Metrics != nil {
		o.Metrics.validate("observability.metrics", result)
	}
}

func (o *OTLPConfig) validate(prefix string, result *ValidationResult) {
	validProtocols := map[string]bool{"": true, "grpc": true, "http/protobuf": true}
	if !validProtocols[o.Protocol] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   prefix + ".protocol",
			Message: fmt.Sprintf("invalid OTLP protocol %q", o.Protocol),
			Hint:    "valid values are: grpc, http/protobuf",
		})
	}

	if o.Protocol == "http/protobuf" {
		if !validOTLPEndpoint(o.Endpoint) {
			result.Errors = append(result.Errors, ValidationError{
				Field:   prefix + ".endpoint",
				Message: fmt.Sprintf("invalid OTLP endpoint %q for http/protobuf", o.Endpoint),
				Hint:    "use host:port or a full URL",
			})
		}
	}

	validCompressions := map[string]bool{"": true, "none": true, "gzip": true}
	if !validCompressions[o.Compression] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   prefix + ".compression",
			Message: fmt.Sprintf("invalid OTLP compression %q", o.Compression),
			Hint:    "valid values are: none, gzip",
		})
	}

	if o.RetryMaxAttempts < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   prefix + ".retry_max_attempts",
			Message: "retry_max_attempts cannot be negative",
		})
	}
}

func validOTLPEndpoint(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	if strings.Contains(endpoint, "://") {
		parsed, err := url.Parse(endpoint)
		if err != nil {
			return false
		}
		return parsed.Host != ""
	}
	_, _, err := net.SplitHostPort(endpoint)
	return err == nil
}
