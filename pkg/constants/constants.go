// Package constants provides shared constants used throughout the registrar codebase.
// This includes timeouts, catalog routes, payload defaults and file permissions
// that should be consistent across the application.
package constants

import "time"

// Timeout constants define various timeout durations used in the application
const (
	// DefaultHTTPTimeout is the standard timeout applied by the transport to catalog requests
	DefaultHTTPTimeout = 30 * time.Second

	// CommandTimeout bounds a single register run from the CLI
	CommandTimeout = 5 * time.Minute
)

// File permission constants define standard Unix file permissions
const (
	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Catalog API routes, relative to the configured base URL.
const (
	// ResourcesPath lists and creates preliminary analysis resources
	ResourcesPath = "/api/preliminary-analysis"

	// BuildsPath is the prefix for build (data release) records
	BuildsPath = "/api/data"

	// LinkedResourcesSegment is the build sub-collection of linked analyses
	LinkedResourcesSegment = "external_analysis"

	// RoleSegment is the resource sub-collection of role grants
	RoleSegment = "role"

	// RelSegment marks a relation endpoint in LoopBack style routes
	RelSegment = "rel"
)

// Default values
const (
	// APIKeyHeader carries the static catalog API key on every request
	APIKeyHeader = "user_key"

	// DefaultRole is granted when no role list is supplied
	DefaultRole = "cmap_core"

	// DefaultCreatedBy tags resources created by this tool
	DefaultCreatedBy = "MTS"

	// ReviewPrefix marks display names of reports that are not yet approved
	ReviewPrefix = "REVIEW--"

	// DefaultConfigName is the config file name searched in $HOME and the working directory
	DefaultConfigName = ".registrar"
)
