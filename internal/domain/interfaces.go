package domain

import (
	"context"
	"io"
)

// Scorer evaluates Rotterdam criteria, risk and recommendations for one input.
type Scorer interface {
	Assess(input AssessmentInput) (*AssessmentResult, error)
}

// AssessmentRepository defines persistence for patient tracker records
type AssessmentRepository interface {
	Save(ctx context.Context, record *AssessmentRecord) error
	Get(ctx context.Context, id string) (*AssessmentRecord, error)
	List(ctx context.Context, limit, offset int) ([]*AssessmentRecord, error)
	Delete(ctx context.Context, id string) error
	Summary(ctx context.Context) (*TrackerSummary, error)
}

// AssessmentExporter is implemented by repositories that can dump every record as JSON.
type AssessmentExporter interface {
	ExportJSON(ctx context.Context, writer io.Writer) error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetServerConfig() *ServerConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetDatabaseURL() string
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
