package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/metric"

	"github.com/fyrsmithlabs/wonquotes/internal/history"
	"github.com/fyrsmithlabs/wonquotes/internal/logging"
	"github.com/fyrsmithlabs/wonquotes/internal/matching"
	"github.com/fyrsmithlabs/wonquotes/internal/oracle"
	"github.com/fyrsmithlabs/wonquotes/internal/quotes"
	"github.com/fyrsmithlabs/wonquotes/internal/winprob"
)

// KnowledgeBase is the record-store surface the tools need.
type KnowledgeBase interface {
	Ingest(ctx context.Context, in quotes.RecordInput) (quotes.PriceRecord, error)
	IngestBatch(ctx context.Context, inputs []quotes.RecordInput) (quotes.BatchStats, error)
	Get(id string) (quotes.PriceRecord, bool)
	Stats() quotes.Stats
}

// Matcher finds comparable records.
type Matcher interface {
	FindSimilar(ctx context.Context, q matching.Query, opts matching.Options) []matching.Match
}

// Services are the components behind the tools. All are required.
type Services struct {
	KnowledgeBase KnowledgeBase
	Matcher       Matcher
	History       history.Provider
	Estimator     *winprob.Estimator
	Oracle        *oracle.Oracle
}

func (s Services) validate() error {
	var errs []error
	if s.KnowledgeBase == nil {
		errs = append(errs, errors.New("knowledge base is required"))
	}
	if s.Matcher == nil {
		errs = append(errs, errors.New("matcher is required"))
	}
	if s.History == nil {
		errs = append(errs, errors.New("history provider is required"))
	}
	if s.Estimator == nil {
		errs = append(errs, errors.New("estimator is required"))
	}
	if s.Oracle == nil {
		errs = append(errs, errors.New("oracle is required"))
	}
	return errors.Join(errs...)
}

// Config configures the MCP server.
type Config struct {
	// Name is the implementation name (default "wonquotes").
	Name string

	// Version is the implementation version (default "dev").
	Version string

	Logger        *logging.Logger
	MeterProvider metric.MeterProvider
}

// DefaultConfig returns the defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "wonquotes",
		Version: "dev",
		Logger:  logging.Nop(),
	}
}

// Server serves the tools.
type Server struct {
	mcp      *mcp.Server
	services Services
	metrics  *Metrics
	logger   *logging.Logger
}

// NewServer creates the MCP server and registers every tool.
func NewServer(cfg *Config, services Services) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	if err := services.validate(); err != nil {
		return nil, err
	}

	s := &Server{
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		services: services,
		metrics:  NewMetrics(cfg.MeterProvider, cfg.Logger.Underlying()),
		logger:   cfg.Logger.Named("mcp"),
	}
	s.registerKnowledgeBaseTools()
	s.registerPricingTools()
	return s, nil
}

// Run serves on stdio until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info(ctx, "starting MCP server on stdio transport")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// Connect serves a single session over t.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcp.Connect(ctx, t, nil)
}
