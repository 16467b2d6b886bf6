package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/wonquotes/internal/logging"
)

// errInvalidArgument marks bad tool input.
var errInvalidArgument = errors.New("invalid argument")

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errInvalidArgument, fmt.Sprintf(format, args...))
}

// toolHandler returns the structured output and a one-line text summary.
type toolHandler[In, Out any] func(ctx context.Context, in In) (Out, string, error)

// addTool registers h with request correlation, metrics and logging.
func addTool[In, Out any](s *Server, name, description string, h toolHandler[In, Out]) {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        name,
		Description: description,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in In) (*mcp.CallToolResult, Out, error) {
		start := time.Now()
		ctx = logging.WithRequestID(ctx, uuid.NewString())
		s.metrics.IncrementActive(ctx, name)

		out, summary, err := h(ctx, in)

		s.metrics.DecrementActive(ctx, name)
		s.metrics.RecordInvocation(ctx, name, time.Since(start), err)
		if err != nil {
			s.logger.Warn(ctx, "tool call failed", zap.String("tool", name), zap.Error(err))
			var zero Out
			return nil, zero, err
		}
		s.logger.Debug(ctx, "tool call",
			zap.String("tool", name),
			zap.Duration("duration", time.Since(start)))
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: summary}},
		}, out, nil
	})
}

func requireItem(itemCode, description string) error {
	if strings.TrimSpace(itemCode) == "" && strings.TrimSpace(description) == "" {
		return invalidArgument("item_code or description is required")
	}
	return nil
}
