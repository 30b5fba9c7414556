package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fxding/forks/pkg/telemetry"
	"github.com/fxding/forks/pkg/version"
)

func initTracing(ctx context.Context) (func(context.Context) error, error) {
	return telemetry.InitTracer(ctx, cfg.TelemetryConfig(version.Get().Version))
}

// operationName is the command path below the root, e.g. "source add".
func operationName(cmd *cobra.Command) string {
	path := cmd.CommandPath()
	if root := cmd.Root(); root != cmd {
		path = strings.TrimPrefix(path, root.Name()+" ")
	}
	return path
}

// commandAttributes names what a command acts on. Skill and source commands
// take their subject as the first argument; --agent narrows it to one agent.
func commandAttributes(cmd *cobra.Command, args []string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{telemetry.OperationKey.String(operationName(cmd))}

	if len(args) > 0 && cmd.HasParent() {
		switch cmd.Parent().Name() {
		case "skill":
			attrs = append(attrs, telemetry.SkillKey.String(args[0]))
		case "source":
			attrs = append(attrs, telemetry.SourceKey.String(args[0]))
		}
	}
	if agent, err := cmd.Flags().GetString("agent"); err == nil && agent != "" {
		attrs = append(attrs, telemetry.AgentKey.String(agent))
	} else if list, err := cmd.Flags().GetStringSlice("agent"); err == nil && len(list) > 0 {
		attrs = append(attrs, telemetry.AgentKey.StringSlice(list))
	}
	return attrs
}

// withTracing runs cmd inside a span named after its operation.
func withTracing(cmd *cobra.Command) *cobra.Command {
	run := cmd.Run
	cmd.Run = func(cmd *cobra.Command, args []string) {
		ctx, span := telemetry.Tracer().Start(cmd.Context(), "forks "+operationName(cmd),
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(commandAttributes(cmd, args)...))
		defer span.End()

		cmd.SetContext(ctx)
		run(cmd, args)
		span.SetStatus(codes.Ok, "")
	}
	return cmd
}
