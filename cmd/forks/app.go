package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/fxding/forks/pkg/errdefs"
	"github.com/fxding/forks/pkg/installer"
	"github.com/fxding/forks/pkg/osutil"
	"github.com/fxding/forks/pkg/presenter"
	"github.com/fxding/forks/pkg/projects"
	"github.com/fxding/forks/pkg/runner"
	"github.com/fxding/forks/pkg/search"
	"github.com/fxding/forks/pkg/service"
	"github.com/fxding/forks/pkg/skills"
	"github.com/fxding/forks/pkg/sources"
	"github.com/fxding/forks/pkg/staleness"
)

// newService wires the components from the loaded configuration. The
// returned service is cancelled when ctx is, so Ctrl-C kills any running
// git or install subprocess.
func newService(ctx context.Context) (*service.Service, error) {
	home, err := osutil.HomeDir()
	if err != nil {
		return nil, err
	}

	r := runner.New()
	cache := sources.NewManager(cfg.RegistryRoot,
		sources.WithGitBinary(cfg.Git.Binary),
		sources.WithHost(cfg.Git.Host),
		sources.WithRunner(r),
	)

	discovery, err := skills.NewDiscovery(skills.WithIncludeInternal(cfg.IncludeInternal || skills.InternalEnabled()))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create skill discovery")
	}

	inst := installer.New(
		installer.WithCommand(cfg.Installer.Command, cfg.Installer.Args...),
		installer.WithPath(cfg.Installer.Path),
		installer.WithRunner(r),
	)

	svc, err := service.New(cfg.RegistryRoot, home,
		service.WithSourceManager(cache),
		service.WithDiscovery(discovery),
		service.WithInstaller(inst),
		service.WithRefresherOptions(
			staleness.WithMinInterval(cfg.Sweep.MinInterval),
			staleness.WithDelay(cfg.Sweep.Delay),
		),
	)
	if err != nil {
		return nil, err
	}

	go func() {
		<-ctx.Done()
		svc.Cancel()
	}()
	return svc, nil
}

func newProjectStore(svc *service.Service) *projects.Store {
	return projects.NewStore(cfg.RegistryRoot, svc.Catalog())
}

func newSearchClient() *search.Client {
	return search.NewClient(
		search.WithEndpoint(cfg.Search.Endpoint),
		search.WithLimit(cfg.Search.Limit),
		search.WithTimeout(cfg.Search.Timeout),
	)
}

// mustService builds the service or exits.
func mustService(cmd *cobra.Command) *service.Service {
	svc, err := newService(cmd.Context())
	if err != nil {
		exitWithError(err, "Failed to initialise forks")
	}
	return svc
}

// exitWithError reports err and exits. A cancelled operation is a warning
// with exit status 130, never a failure.
func exitWithError(err error, context string) {
	if errdefs.IsCancelled(err) {
		presenter.Warning("operation cancelled")
		os.Exit(exitCancelled)
	}
	presenter.Error(err, context)
	if out, ok := errdefs.Output(err); ok && strings.TrimSpace(out) != "" {
		presenter.Info(strings.TrimRight(out, "\n"))
	}
	os.Exit(1)
}

// outputFormat reads the global --format flag.
func outputFormat(cmd *cobra.Command) presenter.Format {
	raw, _ := cmd.Flags().GetString("format")
	f, err := presenter.ParseFormat(raw)
	if err != nil {
		exitWithError(err, "Invalid --format")
	}
	return f
}

// emit renders v in the requested structured format, or calls table.
func emit(cmd *cobra.Command, v any, table func()) {
	format := outputFormat(cmd)
	if format == presenter.FormatTable {
		table()
		return
	}
	if err := presenter.Render(presenter.Stdout(), format, v); err != nil {
		exitWithError(err, "Failed to render output")
	}
}

// mustFilter compiles the --filter flag.
func mustFilter(cmd *cobra.Command) *presenter.Filter {
	pattern, _ := cmd.Flags().GetString("filter")
	f, err := presenter.NewFilter(pattern)
	if err != nil {
		exitWithError(err, "Invalid --filter")
	}
	return f
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}
