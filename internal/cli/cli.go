package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/framegraph/internal/config"
	"github.com/matzehuels/framegraph/pkg/buildinfo"
	fgerrors "github.com/matzehuels/framegraph/pkg/errors"
	"github.com/matzehuels/framegraph/pkg/eval"
	"github.com/matzehuels/framegraph/pkg/project"
	"github.com/matzehuels/framegraph/pkg/store"
	"github.com/matzehuels/framegraph/pkg/store/mongo"
	"github.com/matzehuels/framegraph/pkg/store/redis"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "framegraph"

	// connectTimeout bounds store connection attempts.
	connectTimeout = 10 * time.Second
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Config is loaded before any command runs unless already set.
	Config *config.Config

	configPath string
	verbose    bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Framegraph evaluates node graphs into rendered frames",
		Long:         `Framegraph builds image-processing node graphs from project files, evaluates them on demand and writes what their viewer nodes show.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: ./framegraph.yaml or the user config dir)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(c.renderCommand())
	root.AddCommand(c.checkCommand())
	root.AddCommand(c.dotCommand())
	root.AddCommand(c.typesCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.storeCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// setup loads the configuration, applies the log level and attaches the
// logger to the command context.
func (c *CLI) setup(cmd *cobra.Command) error {
	if c.Config == nil {
		cfg, err := config.Load(c.configPath)
		if err != nil {
			return err
		}
		c.Config = cfg
	}

	level := c.Config.LogLevel()
	if c.verbose {
		level = LogDebug
	}
	c.SetLogLevel(level)

	for _, w := range c.Config.Validate() {
		c.Logger.Warn(w)
	}

	cmd.SetContext(withLogger(cmd.Context(), c.Logger))
	return nil
}

// =============================================================================
// Store Factory
// =============================================================================

// openStore opens the configured project store, instrumented for the
// registered observability hooks.
func (c *CLI) openStore(ctx context.Context) (store.Store, error) {
	cfg := c.Config.Store
	format, err := project.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	var s store.Store
	switch cfg.Backend {
	case config.BackendFile, "":
		dir := cfg.Dir
		if dir == "" {
			if dir, err = store.DefaultDir(); err != nil {
				return nil, fmt.Errorf("get store dir: %w", err)
			}
		}
		s, err = store.NewFileStore(dir, format)
	case config.BackendRedis:
		s, err = redis.New(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		}, redis.WithTTL(cfg.Redis.TTL))
	case config.BackendMongo:
		s, err = mongo.New(ctx, mongo.Config{
			URI:        cfg.Mongo.URI,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
		})
	default:
		return nil, fgerrors.New(fgerrors.ErrCodeUnsupported, "unknown store backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	c.Logger.Debug("opened store", "backend", cfg.Backend)
	return store.Instrument(s, cfg.Backend), nil
}

// loadProject reads a project from a file path or, if no such file exists,
// from the configured store by name.
func (c *CLI) loadProject(ctx context.Context, ref string) (*project.Document, error) {
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		c.Logger.Debug("reading project file", "path", ref)
		return project.ReadFile(ref)
	}

	s, err := c.openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	var doc *project.Document
	err = store.RetryWithBackoff(ctx, func() error {
		var err error
		doc, err = s.Load(ctx, ref)
		return err
	})
	if fgerrors.Is(err, fgerrors.ErrCodeNotFound) {
		return nil, fmt.Errorf("%s is neither a project file nor a stored project: %w", ref, err)
	}
	return doc, err
}

// =============================================================================
// Options Helpers
// =============================================================================

// evalOptions derives evaluator options from the configuration.
func (c *CLI) evalOptions() eval.Options {
	return eval.Options{Parallel: c.Config.Eval.Parallel, Logger: c.Logger}
}

// evalContext applies the configured evaluation timeout, if any.
func (c *CLI) evalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d := c.Config.Eval.Timeout; d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

// describeError renders err for terminal output, naming the failing node of
// evaluation errors by its document name when known.
func describeError(err error, ix project.Index) string {
	failed := innermost(err)
	if failed == nil {
		return fgerrors.UserMessage(err)
	}
	name, ok := ix.Name(failed.NodeID)
	if !ok {
		name = failed.NodeID
	}
	cause := failed.Cause
	if cause == nil {
		cause = err
	}
	return fmt.Sprintf("node %s failed: %s", name, fgerrors.UserMessage(cause))
}

// innermost returns the deepest EvaluationError in err's chain, or nil.
func innermost(err error) *fgerrors.EvaluationError {
	var found *fgerrors.EvaluationError
	for ; err != nil; err = errors.Unwrap(err) {
		if e, ok := err.(*fgerrors.EvaluationError); ok {
			found = e
		}
	}
	return found
}
