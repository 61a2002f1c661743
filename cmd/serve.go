package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/domwire/examples/benchmark"
	"github.com/conneroisu/domwire/examples/counter"
	"github.com/conneroisu/domwire/examples/list"
	"github.com/conneroisu/domwire/internal/config"
	"github.com/conneroisu/domwire/internal/dom"
	"github.com/conneroisu/domwire/internal/logging"
	"github.com/conneroisu/domwire/internal/runtime"
	"github.com/conneroisu/domwire/internal/server"
	"github.com/conneroisu/domwire/internal/templates"
	"github.com/conneroisu/domwire/internal/watcher"
)

var serveApp string

// serveCmd mounts a demo producer and serves it with live updates.
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the development server",
	Long: `Serve mounts one of the demo producers and serves the rendered
document over HTTP. Browser events are relayed back over a WebSocket and
the re-rendered tree is streamed to every connected client.

Examples:
  domwire serve                       Counter demo on :8090
  domwire serve --app list -p 3000    List demo on :3000
  domwire serve --templates ./tmpl --watch`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8090, "port to serve on")
	serveCmd.Flags().String("host", "localhost", "host to bind to")
	serveCmd.Flags().StringVar(&serveApp, "app", "counter", "demo app to mount (counter, list, benchmark)")
	serveCmd.Flags().String("templates", "", "directory of markup templates to pre-register")
	serveCmd.Flags().Bool("watch", false, "remount when markup templates change")
	serveCmd.Flags().Bool("delegated", false, "delegated event listening")
	serveCmd.Flags().Int("buffer", runtime.DefaultBufferCapacity, "mutation buffer capacity in bytes")

	bindServeFlags(serveCmd.Flags())
}

// bindServeFlags maps serve's flags onto their configuration keys so flag
// values win over environment and file values.
func bindServeFlags(flags *pflag.FlagSet) {
	keys := map[string]string{
		"server.port":             "port",
		"server.host":             "host",
		"runtime.template_dir":    "templates",
		"runtime.watch":           "watch",
		"runtime.delegated":       "delegated",
		"runtime.buffer_capacity": "buffer",
	}
	for key, name := range keys {
		_ = viper.BindPFlag(key, flags.Lookup(name))
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})

	producer, err := newProducer(serveApp)
	if err != nil {
		return err
	}

	rt := runtime.New(dom.NewElement("div"), producer, &runtime.Config{
		BufferCapacity: cfg.Runtime.BufferCapacity,
		Delegated:      cfg.Runtime.Delegated,
		Logger:         logger,
	})

	if cfg.Runtime.TemplateDir != "" {
		if err := loadTemplateDir(rt.Templates(), cfg.Runtime.TemplateDir); err != nil {
			return fmt.Errorf("loading templates from %s: %w", cfg.Runtime.TemplateDir, err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rt.Mount(ctx); err != nil {
		return fmt.Errorf("mounting %s: %w", serveApp, err)
	}

	srv := server.New(server.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, rt, logger)

	if cfg.Runtime.Watch && cfg.Runtime.TemplateDir != "" {
		tw, err := watcher.New(300 * time.Millisecond)
		if err != nil {
			return fmt.Errorf("starting watcher: %w", err)
		}
		defer tw.Stop()

		if err := tw.AddPath(cfg.Runtime.TemplateDir); err != nil {
			return err
		}
		tw.AddHandler(func(paths []string) error {
			for _, path := range paths {
				if err := loadTemplateFile(rt.Templates(), path); err != nil {
					return err
				}
			}
			return srv.Reload(ctx)
		})

		watchErrs := make(chan error, 1)
		go tw.Start(ctx, watchErrs)
		go func() {
			for err := range watchErrs {
				logger.Error(ctx, err, "template reload failed")
			}
		}()
	}

	return srv.Start(ctx)
}

// newProducer resolves a demo app name.
func newProducer(app string) (runtime.Producer, error) {
	switch app {
	case "counter":
		return counter.New(), nil
	case "list":
		return list.New("alpha", "beta"), nil
	case "benchmark":
		return benchmark.New(benchmark.DefaultRowCount), nil
	default:
		return nil, fmt.Errorf("unknown app %q (want counter, list, or benchmark)", app)
	}
}

// loadTemplateDir registers every markup template in dir.
func loadTemplateDir(registry *templates.Registry, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".html") {
			continue
		}
		if err := loadTemplateFile(registry, filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// loadTemplateFile registers one markup template file, named <id>-<name>.html.
func loadTemplateFile(registry *templates.Registry, path string) error {
	id, name, err := parseTemplateFilename(filepath.Base(path))
	if err != nil {
		return err
	}
	markup, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return registry.RegisterMarkup(id, name, string(markup))
}

func parseTemplateFilename(base string) (uint32, string, error) {
	stem := strings.TrimSuffix(base, ".html")
	idPart, name, found := strings.Cut(stem, "-")
	if !found || name == "" {
		return 0, "", fmt.Errorf("template file %q: want <id>-<name>.html", base)
	}
	id, err := strconv.ParseUint(idPart, 10, 32)
	if err != nil {
		return 0, "", fmt.Errorf("template file %q: bad id: %w", base, err)
	}
	return uint32(id), name, nil
}
