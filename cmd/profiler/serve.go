package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/km-arc/go-laravel-webprofiler/framework/app"
	"github.com/km-arc/go-laravel-webprofiler/framework/config"
	"github.com/km-arc/go-laravel-webprofiler/framework/providers"
	"github.com/km-arc/go-laravel-webprofiler/webprofiler"
)

func newServeCmd(opts *options) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the profiler pages over the stored profiles",
		Long: `Serve the profiler pages over the stored profiles, without profiling
anything itself. Point --dsn at the storage an application writes to.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, dsn := opts.config()
			if port != "" {
				cfg.App.Port = port
			}
			a, err := newViewerApp(cfg, dsn)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.Run(ctx)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "port to listen on (default APP_PORT)")
	return cmd
}

// newViewerApp builds an application that only mounts the profiler pages.
// Its own requests are never profiled and the toolbar is off.
func newViewerApp(cfg *config.Config, dsn string) (*app.Application, error) {
	a := app.NewWithConfig(cfg)
	if err := a.Register(&providers.ServiceControllerServiceProvider{}); err != nil {
		return nil, err
	}

	values := cfg.Profiler.Values()
	values["profiler.dsn"] = dsn
	values["profiler.request_matcher"] = func(*http.Request) bool { return false }
	values["web_profiler.debug_toolbar.enable"] = false
	if err := a.Register(webprofiler.NewServiceProvider(), values); err != nil {
		return nil, err
	}

	prefix := cfg.Profiler.MountPrefix
	a.Router().Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, prefix+"/", http.StatusFound)
	})
	return a, a.Boot()
}
