package main

import (
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/km-arc/go-laravel-webprofiler/framework/config"
	"github.com/km-arc/go-laravel-webprofiler/profiler"
)

// options are shared by every subcommand.
type options struct {
	envFiles []string
	dsn      string
}

// RegisterFlags adds the shared flags to fs.
func (o *options) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringSliceVarP(&o.envFiles, "env", "e", nil, "env files to load (default .env)")
	fs.StringVar(&o.dsn, "dsn", "", "profile storage, e.g. file:/tmp/profiler or sqlite:/tmp/profiler.db (default from PROFILER_DSN or PROFILER_CACHE_DIR)")
}

// config loads the configuration and resolves the storage DSN.
func (o *options) config() (*config.Config, string) {
	cfg := config.Load(o.envFiles...)
	dsn := o.dsn
	if dsn == "" {
		dsn = cfg.Profiler.DSN
	}
	if dsn == "" {
		dsn = "file:" + cfg.Profiler.CacheDir
	}
	return cfg, dsn
}

// storage opens the configured storage. The returned func releases it.
func (o *options) storage() (profiler.Storage, func(), error) {
	_, dsn := o.config()
	s, err := profiler.OpenStorage(dsn)
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		if c, ok := s.(io.Closer); ok {
			_ = c.Close()
		}
	}
	return s, release, nil
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "profiler",
		Short:         "Inspect and serve stored request profiles",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	opts.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newListCmd(opts),
		newShowCmd(opts),
		newPurgeCmd(opts),
		newServeCmd(opts),
	)
	return root
}
