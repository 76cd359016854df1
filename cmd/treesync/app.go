package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/input-output-hk/catalyst-forge-libs/treesync"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/internal/config"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/internal/location"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/tree"
	"github.com/input-output-hk/catalyst-forge-libs/treesync/tree/localtree"
)

// app carries the state shared by every command of one invocation.
type app struct {
	v      *viper.Viper
	cfg    *config.Config
	level  *slog.LevelVar
	logger *slog.Logger

	connect connectFunc
	backend backend
	local   tree.Tree
	remotes map[string]tree.Tree
}

func newApp(logOut io.Writer) *app {
	level := new(slog.LevelVar)
	return &app{
		v:       viper.New(),
		level:   level,
		logger:  newLogger(logOut, level),
		connect: connect,
		remotes: make(map[string]tree.Tree),
	}
}

func newLogger(w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    !isTerminal(w),
	}))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (a *app) loadConfig(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(a.v, path)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if err := a.level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		return errors.New("config", errors.ErrConfig, err)
	}
	a.applyVerbose(cmd)

	a.logger.Debug("configuration loaded",
		"path", cfg.Path,
		"provider", cfg.Storage.Provider,
		"concurrency", cfg.Transfer.Concurrency)
	return nil
}

func (a *app) applyVerbose(cmd *cobra.Command) {
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		a.level.Set(slog.LevelDebug)
	}
}

func (a *app) client() *treesync.Client {
	return treesync.New(
		treesync.WithLogger(a.logger),
		treesync.WithConcurrency(a.cfg.Transfer.Concurrency),
	)
}

func (a *app) parse(raw string) (location.Location, error) {
	return location.Parse(raw, a.cfg.Storage.Bucket)
}

// locate opens the tree holding loc. Object-store connections are made on
// first use and shared by every bucket.
func (a *app) locate(ctx context.Context, loc location.Location) (treesync.Location, error) {
	if !loc.Remote() {
		if a.local == nil {
			a.local = localtree.New(localtree.WithLogger(a.logger))
		}
		return treesync.Location{Tree: a.local, Root: loc.Root}, nil
	}

	t, ok := a.remotes[loc.Bucket]
	if !ok {
		if a.backend == nil {
			b, err := a.connect(ctx, a.cfg, a.logger)
			if err != nil {
				return treesync.Location{}, err
			}
			a.backend = b
		}
		t = a.backend(loc.Bucket)
		a.remotes[loc.Bucket] = t
	}
	return treesync.Location{Tree: t, Root: loc.Root}, nil
}

// resolve parses raw and opens its tree.
func (a *app) resolve(ctx context.Context, raw string) (location.Location, treesync.Location, error) {
	loc, err := a.parse(raw)
	if err != nil {
		return location.Location{}, treesync.Location{}, err
	}
	tl, err := a.locate(ctx, loc)
	if err != nil {
		return location.Location{}, treesync.Location{}, err
	}
	return loc, tl, nil
}

// logProgress reports executor progress at debug level.
type logProgress struct {
	logger *slog.Logger
}

func (p logProgress) Update(completed, total int64) {
	p.logger.Debug("progress", "completed", completed, "total", total)
}

func (p logProgress) Complete() {
	p.logger.Debug("all actions completed")
}

func (p logProgress) Error(error) {}
