package app

import (
	"context"
	"fmt"

	"github.com/castorbuild/castor/internal/build"
	"github.com/castorbuild/castor/internal/cache"
	"github.com/castorbuild/castor/internal/ctxlog"
	"github.com/castorbuild/castor/internal/hcl"
)

// Run executes one build invocation: load the build files, restore the
// digest cache, then either list artifact staleness or realize the target
// artifacts. The digest cache is saved even when the build fails, so
// already-completed transforms stay cached.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	c := build.NewContext()
	a.buildCtx = c

	loader := hcl.NewLoader(a.registry)
	if err := loader.Load(ctx, c, a.config.BuildPath); err != nil {
		return fmt.Errorf("failed to load build files: %w", err)
	}
	a.logger.Debug("Build files loaded.", "artifacts", len(c.Artifacts()))

	settings, err := loadSettings(a.config.SettingsPath)
	if err != nil {
		return err
	}
	digestsPath := a.config.DigestsPath
	if digestsPath == DefaultDigestsPath && settings.Digests != "" {
		digestsPath = settings.Digests
	}
	concurrency := a.config.Concurrency
	if concurrency == DefaultConcurrency && settings.Concurrency != 0 {
		concurrency = settings.Concurrency
	}
	c.SetEnv(settings.Env)
	c.SetConcurrency(concurrency)
	c.SetDryRun(a.config.DryRun)

	// An incompatible cache version is a hard error surfaced before any
	// build work begins.
	if err := cache.Load(digestsPath, c); err != nil {
		return err
	}
	a.logger.Debug("Digest cache loaded.", "path", digestsPath)

	if a.config.List {
		return a.list(c)
	}

	a.logger.Info("🚀 Starting build.", "targets", a.config.Targets, "concurrency", concurrency)
	buildErr := build.Build(ctx, c, a.config.Targets)
	if buildErr != nil {
		a.logger.Error("🏁 Build failed.", "error", buildErr)
	} else {
		a.logger.Info("🏁 Build finished.")
	}

	if saveErr := cache.Save(digestsPath, c); saveErr != nil {
		a.logger.Error("Failed to save digest cache.", "error", saveErr)
		if buildErr == nil {
			buildErr = saveErr
		}
	}
	return buildErr
}

// list prints the staleness of artifacts matching the configured patterns.
func (a *App) list(c *build.Context) error {
	statuses, err := c.ListArtifacts(a.config.Targets, a.config.MatchAll, a.config.StaleOnly)
	if err != nil {
		return err
	}
	for _, s := range statuses {
		state := "fresh"
		if s.Stale {
			state = "stale"
		}
		fmt.Fprintf(a.outW, "%-5s\t%s\n", state, s.Name)
	}
	return nil
}
