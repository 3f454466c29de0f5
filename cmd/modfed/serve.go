package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"modfed/internal/buildpipeline"
	"modfed/internal/bundler"
	"modfed/internal/depset"
	"modfed/internal/diag"
	"modfed/internal/engine"
	"modfed/internal/gateway"
	"modfed/internal/livereload"
	"modfed/internal/project"
	"modfed/internal/remote"
	"modfed/internal/scan"
	"modfed/internal/watch"
)

var serveCmd = &cobra.Command{
	Use:   "serve [flags] [path]",
	Short: "Run the development server",
	Long: `Serve the application with its dependency bundle managed in the
background: sources are watched, the bundle is rebuilt when the dependency
set changes, and connected browsers are told to reload after each rebuild.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	host, err := cmd.Flags().GetString("host")
	if err != nil {
		return err
	}
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	profileCleanup, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer profileCleanup()

	startDir := "."
	if len(args) > 0 && args[0] != "" {
		startDir = args[0]
	}
	manifest, found, err := loadProjectManifest(startDir)
	if err != nil {
		return err
	}
	if !found {
		return errors.New(noManifestMessage)
	}

	// Serving always runs the development profile. Production output is a
	// publish directory, not a server.
	bc, err := project.NewBuildContext(buildContextOptions(manifest, project.ModeDevelopment))
	if err != nil {
		return err
	}

	_ = godotenv.Load(filepath.Join(bc.Root, ".env"))

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "modfed",
	})

	store := depset.NewStore(bc.SnapshotPath())
	eng := engine.New(bc, bundler.NewEsbuild(bc.Bundler))
	hub := livereload.NewHub(logger)
	orch, err := buildpipeline.New(buildpipeline.Options{
		Context:  bc,
		Store:    store,
		Engine:   eng,
		Notifier: hub,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	g, err := gateway.New(bc, eng)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch.OnStart()

	rescan := func(ctx context.Context) error {
		scanRes, err := scan.New(bc).Scan(ctx)
		if err != nil {
			return err
		}
		if scanRes.Diagnostics.Len() > 0 {
			logger.Warn("scan finished with findings", "summary", diag.Summary(scanRes.Diagnostics))
		}
		orch.ResetPass()
		for _, usage := range scanRes.Usages {
			orch.RecordUsage(usage.Specifier, usage.File, usage.Kept)
		}
		logger.Debug("scan pass complete", "files", scanRes.Files, "deps", store.PendingCount())
		return nil
	}

	// A broken app dir should fail startup; later scan failures only skip
	// that rebuild pass.
	if err := rescan(ctx); err != nil {
		return err
	}
	if res, err := orch.Reconcile(ctx, force); err != nil {
		logger.Error("initial dependency build failed, serving anyway", "err", err)
	} else {
		logger.Info("dependency bundle ready", "outcome", string(res.Outcome), "reason", res.Reason)
	}

	w, err := watch.New(watch.Config{
		Dir:    bc.AppAbs(),
		Logger: logger,
		OnChange: func(ctx context.Context, changed []string) error {
			logger.Info("sources changed", "files", len(changed))
			if err := rescan(ctx); err != nil {
				return err
			}
			orch.OnCompilePassComplete(ctx)
			return nil
		},
	})
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle(livereload.DefaultPath, hub)
	mux.Handle("/", g.Handler(http.FileServer(http.Dir(bc.Root))))

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	watchErr := make(chan error, 1)
	go func() { watchErr <- w.Run(ctx) }()
	serverErr := make(chan error, 1)
	go func() { serverErr <- srv.ListenAndServe() }()

	logger.Info("dev server listening",
		"url", "http://"+addr,
		"entry", "http://"+addr+bc.PublicPath+remote.EntryName)

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("dev server: %w", err)
		}
	case err := <-watchErr:
		if err != nil {
			return fmt.Errorf("source watcher: %w", err)
		}
	}

	hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", "err", err)
	}
	return nil
}

func init() {
	serveCmd.Flags().String("host", "127.0.0.1", "interface to bind")
	serveCmd.Flags().Int("port", 3000, "port to listen on")
	serveCmd.Flags().Bool("force", false, "rebuild the dependency bundle on startup even if unchanged")
}
