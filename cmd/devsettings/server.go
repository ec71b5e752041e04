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
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/devsettings/internal/api"
	"github.com/kalambet/devsettings/internal/config"
	"github.com/kalambet/devsettings/internal/mirror"
	"github.com/kalambet/devsettings/internal/observer"
	"github.com/kalambet/devsettings/internal/storage"
	"github.com/kalambet/devsettings/internal/tasks"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the settings daemon (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		mcpStdio, _ := cmd.Flags().GetBool("mcp-stdio")
		return runServer(mcpStdio)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon and boot restore status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

var bootCmd = &cobra.Command{
	Use:   "boot",
	Short: "Restore persisted settings after boot",
	Long: `Restore persisted settings onto the device. Intended for an init trigger:

  on property:sys.boot_completed=1
      exec_background - system system -- /system/bin/devsettings boot

The restore runs once per boot; use --force to run it again.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		return runBoot(cmd.Context(), force)
	},
}

func init() {
	serveCmd.Flags().Bool("mcp-stdio", false, "also serve MCP over stdin/stdout")
	bootCmd.Flags().Bool("force", false, "restore even if this boot was already handled")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "devsettings.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer(mcpStdio bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := newLogger(cfg.Log.Level)
	log.Info().Str("version", version).Msg("starting devsettings")

	token, err := config.APIToken(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pidPath := pidFilePath(cfg.Storage.DataDir)
	if client, err := newAPIClient(cfg); err == nil && client.healthy(ctx) {
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("devsettings is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	a, err := openApp(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn().Err(err).Msg("closing storage")
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	sched := tasks.NewGoScheduler(gctx, log)
	defer sched.Wait()

	var obs mirror.Observer = a.serviceSwitch()
	var worker *observer.Worker
	if cfg.Observer.Enabled {
		poll, err := cfg.PollInterval()
		if err != nil {
			return err
		}
		worker = observer.NewWorker(a.store, a.files, a.profile.Paths.LightSensor, a.profile.Paths.HBM, poll, log)
		obs = worker
	}

	deps := a.deps(obs, sched, mirror.LogNotifier{Log: log})
	ctrl, err := mirror.Open(gctx, deps)
	if err != nil {
		return fmt.Errorf("opening settings mirror: %w", err)
	}
	restorer := mirror.NewRestorer(deps, ctrl.Session())

	handler := api.NewHandler(api.Deps{
		Mirror:   ctrl,
		Restorer: restorer,
		Token:    token,
		Logger:   log,
	})
	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	ln = netutil.LimitListener(ln, cfg.Server.MaxConns)
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return gctx
		},
	}

	g.Go(func() error {
		log.Info().Str("addr", addr).Int("max_conns", cfg.Server.MaxConns).Msg("listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if worker != nil {
		g.Go(func() error {
			worker.Run(gctx)
			return nil
		})
	}

	if mcpStdio {
		mcpSrv := api.NewMCPServer(api.MCPDeps{Mirror: ctrl, Version: version})
		g.Go(func() error {
			return serveMCP(gctx, mcpSrv, log)
		})
	}

	return g.Wait()
}

func serveMCP(ctx context.Context, s *server.MCPServer, log *zerolog.Logger) error {
	log.Info().Msg("MCP server started (stdio transport)")
	err := server.NewStdioServer(s).Listen(ctx, os.Stdin, os.Stdout)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP stdio server: %w", err)
	}
	return nil
}

func runBoot(ctx context.Context, force bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := newLogger(cfg.Log.Level)

	a, err := openApp(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn().Err(err).Msg("closing storage")
		}
	}()

	sched := tasks.NewGoScheduler(ctx, log)
	defer sched.Wait()

	deps := a.deps(a.serviceSwitch(), sched, mirror.LogNotifier{Log: log})
	report, err := mirror.NewRestorer(deps, nil).Restore(ctx, force)
	if errors.Is(err, mirror.ErrAlreadyRestored) {
		printStep("Boot %s already restored", report.BootID)
		return nil
	}
	if err != nil {
		return err
	}
	printSuccess("Restored boot %s: %s", report.BootID, report.Summary())
	return nil
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("devsettings is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop devsettings (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to devsettings (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client, err := newAPIClient(cfg)
	running := err == nil && client.healthy(ctx)
	if running {
		printStatus("Server", "running on port %d", cfg.Server.Port)
		states, err := remoteSettings{client: client}.List(ctx)
		if err != nil {
			printStatus("Settings", "unavailable (%v)", err)
		} else {
			printStatus("Settings", "%s", enabledLabel(states))
		}
	} else {
		printStatus("Server", "stopped")
	}

	if store, err := storage.Open(cfg.Storage.DataDir); err == nil {
		run, err := store.LastBootRun()
		switch {
		case errors.Is(err, storage.ErrNotFound):
			printStatus("Last restore", "never")
		case err != nil:
			printStatus("Last restore", "unknown (%v)", err)
		default:
			printStatus("Last restore", "%s (boot %s)", run.RestoredAt.Local().Format(time.DateTime), run.BootID)
			printStatus("Restored", "%s", run.Summary)
		}
		store.Close()
	}

	printStatus("Provider", "%s", cfg.Provider.Backend)
	if cfg.Radio.TunnelCommand == "" {
		printStatus("Radio", "no tunnel configured")
	} else {
		printStatus("Radio", "%s", cfg.Radio.TunnelCommand)
	}
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func enabledLabel(states []mirror.State) string {
	enabled := 0
	for _, st := range states {
		if st.Enabled {
			enabled++
		}
	}
	return fmt.Sprintf("%d of %d enabled", enabled, len(states))
}
