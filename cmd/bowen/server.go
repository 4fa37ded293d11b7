package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/bowenhq/bowen/internal/api"
	"github.com/bowenhq/bowen/internal/composer"
	"github.com/bowenhq/bowen/internal/config"
	"github.com/bowenhq/bowen/internal/memory"
	"github.com/bowenhq/bowen/internal/proactive"
	"github.com/bowenhq/bowen/internal/profile"
	"github.com/bowenhq/bowen/internal/storage"
	"github.com/bowenhq/bowen/internal/syllabus"
	"github.com/bowenhq/bowen/internal/tracker"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the bowen server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running bowen server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show bowen system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "bowen.pid")
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

func runServer() error {
	fmt.Fprintf(os.Stderr, "bowen version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	apiToken, err := config.GetAPIToken(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	slog.Info("API bearer token available")

	// Refuse to start if a server is already answering on the port.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("bowen is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("bowen is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	memStore := memory.NewFileStore(filepath.Join(cfg.Storage.DataDir, "memory.json"))
	mem := memory.NewManager(memStore, memory.Limits{
		WorkingCapacity:   cfg.Memory.WorkingCapacity,
		EpisodicRetention: cfg.Memory.EpisodicRetention,
		SemanticRetention: cfg.Memory.SemanticRetention,
	})

	trk := tracker.Open(filepath.Join(cfg.Storage.DataDir, "tracker.json"))
	evaluator := proactive.NewEvaluator(trk, mem)
	profileMgr := profile.NewManager(store)
	comp := composer.New(cfg.Context.MaxChars)
	extractor := syllabus.New()

	appDeps := api.AppDeps{
		Memory:           mem,
		Composer:         comp,
		Tracker:          trk,
		Evaluator:        evaluator,
		Profile:          profileMgr,
		Store:            store,
		Syllabus:         extractor,
		Token:            apiToken,
		Persona:          cfg.Persona,
		UrgentWindowDays: cfg.Alerts.UrgentWindowDays,
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.NewAppHandler(appDeps),
	}

	// Background sweep that records critical alerts into history.
	monitor := proactive.NewMonitor(evaluator, store, 15*time.Minute)
	go monitor.Run(ctx)

	// MCP over stdio, alongside the HTTP API.
	mcpSrv := api.NewMCPServer(api.MCPDeps{App: appDeps})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "bowen listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
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
		printError("bowen is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop bowen (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to bowen (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	running := false
	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	if running {
		if apiClient, err := newAPIClient(); err == nil {
			ctx := context.Background()
			if r, err := apiClient.get(ctx, "/memory?tier=semantic"); err == nil {
				var records []any
				if decodeJSON(r, &records) == nil {
					printStatus("Semantic facts", "%d", len(records))
				}
			}
			if r, err := apiClient.get(ctx, "/deadlines"); err == nil {
				var deadlines []any
				if decodeJSON(r, &deadlines) == nil {
					printStatus("Deadlines", "%d", len(deadlines))
				}
			}
			if r, err := apiClient.get(ctx, "/goals"); err == nil {
				var goals []any
				if decodeJSON(r, &goals) == nil {
					printStatus("Goals", "%d", len(goals))
				}
			}
		}
	}

	printStatus("Persona", "%s", cfg.Persona)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
