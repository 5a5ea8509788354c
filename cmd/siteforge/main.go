// CLAUDE:SUMMARY Entry point for the siteforge HTTP service: chi router, sitegen service, preview with live reload, optional MCP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/siteforge/audit"
	"github.com/hazyhaar/siteforge/config"
	"github.com/hazyhaar/siteforge/dbopen"
	"github.com/hazyhaar/siteforge/deploy"
	"github.com/hazyhaar/siteforge/llm"
	"github.com/hazyhaar/siteforge/preview"
	"github.com/hazyhaar/siteforge/project"
	"github.com/hazyhaar/siteforge/shield"
	"github.com/hazyhaar/siteforge/sitegen"
)

var version = "dev"

func main() {
	cfg, err := config.Load(os.Getenv("SITEFORGE_CONFIG"))
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	// Logging.
	var lvl slog.Level
	switch cfg.LogLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Audit trail.
	var auditLogger audit.Logger = audit.Nop{}
	if path := cfg.AuditPath(); path != "" {
		auditDB, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(audit.Schema))
		if err != nil {
			slog.Error("audit db", "error", err)
			os.Exit(1)
		}
		defer auditDB.Close()
		sqlAudit := audit.NewSQLiteLogger(auditDB)
		if err := sqlAudit.Init(); err != nil {
			slog.Error("audit init", "error", err)
			os.Exit(1)
		}
		defer sqlAudit.Close()
		auditLogger = sqlAudit
	}

	ws, err := project.New(project.Config{Dir: cfg.ProjectPath(), Logger: logger})
	if err != nil {
		slog.Error("project workspace", "error", err)
		os.Exit(1)
	}

	modelCfg := cfg.Model
	modelCfg.Logger = logger
	model, err := llm.New(modelCfg)
	if err != nil {
		slog.Error("model", "error", err)
		os.Exit(1)
	}

	opts := []sitegen.ServiceOption{sitegen.WithAudit(auditLogger)}
	syncer, err := buildSyncer(cfg, logger)
	if err != nil {
		slog.Error("deploy target", "error", err)
		os.Exit(1)
	}
	if syncer != nil {
		opts = append(opts, sitegen.WithSyncer(syncer))
	}
	svc := sitegen.New(model, ws, &cfg.Generation, logger, opts...)

	// Preview with live reload.
	pv := preview.New(ws.Dir(), logger)
	go func() {
		if err := pv.Run(ctx); err != nil {
			slog.Error("preview watcher", "error", err)
		}
	}()

	deps := routerDeps{
		Service: svc,
		Preview: pv,
		MaxBody: cfg.MaxBodyBytes,
	}

	if len(cfg.RateLimits) > 0 {
		rl := shield.NewRateLimiter(cfg.RateLimitRules())
		rl.StartGC(ctx.Done(), 5*time.Minute)
		deps.RateLimiter = rl
	}

	if cfg.MCPEnabled {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "siteforge",
			Version: version,
		}, nil)
		svc.RegisterMCP(mcpSrv)
		deps.MCP = mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return mcpSrv }, nil)
	}

	if cfg.FrontendDir != "" {
		deps.Frontend = http.FileServer(http.Dir(cfg.FrontendDir))
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           newRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
		// Long-running routes clear this deadline (see untimed).
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting",
			"port", cfg.Port,
			"project", ws.Dir(),
			"provider", model.Name(),
			"deploy", cfg.DeployTarget(),
			"mcp", cfg.MCPEnabled)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

// buildSyncer returns nil when no deployment target is configured.
func buildSyncer(cfg *config.Config, logger *slog.Logger) (*deploy.Syncer, error) {
	var target deploy.Target
	switch cfg.DeployTarget() {
	case "":
		slog.Warn("no deployment target configured, deploy is disabled")
		return nil, nil
	case config.TargetAzure:
		t, err := deploy.NewAzureTarget(deploy.AzureConfig{
			ConnectionString: cfg.Deploy.ConnectionString,
			Container:        cfg.Deploy.Container,
			PublicAccess:     true,
		})
		if err != nil {
			return nil, err
		}
		target = t
	case config.TargetDir:
		target = deploy.NewDirTarget(cfg.Deploy.Dir)
	case config.TargetMemory:
		target = deploy.NewMemoryTarget()
	default:
		return nil, fmt.Errorf("unknown deploy target %q", cfg.Deploy.Target)
	}

	strategy, err := deploy.ParseStrategy(cfg.Deploy.Strategy)
	if err != nil {
		return nil, err
	}
	return deploy.NewSyncer(deploy.Config{
		Target:    target,
		Strategy:  strategy,
		PublicURL: cfg.Deploy.PublicURL,
		Minify:    cfg.Deploy.Minify,
		Logger:    logger,
	}), nil
}
