package main

import (
	"context"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/blockdeck"
	"pkt.systems/blockdeck/core"
	"pkt.systems/blockdeck/httpapi"
	"pkt.systems/blockdeck/internal/appconfig"
	"pkt.systems/blockdeck/schema"
	"pkt.systems/pslog"
)

func newServeCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the blockdeck server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}

			serverCfg := blockdeck.ServerConfig{
				Service:    toServiceConfig(cfg),
				HTTP:       toHTTPConfig(cfg),
				Auth:       toAuthConfig(cfg.Auth),
				HubHistory: 1000,
			}
			serverDeps := blockdeck.ServerDeps{
				ServiceDeps: core.ServiceDeps{
					Logger: logger,
				},
			}
			server, err := blockdeck.New(serverCfg, serverDeps, blockdeck.WithHTTP())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Stop(stopCtx); err != nil {
					logger.Warn("server stop failed", "err", err)
				}
			}()
			logger.Info("http server listening", "addr", serverCfg.HTTP.Addr)
			if err := server.Start(ctx); err != nil {
				return err
			}
			return server.Wait()
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	return cmd
}

func toServiceConfig(cfg appconfig.Config) schema.ServiceConfig {
	return schema.ServiceConfig{
		ServerRoot:     cfg.ServerRoot,
		StateDir:       cfg.StateDir,
		DefaultJava:    cfg.Java.Path,
		DefaultMinRAM:  cfg.Java.MinRAM,
		DefaultMaxRAM:  cfg.Java.MaxRAM,
		BufferMaxLines: cfg.Service.BufferMaxLines,
		StopTimeout:    cfg.Service.StopTimeoutSeconds,
		WatchFiles:     cfg.Service.WatchFiles,
	}
}

func toHTTPConfig(cfg appconfig.Config) httpapi.Config {
	return httpapi.Config{
		Addr:               cfg.HTTP.Addr,
		BasePath:           cfg.HTTP.BasePath,
		SessionCookie:      cfg.HTTP.SessionCookie,
		SessionTTLHours:    cfg.HTTP.SessionTTLHours,
		SessionFile:        filepath.Join(cfg.StateDir, "sessions.json"),
		InitialBufferLines: cfg.HTTP.InitialBufferLines,
	}
}

func toAuthConfig(cfg appconfig.AuthConfig) blockdeck.AuthConfig {
	seeds := make([]blockdeck.SeedUser, 0, len(cfg.SeedUsers))
	for _, seed := range cfg.SeedUsers {
		seeds = append(seeds, blockdeck.SeedUser{
			Username:     seed.Username,
			PasswordHash: seed.PasswordHash,
		})
	}
	return blockdeck.AuthConfig{
		UserFile:  cfg.UserFile,
		SeedUsers: seeds,
	}
}
