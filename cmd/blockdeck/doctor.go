package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"pkt.systems/blockdeck/internal/appconfig"
	"pkt.systems/blockdeck/internal/auth"
	"pkt.systems/pslog"
)

func newDoctorCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run blockdeck diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())

			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			configPath := cfgPath
			if strings.TrimSpace(configPath) == "" {
				defaultPath, err := appconfig.DefaultConfigPath()
				if err != nil {
					return err
				}
				configPath = defaultPath
			}
			logger.Info("doctor start", "config", configPath)

			failed := false
			failed = !checkDir(logger, "server_root", cfg.ServerRoot) || failed
			failed = !checkDir(logger, "state_dir", cfg.StateDir) || failed
			failed = !checkJava(logger, cfg.Java.Path) || failed
			failed = !checkUserStore(logger, cfg) || failed

			if failed {
				return fmt.Errorf("doctor found problems")
			}
			logger.Info("doctor ok")
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	return cmd
}

func checkDir(logger pslog.Logger, label, dir string) bool {
	if strings.TrimSpace(dir) == "" {
		logger.Warn("doctor path empty", "name", label)
		return false
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Warn("doctor path not writable", "name", label, "path", dir, "err", err)
		return false
	}
	probe := filepath.Join(dir, ".blockdeck-doctor")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		logger.Warn("doctor path not writable", "name", label, "path", dir, "err", err)
		return false
	}
	_ = os.Remove(probe)
	logger.Info("doctor path ok", "name", label, "path", dir)
	return true
}

func checkJava(logger pslog.Logger, javaPath string) bool {
	if strings.TrimSpace(javaPath) == "" {
		javaPath = "java"
	}
	resolved, err := exec.LookPath(javaPath)
	if err != nil {
		logger.Warn("doctor java missing", "java", javaPath, "err", err)
		return false
	}
	logger.Info("doctor java ok", "java", resolved)
	return true
}

func checkUserStore(logger pslog.Logger, cfg appconfig.Config) bool {
	store, err := auth.NewStoreWithLogger(cfg.Auth.UserFile, cfg.Auth.SeedUsers, logger)
	if err != nil {
		logger.Warn("doctor user store failed", "path", cfg.Auth.UserFile, "err", err)
		return false
	}
	users := store.LoadUsers()
	if len(users) == 0 {
		logger.Warn("doctor no users", "path", cfg.Auth.UserFile, "hint", "run: blockdeck users add <username>")
		return true
	}
	logger.Info("doctor user store ok", "users", len(users))
	return true
}
