package cmd

import (
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	errwrap "github.com/waypost/waypost/internal/errors"
	"github.com/waypost/waypost/internal/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long:  "Run a self-health check to verify the application can start successfully.",
	Run: func(cmd *cobra.Command, args []string) {
		if observability.CLILogger == nil {
			ExitWithCodeStderr(foundry.ExitConfigInvalid, "Logger not initialized", errwrap.NewConfigInvalidError("Logger not initialized"))
			return
		}
		log := observability.CLILogger
		log.Info("Running health check...")

		if versionInfo.Version == "" {
			log.Error("❌ FAIL: Version information missing")
			ExitWithCode(log, foundry.ExitConfigInvalid, "Version information missing", errwrap.NewConfigInvalidError("Version information missing"))
			return
		}
		log.Debug("Version check passed", zap.String("version", versionInfo.Version))
		log.Info("✅ Version information available")

		log.Info("✅ Logger initialized")

		// The limit policy is what stands between us and upstream 429s; a
		// broken override file should fail loudly, not at first request.
		policy, err := loadPolicy()
		if err != nil {
			log.Error("❌ FAIL: Limit policy unusable", zap.Error(err))
			ExitWithCode(log, foundry.ExitConfigInvalid, "Limit policy unusable", err)
			return
		}
		log.Info(fmt.Sprintf("✅ Limit policy loaded (%d guarded endpoints)", len(policy.Endpoints)))

		log.Info("✅ Configuration system ready")

		log.Info("")
		log.Info("✅ All health checks passed")
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
