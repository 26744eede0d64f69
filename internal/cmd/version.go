package cmd

import (
	"fmt"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
)

var versionExtended bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print version information. Use --extended for build, Go, and dependency details.",
	RunE: func(cmd *cobra.Command, args []string) error {
		identity := GetAppIdentity()
		fmt.Printf("%s %s\n", identity.BinaryName, versionInfo.Version)

		if !versionExtended {
			return nil
		}

		fmt.Printf("Commit: %s\n", versionInfo.Commit)
		fmt.Printf("Built: %s\n", versionInfo.BuildDate)
		fmt.Printf("Go: %s\n", runtime.Version())

		deps := crucible.GetVersion()
		fmt.Printf("\nGofulmen: %s\n", deps.Gofulmen)
		fmt.Printf("Crucible: %s\n", deps.Crucible)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVarP(&versionExtended, "extended", "e", false, "show extended version information")
}
