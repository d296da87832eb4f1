package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "devault",
	Short: "DeVault is a multi-tenant secrets vault",
	Long: `A secrets manager for development teams: projects, environments and
encrypted key/value secrets behind role-based access, with a full audit trail.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
