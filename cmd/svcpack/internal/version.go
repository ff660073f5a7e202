package internal

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "devel"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the svcpack version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("svcpack %s %s/%s\n", version, runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
