package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/preservica-tools/preservica-upload/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "preservica-upload %s\n", version.Version)
			fmt.Fprintf(cmd.OutOrStdout(), "  Built: %s\n", version.BuildTime)
			fmt.Fprintf(cmd.OutOrStdout(), "  Go:    %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
