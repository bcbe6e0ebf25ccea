package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/preservica-tools/preservica-upload/internal/constants"
	"github.com/preservica-tools/preservica-upload/internal/remotetree"
)

func newFoldersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "folders [REF]",
		Short: "List Preservica folders and assets",
		Long: `List the children of a Preservica folder. Without a reference the
top level of the repository is listed.

Use the reference shown next to a folder as --folder for the upload command.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := ""
			if len(args) == 1 {
				ref = args[0]
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			app, err := newApplication(cfg, GetLogger(), nil)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, cancel := context.WithTimeout(GetContext(), constants.TreeLoadTimeout)
			defer cancel()

			return listFolders(ctx, app.client, ref, cmd.OutOrStdout())
		},
	}
	return cmd
}

// listFolders prints the children of ref, folders before assets.
func listFolders(ctx context.Context, svc remotetree.EntityService, ref string, out io.Writer) error {
	entities, err := svc.Descendants(ctx, ref)
	if err != nil {
		return fmt.Errorf("failed to list folders: %w", err)
	}

	if len(entities) == 0 {
		fmt.Fprintln(out, "No folders found")
		return nil
	}

	folders := 0
	for _, e := range entities {
		if e.Type == remotetree.EntityFolder {
			fmt.Fprintf(out, "  📁 %s (ref: %s)\n", e.Title, e.Ref)
			folders++
		}
	}
	for _, e := range entities {
		if e.Type == remotetree.EntityAsset {
			fmt.Fprintf(out, "  📄 %s\n", e.Title)
		}
	}

	fmt.Fprintf(out, "\n%d folder(s), %d asset(s)\n", folders, len(entities)-folders)
	return nil
}
