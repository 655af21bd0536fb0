package cmd

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

// deletable maps a CLI resource name to its collection path.
var deletable = map[string]string{
	"tool":    "/api/v1/tools",
	"tag":     "/api/v1/tags",
	"version": "/api/v1/versions",
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "delete (tool|tag|version) ID",
		Short:     "Delete a resource",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"tool", "tag", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			base, ok := deletable[args[0]]
			if !ok {
				return fmt.Errorf("unknown resource %q: expected tool, tag or version", args[0])
			}
			if err := newClient(cmd).Delete(cmd.Context(), base+"/"+url.PathEscape(args[1])); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s/%s deleted\n", args[0], args[1])
			return nil
		},
	}
}
