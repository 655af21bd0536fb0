package cmd

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

func newCreateCmd() *cobra.Command {
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a resource",
	}

	createToolCmd := &cobra.Command{
		Use:   "tool",
		Short: "Create a tool",
		RunE:  runCreateTool,
	}
	createToolCmd.Flags().String("name", "", "Tool name (required)")
	createToolCmd.Flags().String("slug", "", "Tool slug (required)")
	createToolCmd.Flags().String("category", "", "Tool category (required)")
	createToolCmd.Flags().String("description", "", "Description")

	createTagCmd := &cobra.Command{
		Use:   "tag",
		Short: "Create a tag",
		RunE:  runCreateTag,
	}
	createTagCmd.Flags().String("name", "", "Tag name (required)")
	createTagCmd.Flags().String("slug", "", "Tag slug (required)")
	createTagCmd.Flags().String("color", "#6366f1", "Hex color, #RRGGBB")
	createTagCmd.Flags().String("description", "", "Description")

	createCmd.AddCommand(createToolCmd, createTagCmd)
	return createCmd
}

func requireFlags(cmd *cobra.Command, names ...string) error {
	for _, n := range names {
		if v, _ := cmd.Flags().GetString(n); v == "" {
			return fmt.Errorf("--%s is required", n)
		}
	}
	return nil
}

func runCreateTool(cmd *cobra.Command, args []string) error {
	if err := requireFlags(cmd, "name", "slug", "category"); err != nil {
		return err
	}
	name, _ := cmd.Flags().GetString("name")
	slug, _ := cmd.Flags().GetString("slug")
	category, _ := cmd.Flags().GetString("category")
	description, _ := cmd.Flags().GetString("description")

	var t Tool
	err := newClient(cmd).Post(cmd.Context(), "/api/v1/tools", map[string]any{
		"name":        name,
		"slug":        slug,
		"category":    category,
		"description": description,
	}, &t)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if done, err := printStructured(out, t); done {
		return err
	}
	fmt.Fprintf(out, "tool/%s created (id %d)\n", t.Slug, t.ToolID)
	return nil
}

func runCreateTag(cmd *cobra.Command, args []string) error {
	if err := requireFlags(cmd, "name", "slug"); err != nil {
		return err
	}
	name, _ := cmd.Flags().GetString("name")
	slug, _ := cmd.Flags().GetString("slug")
	color, _ := cmd.Flags().GetString("color")
	description, _ := cmd.Flags().GetString("description")

	var tg Tag
	err := newClient(cmd).Post(cmd.Context(), "/api/v1/tags", map[string]any{
		"name":        name,
		"slug":        slug,
		"color":       color,
		"description": description,
	}, &tg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if done, err := printStructured(out, tg); done {
		return err
	}
	fmt.Fprintf(out, "tag/%s created (id %d)\n", tg.Slug, tg.TagID)
	return nil
}

func newActivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate VERSION_ID",
		Short: "Make a version the active one for its tool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var v Version
			path := "/api/v1/versions/" + url.PathEscape(args[0]) + "/activate"
			if err := newClient(cmd).Post(cmd.Context(), path, nil, &v); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version/%d (%s) activated for tool %d\n", v.VersionID, v.VersionNumber, v.ToolID)
			return nil
		},
	}
}
