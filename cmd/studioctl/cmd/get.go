package cmd

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

func newGetCmd() *cobra.Command {
	getCmd := &cobra.Command{
		Use:   "get",
		Short: "List or show resources",
	}

	getToolsCmd := &cobra.Command{
		Use:     "tools",
		Aliases: []string{"tool"},
		Short:   "List tools, or show one by ID or slug",
		Args:    cobra.MaximumNArgs(1),
		RunE:    runGetTools,
	}
	getToolsCmd.Flags().String("category", "", "Filter by category")
	getToolsCmd.Flags().String("search", "", "Search name and description")
	getToolsCmd.Flags().String("active", "", "Filter by active status (true/false)")
	getToolsCmd.Flags().String("sort-by", "", "Sort by: name, created_at, updated_at")
	getToolsCmd.Flags().String("sort-order", "", "asc or desc")
	addPageFlags(getToolsCmd)

	getVersionsCmd := &cobra.Command{
		Use:     "versions TOOL_ID",
		Aliases: []string{"version"},
		Short:   "List a tool's versions",
		Args:    cobra.ExactArgs(1),
		RunE:    runGetVersions,
	}
	getVersionsCmd.Flags().Bool("active", false, "Show only the active version")

	getTagsCmd := &cobra.Command{
		Use:     "tags",
		Aliases: []string{"tag"},
		Short:   "List tags, or show one by ID or slug",
		Args:    cobra.MaximumNArgs(1),
		RunE:    runGetTags,
	}
	getTagsCmd.Flags().String("active", "", "Filter by active status (true/false)")

	getExecutionsCmd := &cobra.Command{
		Use:     "executions",
		Aliases: []string{"execution", "exec"},
		Short:   "List executions, or show one by ID",
		Args:    cobra.MaximumNArgs(1),
		RunE:    runGetExecutions,
	}
	getExecutionsCmd.Flags().String("tool-id", "", "Filter by tool ID")
	getExecutionsCmd.Flags().String("version-id", "", "Filter by version ID")
	getExecutionsCmd.Flags().String("status", "", "Filter by status")
	getExecutionsCmd.Flags().String("agent-id", "", "Filter by agent")
	getExecutionsCmd.Flags().String("from", "", "From date (RFC3339 or YYYY-MM-DD)")
	getExecutionsCmd.Flags().String("to", "", "To date (RFC3339 or YYYY-MM-DD)")
	addPageFlags(getExecutionsCmd)

	getStatsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show execution statistics",
		Args:  cobra.NoArgs,
		RunE:  runGetStats,
	}
	getStatsCmd.Flags().String("tool-id", "", "Scope to one tool")

	getCmd.AddCommand(getToolsCmd, getVersionsCmd, getTagsCmd, getExecutionsCmd, getStatsCmd)
	return getCmd
}

func addPageFlags(cmd *cobra.Command) {
	cmd.Flags().Int("page", 1, "Page number")
	cmd.Flags().Int("limit", 20, "Items per page")
}

// queryFromFlags maps flag names to query keys, skipping empty values.
func queryFromFlags(cmd *cobra.Command, mapping map[string]string) url.Values {
	params := url.Values{}
	for flagName, key := range mapping {
		if v, _ := cmd.Flags().GetString(flagName); v != "" {
			params.Set(key, v)
		}
	}
	if cmd.Flags().Lookup("page") != nil {
		if v, _ := cmd.Flags().GetInt("page"); v > 0 {
			params.Set("page", strconv.Itoa(v))
		}
		if v, _ := cmd.Flags().GetInt("limit"); v > 0 {
			params.Set("limit", strconv.Itoa(v))
		}
	}
	return params
}

func withQuery(path string, params url.Values) string {
	if q := params.Encode(); q != "" {
		return path + "?" + q
	}
	return path
}

// byIDOrSlug picks the ID route for numeric refs and the slug route otherwise.
func byIDOrSlug(base, ref string) string {
	if _, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return base + "/" + ref
	}
	return base + "/slug/" + url.PathEscape(ref)
}

func runGetTools(cmd *cobra.Command, args []string) error {
	client := newClient(cmd)
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		var t Tool
		if _, err := client.Get(cmd.Context(), byIDOrSlug("/api/v1/tools", args[0]), &t); err != nil {
			return err
		}
		if done, err := printStructured(out, t); done {
			return err
		}
		fmt.Fprintf(out, "ID:          %d\n", t.ToolID)
		fmt.Fprintf(out, "Name:        %s\n", t.Name)
		fmt.Fprintf(out, "Slug:        %s\n", t.Slug)
		fmt.Fprintf(out, "Category:    %s\n", t.Category)
		fmt.Fprintf(out, "Active:      %t\n", t.IsActive)
		fmt.Fprintf(out, "Tags:        %s\n", tagSlugs(t.Tags))
		fmt.Fprintf(out, "Description: %s\n", t.Description)
		if len(t.Versions) > 0 {
			fmt.Fprintln(out, "\nVersions:")
			vt := newTable(out, "  ID", "VERSION", "ACTIVE", "DEPRECATED")
			for _, v := range t.Versions {
				vt.AddRow("  "+id(v.VersionID), v.VersionNumber, strconv.FormatBool(v.IsActive), strconv.FormatBool(v.IsDeprecated))
			}
			return vt.Flush()
		}
		return nil
	}

	params := queryFromFlags(cmd, map[string]string{
		"category":   "category",
		"search":     "search",
		"active":     "is_active",
		"sort-by":    "sort_by",
		"sort-order": "sort_order",
	})
	var tools []Tool
	page, err := client.Get(cmd.Context(), withQuery("/api/v1/tools", params), &tools)
	if err != nil {
		return err
	}
	if done, err := printStructured(out, tools); done {
		return err
	}

	var t *tableWriter
	if flagOutput == outputWide {
		t = newTable(out, "ID", "SLUG", "NAME", "CATEGORY", "ACTIVE", "TAGS", "UPDATED")
		for _, tl := range tools {
			t.AddRow(id(tl.ToolID), tl.Slug, tl.Name, tl.Category, strconv.FormatBool(tl.IsActive), tagSlugs(tl.Tags), shortTime(tl.UpdatedAt))
		}
	} else {
		t = newTable(out, "ID", "SLUG", "CATEGORY", "ACTIVE")
		for _, tl := range tools {
			t.AddRow(id(tl.ToolID), truncate(tl.Slug, 40), tl.Category, strconv.FormatBool(tl.IsActive))
		}
	}
	if err := t.Flush(); err != nil {
		return err
	}
	printPagination(out, page)
	return nil
}

func runGetVersions(cmd *cobra.Command, args []string) error {
	client := newClient(cmd)
	out := cmd.OutOrStdout()
	base := "/api/v1/tools/" + url.PathEscape(args[0]) + "/versions"

	var versions []Version
	if activeOnly, _ := cmd.Flags().GetBool("active"); activeOnly {
		var v Version
		if _, err := client.Get(cmd.Context(), base+"/active", &v); err != nil {
			return err
		}
		versions = []Version{v}
	} else if _, err := client.Get(cmd.Context(), base, &versions); err != nil {
		return err
	}

	if done, err := printStructured(out, versions); done {
		return err
	}
	t := newTable(out, "ID", "VERSION", "ACTIVE", "DEPRECATED", "CREATED")
	for _, v := range versions {
		t.AddRow(id(v.VersionID), v.VersionNumber, strconv.FormatBool(v.IsActive), strconv.FormatBool(v.IsDeprecated), shortTime(v.CreatedAt))
	}
	return t.Flush()
}

func runGetTags(cmd *cobra.Command, args []string) error {
	client := newClient(cmd)
	out := cmd.OutOrStdout()

	var tags []Tag
	if len(args) == 1 {
		var tg Tag
		if _, err := client.Get(cmd.Context(), byIDOrSlug("/api/v1/tags", args[0]), &tg); err != nil {
			return err
		}
		tags = []Tag{tg}
	} else {
		params := queryFromFlags(cmd, map[string]string{"active": "is_active"})
		if _, err := client.Get(cmd.Context(), withQuery("/api/v1/tags", params), &tags); err != nil {
			return err
		}
	}

	if done, err := printStructured(out, tags); done {
		return err
	}
	t := newTable(out, "ID", "SLUG", "NAME", "COLOR", "ACTIVE")
	for _, tg := range tags {
		t.AddRow(id(tg.TagID), tg.Slug, tg.Name, tg.Color, strconv.FormatBool(tg.IsActive))
	}
	return t.Flush()
}

func runGetExecutions(cmd *cobra.Command, args []string) error {
	client := newClient(cmd)
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		var e Execution
		if _, err := client.Get(cmd.Context(), "/api/v1/executions/"+url.PathEscape(args[0]), &e); err != nil {
			return err
		}
		if done, err := printStructured(out, e); done {
			return err
		}
		fmt.Fprintf(out, "ID:         %d\n", e.ExecutionID)
		fmt.Fprintf(out, "Request ID: %s\n", e.ExecutionRequestID)
		fmt.Fprintf(out, "Tool:       %d %s\n", e.ToolID, e.ToolName)
		fmt.Fprintf(out, "Version:    %d %s\n", e.VersionID, e.VersionNumber)
		fmt.Fprintf(out, "Status:     %s\n", e.Status)
		fmt.Fprintf(out, "Duration:   %s\n", ptrMs(e.ExecutionTimeMs))
		if e.ErrorMessage != nil {
			fmt.Fprintf(out, "Error:      %s\n", *e.ErrorMessage)
		}
		return nil
	}

	params := queryFromFlags(cmd, map[string]string{
		"tool-id":    "tool_id",
		"version-id": "version_id",
		"status":     "status",
		"agent-id":   "agent_id",
		"from":       "from_date",
		"to":         "to_date",
	})
	var executions []Execution
	page, err := client.Get(cmd.Context(), withQuery("/api/v1/executions", params), &executions)
	if err != nil {
		return err
	}
	if done, err := printStructured(out, executions); done {
		return err
	}

	t := newTable(out, "ID", "REQUEST ID", "TOOL", "VERSION", "STATUS", "DURATION", "STARTED")
	for _, e := range executions {
		t.AddRow(id(e.ExecutionID), truncate(e.ExecutionRequestID, 36), e.ToolName, e.VersionNumber, e.Status, ptrMs(e.ExecutionTimeMs), shortTime(e.StartedAt))
	}
	if err := t.Flush(); err != nil {
		return err
	}
	printPagination(out, page)
	return nil
}

func runGetStats(cmd *cobra.Command, args []string) error {
	client := newClient(cmd)
	out := cmd.OutOrStdout()

	params := queryFromFlags(cmd, map[string]string{"tool-id": "tool_id"})
	var stats ExecutionStats
	if _, err := client.Get(cmd.Context(), withQuery("/api/v1/executions/stats", params), &stats); err != nil {
		return err
	}
	if done, err := printStructured(out, stats); done {
		return err
	}

	t := newTable(out, "TOTAL", "SUCCESS", "ERROR", "TIMEOUT", "CANCELLED", "RUNNING", "PENDING", "AVG")
	avg := "-"
	if stats.AvgExecutionMs != nil {
		avg = fmt.Sprintf("%.1fms", *stats.AvgExecutionMs)
	}
	t.AddRow(
		strconv.FormatInt(stats.Total, 10),
		strconv.FormatInt(stats.Succeeded, 10),
		strconv.FormatInt(stats.Failed, 10),
		strconv.FormatInt(stats.TimedOut, 10),
		strconv.FormatInt(stats.Cancelled, 10),
		strconv.FormatInt(stats.Running, 10),
		strconv.FormatInt(stats.Pending, 10),
		avg,
	)
	return t.Flush()
}
