package cmd

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

const defaultAPIURL = "http://localhost:3001"

var (
	version string

	// Global flags
	flagAPIURL  string
	flagContext string
	flagOutput  string
	flagVerbose bool
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "studioctl",
		Short: "Tool Studio registry CLI",
		Long: `studioctl manages tools, versions, tags and executions in a
Tool Studio registry.

Use "studioctl config set-context" to save a connection.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			resolveAPIURL()
		},
	}

	root.PersistentFlags().StringVar(&flagAPIURL, "api-url", "", "Override API URL (env: STUDIOCTL_API_URL)")
	root.PersistentFlags().StringVarP(&flagContext, "context", "c", "", "Use specific context (env: STUDIOCTL_CONTEXT)")
	root.PersistentFlags().StringVarP(&flagOutput, "output", "o", "table", "Output format: table, wide, json, yaml")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose output")

	root.AddCommand(versionCmd)
	root.AddCommand(statusCmd)
	root.AddCommand(newConfigCmd())
	root.AddCommand(newGetCmd())
	root.AddCommand(newCreateCmd())
	root.AddCommand(newDeleteCmd())
	root.AddCommand(newActivateCmd())
	root.AddCommand(newApplyCmd())
	return root
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the CLI version from build flags.
func SetVersion(v string) {
	version = v
}

func resolveAPIURL() {
	if flagAPIURL == "" {
		flagAPIURL = os.Getenv("STUDIOCTL_API_URL")
	}
	if flagAPIURL == "" {
		flagAPIURL = urlFromConfigFile()
	}
	if flagAPIURL == "" {
		flagAPIURL = defaultAPIURL
	}
}

func urlFromConfigFile() string {
	ctxName := flagContext
	if ctxName == "" {
		ctxName = os.Getenv("STUDIOCTL_CONTEXT")
	}

	cfg, err := loadConfig()
	if err != nil {
		return ""
	}
	if ctxName == "" {
		ctxName = cfg.CurrentContext
	}
	ctx := cfg.GetContext(ctxName)
	if ctx == nil {
		return ""
	}
	return ctx.Context.APIURL
}

func newClient(cmd *cobra.Command) *Client {
	var verbose io.Writer
	if flagVerbose {
		verbose = cmd.ErrOrStderr()
	}
	return NewClient(flagAPIURL, verbose)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "studioctl version %s\n", version)
		fmt.Fprintf(out, "  Go:       %s\n", runtime.Version())
		fmt.Fprintf(out, "  OS/Arch:  %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

// serverInfo is the body of GET /api/v1.
type serverInfo struct {
	Message   string            `json:"message" yaml:"message"`
	Version   string            `json:"version" yaml:"version"`
	Endpoints map[string]string `json:"endpoints" yaml:"endpoints"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display registry connection status",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient(cmd)

		// GET /api/v1 has no envelope, so decode it whole.
		var info serverInfo
		if err := client.Raw(cmd.Context(), "/api/v1", &info); err != nil {
			return fmt.Errorf("connection failed: %w", err)
		}

		out := cmd.OutOrStdout()
		switch flagOutput {
		case outputJSON:
			return printJSON(out, info)
		case outputYAML:
			return printYAML(out, info)
		}

		fmt.Fprintf(out, "Tool Studio\n")
		fmt.Fprintf(out, "  API URL:  %s\n", flagAPIURL)
		fmt.Fprintf(out, "  Status:   connected\n")
		fmt.Fprintf(out, "  Server:   %s (%s)\n", info.Message, info.Version)
		return nil
	},
}
