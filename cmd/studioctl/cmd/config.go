package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Config is the on-disk list of named registries.
type Config struct {
	APIVersion     string         `yaml:"apiVersion"`
	Kind           string         `yaml:"kind"`
	CurrentContext string         `yaml:"current-context"`
	Contexts       []NamedContext `yaml:"contexts"`
}

type NamedContext struct {
	Name    string        `yaml:"name"`
	Context ContextDetail `yaml:"context"`
}

type ContextDetail struct {
	APIURL string `yaml:"api-url"`
}

// GetContext returns the named context or nil.
func (c *Config) GetContext(name string) *NamedContext {
	for i := range c.Contexts {
		if c.Contexts[i].Name == name {
			return &c.Contexts[i]
		}
	}
	return nil
}

// SetContext adds or replaces a context.
func (c *Config) SetContext(name, apiURL string) {
	if ctx := c.GetContext(name); ctx != nil {
		ctx.Context.APIURL = apiURL
		return
	}
	c.Contexts = append(c.Contexts, NamedContext{Name: name, Context: ContextDetail{APIURL: apiURL}})
}

// configPathOverride is set by tests.
var configPathOverride string

func configPath() string {
	if configPathOverride != "" {
		return configPathOverride
	}
	if p := os.Getenv("STUDIOCTL_CONFIG"); p != "" {
		return p
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".toolstudio", "config.yaml")
}

func loadConfig() (*Config, error) {
	data, err := os.ReadFile(configPath())
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func saveConfig(cfg *Config) error {
	if cfg.APIVersion == "" {
		cfg.APIVersion = "studioctl.toolstudio.io/v1"
	}
	if cfg.Kind == "" {
		cfg.Kind = "Config"
	}

	path := configPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage saved registry contexts",
	}

	setContextCmd := &cobra.Command{
		Use:   "set-context NAME --url URL",
		Short: "Save a context and make it current",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiURL, _ := cmd.Flags().GetString("url")
			if apiURL == "" {
				return fmt.Errorf("--url is required")
			}
			cfg, err := loadConfig()
			if err != nil {
				cfg = &Config{}
			}
			cfg.SetContext(args[0], apiURL)
			cfg.CurrentContext = args[0]
			if err := saveConfig(cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Context %q set (current)\n", args[0])
			return nil
		},
	}
	setContextCmd.Flags().String("url", "", "Registry API URL")

	useContextCmd := &cobra.Command{
		Use:   "use-context NAME",
		Short: "Switch the current context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("no config found at %s", configPath())
			}
			if cfg.GetContext(args[0]) == nil {
				return fmt.Errorf("context %q not found", args[0])
			}
			cfg.CurrentContext = args[0]
			if err := saveConfig(cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Switched to context %q\n", args[0])
			return nil
		},
	}

	getContextsCmd := &cobra.Command{
		Use:   "get-contexts",
		Short: "List saved contexts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				cfg = &Config{}
			}
			t := newTable(cmd.OutOrStdout(), "CURRENT", "NAME", "API URL")
			for _, c := range cfg.Contexts {
				current := ""
				if c.Name == cfg.CurrentContext {
					current = "*"
				}
				t.AddRow(current, c.Name, c.Context.APIURL)
			}
			return t.Flush()
		},
	}

	configCmd.AddCommand(setContextCmd, useContextCmd, getContextsCmd)
	return configCmd
}
