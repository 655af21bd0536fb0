package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Manifest declares one tool with its tags and versions.
//
//	kind: Tool
//	name: Web Search
//	slug: web-search
//	category: api
//	tags: [api, read-only]
//	versions:
//	  - version_number: 1.0.0
//	    active: true
//	    input_schema: {type: object}
//	    output_schema: {type: object}
type Manifest struct {
	Kind        string            `yaml:"kind"`
	Name        string            `yaml:"name"`
	Slug        string            `yaml:"slug"`
	Category    string            `yaml:"category"`
	Description string            `yaml:"description"`
	Tags        []string          `yaml:"tags"`
	Versions    []VersionManifest `yaml:"versions"`
}

// VersionManifest declares one version of a manifest's tool.
type VersionManifest struct {
	VersionNumber     string         `yaml:"version_number"`
	Active            bool           `yaml:"active"`
	InputSchema       map[string]any `yaml:"input_schema"`
	OutputSchema      map[string]any `yaml:"output_schema"`
	HandlerLanguage   string         `yaml:"handler_language"`
	HandlerSourceCode string         `yaml:"handler_source_code"`
	Changelog         string         `yaml:"changelog"`
}

// ParseManifest decodes and checks a manifest.
func ParseManifest(r io.Reader) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.Kind != "" && m.Kind != "Tool" {
		return nil, fmt.Errorf("unsupported kind %q", m.Kind)
	}
	if m.Slug == "" {
		return nil, errors.New("manifest: slug is required")
	}
	for i, v := range m.Versions {
		if v.VersionNumber == "" {
			return nil, fmt.Errorf("manifest: versions[%d].version_number is required", i)
		}
		if v.InputSchema == nil || v.OutputSchema == nil {
			return nil, fmt.Errorf("manifest: version %s needs input_schema and output_schema", v.VersionNumber)
		}
	}
	return &m, nil
}

// ApplyResult lists what an apply changed.
type ApplyResult struct {
	ToolID    int64
	Created   bool
	Versions  []string
	Activated string
}

// Apply brings the registry in line with m: the tool is created or updated
// by slug, its tag set replaced with the named tags, and missing versions
// created. Existing versions are left untouched.
func Apply(ctx context.Context, c *Client, m *Manifest) (*ApplyResult, error) {
	res := &ApplyResult{}

	toolBody := map[string]any{
		"name":        m.Name,
		"slug":        m.Slug,
		"category":    m.Category,
		"description": m.Description,
	}

	var t Tool
	_, err := c.Get(ctx, "/api/v1/tools/slug/"+url.PathEscape(m.Slug), &t)
	switch {
	case IsNotFound(err):
		if err := c.Post(ctx, "/api/v1/tools", toolBody, &t); err != nil {
			return nil, fmt.Errorf("create tool: %w", err)
		}
		res.Created = true
	case err != nil:
		return nil, err
	default:
		if err := c.Put(ctx, fmt.Sprintf("/api/v1/tools/%d", t.ToolID), toolBody, &t); err != nil {
			return nil, fmt.Errorf("update tool: %w", err)
		}
	}
	res.ToolID = t.ToolID

	if m.Tags != nil {
		tagIDs := make([]int64, 0, len(m.Tags))
		for _, slug := range m.Tags {
			var tg Tag
			if _, err := c.Get(ctx, "/api/v1/tags/slug/"+url.PathEscape(slug), &tg); err != nil {
				return nil, fmt.Errorf("tag %s: %w", slug, err)
			}
			tagIDs = append(tagIDs, tg.TagID)
		}
		if err := c.Post(ctx, fmt.Sprintf("/api/v1/tools/%d/tags", t.ToolID), map[string]any{"tag_ids": tagIDs}, nil); err != nil {
			return nil, fmt.Errorf("assign tags: %w", err)
		}
	}

	var existing []Version
	versionsPath := fmt.Sprintf("/api/v1/tools/%d/versions", t.ToolID)
	if _, err := c.Get(ctx, versionsPath, &existing); err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	known := make(map[string]Version, len(existing))
	for _, v := range existing {
		known[v.VersionNumber] = v
	}

	for _, vm := range m.Versions {
		if v, ok := known[vm.VersionNumber]; ok {
			if vm.Active && !v.IsActive {
				if err := c.Post(ctx, fmt.Sprintf("/api/v1/versions/%d/activate", v.VersionID), nil, nil); err != nil {
					return nil, fmt.Errorf("activate %s: %w", vm.VersionNumber, err)
				}
				res.Activated = vm.VersionNumber
			}
			continue
		}

		in, err := json.Marshal(vm.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("version %s input_schema: %w", vm.VersionNumber, err)
		}
		out, err := json.Marshal(vm.OutputSchema)
		if err != nil {
			return nil, fmt.Errorf("version %s output_schema: %w", vm.VersionNumber, err)
		}
		body := map[string]any{
			"version_number": vm.VersionNumber,
			"input_schema":   json.RawMessage(in),
			"output_schema":  json.RawMessage(out),
			"is_active":      vm.Active,
			"changelog":      vm.Changelog,
		}
		if vm.HandlerLanguage != "" {
			body["handler_language"] = vm.HandlerLanguage
			body["handler_source_code"] = vm.HandlerSourceCode
		}
		if err := c.Post(ctx, versionsPath, body, nil); err != nil {
			return nil, fmt.Errorf("create version %s: %w", vm.VersionNumber, err)
		}
		res.Versions = append(res.Versions, vm.VersionNumber)
		if vm.Active {
			res.Activated = vm.VersionNumber
		}
	}
	return res, nil
}

func newApplyCmd() *cobra.Command {
	applyCmd := &cobra.Command{
		Use:   "apply -f FILE",
		Short: "Create or update a tool from a YAML manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("filename")
			if file == "" {
				return fmt.Errorf("-f is required")
			}

			var r io.Reader = cmd.InOrStdin()
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			m, err := ParseManifest(r)
			if err != nil {
				return err
			}
			res, err := Apply(cmd.Context(), newClient(cmd), m)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			verb := "configured"
			if res.Created {
				verb = "created"
			}
			fmt.Fprintf(out, "tool/%s %s (id %d)\n", m.Slug, verb, res.ToolID)
			for _, v := range res.Versions {
				fmt.Fprintf(out, "version/%s created\n", v)
			}
			if res.Activated != "" {
				fmt.Fprintf(out, "version/%s active\n", res.Activated)
			}
			return nil
		},
	}
	applyCmd.Flags().StringP("filename", "f", "", "Manifest file, or - for stdin")
	return applyCmd
}
