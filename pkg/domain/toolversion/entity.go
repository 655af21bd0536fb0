// Package toolversion defines ToolVersion, one schema-bound implementation of a tool.
package toolversion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/openctemio/toolstudio/pkg/domain/shared"
)

// VersionPattern is the accepted form of a version number.
var VersionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// Column widths of tool_versions.
const (
	MaxVersionNumberLength   = 32
	MaxSemanticVersionLength = 64
)

// HandlerLanguage is the language of a version's handler source.
type HandlerLanguage string

const (
	LanguageJavaScript HandlerLanguage = "javascript"
	LanguageTypeScript HandlerLanguage = "typescript"
	LanguagePython     HandlerLanguage = "python"
	LanguageGo         HandlerLanguage = "go"
	LanguageRust       HandlerLanguage = "rust"
)

// Languages lists every supported handler language.
var Languages = []HandlerLanguage{LanguageJavaScript, LanguageTypeScript, LanguagePython, LanguageGo, LanguageRust}

// IsValid checks if the language is supported.
func (l HandlerLanguage) IsValid() bool {
	switch l {
	case LanguageJavaScript, LanguageTypeScript, LanguagePython, LanguageGo, LanguageRust:
		return true
	}
	return false
}

// Version is one concrete implementation of a tool.
type Version struct {
	ID                 shared.ID
	ToolID             shared.ID
	VersionNumber      string
	SemanticVersion    string
	InputSchema        json.RawMessage
	OutputSchema       json.RawMessage
	HandlerSourceCode  string
	HandlerLanguage    HandlerLanguage
	IsActive           bool
	IsDeprecated       bool
	DeprecationMessage string
	Changelog          string
	CreatedBy          string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewParams holds the fields accepted when creating a version.
type NewParams struct {
	ToolID            shared.ID
	VersionNumber     string
	SemanticVersion   string
	InputSchema       json.RawMessage
	OutputSchema      json.RawMessage
	HandlerSourceCode string
	HandlerLanguage   HandlerLanguage
	IsActive          bool
	Changelog         string
	CreatedBy         string
}

// NewVersion validates params and builds a Version.
// SemanticVersion defaults to VersionNumber.
func NewVersion(p NewParams) (*Version, error) {
	if p.ToolID.IsZero() {
		return nil, shared.NewValidationError("tool_id", "tool_id is required")
	}
	v := &Version{
		ToolID:            p.ToolID,
		VersionNumber:     p.VersionNumber,
		SemanticVersion:   p.SemanticVersion,
		InputSchema:       p.InputSchema,
		OutputSchema:      p.OutputSchema,
		HandlerSourceCode: p.HandlerSourceCode,
		HandlerLanguage:   p.HandlerLanguage,
		IsActive:          p.IsActive,
		Changelog:         p.Changelog,
		CreatedBy:         p.CreatedBy,
	}
	if v.SemanticVersion == "" {
		v.SemanticVersion = v.VersionNumber
	}
	if err := v.validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	v.CreatedAt = now
	v.UpdatedAt = now
	return v, nil
}

// Patch carries a partial update. Activation is not part of a patch;
// it goes through the repository's atomic Activate.
type Patch struct {
	VersionNumber      *string
	SemanticVersion    *string
	InputSchema        *json.RawMessage
	OutputSchema       *json.RawMessage
	HandlerSourceCode  *string
	HandlerLanguage    *HandlerLanguage
	IsDeprecated       *bool
	DeprecationMessage *string
	Changelog          *string
}

// Apply applies the patch and refreshes UpdatedAt.
func (v *Version) Apply(p Patch) error {
	next := *v
	if p.VersionNumber != nil {
		next.VersionNumber = *p.VersionNumber
	}
	if p.SemanticVersion != nil {
		next.SemanticVersion = *p.SemanticVersion
	}
	if p.InputSchema != nil {
		next.InputSchema = *p.InputSchema
	}
	if p.OutputSchema != nil {
		next.OutputSchema = *p.OutputSchema
	}
	if p.HandlerSourceCode != nil {
		next.HandlerSourceCode = *p.HandlerSourceCode
	}
	if p.HandlerLanguage != nil {
		next.HandlerLanguage = *p.HandlerLanguage
	}
	if p.IsDeprecated != nil {
		next.IsDeprecated = *p.IsDeprecated
	}
	if p.DeprecationMessage != nil {
		next.DeprecationMessage = *p.DeprecationMessage
	}
	if p.Changelog != nil {
		next.Changelog = *p.Changelog
	}
	if err := next.validate(); err != nil {
		return err
	}
	next.UpdatedAt = time.Now().UTC()
	*v = next
	return nil
}

func (v *Version) validate() error {
	if v.VersionNumber == "" {
		return shared.NewValidationError("version_number", "version_number is required")
	}
	if len(v.VersionNumber) > MaxVersionNumberLength {
		return shared.NewValidationError("version_number", fmt.Sprintf("version_number must be at most %d characters", MaxVersionNumberLength))
	}
	if !VersionPattern.MatchString(v.VersionNumber) {
		return shared.NewValidationError("version_number", "version_number must follow the MAJOR.MINOR.PATCH format")
	}
	if len(v.SemanticVersion) > MaxSemanticVersionLength {
		return shared.NewValidationError("semantic_version", fmt.Sprintf("semantic_version must be at most %d characters", MaxSemanticVersionLength))
	}
	if !isNonEmptyObject(v.InputSchema) {
		return shared.NewValidationError("input_schema", "input_schema must be a non-empty JSON object")
	}
	if !isNonEmptyObject(v.OutputSchema) {
		return shared.NewValidationError("output_schema", "output_schema must be a non-empty JSON object")
	}
	if v.HandlerLanguage != "" && !v.HandlerLanguage.IsValid() {
		return shared.NewValidationError("handler_language", "handler_language must be one of: javascript, typescript, python, go, rust")
	}
	return nil
}

func isNonEmptyObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return false
	}
	return len(obj) > 0
}
