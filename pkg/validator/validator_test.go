package validator

import (
	"errors"
	"testing"

	"github.com/openctemio/toolstudio/pkg/domain/tool"
)

func TestNew(t *testing.T) {
	v := New()
	if v == nil {
		t.Fatal("expected validator to be created")
	}
	if v.validate == nil {
		t.Fatal("expected internal validator to be initialized")
	}
	if !v.Categories().Contains("api") {
		t.Fatal("expected default categories")
	}
}

func TestValidate_RequiredField(t *testing.T) {
	v := New()

	type TestStruct struct {
		Name string `validate:"required"`
	}

	tests := []struct {
		name    string
		input   TestStruct
		wantErr bool
	}{
		{name: "valid - name provided", input: TestStruct{Name: "test"}},
		{name: "invalid - name empty", input: TestStruct{Name: ""}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateCustomTags(t *testing.T) {
	v := New()

	type TestStruct struct {
		Slug     string `json:"slug" validate:"omitempty,slug"`
		Version  string `json:"version_number" validate:"omitempty,semver"`
		Color    string `json:"color" validate:"omitempty,hexcolor6"`
		Category string `json:"category" validate:"omitempty,category"`
		Language string `json:"handler_language" validate:"omitempty,handler_language"`
		Status   string `json:"status" validate:"omitempty,execution_status"`
	}

	tests := []struct {
		name      string
		input     TestStruct
		wantField string
	}{
		{name: "all valid", input: TestStruct{Slug: "web-search", Version: "1.2.3", Color: "#3B82f6", Category: "api", Language: "go", Status: "running"}},
		{name: "empty is fine", input: TestStruct{}},
		{name: "bad slug", input: TestStruct{Slug: "Web Search"}, wantField: "slug"},
		{name: "bad version", input: TestStruct{Version: "1.2"}, wantField: "version_number"},
		{name: "bad color", input: TestStruct{Color: "#fff"}, wantField: "color"},
		{name: "bad category", input: TestStruct{Category: "video"}, wantField: "category"},
		{name: "bad language", input: TestStruct{Language: "cobol"}, wantField: "handler_language"},
		{name: "bad status", input: TestStruct{Status: "done"}, wantField: "status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.input)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %v", err)
			}
			if len(verrs) != 1 || verrs[0].Field != tt.wantField {
				t.Errorf("got %+v, want single error on %s", verrs, tt.wantField)
			}
		})
	}
}

func TestWithCategories(t *testing.T) {
	v := New(WithCategories(tool.NewCategories([]string{"data", "text"})))

	type TestStruct struct {
		Category string `json:"category" validate:"required,category"`
	}

	if err := v.Validate(TestStruct{Category: "text"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := v.Validate(TestStruct{Category: "api"})
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	if verrs[0].Message != "must be one of: data, text" {
		t.Errorf("unexpected message %q", verrs[0].Message)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	errs := ValidationErrors{{Field: "name", Message: "is required"}, {Field: "slug", Message: "bad"}}
	if got := errs.Error(); got != "name: is required; slug: bad" {
		t.Errorf("Error() = %q", got)
	}
	if (ValidationErrors{}).Error() != "" {
		t.Error("expected empty string")
	}
}

func TestToSnakeCase(t *testing.T) {
	tests := map[string]string{
		"Name":        "name",
		"ToolID":      "tool_i_d",
		"sort_by":     "sort_by",
		"VersionName": "version_name",
	}
	for in, want := range tests {
		if got := toSnakeCase(in); got != want {
			t.Errorf("toSnakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}
