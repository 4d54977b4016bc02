// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/loonghao/vx-sub002/internal/issue"
	"github.com/loonghao/vx-sub002/internal/resolver"
)

func TestSplitToolVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		input       string
		wantTool    string
		wantVersion string
	}{
		{
			name:        "bare tool name",
			input:       "node",
			wantTool:    "node",
			wantVersion: "",
		},
		{
			name:        "tool with major version",
			input:       "node@20",
			wantTool:    "node",
			wantVersion: "20",
		},
		{
			name:        "tool with exact version",
			input:       "python@3.11.4",
			wantTool:    "python",
			wantVersion: "3.11.4",
		},
		{
			name:        "trailing at keeps empty version",
			input:       "node@",
			wantTool:    "node",
			wantVersion: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tool, version := splitToolVersion(tt.input)
			if tool != tt.wantTool || version != tt.wantVersion {
				t.Errorf("splitToolVersion(%q) = (%q, %q), want (%q, %q)",
					tt.input, tool, version, tt.wantTool, tt.wantVersion)
			}
		})
	}
}

func TestExitError(t *testing.T) {
	t.Parallel()

	t.Run("message without cause", func(t *testing.T) {
		t.Parallel()

		err := &ExitError{Code: 42}
		if got := err.Error(); got != "exit status 42" {
			t.Errorf("Error() = %q, want %q", got, "exit status 42")
		}
	})

	t.Run("message with cause", func(t *testing.T) {
		t.Parallel()

		cause := errors.New("spawn failed")
		err := &ExitError{Code: 1, Err: cause}
		if got := err.Error(); got != "spawn failed" {
			t.Errorf("Error() = %q, want %q", got, "spawn failed")
		}
		if !errors.Is(err, cause) {
			t.Error("errors.Is did not reach the wrapped cause")
		}
	})
}

func TestFormatErrorForDisplay(t *testing.T) {
	t.Parallel()

	t.Run("plain error", func(t *testing.T) {
		t.Parallel()

		got := formatErrorForDisplay(errors.New("boom"), false)
		if got != "boom" {
			t.Errorf("formatErrorForDisplay() = %q, want %q", got, "boom")
		}
	})

	t.Run("actionable error includes suggestions", func(t *testing.T) {
		t.Parallel()

		err := issue.NewErrorContext().
			WithOperation("load project config").
			WithResource("./vx.toml").
			WithSuggestion("Run 'vx init' to create one").
			Wrap(errors.New("no such file")).
			Build()

		got := formatErrorForDisplay(err, false)
		if !strings.Contains(got, "load project config") {
			t.Errorf("formatted error missing operation: %q", got)
		}
		if !strings.Contains(got, "Run 'vx init' to create one") {
			t.Errorf("formatted error missing suggestion: %q", got)
		}
	})
}

func TestBackendUnavailable(t *testing.T) {
	t.Parallel()

	backend := unavailableBackend{}

	if _, err := backend.Versions(context.Background(), "node"); err == nil {
		t.Fatal("Versions() returned nil error")
	} else {
		var ae *issue.ActionableError
		if !errors.As(err, &ae) {
			t.Fatalf("Versions() error is %T, want *issue.ActionableError", err)
		}
		if len(ae.Suggestions) == 0 {
			t.Error("backend error carries no suggestions")
		}
	}

	if err := backend.Install(context.Background(), "node", "20.11.0"); err == nil {
		t.Error("Install() returned nil error")
	}
	if err := backend.InstallBundle(context.Background(), "node", "20.11.0", "/tmp/node.vxbundle"); err == nil {
		t.Error("InstallBundle() returned nil error")
	}
}

func TestFormatStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status resolver.Status
		want   []string
	}{
		{
			name:   "managed shows version and path",
			status: resolver.Status{Kind: resolver.StatusStoreManaged, Version: "20.11.0", Path: "/store/node/20.11.0/bin/node"},
			want:   []string{"managed", "20.11.0", "/store/node/20.11.0/bin/node"},
		},
		{
			name:   "system shows path",
			status: resolver.Status{Kind: resolver.StatusSystem, Path: "/usr/bin/node"},
			want:   []string{"system", "/usr/bin/node"},
		},
		{
			name:   "absent shows status only",
			status: resolver.Status{Kind: resolver.StatusNotInstalled},
			want:   []string{"not installed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := formatStatus(tt.status)
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("formatStatus() = %q, missing %q", got, want)
				}
			}
		})
	}
}

func TestGetVersionString(t *testing.T) {
	// Mutates package globals; not parallel.
	orig := Version
	defer func() { Version = orig }()

	Version = "dev"
	if got := getVersionString(); got != "dev (built from source)" {
		t.Errorf("getVersionString() = %q", got)
	}

	Version = "1.2.3"
	if got := getVersionString(); !strings.Contains(got, "1.2.3") {
		t.Errorf("getVersionString() = %q, want it to contain the version", got)
	}
}
