package editor

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestRenderRequest(t *testing.T) {
	content, err := RenderRequest(RequestData{DryRun: true, Request: "Add login page"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(content, "dry_run = true") {
		t.Fatalf("expected dry_run = true, got:\n%s", content)
	}
	if !strings.HasSuffix(content, "---\nAdd login page\n") {
		t.Fatalf("expected request after separator, got:\n%s", content)
	}
}

func TestParseRequestRoundTrip(t *testing.T) {
	content, err := RenderRequest(RequestData{Request: "- Add login page\n- Fix logout bug"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	parsed, err := ParseRequest(content)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.DryRun {
		t.Fatal("expected dry_run false")
	}
	if parsed.Request != "- Add login page\n- Fix logout bug" {
		t.Fatalf("unexpected request %q", parsed.Request)
	}
}

func TestParseRequestKeepsMarkdownHeadings(t *testing.T) {
	parsed, err := ParseRequest("dry_run = true\n---\n# Sprint\n- Add search\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !parsed.DryRun {
		t.Fatal("expected dry_run true")
	}
	if parsed.Request != "# Sprint\n- Add search" {
		t.Fatalf("unexpected request %q", parsed.Request)
	}
}

func TestParseRequestWithoutSeparator(t *testing.T) {
	parsed, err := ParseRequest("Fix the flaky upload test.\r\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Request != "Fix the flaky upload test." {
		t.Fatalf("unexpected request %q", parsed.Request)
	}
}

func TestParseRequestRequiresBody(t *testing.T) {
	if _, err := ParseRequest("dry_run = false\n---\n\n"); err == nil {
		t.Fatal("expected error for empty request")
	}
}

func TestParseRequestRejectsBadFrontmatter(t *testing.T) {
	if _, err := ParseRequest("dry_run = maybe\n---\nAdd search\n"); err == nil {
		t.Fatal("expected TOML error")
	}
}

func TestEditRequestUsesEditor(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("editor script requires a POSIX shell")
	}
	script := filepath.Join(t.TempDir(), "editor.sh")
	body := "#!/bin/sh\nprintf 'dry_run = true\\n---\\nAdd export button\\n' > \"$1\"\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("write editor: %v", err)
	}
	t.Setenv("VISUAL", "")
	t.Setenv("EDITOR", script)

	parsed, err := EditRequest(RequestData{})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if !parsed.DryRun || parsed.Request != "Add export button" {
		t.Fatalf("unexpected result %+v", parsed)
	}
}

func TestEditRequestReportsEditorFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("editor script requires a POSIX shell")
	}
	script := filepath.Join(t.TempDir(), "editor.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nexit 2\n"), 0o755); err != nil {
		t.Fatalf("write editor: %v", err)
	}
	t.Setenv("VISUAL", "")
	t.Setenv("EDITOR", script)

	_, err := EditRequest(RequestData{Request: "Add search"})
	if err == nil || !strings.Contains(err.Error(), "status 2") {
		t.Fatalf("expected editor exit status error, got %v", err)
	}
}
