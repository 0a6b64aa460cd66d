package editor

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/BurntSushi/toml"
)

// RequestData is rendered into the merge request template.
type RequestData struct {
	DryRun  bool
	Request string
}

// ParsedRequest is the result of editing a merge request.
type ParsedRequest struct {
	DryRun  bool `toml:"dry_run"`
	Request string
}

var requestTemplate = template.Must(template.New("request").Parse(`# Write the new work below the --- line.
# List items become one task each. Other lines are split into sentences
# and kept when they start with a work verb (add, fix, implement, ...).
dry_run = {{ .DryRun }} # true to preview without writing
---
{{ .Request }}
`))

// RenderRequest renders the merge request template.
func RenderRequest(data RequestData) (string, error) {
	var buf bytes.Buffer
	if err := requestTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return buf.String(), nil
}

// ParseRequest parses the edited template. The request body is required.
func ParseRequest(content string) (*ParsedRequest, error) {
	frontmatter, body := splitFrontmatter(content)

	var parsed ParsedRequest
	if _, err := toml.Decode(frontmatter, &parsed); err != nil {
		return nil, fmt.Errorf("parse TOML: %w", err)
	}
	parsed.Request = strings.TrimSpace(body)
	if parsed.Request == "" {
		return nil, fmt.Errorf("request is required")
	}
	return &parsed, nil
}

func splitFrontmatter(content string) (string, string) {
	content = strings.TrimLeft(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	if content == "" {
		return "", ""
	}

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == "---" {
			return strings.Join(lines[:i], "\n"), strings.Join(lines[i+1:], "\n")
		}
	}
	return "", content
}

// EditRequest opens the editor on the request template and returns the parsed result.
func EditRequest(data RequestData) (*ParsedRequest, error) {
	content, err := RenderRequest(data)
	if err != nil {
		return nil, err
	}

	tmpfile, err := os.CreateTemp("", "sb-request-*.md")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpfile.Name()
	defer os.Remove(tmpPath)

	if _, err := tmpfile.WriteString(content); err != nil {
		tmpfile.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpfile.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	if err := Edit(tmpPath); err != nil {
		return nil, err
	}

	edited, err := os.ReadFile(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("read edited file: %w", err)
	}
	return ParseRequest(string(edited))
}
