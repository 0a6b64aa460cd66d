package main

import (
	"encoding/json"
	"io"
	"os"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

const defaultOutputWidth = 80

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

var outputFormats = []string{formatText, formatJSON, formatYAML}

func encodeJSONToStdout(value any) error {
	return encodeJSON(os.Stdout, value)
}

func encodeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

// encodeYAML writes value as block-style YAML using the same keys as its
// JSON encoding.
func encodeYAML(w io.Writer, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return err
	}
	clearNodeStyle(&node)
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return err
	}
	return enc.Close()
}

func clearNodeStyle(node *yaml.Node) {
	node.Style = 0
	for _, child := range node.Content {
		clearNodeStyle(child)
	}
}

func writeFormatted(w io.Writer, format string, value any, text func(io.Writer) error) error {
	switch format {
	case formatJSON:
		return encodeJSON(w, value)
	case formatYAML:
		return encodeYAML(w, value)
	default:
		return text(w)
	}
}

// outputWidth returns the terminal width of stdout, or a default when
// stdout is not a terminal.
func outputWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return defaultOutputWidth
	}
	width, _, err := term.GetSize(fd)
	if err != nil || width <= 0 {
		return defaultOutputWidth
	}
	return width
}
