package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/staple-duck/snh/models"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

func validateOutput(format string) error {
	switch format {
	case outputText, outputJSON, outputYAML:
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
	}
}

func (a *app) render(w io.Writer, v interface{}) error {
	if a.output != outputText {
		return encode(w, a.output, v)
	}

	switch value := v.(type) {
	case *models.Node:
		parent := value.ParentOrEmpty()
		if parent == "" {
			parent = "-"
		}
		_, err := fmt.Fprintf(w, "%s\t%s\tparent=%s\n", value.ID, value.Label, parent)
		return err
	case []*models.TreeNode:
		if len(value) == 0 {
			_, err := fmt.Fprintln(w, "(empty)")
			return err
		}
		for _, root := range value {
			writeTree(w, root, 0)
		}
		return nil
	case *models.DeleteResponse:
		_, err := fmt.Fprintln(w, value.Message)
		return err
	case *models.CloneResponse:
		_, err := fmt.Fprintf(w, "%s (%d node(s), root %s)\n", value.Message, value.Count, value.RootID)
		return err
	default:
		return encode(w, outputJSON, v)
	}
}

func writeTree(w io.Writer, node *models.TreeNode, depth int) {
	fmt.Fprintf(w, "%s%s [%s]\n", strings.Repeat("  ", depth), node.Label, node.ID)
	for _, child := range node.Children {
		writeTree(w, child, depth+1)
	}
}

func encode(w io.Writer, format string, v interface{}) error {
	switch format {
	case outputYAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		_, err = w.Write(data)
		return err
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}
