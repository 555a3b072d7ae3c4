package notebook

import (
	"encoding/json"
	"fmt"
	"strings"
)

type cell struct {
	CellType string          `json:"cell_type"`
	Source   json.RawMessage `json:"source"`
}

type document struct {
	Cells    []cell          `json:"cells"`
	Metadata json.RawMessage `json:"metadata"`
}

// Extract flattens a Jupyter notebook into plain text suitable for chunking:
// code and markdown cell bodies in order, each under a short header, followed
// by the serialized notebook metadata. Empty cells are skipped.
func Extract(data []byte) (string, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("parse notebook: %w", err)
	}

	var sections []string
	for _, c := range doc.Cells {
		src, err := cellSource(c.Source)
		if err != nil {
			continue
		}
		if strings.TrimSpace(src) == "" {
			continue
		}
		switch c.CellType {
		case "markdown":
			sections = append(sections, "# MARKDOWN\n"+src)
		default:
			sections = append(sections, "# CODE CELL\n"+src)
		}
	}

	if meta := metadataBlock(doc.Metadata); meta != "" {
		sections = append(sections, meta)
	}

	if len(sections) == 0 {
		return "# Empty notebook", nil
	}
	return strings.Join(sections, "\n\n"), nil
}

// cellSource handles both source encodings the format allows: a list of
// line strings or a single string.
func cellSource(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var lines []string
	if err := json.Unmarshal(raw, &lines); err == nil {
		return strings.Join(lines, ""), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", err
	}
	return s, nil
}

func metadataBlock(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" || string(raw) == "{}" {
		return ""
	}
	pretty, err := json.MarshalIndent(json.RawMessage(raw), "", "  ")
	if err != nil {
		return ""
	}
	return "\n# METADATA\n# " + string(pretty)
}
