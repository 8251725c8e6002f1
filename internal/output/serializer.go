package output

import (
	"bytes"
	"encoding/json"
	"fmt"

	sigsyaml "sigs.k8s.io/yaml"
)

// SerializeYAML renders v as YAML using its json struct tags. Map keys are
// sorted, so equal values always produce identical bytes.
func SerializeYAML(v any) ([]byte, error) {
	out, err := sigsyaml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("serializing YAML: %w", err)
	}

	return ensureNewline(out), nil
}

// SerializeJSON renders v as indented JSON.
func SerializeJSON(v any, indent string) ([]byte, error) {
	if indent == "" {
		indent = "  "
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("serializing JSON: %w", err)
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", indent); err != nil {
		return nil, fmt.Errorf("indenting JSON: %w", err)
	}

	return ensureNewline(buf.Bytes()), nil
}

func ensureNewline(b []byte) []byte {
	if len(b) > 0 && b[len(b)-1] != '\n' {
		b = append(b, '\n')
	}

	return b
}
