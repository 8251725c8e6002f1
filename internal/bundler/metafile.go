package bundler

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Metafile is the subset of esbuild's metafile JSON used to summarise a
// build's outputs.
type Metafile struct {
	Inputs  map[string]MetafileInput  `json:"inputs"`
	Outputs map[string]MetafileOutput `json:"outputs"`
}

// MetafileInput is a source file that took part in the build.
type MetafileInput struct {
	Bytes int `json:"bytes"`
}

// MetafileOutput is a file written by the build.
type MetafileOutput struct {
	Bytes      int    `json:"bytes"`
	EntryPoint string `json:"entryPoint,omitempty"`
}

// Output is one written file. Path is relative to the build's working
// directory, as esbuild reports it.
type Output struct {
	Path  string
	Bytes int
}

// ParseMetafile decodes esbuild's metafile JSON.
func ParseMetafile(data string) (*Metafile, error) {
	var mf Metafile
	if err := json.Unmarshal([]byte(data), &mf); err != nil {
		return nil, fmt.Errorf("parsing metafile: %w", err)
	}

	return &mf, nil
}

// SortedOutputs returns the outputs ordered by path.
func (m *Metafile) SortedOutputs() []Output {
	outputs := make([]Output, 0, len(m.Outputs))
	for path, o := range m.Outputs {
		outputs = append(outputs, Output{Path: path, Bytes: o.Bytes})
	}

	sort.Slice(outputs, func(i, j int) bool { return outputs[i].Path < outputs[j].Path })

	return outputs
}
