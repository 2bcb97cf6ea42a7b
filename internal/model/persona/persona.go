package persona

import (
	"encoding/json"
	"fmt"
)

// Facts is the structured factual profile of the represented individual.
// FullName and Name are required, every other key is kept verbatim for the
// prompt.
type Facts struct {
	FullName string
	Name     string
	Fields   map[string]any
}

// JSON renders the full profile the way it is injected into the prompt.
func (f Facts) JSON() string {
	data, err := json.MarshalIndent(f.Fields, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", f.Fields)
	}
	return string(data)
}

// Resources captures everything the prompt needs to describe the persona.
// A Resources value is immutable after Load and safe for concurrent reads.
type Resources struct {
	Facts    Facts
	Summary  string
	Style    string
	Document string
}
