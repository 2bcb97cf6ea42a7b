package persona

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"gopkg.in/yaml.v3"
)

// Resource file names inside the persona directory.
const (
	FactsJSONFile   = "facts.json"
	FactsYAMLFile   = "facts.yaml"
	SummaryFile     = "summary.txt"
	StyleFile       = "style.txt"
	DocumentPDFFile = "linkedin.pdf"
	DocumentTxtFile = "linkedin.txt"
)

// LoadError reports a persona resource that is missing or unreadable.
type LoadError struct {
	Resource string
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("persona: load %s: %v", e.Resource, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Load reads all persona resources from dir.
func Load(dir string) (*Resources, error) {
	facts, err := loadFacts(dir)
	if err != nil {
		return nil, err
	}

	summary, err := readText(filepath.Join(dir, SummaryFile))
	if err != nil {
		return nil, err
	}

	style, err := readText(filepath.Join(dir, StyleFile))
	if err != nil {
		return nil, err
	}

	document, err := loadDocument(dir)
	if err != nil {
		return nil, err
	}

	return &Resources{
		Facts:    facts,
		Summary:  summary,
		Style:    style,
		Document: document,
	}, nil
}

// LoadPersonality reads the static personality text used instead of the
// rendered prompt.
func LoadPersonality(path string) (string, error) {
	return readText(path)
}

func loadFacts(dir string) (Facts, error) {
	fields := map[string]any{}

	jsonPath := filepath.Join(dir, FactsJSONFile)
	yamlPath := filepath.Join(dir, FactsYAMLFile)

	var resource string
	switch {
	case fileExists(jsonPath):
		resource = jsonPath
		data, err := os.ReadFile(jsonPath)
		if err != nil {
			return Facts{}, &LoadError{Resource: jsonPath, Err: err}
		}
		if err := json.Unmarshal(data, &fields); err != nil {
			return Facts{}, &LoadError{Resource: jsonPath, Err: err}
		}
	case fileExists(yamlPath):
		resource = yamlPath
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			return Facts{}, &LoadError{Resource: yamlPath, Err: err}
		}
		if err := yaml.Unmarshal(data, &fields); err != nil {
			return Facts{}, &LoadError{Resource: yamlPath, Err: err}
		}
	default:
		return Facts{}, &LoadError{Resource: jsonPath, Err: os.ErrNotExist}
	}

	fullName, err := requiredString(fields, "full_name")
	if err != nil {
		return Facts{}, &LoadError{Resource: resource, Err: err}
	}
	name, err := requiredString(fields, "name")
	if err != nil {
		return Facts{}, &LoadError{Resource: resource, Err: err}
	}

	return Facts{FullName: fullName, Name: name, Fields: fields}, nil
}

func requiredString(fields map[string]any, key string) (string, error) {
	raw, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("missing %q field", key)
	}
	value, ok := raw.(string)
	if !ok || strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("%q must be a non-empty string", key)
	}
	return strings.TrimSpace(value), nil
}

// loadDocument prefers the PDF profile and falls back to pre-extracted text.
func loadDocument(dir string) (string, error) {
	pdfPath := filepath.Join(dir, DocumentPDFFile)
	if fileExists(pdfPath) {
		text, err := extractPDFText(pdfPath)
		if err != nil {
			return "", &LoadError{Resource: pdfPath, Err: err}
		}
		return text, nil
	}
	return readText(filepath.Join(dir, DocumentTxtFile))
}

func extractPDFText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", err
	}

	text := strings.TrimSpace(buf.String())
	if text == "" {
		return "", errors.New("no extractable text")
	}
	return text, nil
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &LoadError{Resource: path, Err: err}
	}
	return strings.TrimSpace(string(data)), nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
