package docstore

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Loader and splitter component names.
const (
	LoaderPlainText = "plainText"
	LoaderTextFile  = "textFile"
	LoaderCSVFile   = "csvFile"
	LoaderHTMLFile  = "htmlFile"

	SplitterRecursiveCharacter = "recursiveCharacterTextSplitter"
	SplitterMarkdown           = "markdownTextSplitter"
)

// Splitter defaults.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Input describes one configurable parameter of a component.
type Input struct {
	Label       string `json:"label"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Optional    bool   `json:"optional,omitempty"`
	Default     any    `json:"default,omitempty"`
}

// Component is a loader or splitter the service can run.
type Component struct {
	Name        string  `json:"name"`
	Label       string  `json:"label"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Inputs      []Input `json:"inputs"`
}

var metadataInput = Input{
	Label:       "Additional Metadata",
	Name:        "metadata",
	Type:        "json",
	Description: "Extra metadata merged into every loaded document",
	Optional:    true,
}

var loaderComponents = []Component{
	{
		Name:        LoaderPlainText,
		Label:       "Plain Text",
		Description: "Load data from plain text",
		Category:    "Document Loaders",
		Inputs: []Input{
			{Label: "Text", Name: "text", Type: "string"},
			metadataInput,
		},
	},
	{
		Name:        LoaderTextFile,
		Label:       "Text File",
		Description: "Load data from a text file in the store folder",
		Category:    "Document Loaders",
		Inputs: []Input{
			{Label: "File Name", Name: "fileName", Type: "file"},
			metadataInput,
		},
	},
	{
		Name:        LoaderCSVFile,
		Label:       "Csv File",
		Description: "Load data from a CSV file in the store folder, one document per row",
		Category:    "Document Loaders",
		Inputs: []Input{
			{Label: "File Name", Name: "fileName", Type: "file"},
			{
				Label: "Columns", Name: "columns", Type: "string", Optional: true,
				Description: "Comma separated columns to extract; all columns when empty",
			},
			metadataInput,
		},
	},
	{
		Name:        LoaderHTMLFile,
		Label:       "HTML File",
		Description: "Load the text content of an HTML file in the store folder",
		Category:    "Document Loaders",
		Inputs: []Input{
			{Label: "File Name", Name: "fileName", Type: "file"},
			metadataInput,
		},
	},
}

var splitterComponents = []Component{
	{
		Name:        SplitterRecursiveCharacter,
		Label:       "Recursive Character Text Splitter",
		Description: "Split documents recursively by separators until chunks fit the size",
		Category:    "Text Splitters",
		Inputs: []Input{
			{Label: "Chunk Size", Name: "chunkSize", Type: "number", Optional: true, Default: DefaultChunkSize},
			{Label: "Chunk Overlap", Name: "chunkOverlap", Type: "number", Optional: true, Default: DefaultChunkOverlap},
			{Label: "Custom Separators", Name: "separators", Type: "string", Optional: true},
		},
	},
	{
		Name:        SplitterMarkdown,
		Label:       "Markdown Text Splitter",
		Description: "Split markdown along headings, lists and code blocks",
		Category:    "Text Splitters",
		Inputs: []Input{
			{Label: "Chunk Size", Name: "chunkSize", Type: "number", Optional: true, Default: DefaultChunkSize},
			{Label: "Chunk Overlap", Name: "chunkOverlap", Type: "number", Optional: true, Default: DefaultChunkOverlap},
		},
	},
}

// LoaderComponents returns the available document loaders.
func LoaderComponents() []Component { return cloneComponents(loaderComponents) }

// SplitterComponents returns the available text splitters.
func SplitterComponents() []Component { return cloneComponents(splitterComponents) }

func cloneComponents(in []Component) []Component {
	out := make([]Component, len(in))
	for i, c := range in {
		c.Inputs = append([]Input(nil), c.Inputs...)
		out[i] = c
	}
	return out
}

func findComponent(list []Component, name string) (Component, bool) {
	for _, c := range list {
		if c.Name == name {
			return c, true
		}
	}
	return Component{}, false
}

// Config values arrive as decoded JSON, so numbers are float64 and lists []any.

func configString(cfg map[string]any, key string) string {
	switch v := cfg[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func configInt(cfg map[string]any, key string, def int) (int, error) {
	switch v := cfg[key].(type) {
	case nil:
		return def, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%s must be an integer, got %v", key, v)
		}
		return int(v), nil
	case int:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return def, nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("%s must be an integer: %w", key, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%s must be an integer, got %T", key, v)
	}
}

// configStrings accepts a JSON array, a JSON-encoded array string or a comma separated list.
func configStrings(cfg map[string]any, key string) ([]string, error) {
	switch v := cfg[key].(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, x := range v {
			s, ok := x.(string)
			if !ok {
				return nil, fmt.Errorf("%s must contain strings, got %T", key, x)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return nil, nil
		}
		if strings.HasPrefix(v, "[") {
			var out []string
			if err := json.Unmarshal([]byte(v), &out); err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			return out, nil
		}
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s must be a list of strings, got %T", key, v)
	}
}

// configObject accepts a JSON object or a JSON-encoded object string.
func configObject(cfg map[string]any, key string) (map[string]any, error) {
	switch v := cfg[key].(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		var out map[string]any
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s must be an object, got %T", key, v)
	}
}
