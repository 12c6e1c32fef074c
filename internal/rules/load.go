package rules

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Format selects the document syntax.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor guesses the format from a file name. Anything but .json is YAML.
func FormatFor(name string) Format {
	if strings.EqualFold(filepath.Ext(name), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// LoadFile reads and decodes a rule document. A missing file yields an empty
// document, so a fresh project generates with default weights and no rules.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Document{}, nil
		}
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return Parse(data, FormatFor(path))
}

// Parse decodes raw JSON or YAML into a Document.
func Parse(data []byte, format Format) (*Document, error) {
	var raw map[string]any
	if len(bytes.TrimSpace(data)) > 0 {
		var err error
		switch format {
		case FormatJSON:
			err = json.Unmarshal(data, &raw)
		default:
			err = yaml.Unmarshal(data, &raw)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedConfiguration, err)
		}
	}
	return Decode(raw)
}

// Decode converts a generic map (as produced by any YAML/JSON decoder or a
// document store) into a Document.
func Decode(raw map[string]any) (*Document, error) {
	doc := &Document{}
	if raw == nil {
		return doc, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.ComposeDecodeHookFunc(overrideShorthandHook, numberHook),
		WeaklyTypedInput: true,
		Result:           doc,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedConfiguration, err)
	}
	return doc, nil
}

var overrideDocType = reflect.TypeOf(OverrideDoc{})

// overrideShorthandHook accepts `fullbody: [outfit]` as `fullbody: {skip: [outfit]}`.
func overrideShorthandHook(from, to reflect.Type, data any) (any, error) {
	if to != overrideDocType {
		return data, nil
	}
	if from.Kind() == reflect.Slice {
		return map[string]any{"skip": data}, nil
	}
	if from.Kind() == reflect.String {
		return map[string]any{"skip": []any{data}}, nil
	}
	return data, nil
}

// numberHook unwraps json.Number values produced by strict decoders.
func numberHook(from, to reflect.Type, data any) (any, error) {
	n, ok := data.(json.Number)
	if !ok {
		return data, nil
	}
	switch to.Kind() {
	case reflect.Float32, reflect.Float64:
		return n.Float64()
	case reflect.Int, reflect.Int64, reflect.Int32:
		return n.Int64()
	default:
		return n.String(), nil
	}
}

// Marshal encodes a Document in the given format.
func Marshal(doc *Document, format Format) ([]byte, error) {
	if format == FormatJSON {
		return json.MarshalIndent(doc, "", "  ")
	}
	return yaml.Marshal(doc)
}
