package domain

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ParseActivity decodes one YAML activity document.
func ParseActivity(data []byte) (*ActivityDefinition, error) {
	var def ActivityDefinition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty activity document")
		}
		return nil, fmt.Errorf("parse activity: %w", err)
	}
	if len(def.Sections) == 0 {
		return nil, fmt.Errorf("parse activity: no sections")
	}
	return &def, nil
}
