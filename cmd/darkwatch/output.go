package main

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

// render writes v to stdout in the selected format. YAML goes through a JSON
// round trip so field names follow the json tags of the models.
func (a *app) render(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	if a.format == formatYAML {
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return fmt.Errorf("encoding output: %w", err)
		}
		if data, err = yaml.Marshal(generic); err != nil {
			return fmt.Errorf("encoding output: %w", err)
		}
		_, err = a.stdout.Write(data)
		return err
	}
	_, err = fmt.Fprintln(a.stdout, string(data))
	return err
}
