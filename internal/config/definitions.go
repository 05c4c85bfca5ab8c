package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	yaml "go.yaml.in/yaml/v3"

	"github.com/docsync/core/pkg/utils"
)

type definitionsFile struct {
	Schedulers []Definition `yaml:"schedulers"`
}

// LoadDefinitions reads scheduler definitions from a YAML file. Unknown keys
// are rejected so typos do not silently fall back to defaults.
func LoadDefinitions(path string) ([]Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open scheduler config: %w", err)
	}
	defer f.Close()

	return decodeDefinitions(f)
}

func decodeDefinitions(r io.Reader) ([]Definition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file definitionsFile
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse scheduler config: %w", err)
	}

	for i := range file.Schedulers {
		if file.Schedulers[i].Key == "" {
			file.Schedulers[i].Key = utils.SchedulerKey(file.Schedulers[i].Name)
		}
		if file.Schedulers[i].Name == "" {
			file.Schedulers[i].Name = file.Schedulers[i].Key
		}
	}
	return file.Schedulers, nil
}

// MergeDefinitions overlays file definitions on the built-in ones by key.
// An overriding entry without an endpoint keeps the built-in endpoint.
func MergeDefinitions(base, overrides []Definition) []Definition {
	merged := make([]Definition, len(base))
	copy(merged, base)

	index := make(map[string]int, len(merged))
	for i, d := range merged {
		index[d.Key] = i
	}

	for _, d := range overrides {
		i, ok := index[d.Key]
		if !ok {
			index[d.Key] = len(merged)
			merged = append(merged, d)
			continue
		}
		if d.Endpoint == "" {
			d.Endpoint = merged[i].Endpoint
		}
		merged[i] = d
	}
	return merged
}
