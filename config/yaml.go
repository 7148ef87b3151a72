// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"fmt"
	"io"

	"github.com/z5labs/managed/internal/try"

	"gopkg.in/yaml.v3"
)

// Yaml represents a [Source] where its underlying format is YAML.
type Yaml struct {
	r io.Reader
}

// FromYaml returns a [Source] which will apply its config from YAML
// values parsed from the given [io.Reader]. The reader is closed after
// being fully read, if it implements [io.Closer].
func FromYaml(r io.Reader) Yaml {
	return Yaml{r: r}
}

// InvalidYamlError occurs if the underlying [io.Reader] contains invalid YAML.
type InvalidYamlError struct {
	cause error
}

// Error implements the [builtin.error] interface.
func (e InvalidYamlError) Error() string {
	return fmt.Sprintf("invalid yaml: %s", e.cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e InvalidYamlError) Unwrap() error {
	return e.cause
}

// Apply implements the [Source] interface.
func (src Yaml) Apply(store Store) (err error) {
	defer try.Close(&err, src.r)

	b, err := io.ReadAll(src.r)
	if err != nil {
		return err
	}

	m := make(map[string]any)
	err = yaml.Unmarshal(b, &m)
	if err != nil {
		return InvalidYamlError{cause: err}
	}
	return Map(m).Apply(store)
}
