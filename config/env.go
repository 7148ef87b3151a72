// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"os"
	"strings"
)

// Env represents a [Source] where its underlying values are extracted
// from environment variables.
type Env struct {
	environ func() []string
}

// FromEnv returns a [Source] which will apply its config from the
// environment variables available to the current process.
func FromEnv() Env {
	return Env{
		environ: os.Environ,
	}
}

// Apply implements the [Source] interface.
func (src Env) Apply(store Store) error {
	for _, pair := range src.environ() {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		err := store.Set(k, v)
		if err != nil {
			return err
		}
	}
	return nil
}
