// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

// Map is an ordinary map[string]any but implements both the [Source]
// and [Store] interfaces.
type Map map[string]any

// Apply implements the [Source] interface.
func (m Map) Apply(store Store) error {
	for k, v := range m {
		err := store.Set(k, v)
		if err != nil {
			return err
		}
	}
	return nil
}

// Set implements the [Store] interface. Nested maps are merged
// recursively so later sources only override the keys they set.
func (m Map) Set(key string, value any) error {
	nv, ok := value.(map[string]any)
	if !ok {
		m[key] = value
		return nil
	}

	ov, ok := m[key].(map[string]any)
	if !ok {
		m[key] = nv
		return nil
	}

	for k, v := range nv {
		err := Map(ov).Set(k, v)
		if err != nil {
			return err
		}
	}
	return nil
}
