// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRead(t *testing.T) {
	t.Run("will merge sources", func(t *testing.T) {
		t.Run("if a later source overrides an earlier one", func(t *testing.T) {
			m, err := Read(
				Map{"name": "one", "port": 8080},
				Map{"name": "two"},
			)
			if !assert.Nil(t, err) {
				return
			}

			var cfg struct {
				Name string `config:"name"`
				Port int    `config:"port"`
			}
			err = m.Unmarshal(&cfg)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, "two", cfg.Name) {
				return
			}
			if !assert.Equal(t, 8080, cfg.Port) {
				return
			}
		})

		t.Run("if nested values only partially override", func(t *testing.T) {
			m, err := Read(
				Map{"server": map[string]any{"host": "localhost", "port": 8080}},
				Map{"server": map[string]any{"port": 9090}},
			)
			if !assert.Nil(t, err) {
				return
			}

			var cfg struct {
				Server struct {
					Host string `config:"host"`
					Port int    `config:"port"`
				} `config:"server"`
			}
			err = m.Unmarshal(&cfg)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, "localhost", cfg.Server.Host) {
				return
			}
			if !assert.Equal(t, 9090, cfg.Server.Port) {
				return
			}
		})
	})
}

func TestManager_Unmarshal(t *testing.T) {
	t.Run("will coerce string values", func(t *testing.T) {
		t.Run("if the target field is a time.Duration", func(t *testing.T) {
			m, err := Read(Map{"timeout": "5s"})
			if !assert.Nil(t, err) {
				return
			}

			var cfg struct {
				Timeout time.Duration `config:"timeout"`
			}
			err = m.Unmarshal(&cfg)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, 5*time.Second, cfg.Timeout) {
				return
			}
		})

		t.Run("if the target field implements encoding.TextUnmarshaler", func(t *testing.T) {
			m, err := Read(Map{"startAt": "2025-01-02T15:04:05Z"})
			if !assert.Nil(t, err) {
				return
			}

			var cfg struct {
				StartAt time.Time `config:"startAt"`
			}
			err = m.Unmarshal(&cfg)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC), cfg.StartAt) {
				return
			}
		})
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if a value can not be coerced", func(t *testing.T) {
			m, err := Read(Map{"timeout": "not a duration"})
			if !assert.Nil(t, err) {
				return
			}

			var cfg struct {
				Timeout time.Duration `config:"timeout"`
			}
			err = m.Unmarshal(&cfg)

			var terr TypeCoercionError
			if !assert.ErrorAs(t, err, &terr) {
				return
			}
			if !assert.NotEmpty(t, terr.Error()) {
				return
			}
		})
	})
}

func TestFromYaml(t *testing.T) {
	t.Run("will apply parsed values", func(t *testing.T) {
		t.Run("if the reader contains valid yaml", func(t *testing.T) {
			src := FromYaml(strings.NewReader("name: hello\nserver:\n  port: 8080"))

			m, err := Read(src)
			if !assert.Nil(t, err) {
				return
			}

			var cfg struct {
				Name   string `config:"name"`
				Server struct {
					Port int `config:"port"`
				} `config:"server"`
			}
			err = m.Unmarshal(&cfg)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, "hello", cfg.Name) {
				return
			}
			if !assert.Equal(t, 8080, cfg.Server.Port) {
				return
			}
		})
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the reader contains invalid yaml", func(t *testing.T) {
			src := FromYaml(strings.NewReader("\thello"))

			_, err := Read(src)

			var yerr InvalidYamlError
			if !assert.ErrorAs(t, err, &yerr) {
				return
			}
			if !assert.NotEmpty(t, yerr.Error()) {
				return
			}
		})
	})
}

func TestFromJson(t *testing.T) {
	t.Run("will apply parsed values", func(t *testing.T) {
		t.Run("if the reader contains valid json", func(t *testing.T) {
			src := FromJson(strings.NewReader(`{"name": "hello"}`))

			m, err := Read(src)
			if !assert.Nil(t, err) {
				return
			}

			var cfg struct {
				Name string `config:"name"`
			}
			err = m.Unmarshal(&cfg)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, "hello", cfg.Name) {
				return
			}
		})
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the reader contains invalid json", func(t *testing.T) {
			src := FromJson(strings.NewReader("{"))

			_, err := Read(src)

			var jerr InvalidJsonError
			if !assert.ErrorAs(t, err, &jerr) {
				return
			}
		})
	})
}

func TestFromEnv(t *testing.T) {
	t.Run("will apply environment variables", func(t *testing.T) {
		t.Run("if variables are present", func(t *testing.T) {
			src := Env{
				environ: func() []string {
					return []string{"NAME=hello", "invalid"}
				},
			}

			m, err := Read(src)
			if !assert.Nil(t, err) {
				return
			}

			var cfg struct {
				Name string `config:"NAME"`
			}
			err = m.Unmarshal(&cfg)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, "hello", cfg.Name) {
				return
			}
		})
	})
}

func TestFileReader(t *testing.T) {
	t.Run("will read the file contents", func(t *testing.T) {
		t.Run("if the file exists", func(t *testing.T) {
			fsys := fstest.MapFS{
				"config.yaml": &fstest.MapFile{
					Data: []byte("name: hello"),
				},
			}

			src := FromYaml(NewFileReader(fsys, "config.yaml"))

			m, err := Read(src)
			if !assert.Nil(t, err) {
				return
			}

			var cfg struct {
				Name string `config:"name"`
			}
			err = m.Unmarshal(&cfg)
			if !assert.Nil(t, err) {
				return
			}
			if !assert.Equal(t, "hello", cfg.Name) {
				return
			}
		})
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the file does not exist", func(t *testing.T) {
			src := FromYaml(NewFileReader(fstest.MapFS{}, "missing.yaml"))

			_, err := Read(src)
			if !assert.NotNil(t, err) {
				return
			}
		})
	})
}
