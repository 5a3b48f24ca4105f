package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dhartunian/urlcount/internal/scan"
)

// shmDir is preferred for artifacts: they are written once, read once and
// deleted, so they never need to reach a disk.
const shmDir = "/dev/shm"

type Config struct {
	Input         string `json:"input"`
	Output        string `json:"output"`
	Workers       int    `json:"workers"`
	ChunkSize     int    `json:"chunk_size"`
	TempDir       string `json:"temp_dir"`
	Schema        string `json:"schema"`
	SortURLs      bool   `json:"sort_urls"`
	KeepArtifacts bool   `json:"keep_artifacts"`
}

func Default() Config {
	return Config{
		Workers:   4,
		ChunkSize: 1 << 20,
		TempDir:   defaultTempDir(),
		Schema:    scan.Default.String(),
	}
}

func defaultTempDir() string {
	if fi, err := os.Stat(shmDir); err == nil && fi.IsDir() {
		if f, err := os.CreateTemp(shmDir, ".urlcount-probe-*"); err == nil {
			f.Close()
			os.Remove(f.Name())
			return shmDir
		}
	}
	return os.TempDir()
}

// Normalize replaces unusable values with defaults.
func (c *Config) Normalize() {
	if c.Workers < 1 {
		c.Workers = 4
	}
	if c.ChunkSize < 1 {
		c.ChunkSize = 1 << 20
	}
	if c.TempDir == "" {
		c.TempDir = defaultTempDir()
	}
	if c.Schema == "" {
		c.Schema = scan.Default.String()
	}
}

// Validate reports settings that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error
	if c.Input == "" {
		errs = append(errs, errors.New("input path is required"))
	}
	if c.Output == "" {
		errs = append(errs, errors.New("output path is required"))
	}
	if _, err := scan.ParseSchema(c.Schema); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ParsedSchema returns the schema described by c.Schema.
func (c *Config) ParsedSchema() (scan.Schema, error) {
	return scan.ParseSchema(c.Schema)
}

// Load reads a JSON config file over the defaults. Keys missing from the
// file keep their default value.
func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.Normalize()
	return cfg, nil
}
