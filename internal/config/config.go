// Package config loads, environment-overlays, and validates the engine's
// build configuration: the bounding box and dimension list, the
// base/cold depth split, pool capacities, chunk-store backend selection,
// and the listen/DSN addresses the ambient services bind to.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/entwine-go/entwine/pkg/log"
)

// ChunkStoreConfig selects and parameterizes one of internal/chunk's
// Store backends.
type ChunkStoreConfig struct {
	Backend string `json:"backend"` // "fs", "sqlite", or "s3"
	Path    string `json:"path,omitempty"`
	S3      *S3Config `json:"s3,omitempty"`
}

// S3Config mirrors chunk.S3StoreConfig's fields one-to-one; kept as a
// separate type so config stays independent of internal/chunk's package
// boundary (it is translated at wiring time, in cmd/entwine).
type S3Config struct {
	Endpoint     string `json:"endpoint,omitempty"`
	Bucket       string `json:"bucket"`
	Prefix       string `json:"prefix,omitempty"`
	AccessKey    string `json:"accessKey,omitempty"`
	SecretKey    string `json:"secretKey,omitempty"`
	Region       string `json:"region,omitempty"`
	UsePathStyle bool   `json:"usePathStyle,omitempty"`
}

// Config is the full on-disk build configuration.
type Config struct {
	BBox [6]float64 `json:"bbox"` // minX, minY, minZ, maxX, maxY, maxZ
	Dims []string   `json:"dims"`
	XDim string     `json:"xDim"`
	YDim string     `json:"yDim"`
	ZDim string     `json:"zDim,omitempty"`

	Is3d              bool `json:"is3d"`
	Tubular           bool `json:"tubular"`
	DiscardDuplicates bool `json:"discardDuplicates"`

	BaseSpan      uint64 `json:"baseSpan"`
	ColdEnd       uint64 `json:"coldEnd,omitempty"`
	ColdChunkSpan uint64 `json:"coldChunkSpan,omitempty"` // depth levels per cold chunk
	MaxDepth      uint64 `json:"maxDepth,omitempty"`

	InfoPoolCapacity int `json:"infoPoolCapacity,omitempty"` // 0 == unbounded
	DataPoolCapacity int `json:"dataPoolCapacity,omitempty"`

	HierarchyStep       uint64 `json:"hierarchyStep,omitempty"`
	HierarchyDepthBegin uint64 `json:"hierarchyDepthBegin,omitempty"`

	ChunkStore ChunkStoreConfig `json:"chunkStore"`
	CatalogDSN string           `json:"catalogDsn"`
	HTTPAddr   string           `json:"httpAddr"`

	CheckpointInterval string `json:"checkpointInterval,omitempty"` // time.ParseDuration syntax
}

// Defaults mirrors the teacher's package-level Keys-with-defaults
// pattern (internal/config.Keys in the teacher): a caller starts from
// Defaults(), then Load overlays whatever the file/environment provide.
func Defaults() Config {
	return Config{
		BBox:                [6]float64{0, 0, 0, 1, 1, 1},
		XDim:                "X",
		YDim:                "Y",
		ZDim:                "Z",
		Is3d:                true,
		DiscardDuplicates:   true,
		BaseSpan:            6,
		ColdChunkSpan:       4,
		HierarchyStep:       8,
		HierarchyDepthBegin: 6,
		ChunkStore:          ChunkStoreConfig{Backend: "fs", Path: "./var/chunks"},
		CatalogDSN:          "./var/catalog.db",
		HTTPAddr:            ":8080",
		CheckpointInterval:  "30s",
	}
}

// Load reads envFile (if present; a missing .env is not an error, same as
// the teacher never requiring one) into the process environment, then
// reads configPath, validates it against the embedded JSON Schema, and
// decodes it over Defaults(). Fields present in the environment under the
// ENTWINE_ prefix (ENTWINE_CATALOG_DSN, ENTWINE_HTTP_ADDR,
// ENTWINE_S3_ACCESS_KEY, ENTWINE_S3_SECRET_KEY) override whatever the
// file set, for secrets that should not live in config.json.
func Load(configPath, envFile string) (*Config, error) {
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		log.Warnf("config: reading %q: %v", envFile, err)
	}

	cfg := Defaults()

	raw, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: reading %q: %w", configPath, err)
	}

	if err := Validate(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("config: validating %q: %w", configPath, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding %q: %w", configPath, err)
	}

	applyEnvOverrides(&cfg)

	if err := cfg.check(); err != nil {
		return nil, fmt.Errorf("config: %q: %w", configPath, err)
	}

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("ENTWINE_CATALOG_DSN"); ok {
		cfg.CatalogDSN = v
	}
	if v, ok := os.LookupEnv("ENTWINE_HTTP_ADDR"); ok {
		cfg.HTTPAddr = v
	}
	if v, ok := os.LookupEnv("ENTWINE_S3_ACCESS_KEY"); ok && cfg.ChunkStore.S3 != nil {
		cfg.ChunkStore.S3.AccessKey = v
	}
	if v, ok := os.LookupEnv("ENTWINE_S3_SECRET_KEY"); ok && cfg.ChunkStore.S3 != nil {
		cfg.ChunkStore.S3.SecretKey = v
	}
}

// check validates the cross-field invariants the JSON Schema can't
// express (a schema validates shape; these depend on relationships
// between fields).
func (c *Config) check() error {
	if len(c.Dims) == 0 {
		return fmt.Errorf("dims must not be empty")
	}
	if c.BBox[0] >= c.BBox[3] || c.BBox[1] >= c.BBox[4] || (c.Is3d && c.BBox[2] >= c.BBox[5]) {
		return fmt.Errorf("bbox min must be strictly less than max on every axis")
	}
	switch c.ChunkStore.Backend {
	case "fs", "sqlite":
		if c.ChunkStore.Path == "" {
			return fmt.Errorf("chunkStore.path is required for backend %q", c.ChunkStore.Backend)
		}
	case "s3":
		if c.ChunkStore.S3 == nil || c.ChunkStore.S3.Bucket == "" {
			return fmt.Errorf("chunkStore.s3.bucket is required for backend \"s3\"")
		}
	default:
		return fmt.Errorf("unknown chunkStore.backend %q", c.ChunkStore.Backend)
	}
	return nil
}
