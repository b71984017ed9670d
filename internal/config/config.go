// Package config resolves run settings from the environment.
//
// Every key is prefixed ORTHOINFER_. A .env file in the working directory is
// loaded first when present; variables already set in the process win.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment keys.
const (
	EnvSourceSpecies  = "ORTHOINFER_SOURCE_SPECIES"
	EnvTargetSpecies  = "ORTHOINFER_TARGET_SPECIES"
	EnvSnapshotKey    = "ORTHOINFER_SNAPSHOT_KEY"
	EnvSkipListKey    = "ORTHOINFER_SKIPLIST_KEY"
	EnvRelease        = "ORTHOINFER_RELEASE"
	EnvStorageDriver  = "ORTHOINFER_STORAGE_DRIVER"
	EnvSQLitePath     = "ORTHOINFER_SQLITE_PATH"
	EnvPostgresDSN    = "ORTHOINFER_POSTGRES_DSN"
	EnvBlobDriver     = "ORTHOINFER_BLOB_DRIVER"
	EnvBlobFSRoot     = "ORTHOINFER_BLOB_FS_ROOT"
	EnvBlobS3Bucket   = "ORTHOINFER_BLOB_S3_BUCKET"
	EnvBlobS3Region   = "ORTHOINFER_BLOB_S3_REGION"
	EnvBlobS3Endpoint = "ORTHOINFER_BLOB_S3_ENDPOINT"
	EnvBlobS3PathSty  = "ORTHOINFER_BLOB_S3_PATH_STYLE"
	EnvBlobS3Access   = "ORTHOINFER_BLOB_S3_ACCESS_KEY_ID"
	EnvBlobS3Secret   = "ORTHOINFER_BLOB_S3_SECRET_ACCESS_KEY"
	EnvMetricsAddr    = "ORTHOINFER_METRICS_ADDR"
	EnvKeepAltNames   = "ORTHOINFER_KEEP_ALT_NAMES_ON_PHOSPHO"
)

// Storage drivers.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Blob holds blob-store selection.
type Blob struct {
	Driver    string
	FSRoot    string
	Bucket    string
	Region    string
	Endpoint  string
	PathStyle bool
	AccessKey string
	SecretKey string
}

// Storage holds persistent-store selection.
type Storage struct {
	Driver      string
	SQLitePath  string
	PostgresDSN string
}

// Config is the resolved run configuration.
type Config struct {
	SourceSpecies string
	TargetSpecies []string
	SnapshotKey   string
	SkipListKey   string
	Release       string
	MetricsAddr   string
	// KeepAlternateNamesOnPhospho switches off the alternate-name reset
	// performed when a phosphorylated residue renames a protein.
	KeepAlternateNamesOnPhospho bool

	Storage Storage
	Blob    Blob
}

// ErrNoTargets is returned when no target species is configured.
var ErrNoTargets = errors.New("config: no target species configured")

// Load reads an optional .env file and resolves the configuration from the
// process environment.
func Load(envFiles ...string) (Config, error) {
	cfg, err := Read(envFiles...)
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Read is Load without validation, for callers that apply overrides first.
func Read(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		if _, err := os.Stat(".env"); err == nil {
			envFiles = []string{".env"}
		}
	}
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return Config{}, fmt.Errorf("load env file: %w", err)
		}
	}
	return Resolve(os.Getenv), nil
}

// FromEnv resolves the configuration through lookup, which is usually
// os.Getenv, and validates it.
func FromEnv(lookup func(string) string) (Config, error) {
	cfg := Resolve(lookup)
	return cfg, cfg.Validate()
}

// Resolve fills a Config from lookup, applying defaults.
func Resolve(lookup func(string) string) Config {
	cfg := Config{
		SourceSpecies: orDefault(lookup(EnvSourceSpecies), "hsap"),
		TargetSpecies: SplitList(lookup(EnvTargetSpecies)),
		SnapshotKey:   orDefault(lookup(EnvSnapshotKey), "snapshot/graph.json"),
		SkipListKey:   lookup(EnvSkipListKey),
		Release:       orDefault(lookup(EnvRelease), "current"),
		MetricsAddr:   lookup(EnvMetricsAddr),

		KeepAlternateNamesOnPhospho: strings.EqualFold(lookup(EnvKeepAltNames), "true"),

		Storage: Storage{
			Driver:      strings.ToLower(orDefault(lookup(EnvStorageDriver), StorageSQLite)),
			SQLitePath:  orDefault(lookup(EnvSQLitePath), "orthoinfer.db"),
			PostgresDSN: lookup(EnvPostgresDSN),
		},
		Blob: Blob{
			Driver:    strings.ToLower(orDefault(lookup(EnvBlobDriver), "fs")),
			FSRoot:    orDefault(lookup(EnvBlobFSRoot), "./blobdata"),
			Bucket:    lookup(EnvBlobS3Bucket),
			Region:    orDefault(lookup(EnvBlobS3Region), "us-east-1"),
			Endpoint:  lookup(EnvBlobS3Endpoint),
			PathStyle: strings.EqualFold(lookup(EnvBlobS3PathSty), "true"),
			AccessKey: lookup(EnvBlobS3Access),
			SecretKey: lookup(EnvBlobS3Secret),
		},
	}
	return cfg
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	if len(c.TargetSpecies) == 0 {
		return ErrNoTargets
	}
	for _, t := range c.TargetSpecies {
		if t == c.SourceSpecies {
			return fmt.Errorf("config: target species %q equals source species", t)
		}
	}
	switch c.Storage.Driver {
	case StorageMemory, StorageSQLite:
	case StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("config: %s required for postgres storage", EnvPostgresDSN)
		}
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Blob.Driver {
	case "fs", "memory":
	case "s3":
		if c.Blob.Bucket == "" {
			return fmt.Errorf("config: %s required for s3 blob driver", EnvBlobS3Bucket)
		}
	default:
		return fmt.Errorf("config: unknown blob driver %q", c.Blob.Driver)
	}
	return nil
}

// SplitList splits a comma separated list, trimming blanks and dropping
// duplicates while keeping first-seen order.
func SplitList(raw string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" || seen[part] {
			continue
		}
		seen[part] = true
		out = append(out, part)
	}
	return out
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}
