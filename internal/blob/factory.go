// Package blob opens the configured blob store.
package blob

import (
	"context"
	"fmt"

	"orthoinfer/internal/blob/core"
	"orthoinfer/internal/config"
	"orthoinfer/internal/infra/blob/fs"
	"orthoinfer/internal/infra/blob/memory"
	"orthoinfer/internal/infra/blob/s3"
)

// Open selects a core.Store implementation from cfg.Driver (fs|s3|memory,
// default fs).
func Open(ctx context.Context, cfg config.Blob) (core.Store, error) {
	driver := core.Driver(cfg.Driver)
	if driver == "" {
		driver = core.DriverFilesystem
	}
	switch driver {
	case core.DriverFilesystem:
		return fs.New(cfg.FSRoot)
	case core.DriverS3:
		return s3.New(ctx, s3.Config{
			Bucket:          cfg.Bucket,
			Region:          cfg.Region,
			Endpoint:        cfg.Endpoint,
			PathStyle:       cfg.PathStyle,
			AccessKeyID:     cfg.AccessKey,
			SecretAccessKey: cfg.SecretKey,
		})
	case core.DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
