package blob

import (
	"context"
	"testing"

	"orthoinfer/internal/blob/core"
	"orthoinfer/internal/config"
)

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()
	st, err := Open(ctx, config.Blob{Driver: "memory"})
	if err != nil || st.Driver() != core.DriverMemory {
		t.Fatalf("memory driver: %v %v", st, err)
	}
	st, err = Open(ctx, config.Blob{FSRoot: t.TempDir()})
	if err != nil || st.Driver() != core.DriverFilesystem {
		t.Fatalf("default driver: %v %v", st, err)
	}
	if _, err := Open(ctx, config.Blob{Driver: "s3"}); err == nil {
		t.Fatalf("expected bucket error")
	}
	if _, err := Open(ctx, config.Blob{Driver: "ftp"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}
