//go:build integration

package storage

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/your-org/facepass/internal/config"
)

func setupMinIO(t *testing.T) (*MinIOStore, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "minio/minio:latest",
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     "minioadmin",
			"MINIO_ROOT_PASSWORD": "minioadmin",
		},
		Cmd: []string{"server", "/data"},
		WaitingFor: wait.ForHTTP("/minio/health/live").
			WithPort("9000/tcp").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}

	endpoint, err := container.PortEndpoint(ctx, "9000/tcp", "")
	if err != nil {
		t.Fatalf("container endpoint: %v", err)
	}

	store, err := NewMinIOStore(config.MinIOConfig{
		Endpoint:  endpoint,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "facepass-test",
	})
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("NewMinIOStore() error = %v", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("EnsureBucket() error = %v", err)
	}

	return store, func() { _ = container.Terminate(ctx) }
}

func TestMinIOStore(t *testing.T) {
	store, cleanup := setupMinIO(t)
	if store == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	key := "employees/E1/photo.png"
	data := []byte("\x89PNG fake")

	if err := store.EnsureBucket(ctx); err != nil {
		t.Fatalf("second EnsureBucket() error = %v", err)
	}
	if err := store.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	if err := store.PutObject(ctx, key, data, "image/png"); err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	got, err := store.GetObject(ctx, key)
	if err != nil {
		t.Fatalf("GetObject() error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("GetObject() = %q, want %q", got, data)
	}

	if err := store.DeleteObject(ctx, key); err != nil {
		t.Fatalf("DeleteObject() error = %v", err)
	}
	if _, err := store.GetObject(ctx, key); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("GetObject(deleted) error = %v, want ErrObjectNotFound", err)
	}
}
