package storage

import (
	"context"
	"errors"
	"testing"
)

func TestDiskPhotoStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewDiskPhotoStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskPhotoStore() error = %v", err)
	}

	key := "employees/E1/photo.jpg"
	if err := s.PutObject(ctx, key, []byte("jpeg"), "image/jpeg"); err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	got, err := s.GetObject(ctx, key)
	if err != nil {
		t.Fatalf("GetObject() error = %v", err)
	}
	if string(got) != "jpeg" {
		t.Errorf("GetObject() = %q, want jpeg", got)
	}

	if err := s.DeleteObject(ctx, key); err != nil {
		t.Fatalf("DeleteObject() error = %v", err)
	}
	if _, err := s.GetObject(ctx, key); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("GetObject() after delete error = %v, want ErrObjectNotFound", err)
	}
	if err := s.DeleteObject(ctx, key); err != nil {
		t.Errorf("DeleteObject() twice error = %v, want nil", err)
	}
}

func TestDiskPhotoStore_RejectsEscapingKeys(t *testing.T) {
	s, _ := NewDiskPhotoStore(t.TempDir())

	for _, key := range []string{"", "../x.jpg", "a/../../x.jpg", "/etc/passwd", `a\..\x.jpg`, "a//b.jpg"} {
		if err := s.PutObject(context.Background(), key, []byte("x"), "image/jpeg"); err == nil {
			t.Errorf("PutObject(%q) error = nil, want error", key)
		}
	}
}
