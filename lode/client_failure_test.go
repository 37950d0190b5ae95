package lode

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/sphere2bin/types"
)

// FailingStore is a lode.Store that returns configurable errors.
type FailingStore struct {
	PutErr    error
	GetErr    error
	ExistsErr error
	ListErr   error
	DeleteErr error

	// Existing makes Exists report true for every path.
	Existing bool

	// Track calls for verification
	PutCalls    int
	PutPaths    []string
	DeleteCalls int
}

func (s *FailingStore) Put(_ context.Context, path string, _ io.Reader) error {
	s.PutCalls++
	s.PutPaths = append(s.PutPaths, path)
	return s.PutErr
}

func (s *FailingStore) Get(_ context.Context, _ string) (io.ReadCloser, error) {
	return nil, s.GetErr
}

func (s *FailingStore) Exists(_ context.Context, _ string) (bool, error) {
	return s.Existing, s.ExistsErr
}

func (s *FailingStore) List(_ context.Context, _ string) ([]string, error) {
	return nil, s.ListErr
}

func (s *FailingStore) Delete(_ context.Context, _ string) error {
	s.DeleteCalls++
	return s.DeleteErr
}

func (s *FailingStore) ReadRange(_ context.Context, _ string, _, _ int64) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (s *FailingStore) ReaderAt(_ context.Context, _ string) (io.ReaderAt, error) {
	return nil, errors.New("not implemented")
}

var _ lode.Store = (*FailingStore)(nil)

// FailingStoreFactory creates a factory that returns a FailingStore.
func FailingStoreFactory(store *FailingStore) lode.StoreFactory {
	return func() (lode.Store, error) {
		return store, nil
	}
}

// FailingFactoryFactory creates a factory that fails to create a store.
func FailingFactoryFactory(err error) lode.StoreFactory {
	return func() (lode.Store, error) {
		return nil, err
	}
}

func TestLodeClient_PutFailureIsClassified(t *testing.T) {
	tests := []struct {
		name     string
		store    *FailingStore
		wantKind error
	}{
		{
			name:     "put permission denied",
			store:    &FailingStore{PutErr: errors.New("open tape-AB_1.bin: permission denied")},
			wantKind: ErrPermissionDenied,
		},
		{
			name:     "put disk full",
			store:    &FailingStore{PutErr: errors.New("write: no space left on device")},
			wantKind: ErrDiskFull,
		},
		{
			name:     "exists access denied",
			store:    &FailingStore{ExistsErr: errors.New("AccessDenied: Access Denied")},
			wantKind: ErrAccessDenied,
		},
		{
			name:     "delete throttled",
			store:    &FailingStore{Existing: true, DeleteErr: errors.New("SlowDown: reduce your request rate")},
			wantKind: ErrThrottled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewLodeClientWithFactory(testConfig(false), FailingStoreFactory(tt.store))
			if err != nil {
				t.Fatalf("NewLodeClientWithFactory failed: %v", err)
			}

			loc, err := client.PutArtifact(t.Context(), "tape-AB_1.bin", []byte("x"))
			if err == nil {
				t.Fatal("expected error")
			}
			if loc != "" {
				t.Errorf("location = %q on failure, want empty", loc)
			}

			var storageErr *StorageError
			if !errors.As(err, &storageErr) {
				t.Fatalf("expected *StorageError, got %T", err)
			}
			if storageErr.Op != "write" {
				t.Errorf("Op = %q, want write", storageErr.Op)
			}
			if storageErr.Path != "mem://tape-AB_1.bin" {
				t.Errorf("Path = %q", storageErr.Path)
			}
			if !errors.Is(err, tt.wantKind) {
				t.Errorf("kind = %v, want %v", storageErr.Kind, tt.wantKind)
			}
		})
	}
}

func TestLodeClient_ExistingArtifactIsDeletedFirst(t *testing.T) {
	store := &FailingStore{Existing: true}
	client, err := NewLodeClientWithFactory(testConfig(false), FailingStoreFactory(store))
	if err != nil {
		t.Fatalf("NewLodeClientWithFactory failed: %v", err)
	}
	if _, err := client.PutArtifact(t.Context(), "tape-AB_1.bin", []byte("x")); err != nil {
		t.Fatalf("PutArtifact failed: %v", err)
	}
	if store.DeleteCalls != 1 || store.PutCalls != 1 {
		t.Errorf("DeleteCalls = %d, PutCalls = %d, want 1 and 1", store.DeleteCalls, store.PutCalls)
	}
}

func TestLodeClient_StoreFactoryFailure(t *testing.T) {
	client, err := NewLodeClientWithFactory(testConfig(false), FailingFactoryFactory(errors.New("NoCredentialProviders: no valid providers in chain")))
	if err != nil {
		t.Fatalf("construction must not touch the store: %v", err)
	}

	_, err = client.PutArtifact(t.Context(), "tape-AB_1.bin", []byte("x"))
	var storageErr *StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected *StorageError, got %T: %v", err, err)
	}
	if storageErr.Op != "init" {
		t.Errorf("Op = %q, want init", storageErr.Op)
	}
	if !errors.Is(err, ErrAuth) {
		t.Errorf("kind = %v, want ErrAuth", storageErr.Kind)
	}
}

func TestLodeClient_ManifestWriteFailure(t *testing.T) {
	refused := errors.New("dial tcp 127.0.0.1:9000: connection refused")
	store := &FailingStore{PutErr: refused, GetErr: refused}
	client, err := NewLodeClientWithFactory(testConfig(true), FailingStoreFactory(store))
	if err != nil {
		t.Fatalf("NewLodeClientWithFactory failed: %v", err)
	}

	err = client.WriteManifest(t.Context(), []*types.BlockRecord{testRecord(1, "AB", []byte("x"))})
	if err == nil {
		t.Fatal("expected manifest write error")
	}
	var storageErr *StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected *StorageError, got %T", err)
	}
}

func TestLodeClient_FSRootIsFile(t *testing.T) {
	tmpDir := t.TempDir()
	blocker := filepath.Join(tmpDir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	_, err := NewLodeClient(testConfig(false), filepath.Join(blocker, "out"))
	if err == nil {
		t.Fatal("expected error when root is under a regular file")
	}
	var storageErr *StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected *StorageError, got %T: %v", err, err)
	}
	if storageErr.Op != "init" {
		t.Errorf("Op = %q, want init", storageErr.Op)
	}
}

func TestLodeClient_FSReadOnlyRoot(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("skipping: test requires non-root user")
	}

	readOnlyDir := filepath.Join(t.TempDir(), "readonly")
	if err := os.MkdirAll(readOnlyDir, 0o555); err != nil {
		t.Fatalf("failed to create read-only dir: %v", err)
	}

	client, err := NewLodeClient(testConfig(false), readOnlyDir)
	if err != nil {
		if !errors.Is(err, ErrPermissionDenied) {
			t.Errorf("init error kind = %v, want ErrPermissionDenied", err)
		}
		return
	}

	_, err = client.PutArtifact(t.Context(), "tape-AB_1.bin", []byte("x"))
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("PutArtifact error = %v, want ErrPermissionDenied", err)
	}
}
