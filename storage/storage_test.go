package storage

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"netstash/constants"
)

func newTestStorage(t *testing.T, compress bool) *Storage {
	t.Helper()
	store, err := New(t.TempDir(), constants.INDEX_DB_NAME, compress)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestValidateFilename(t *testing.T) {
	bad := []string{
		"",
		"../secret",
		"a/b",
		"a\\b",
		"..",
		"x..y",
		".index.db",
		".hidden",
		string(bytes.Repeat([]byte{'a'}, constants.MAX_FILENAME_LEN+1)),
	}
	for _, name := range bad {
		if err := ValidateFilename(name); !errors.Is(err, ErrInvalidFilename) {
			t.Errorf("%q should be rejected, got %v", name, err)
		}
	}

	good := []string{"notes.txt", "backup.tar.gz", "photo 1.jpg", "no_extension"}
	for _, name := range good {
		if err := ValidateFilename(name); err != nil {
			t.Errorf("%q should be accepted, got %v", name, err)
		}
	}
}

func TestOperationsRejectTraversalBeforeDiskAccess(t *testing.T) {
	store := newTestStorage(t, false)

	if _, err := store.Put("../escape", []byte("x")); !errors.Is(err, ErrInvalidFilename) {
		t.Errorf("put: %v", err)
	}
	if _, _, err := store.Get("../escape"); !errors.Is(err, ErrInvalidFilename) {
		t.Errorf("get: %v", err)
	}
	if err := store.Delete("../escape"); !errors.Is(err, ErrInvalidFilename) {
		t.Errorf("delete: %v", err)
	}
}

func TestPutGetRoundtrip(t *testing.T) {
	store := newTestStorage(t, false)
	content := bytes.Repeat([]byte("netstash"), 4096)

	md, err := store.Put("data.bin", content)
	if err != nil {
		t.Fatal(err)
	}
	if md.Size != uint64(len(content)) {
		t.Errorf("size %d, want %d", md.Size, len(content))
	}
	if md.Checksum != sha256.Sum256(content) {
		t.Error("metadata checksum mismatch")
	}

	data, got, err := store.Get("data.bin")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, content) {
		t.Error("content mismatch")
	}
	if got.Checksum != md.Checksum || got.Size != md.Size {
		t.Errorf("metadata drift: %+v vs %+v", got, md)
	}
}

func TestPutOverwrites(t *testing.T) {
	store := newTestStorage(t, false)

	store.Put("f.txt", []byte("first"))
	store.Put("f.txt", []byte("second version"))

	data, md, err := store.Get("f.txt")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "second version" || md.Size != 14 {
		t.Errorf("overwrite failed: %q %+v", data, md)
	}

	files, _ := store.List()
	if len(files) != 1 {
		t.Errorf("want single entry after overwrite, got %d", len(files))
	}
}

func TestGetMissing(t *testing.T) {
	store := newTestStorage(t, false)

	if _, _, err := store.Get("nope.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	store := newTestStorage(t, false)
	store.Put("gone.txt", []byte("bye"))

	if err := store.Delete("gone.txt"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := store.Get("gone.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("file still readable after delete: %v", err)
	}
	if err := store.Delete("gone.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete should be ErrNotFound, got %v", err)
	}

	files, _ := store.List()
	if len(files) != 0 {
		t.Errorf("list not empty after delete: %+v", files)
	}
}

func TestListSorted(t *testing.T) {
	store := newTestStorage(t, false)
	store.Put("zebra.txt", []byte("z"))
	store.Put("alpha.txt", []byte("a"))
	store.Put("mid.txt", []byte("m"))

	files, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 3 {
		t.Fatalf("want 3 entries, got %d", len(files))
	}
	if files[0].Filename != "alpha.txt" || files[1].Filename != "mid.txt" || files[2].Filename != "zebra.txt" {
		t.Errorf("not sorted: %+v", files)
	}
}

func TestCompressedStorageRoundtrip(t *testing.T) {
	store := newTestStorage(t, true)
	content := bytes.Repeat([]byte("compressible content "), 10000)

	md, err := store.Put("big.log", content)
	if err != nil {
		t.Fatal(err)
	}
	// Metadata reflects logical content, not on-disk encoding.
	if md.Size != uint64(len(content)) || md.Checksum != sha256.Sum256(content) {
		t.Errorf("logical metadata mismatch: %+v", md)
	}

	data, _, err := store.Get("big.log")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, content) {
		t.Error("decompressed content mismatch")
	}
}

// Files dropped into the root outside the service get indexed on startup,
// rows for vanished files get removed.
func TestReconcile(t *testing.T) {
	dir := t.TempDir()

	store, err := New(dir, constants.INDEX_DB_NAME, false)
	if err != nil {
		t.Fatal(err)
	}
	store.Put("tracked.txt", []byte("kept"))
	store.Put("vanishing.txt", []byte("removed out of band"))
	store.Close()

	if err := os.WriteFile(filepath.Join(dir, "dropped.txt"), []byte("out of band"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(dir, "vanishing.txt")); err != nil {
		t.Fatal(err)
	}

	store, err = New(dir, constants.INDEX_DB_NAME, false)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	files, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("want 2 entries after reconcile, got %+v", files)
	}
	if files[0].Filename != "dropped.txt" || files[1].Filename != "tracked.txt" {
		t.Errorf("unexpected entries: %+v", files)
	}
	if files[0].Checksum != sha256.Sum256([]byte("out of band")) {
		t.Error("reconciled checksum mismatch")
	}
}
