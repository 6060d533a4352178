package storage

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pierrec/lz4/v4"

	"netstash/constants"
)

// ErrInvalidFilename means the name failed validation before touching any path
var ErrInvalidFilename = errors.New("invalid filename")

// ErrNotFound means no such file exists in the committed namespace
var ErrNotFound = errors.New("file not found")

// FileMetadata describes one committed file
type FileMetadata struct {
	Filename string
	Size     uint64
	Modified int64    // Unix seconds
	Checksum [32]byte // SHA256 of logical content
}

// Storage owns a flat directory of files plus their metadata index.
// Writes on the same filename are serialized through a striped lock table
// so unrelated transfers never wait on each other.
type Storage struct {
	root     string
	compress bool
	idx      *index
	locks    [constants.LOCK_STRIPES]sync.Mutex
}

// New opens the storage root, creating it if needed, and reconciles the
// metadata index against the files actually present.
func New(root, indexName string, compress bool) (*Storage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}

	idx, err := openIndex(filepath.Join(root, indexName))
	if err != nil {
		return nil, err
	}

	s := &Storage{root: root, compress: compress, idx: idx}

	if err := s.reconcile(); err != nil {
		idx.close()
		return nil, err
	}

	return s, nil
}

// Close releases the metadata index
func (s *Storage) Close() error {
	return s.idx.close()
}

// ValidateFilename rejects names that could escape the flat namespace.
// Must run before the name is used in any path construction. Names with the
// reserved "." prefix collide with the index and staging files.
func ValidateFilename(name string) error {
	if name == "" || len(name) > constants.MAX_FILENAME_LEN {
		return ErrInvalidFilename
	}
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return ErrInvalidFilename
	}
	if strings.HasPrefix(name, ".") {
		return ErrInvalidFilename
	}
	return nil
}

// Put commits the complete content under the given name. The write goes to
// a staging file first and is renamed into place, so a reader can never
// observe a partially written file.
func (s *Storage) Put(name string, data []byte) (FileMetadata, error) {
	if err := ValidateFilename(name); err != nil {
		return FileMetadata{}, err
	}

	s.lockName(name)
	defer s.unlockName(name)

	encoded, err := s.encode(data)
	if err != nil {
		return FileMetadata{}, err
	}

	tmp, err := os.CreateTemp(s.root, constants.TMP_PREFIX+"*")
	if err != nil {
		return FileMetadata{}, err
	}

	if _, err = tmp.Write(encoded); err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return FileMetadata{}, err
	}

	target := filepath.Join(s.root, name)
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return FileMetadata{}, err
	}

	md := FileMetadata{
		Filename: name,
		Size:     uint64(len(data)),
		Checksum: sha256.Sum256(data),
	}
	if info, err := os.Stat(target); err == nil {
		md.Modified = info.ModTime().Unix()
	}

	if err := s.idx.upsert(md); err != nil {
		return FileMetadata{}, err
	}

	return md, nil
}

// Get returns the full content and metadata of a committed file
func (s *Storage) Get(name string) ([]byte, FileMetadata, error) {
	if err := ValidateFilename(name); err != nil {
		return nil, FileMetadata{}, err
	}

	s.lockName(name)
	defer s.unlockName(name)

	raw, err := os.ReadFile(filepath.Join(s.root, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, FileMetadata{}, ErrNotFound
		}
		return nil, FileMetadata{}, err
	}

	data, err := s.decode(raw)
	if err != nil {
		return nil, FileMetadata{}, err
	}

	md, ok, err := s.idx.get(name)
	if err != nil {
		return nil, FileMetadata{}, err
	}
	if !ok {
		// Untracked file, recompute on the fly.
		md = FileMetadata{
			Filename: name,
			Size:     uint64(len(data)),
			Checksum: sha256.Sum256(data),
		}
	}

	return data, md, nil
}

// Delete removes a committed file and its metadata
func (s *Storage) Delete(name string) error {
	if err := ValidateFilename(name); err != nil {
		return err
	}

	s.lockName(name)
	defer s.unlockName(name)

	if err := os.Remove(filepath.Join(s.root, name)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}

	return s.idx.remove(name)
}

// List returns metadata for every committed file ordered by filename
func (s *Storage) List() ([]FileMetadata, error) {
	return s.idx.all()
}

// reconcile makes the index match the directory. Files dropped into the
// root out of band get indexed, rows for vanished files are removed.
func (s *Storage) reconcile() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return err
	}

	present := make(map[string]bool)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || ValidateFilename(name) != nil {
			continue
		}
		present[name] = true

		if _, ok, err := s.idx.get(name); err != nil {
			return err
		} else if ok {
			continue
		}

		data, _, err := s.Get(name)
		if err != nil {
			return fmt.Errorf("reconcile %s: %w", name, err)
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		md := FileMetadata{
			Filename: name,
			Size:     uint64(len(data)),
			Modified: info.ModTime().Unix(),
			Checksum: sha256.Sum256(data),
		}
		if err := s.idx.upsert(md); err != nil {
			return err
		}
	}

	tracked, err := s.idx.all()
	if err != nil {
		return err
	}
	for _, md := range tracked {
		if !present[md.Filename] {
			if err := s.idx.remove(md.Filename); err != nil {
				return err
			}
		}
	}

	return nil
}

// encode applies optional at-rest compression
func (s *Storage) encode(data []byte) ([]byte, error) {
	if !s.compress {
		return data, nil
	}
	buf := new(bytes.Buffer)
	zw := lz4.NewWriter(buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decode reverses optional at-rest compression
func (s *Storage) decode(raw []byte) ([]byte, error) {
	if !s.compress {
		return raw, nil
	}
	return io.ReadAll(lz4.NewReader(bytes.NewReader(raw)))
}

func (s *Storage) lockName(name string) {
	s.locks[stripe(name)].Lock()
}

func (s *Storage) unlockName(name string) {
	s.locks[stripe(name)].Unlock()
}

// stripe maps a filename onto one lock in the table
func stripe(name string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(name))
	return h.Sum32() % constants.LOCK_STRIPES
}
