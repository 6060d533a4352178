package storage

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// index persists file metadata so List never has to rehash the whole root.
// Rows always mirror the committed on-disk namespace.
type index struct {
	db *sql.DB
}

func openIndex(path string) (*index, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS files (
			filename TEXT PRIMARY KEY,
			size INTEGER NOT NULL,
			modified INTEGER NOT NULL,
			checksum BLOB NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &index{db: db}, nil
}

func (ix *index) close() error {
	return ix.db.Close()
}

// upsert inserts or replaces the row for one file
func (ix *index) upsert(md FileMetadata) error {
	_, err := ix.db.Exec(
		"INSERT OR REPLACE INTO files (filename, size, modified, checksum) VALUES (?, ?, ?, ?)",
		md.Filename, int64(md.Size), md.Modified, md.Checksum[:])
	return err
}

// remove drops the row for one file if present
func (ix *index) remove(filename string) error {
	_, err := ix.db.Exec("DELETE FROM files WHERE filename = ?", filename)
	return err
}

// get returns metadata for one file, or false when untracked
func (ix *index) get(filename string) (FileMetadata, bool, error) {
	var md FileMetadata
	var size int64
	var sum []byte
	err := ix.db.QueryRow(
		"SELECT filename, size, modified, checksum FROM files WHERE filename = ?",
		filename).Scan(&md.Filename, &size, &md.Modified, &sum)
	if err == sql.ErrNoRows {
		return md, false, nil
	}
	if err != nil {
		return md, false, err
	}
	md.Size = uint64(size)
	copy(md.Checksum[:], sum)
	return md, true, nil
}

// all returns every tracked file ordered by filename
func (ix *index) all() ([]FileMetadata, error) {
	rows, err := ix.db.Query("SELECT filename, size, modified, checksum FROM files ORDER BY filename")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []FileMetadata
	for rows.Next() {
		var md FileMetadata
		var size int64
		var sum []byte
		if err := rows.Scan(&md.Filename, &size, &md.Modified, &sum); err != nil {
			return nil, err
		}
		md.Size = uint64(size)
		copy(md.Checksum[:], sum)
		files = append(files, md)
	}
	return files, rows.Err()
}
