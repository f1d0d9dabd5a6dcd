// Package persistable implements the on-disk encoding and directory layout
// used to flush indexed records to the content-addressed flat-file store
// (spec.md §3, §6.1). Every record is encoded with MessagePack and written
// to a path derived from its kind and identifier, mirroring the teacher's
// flat shared/fileutil helpers combined with the original indexer's
// Persistable/PersistingPath traits.
package persistable

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/beaconindexer/indexer/shared/fileutil"
)

// Path describes where a record belongs under a base directory. Each
// on-disk model (block, epoch, vote, sort-index page, ...) implements this
// once, the same way the original's PersistingPath trait did per type.
type Path interface {
	// RelPath returns a slash-separated path relative to the store's base
	// directory, e.g. "blocks/e/123.msg".
	RelPath() string
}

// Write encodes v as MessagePack and writes it atomically to
// baseDir/v.RelPath(), creating any missing parent directories.
func Write(baseDir string, v interface{ Path }) error {
	return WriteRaw(baseDir, v.RelPath(), v)
}

// WriteRaw is Write without requiring v to implement Path, for callers that
// compute the relative path separately (such as the catalog's state
// snapshot).
func WriteRaw(baseDir, relPath string, v interface{}) error {
	full := filepath.Join(baseDir, filepath.FromSlash(relPath))
	if err := fileutil.MkdirAll(filepath.Dir(full)); err != nil {
		return errors.Wrapf(err, "could not create directory for %s", relPath)
	}
	data, err := msgpack.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "could not encode %s", relPath)
	}
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, fileutil.FilePermissions); err != nil {
		return errors.Wrapf(err, "could not write %s", tmp)
	}
	if err := os.Rename(tmp, full); err != nil {
		return errors.Wrapf(err, "could not finalize %s", full)
	}
	return nil
}

// Read decodes the MessagePack file at baseDir/relPath into dst, which
// must be a pointer.
func Read(baseDir, relPath string, dst interface{}) error {
	full := filepath.Join(baseDir, filepath.FromSlash(relPath))
	data, err := os.ReadFile(full)
	if err != nil {
		return errors.Wrapf(err, "could not read %s", full)
	}
	if err := msgpack.Unmarshal(data, dst); err != nil {
		return errors.Wrapf(err, "could not decode %s", full)
	}
	return nil
}

// Exists reports whether a record already exists at baseDir/relPath.
func Exists(baseDir, relPath string) bool {
	return fileutil.FileExists(filepath.Join(baseDir, filepath.FromSlash(relPath)))
}
