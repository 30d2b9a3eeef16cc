package storage

import (
	"io/fs"
	"os"
	"path/filepath"
)

// IndexFootprint returns the bytes on disk used by the chunk database (including
// its WAL and shared-memory files) and the keyword index directory. Paths that
// do not exist count as zero.
func IndexFootprint(databasePath, indexPath string) (int64, error) {
	paths := []string{databasePath, databasePath + "-wal", databasePath + "-shm", indexPath}
	var total int64
	for _, p := range paths {
		if p == "" || p == "-wal" || p == "-shm" {
			continue
		}
		n, err := pathSize(p)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func pathSize(p string) (int64, error) {
	info, err := os.Stat(p)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}
	var total int64
	err = filepath.WalkDir(p, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		total += fi.Size()
		return nil
	})
	return total, err
}
