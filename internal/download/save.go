package download

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	fxerrors "github.com/chazuruo/flowdex/internal/errors"
)

// Save writes c into dir under its filename and returns the final path.
//
// The data goes to a temporary file in dir that is renamed into place, so
// a failed save never leaves a partial file behind. The temporary file is
// removed on every failure path.
func Save(dir string, c *Content) (dest string, err error) {
	if c == nil {
		return "", &fxerrors.DownloadError{Op: "save", Err: fxerrors.ErrInvalid}
	}
	name := filepath.Base(strings.TrimSpace(c.Filename))
	if name == "" || name == "." || name == ".." || name == string(filepath.Separator) {
		return "", &fxerrors.DownloadError{Op: "save", Path: c.Filename, Err: fxerrors.ErrInvalid}
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", &fxerrors.DownloadError{Op: "save", Path: dir, Err: fxerrors.Mark(err, fxerrors.ErrIO)}
	}
	dest = filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return "", &fxerrors.DownloadError{Op: "save", Path: dest, Err: fxerrors.Mark(err, fxerrors.ErrIO)}
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(c.Data); err != nil {
		return "", &fxerrors.DownloadError{Op: "save", Path: dest, Err: fxerrors.Mark(err, fxerrors.ErrIO)}
	}
	if err = tmp.Sync(); err != nil {
		return "", &fxerrors.DownloadError{Op: "save", Path: dest, Err: fxerrors.Mark(err, fxerrors.ErrIO)}
	}
	if err = tmp.Close(); err != nil {
		return "", &fxerrors.DownloadError{Op: "save", Path: dest, Err: fxerrors.Mark(err, fxerrors.ErrIO)}
	}
	if err = os.Chmod(tmpName, 0644); err != nil {
		return "", &fxerrors.DownloadError{Op: "save", Path: dest, Err: fxerrors.Mark(err, fxerrors.ErrIO)}
	}
	if err = os.Rename(tmpName, dest); err != nil {
		return "", &fxerrors.DownloadError{Op: "save", Path: dest, Err: fxerrors.Mark(fmt.Errorf("rename: %w", err), fxerrors.ErrIO)}
	}
	return dest, nil
}
