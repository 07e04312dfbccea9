package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytePatrol/Media-Folder-Visualizer/internal/mediainfo"
)

// bundleExtensions are macOS bundle directories whose descendants must not be
// scanned; their contents are resources, not user media.
var bundleExtensions = map[string]bool{
	".app": true, ".bundle": true, ".framework": true,
	".photoslibrary": true, ".fcpbundle": true, ".imovielibrary": true,
}

// ErrFolderAccessDenied wraps discovery failures on the scan root.
type ErrFolderAccessDenied struct {
	Path string
	Err  error
}

func (e *ErrFolderAccessDenied) Error() string {
	return fmt.Sprintf("folder access denied: %s: %v", e.Path, e.Err)
}

func (e *ErrFolderAccessDenied) Unwrap() error { return e.Err }

// DiscoverVideoFiles recursively enumerates folderPath, skipping hidden
// entries and bundle descendants, and returns the ordered absolute paths of
// regular files whose extension is in the supported set.
func DiscoverVideoFiles(folderPath string) ([]string, error) {
	root, err := filepath.Abs(folderPath)
	if err != nil {
		return nil, &ErrFolderAccessDenied{Path: folderPath, Err: err}
	}
	if info, err := os.Stat(root); err != nil {
		return nil, &ErrFolderAccessDenied{Path: root, Err: err}
	} else if !info.IsDir() {
		return nil, &ErrFolderAccessDenied{Path: root, Err: fmt.Errorf("not a directory")}
	}

	var files []string
	walkErr := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			// Unreadable subdirectories are skipped, not fatal.
			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		name := entry.Name()
		if path != root && strings.HasPrefix(name, ".") {
			if entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if entry.IsDir() {
			if bundleExtensions[strings.ToLower(filepath.Ext(name))] {
				return fs.SkipDir
			}
			return nil
		}

		if !entry.Type().IsRegular() {
			return nil
		}
		if mediainfo.IsSupportedVideoFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if walkErr != nil {
		return nil, &ErrFolderAccessDenied{Path: root, Err: walkErr}
	}

	return files, nil
}
