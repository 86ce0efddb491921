package scanner

import (
	"os"

	"github.com/foldersweep/dupefind/internal/types"
)

// newFileInfo creates a FileInfo from an os.FileInfo already known to
// describe a regular file.
func newFileInfo(path string, info os.FileInfo) *types.FileInfo {
	return &types.FileInfo{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
}
