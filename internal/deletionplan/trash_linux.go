package deletionplan

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// moveToTrash implements the freedesktop.org Trash specification
// (https://specifications.freedesktop.org/trash-spec/trashspec-latest.html):
// files move to $XDG_DATA_HOME/Trash/files with a sibling .trashinfo record
// in $XDG_DATA_HOME/Trash/info recording the original path and deletion
// time.
func moveToTrash(path string) error {
	trashDir, err := xdgTrashDir()
	if err != nil {
		return err
	}

	filesDir := filepath.Join(trashDir, "files")
	infoDir := filepath.Join(trashDir, "info")
	if err := os.MkdirAll(filesDir, 0o700); err != nil {
		return fmt.Errorf("create trash files dir: %w", err)
	}
	if err := os.MkdirAll(infoDir, 0o700); err != nil {
		return fmt.Errorf("create trash info dir: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}

	name := uniqueTrashName(filesDir, filepath.Base(absPath))
	destFile := filepath.Join(filesDir, name)
	infoFile := filepath.Join(infoDir, name+".trashinfo")

	info := trashInfo(absPath, time.Now())
	if err := os.WriteFile(infoFile, []byte(info), 0o600); err != nil {
		return fmt.Errorf("write trashinfo: %w", err)
	}

	if err := os.Rename(path, destFile); err != nil {
		_ = os.Remove(infoFile)
		return fmt.Errorf("move to trash: %w", err)
	}

	return nil
}

// uniqueTrashName appends a numeric suffix if base already exists in dir, so
// a second file trashed with the same name never clobbers the first.
func uniqueTrashName(dir, base string) string {
	name := base
	for i := 1; ; i++ {
		if _, err := os.Lstat(filepath.Join(dir, name)); os.IsNotExist(err) {
			return name
		}
		ext := filepath.Ext(base)
		stem := strings.TrimSuffix(base, ext)
		name = fmt.Sprintf("%s.%d%s", stem, i, ext)
	}
}

func trashInfo(originalPath string, deletedAt time.Time) string {
	var b strings.Builder
	b.WriteString("[Trash Info]\n")
	b.WriteString("Path=")
	b.WriteString(originalPath)
	b.WriteString("\n")
	b.WriteString("DeletionDate=")
	b.WriteString(deletedAt.Format("2006-01-02T15:04:05"))
	b.WriteString("\n")
	return b.String()
}

// xdgTrashDir resolves $XDG_DATA_HOME/Trash, falling back to
// $HOME/.local/share/Trash per the XDG base directory specification.
func xdgTrashDir() (string, error) {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, "Trash"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "Trash"), nil
}
