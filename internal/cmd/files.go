package cmd

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
)

// readInput returns the content of path, or of stdin when path is "" or "-".
func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading plan file: %w", err)
	}
	return string(data), nil
}

// argOrEmpty returns args[i] or "" when absent.
func argOrEmpty(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

// lockDir holds the lock files for plan writes, so that no lock file is left
// next to the plan.
var lockDir = filepath.Join(os.TempDir(), "planmd-locks")

// withLock runs fn under an exclusive lock for path. Concurrent planmd
// invocations on the same file are serialized.
func withLock(path string, fn func() error) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}
	if err := os.MkdirAll(lockDir, 0o700); err != nil {
		return fmt.Errorf("creating lock dir: %w", err)
	}

	sum := sha256.Sum256([]byte(abs))
	lock := flock.New(filepath.Join(lockDir, hex.EncodeToString(sum[:16])+".lock"))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking %s: %w", path, err)
	}
	defer func() { _ = lock.Unlock() }()

	return fn()
}

// replaceFile writes content to path through a temp file and a rename, so a
// reader never sees a partial plan. An existing file keeps its permissions;
// a new one gets 0644.
func replaceFile(path, content string) error {
	perm := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// rewriteFile applies fn to the content of path and writes the result back,
// all under the lock for path. The file is left untouched when fn fails.
func rewriteFile(path string, fn func(current string) (string, error)) error {
	return withLock(path, func() error {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading plan file: %w", err)
		}

		updated, err := fn(string(data))
		if err != nil {
			return err
		}
		return replaceFile(path, updated+"\n")
	})
}
