package daemon

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

// dirPerm is the permission for daemon-managed directories.
const dirPerm = 0750

// DirConfig holds the daemon directory layout.
type DirConfig struct {
	Inbox  string // incoming job files
	Outbox string // decisions and pending reviews
	State  string // state/{processing,approved,rejected,failed}
}

// DefaultDirConfig returns the layout under ~/.amiengine/daemon.
func DefaultDirConfig() DirConfig {
	root := filepath.Join(".amiengine", "daemon")
	if home, err := os.UserHomeDir(); err == nil {
		root = filepath.Join(home, root)
	}
	return DirConfig{
		Inbox:  filepath.Join(root, "inbox"),
		Outbox: filepath.Join(root, "outbox"),
		State:  filepath.Join(root, "state"),
	}
}

// Job lifecycle directories under State. A job moves from the inbox to
// processing, and its result lands in the outbox. Reviewed results move
// on to approved or rejected. Unparseable jobs go to failed.
const (
	processingSub = "processing"
	approvedSub   = "approved"
	rejectedSub   = "rejected"
	failedSub     = "failed"
)

func (d DirConfig) ProcessingDir() string { return filepath.Join(d.State, processingSub) }
func (d DirConfig) ApprovedDir() string { return filepath.Join(d.State, approvedSub) }
func (d DirConfig) RejectedDir() string { return filepath.Join(d.State, rejectedSub) }
func (d DirConfig) FailedDir() string { return filepath.Join(d.State, failedSub) }

// all lists every directory the daemon writes to.
func (d DirConfig) all() []string {
	return []string{d.Inbox, d.Outbox, d.ProcessingDir(), d.ApprovedDir(), d.RejectedDir(), d.FailedDir()}
}

// EnsureDirs creates the full layout. Existing directories are left as is.
func EnsureDirs(cfg DirConfig) error {
	for _, dir := range cfg.all() {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ValidateSameFilesystem reports an error when inbox, outbox and state
// live on different devices. Job moves then fall back to copy + remove,
// which is not atomic. Directories must exist.
func ValidateSameFilesystem(cfg DirConfig) error {
	want, err := deviceID(cfg.Inbox)
	if err != nil {
		return err
	}
	for _, dir := range []string{cfg.Outbox, cfg.State} {
		got, err := deviceID(dir)
		if err != nil {
			return err
		}
		if got != want {
			return fmt.Errorf("%s is on a different filesystem than %s", dir, cfg.Inbox)
		}
	}
	return nil
}

// moveFile renames src to dst, copying and removing when the two sit on
// different devices (EXDEV).
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	var errno syscall.Errno
	if err == nil || !errors.As(err, &errno) || errno != syscall.EXDEV {
		return err
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// copyFile copies src to dst preserving permissions.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}
