// Package paths locates the per-user files hostwatch reads and writes. Under
// sudo, which raw-socket ICMP often needs, every path resolves against the
// invoking user's home so that root and non-root runs share one database.
package paths

import (
	"os"
	"os/user"
	"path/filepath"
	"strconv"
)

const appName = "hostwatch"

// HomeDir returns the home directory of the user who invoked sudo, or the
// current user's home otherwise.
func HomeDir() (string, error) {
	if name := os.Getenv("SUDO_USER"); name != "" {
		if u, err := user.Lookup(name); err == nil {
			return u.HomeDir, nil
		}
	}
	return os.UserHomeDir()
}

// RealUser returns SUDO_UID and SUDO_GID. ok is false when not under sudo or
// when SUDO_UID is not numeric.
func RealUser() (uid, gid int, ok bool) {
	uid, err := strconv.Atoi(os.Getenv("SUDO_UID"))
	if err != nil {
		return 0, 0, false
	}
	gid, _ = strconv.Atoi(os.Getenv("SUDO_GID"))
	return uid, gid, true
}

// ChownToRealUser hands path back to the sudo user. No-op otherwise.
func ChownToRealUser(path string) {
	if uid, gid, ok := RealUser(); ok {
		os.Chown(path, uid, gid)
	}
}

// CacheDir returns ~/.cache/hostwatch, creating it. The dashboard logs here.
func CacheDir() (string, error) {
	return ensureDir(".cache", appName)
}

// DataDir returns ~/.local/share/hostwatch, creating it. Holds the database.
func DataDir() (string, error) {
	return ensureDir(".local", "share", appName)
}

// ConfigFile returns ~/.config/hostwatch/<name>. The file is optional and
// only ever read, so nothing is created.
func ConfigFile(name string) (string, error) {
	home, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, name), nil
}

func ensureDir(elem ...string) (string, error) {
	home, err := HomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(append([]string{home}, elem...)...)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	ChownToRealUser(dir)
	return dir, nil
}
