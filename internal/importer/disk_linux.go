//go:build linux

package importer

import "golang.org/x/sys/unix"

// FreeSpace reports the bytes available to unprivileged writes on the
// filesystem holding path.
func FreeSpace(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return st.Bavail * uint64(st.Bsize), nil
}
