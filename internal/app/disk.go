package app

import "syscall"

// diskUsage reports space on the filesystem holding the data root, or nil
// when it can't be read. Available counts only blocks usable by the daemon.
func diskUsage(path string) map[string]any {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return nil
	}
	bsize := uint64(stat.Bsize)
	total := stat.Blocks * bsize
	used := total - stat.Bfree*bsize
	avail := stat.Bavail * bsize

	pct := 0.0
	if total > 0 {
		pct = float64(used) / float64(total) * 100
	}
	return map[string]any{
		"path":            path,
		"total_bytes":     total,
		"used_bytes":      used,
		"available_bytes": avail,
		"used_pct":        pct,
	}
}
