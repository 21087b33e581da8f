package keystore

import (
	"errors"
	"syscall"
)

func (sc *StoreConfig) checkFreeSpace() error {
	if sc.Path == "" {
		return errors.New("no path provided in configuration")
	}
	if sc.MinimumFreeGB <= 0 {
		return nil
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(sc.Path, &stat); err != nil {
		return err
	}

	// Available blocks * size per block gives available space in bytes
	availableGB := (stat.Bavail * uint64(stat.Bsize)) / (1024 * 1024 * 1024)
	if int(availableGB) < sc.MinimumFreeGB {
		return errors.New("not enough space available on disk")
	}

	return nil
}
