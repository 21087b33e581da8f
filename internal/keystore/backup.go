package keystore

import (
	"fmt"
	"io"

	"github.com/ulikunitz/xz/lzma"
)

// Backup streams a full lzma-compressed snapshot of the store to w. The
// snapshot contains sealed private keys only in their sealed form, so the
// archive is as safe to hold as the store itself.
func (s *Store) Backup(w io.Writer) error {
	zw, err := lzma.NewWriter(w)
	if err != nil {
		return fmt.Errorf("error creating lzma writer: %w", err)
	}
	if _, err := s.badgerDB.Backup(zw, 0); err != nil {
		return fmt.Errorf("error backing up store: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("error flushing backup stream: %w", err)
	}
	log.Info("store backup written")
	return nil
}

// Restore loads a snapshot produced by Backup into the store. Existing
// records with the same keys are overwritten.
func (s *Store) Restore(r io.Reader) error {
	zr, err := lzma.NewReader(r)
	if err != nil {
		return fmt.Errorf("error creating lzma reader: %w", err)
	}
	if err := s.badgerDB.Load(zr, 16); err != nil {
		return fmt.Errorf("error restoring store: %w", err)
	}
	log.Info("store backup restored")
	return nil
}
