package sealchat

import (
	"log/slog"
	"os"

	"github.com/sealchat/sealchat/pkg/keystore"
)

// Config configures a client instance. Only Paths[0] is used at the moment;
// future versions may use multiple paths for sharding or tiering.
type Config struct {
	// Paths contains data directories. Currently only Paths[0] is used.
	Paths []string
	// MinimumFreeGB is a free-space threshold for on-disk operations.
	MinimumFreeGB uint
	// Logger is an optional structured logger. If nil, a stderr logger is used.
	Logger *slog.Logger
	// Workers bounds the re-sealing sweep's concurrency. If 0, a small
	// CPU-proportional pool is used.
	Workers int
	// Authorizer models the backend's security rules. If nil, everything is
	// allowed; pass a keystore.SessionAuthorizer to enforce the signed-in
	// participant's view.
	Authorizer keystore.Authorizer
}

func defaultLogger() *slog.Logger {
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return slog.New(h)
}
