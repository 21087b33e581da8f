/*
Package sealchat implements the key lifecycle and message encryption of a
two-party end-to-end encrypted chat. Every conversation gets its own ECDH key
pair per participant; private keys are stored only sealed under a key derived
from the participant's password, and every message is stored as two
independently encrypted payloads so both author and recipient can read it with
nothing but their own pair.
*/
package sealchat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	istore "github.com/sealchat/sealchat/internal/keystore"
	"github.com/sealchat/sealchat/pkg/identity"
	"github.com/sealchat/sealchat/pkg/keystore"
	"github.com/sealchat/sealchat/pkg/lifecycle"
	"github.com/sealchat/sealchat/pkg/messages"
	"github.com/sealchat/sealchat/pkg/types"
	"github.com/sealchat/sealchat/pkg/workerpool"
)

var (
	ErrNotStarted = errors.New("sealchat: client not started")
	ErrClosed     = errors.New("sealchat: client closed")
)

// Client is the main handle. It owns the document store, the key lifecycle
// manager, and the message service. Construct with New, then Start.
type Client struct {
	log    *slog.Logger
	config Config

	storeMu sync.RWMutex
	store   *istore.Store

	pool *workerpool.Pool
	life *lifecycle.Manager
	msgs *messages.Service

	started   atomic.Bool
	startOnce sync.Once
	closeOnce sync.Once
}

// New constructs a client handle. New does not perform I/O or start background
// goroutines. Call Start to open the store and wire the services.
func New(conf Config) (*Client, error) {
	if len(conf.Paths) == 0 {
		return nil, fmt.Errorf("at least one path must be provided in config")
	}
	if conf.Logger == nil {
		conf.Logger = defaultLogger()
	}
	return &Client{
		log:    conf.Logger,
		config: conf,
	}, nil
}

// Start opens the store and wires the lifecycle manager and message service.
// Start is safe to call multiple times; only the first call has effect.
func (c *Client) Start(ctx context.Context) error {
	var startErr error
	c.startOnce.Do(func() {
		store, err := istore.Open(istore.StoreConfig{
			Path:          c.config.Paths[0],
			MinimumFreeGB: int(c.config.MinimumFreeGB),
			Authorizer:    c.config.Authorizer,
		})
		if err != nil {
			startErr = fmt.Errorf("open store: %w", err)
			return
		}

		c.pool = workerpool.New(c.config.Workers)

		life, err := lifecycle.New(lifecycle.Config{
			Store:  store,
			Logger: c.log,
			Pool:   c.pool,
		})
		if err != nil {
			startErr = fmt.Errorf("init lifecycle: %w", err)
			return
		}

		msgs, err := messages.New(messages.Config{
			Store:     store,
			Lifecycle: life,
			Logger:    c.log,
		})
		if err != nil {
			startErr = fmt.Errorf("init message service: %w", err)
			return
		}

		c.storeMu.Lock()
		c.store = store
		c.storeMu.Unlock()
		c.life = life
		c.msgs = msgs

		c.started.Store(true)
		c.log.Info("sealchat client started", "path", c.config.Paths[0])
	})
	return startErr
}

// Run starts the client, then blocks until ctx is canceled, and finally
// performs a bounded graceful shutdown. It is a convenience for services.
func (c *Client) Run(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return c.Close(shutdownCtx)
}

// Close terminates background components and releases resources. Close is
// idempotent and safe to call multiple times.
func (c *Client) Close(ctx context.Context) error {
	var closeErr error
	c.closeOnce.Do(func() {
		if c.pool != nil {
			c.pool.Close()
		}

		c.storeMu.Lock()
		store := c.store
		c.store = nil
		c.storeMu.Unlock()
		if store != nil {
			if err := store.Close(); err != nil {
				closeErr = errors.Join(closeErr, fmt.Errorf("close store: %w", err))
			}
		}

		c.log.Info("sealchat client closed")
	})
	return closeErr
}

// CloseWithoutContext closes the client using a background context.
// Prefer Close(ctx) to enforce an application-specific shutdown deadline.
func (c *Client) CloseWithoutContext() error {
	return c.Close(context.Background())
}

func (c *Client) storeHandle() (*istore.Store, error) {
	if !c.started.Load() {
		return nil, ErrNotStarted
	}

	c.storeMu.RLock()
	store := c.store
	c.storeMu.RUnlock()
	if store == nil {
		return nil, ErrClosed
	}

	return store, nil
}

// Store exposes the document store contract, mainly for integration tests
// and tooling.
func (c *Client) Store() (keystore.Store, error) {
	return c.storeHandle()
}

// Lifecycle returns the key lifecycle manager.
func (c *Client) Lifecycle() (*lifecycle.Manager, error) {
	if _, err := c.storeHandle(); err != nil {
		return nil, err
	}
	return c.life, nil
}

// Messages returns the message service.
func (c *Client) Messages() (*messages.Service, error) {
	if _, err := c.storeHandle(); err != nil {
		return nil, err
	}
	return c.msgs, nil
}

// OpenChat ensures the conversation with the counterpart exists, provisions
// this participant's key pair if missing, and opens a message session.
func (c *Client) OpenChat(ctx context.Context, self, other types.ParticipantID, password string) (*messages.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := c.storeHandle(); err != nil {
		return nil, err
	}

	conv, err := c.life.EnsureConversation(ctx, self, other, password)
	if err != nil {
		return nil, err
	}
	return c.msgs.Open(ctx, conv, self, password)
}

// PasswordChanger wires the credential store into the re-sealing flow.
func (c *Client) PasswordChanger(creds identity.CredentialStore) (*identity.PasswordChanger, error) {
	if _, err := c.storeHandle(); err != nil {
		return nil, err
	}
	return identity.NewPasswordChanger(creds, c.life, c.log)
}

// Backup streams a compressed snapshot of the whole store to w.
func (c *Client) Backup(ctx context.Context, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	store, err := c.storeHandle()
	if err != nil {
		return err
	}
	return store.Backup(w)
}

// Restore loads a snapshot produced by Backup into the store. Existing keys
// are overwritten by the snapshot's versions.
func (c *Client) Restore(ctx context.Context, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	store, err := c.storeHandle()
	if err != nil {
		return err
	}
	return store.Restore(r)
}
