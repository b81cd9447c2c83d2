// SPDX-License-Identifier: GPL-3.0-or-later

package rdmnet

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/rdmnet-go/rdmnet/mcast"
)

// Context is the single process-wide state block (spec.md §9 "Global
// state"): the multicast interface array and lowest-MAC computation,
// plus the logging configuration shared by every [Client] constructed
// from it. There are no package-level singletons; callers construct
// exactly one Context and pass it explicitly to every [Client].
type Context struct {
	mu     sync.Mutex
	cfg    *Config
	logger SLogger
	mcast  *mcast.IO

	clients []*Client
	ifaces  []mcast.Interface
}

// NewContext initializes a [*Context] over the given network interfaces
// (typically [net.Interfaces]'s result). cfg and logger may be nil, in
// which case [NewConfig] and [DefaultSLogger] are used.
func NewContext(ifaces []net.Interface, cfg *Config, logger SLogger) *Context {
	if cfg == nil {
		cfg = NewConfig()
	}
	if logger == nil {
		logger = DefaultSLogger()
	}
	enumerated := mcast.Enumerate(ifaces)
	return &Context{
		cfg:    cfg,
		logger: logger,
		mcast:  mcast.NewIO(enumerated),
		ifaces: enumerated,
	}
}

// Mcast returns the shared [*mcast.IO] used by every [Client]'s LLRP
// target for send-socket reference counting and the cached lowest-MAC
// tiebreaker.
func (c *Context) Mcast() *mcast.IO { return c.mcast }

// Interfaces returns the multicast-capable interfaces this Context was
// constructed over, used by each [Client] to start its LLRP [*Target].
func (c *Context) Interfaces() []mcast.Interface { return c.ifaces }

// Config returns the shared [*Config].
func (c *Context) Config() *Config { return c.cfg }

// Logger returns the shared [SLogger].
func (c *Context) Logger() SLogger { return c.logger }

// NewClient constructs and registers a [*Client] owned by this Context.
func (c *Context) NewClient(cfg ClientConfig) *Client {
	cl := newClient(c, cfg)
	c.mu.Lock()
	c.clients = append(c.clients, cl)
	c.mu.Unlock()
	return cl
}

// Deinit tears down every registered [*Client] and releases process-wide
// resources. Deinit is not safe to call concurrently with Context use
// from other goroutines.
func (c *Context) Deinit() {
	c.mu.Lock()
	clients := c.clients
	c.clients = nil
	c.mu.Unlock()
	for _, cl := range clients {
		cl.Destroy()
	}
}

// RunTicker spawns the one optional background goroutine recommended by
// spec.md §5 ("single-threaded cooperative at the core", with an
// optional tick thread): it calls [Client.Tick] on every registered
// client at the given interval until ctx is done.
func (c *Context) RunTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.mu.Lock()
			clients := append([]*Client(nil), c.clients...)
			c.mu.Unlock()
			for _, cl := range clients {
				cl.Tick(now)
			}
		}
	}
}
