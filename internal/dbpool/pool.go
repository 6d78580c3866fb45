package dbpool

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/huangsam/querymancer/internal/contract"
	"github.com/huangsam/querymancer/internal/telemetry"
	"github.com/huangsam/querymancer/schema"
)

// Options configures a Pool.
type Options struct {
	Backend        schema.DatabaseBackend
	ConnStr        string
	MaxConnections int
	AcquireTimeout time.Duration
	SQLite         contract.SQLiteSettings
	Metrics        *telemetry.Metrics
}

// Pool loans out at most MaxConnections dedicated connections.
// Connections are created lazily and live until Drain or Close.
// Callers waiting for a connection are served in arrival order.
type Pool struct {
	db      *sql.DB
	backend schema.DatabaseBackend
	setup   []string
	max     int
	timeout time.Duration
	metrics *telemetry.Metrics

	mu           sync.Mutex
	idle         []*Conn
	inUse        map[*Conn]struct{}
	open         int // idle + in use + being created
	nextID       int
	gen          uint64
	waiters      []chan *Conn
	closed       bool
	waitCount    int64
	timeoutCount int64
}

// Open opens the backing database and returns an empty pool.
func Open(opts Options) (*Pool, error) {
	db, err := OpenDB(opts.Backend, opts.ConnStr, contract.GetDatabaseFilePath())
	if err != nil {
		return nil, err
	}
	return New(db, opts), nil
}

// New wraps an already opened database handle.
func New(db *sql.DB, opts Options) *Pool {
	if opts.MaxConnections <= 0 {
		opts.MaxConnections = contract.DefaultMaxConnections
	}
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = contract.DefaultAcquireTimeout
	}
	if opts.SQLite == (contract.SQLiteSettings{}) {
		opts.SQLite = contract.DefaultSQLiteSettings()
	}
	// database/sql must never close our dedicated connections behind our back.
	db.SetMaxOpenConns(opts.MaxConnections)
	db.SetMaxIdleConns(opts.MaxConnections)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	return &Pool{
		db:      db,
		backend: opts.Backend,
		setup:   SetupStatements(opts.Backend, opts.SQLite),
		max:     opts.MaxConnections,
		timeout: opts.AcquireTimeout,
		metrics: opts.Metrics,
		inUse:   make(map[*Conn]struct{}),
	}
}

// Backend returns the store backend behind the pool.
func (p *Pool) Backend() schema.DatabaseBackend { return p.backend }

// DB returns the underlying handle, for migrations and diagnostics only.
func (p *Pool) DB() *sql.DB { return p.db }

// Acquire loans a connection. It blocks until one is free or the acquire
// timeout elapses, in which case the error wraps contract.ErrPoolExhausted.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	start := time.Now()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, contract.ErrPoolClosed
	}
	if n := len(p.idle); n > 0 {
		c := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.checkout(c)
		p.mu.Unlock()
		p.metrics.PoolAcquired(time.Since(start))
		return c, nil
	}
	if p.open < p.max {
		p.open++
		p.mu.Unlock()
		return p.create(ctx, start)
	}
	ch := make(chan *Conn, 1)
	p.waiters = append(p.waiters, ch)
	p.waitCount++
	p.mu.Unlock()

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case c := <-ch:
		return p.handoff(ctx, c, start)
	case <-timer.C:
		exhausted := fmt.Errorf("%w: all %d connections busy after %s", contract.ErrPoolExhausted, p.max, p.timeout)
		return p.abandonWait(ctx, ch, start, exhausted)
	case <-ctx.Done():
		return p.abandonWait(ctx, ch, start, ctx.Err())
	}
}

// Release returns a connection to the pool. Releasing a connection twice,
// or one the pool does not own, is a no-op.
func (p *Pool) Release(c *Conn) {
	if c == nil {
		return
	}

	p.mu.Lock()
	if _, ok := p.inUse[c]; !ok {
		p.mu.Unlock()
		return
	}
	delete(p.inUse, c)
	c.inUse = false
	p.metrics.SetPoolInUse(len(p.inUse))

	if p.closed || c.broken || c.gen != p.gen {
		p.open--
		p.grantSlotLocked()
		p.mu.Unlock()
		_ = c.conn.Close()
		return
	}
	if len(p.waiters) > 0 {
		ch := p.waiters[0]
		p.waiters = p.waiters[1:]
		p.checkout(c)
		ch <- c
		p.mu.Unlock()
		return
	}
	p.idle = append(p.idle, c)
	p.mu.Unlock()
}

// WithConn acquires a connection, runs fn and always releases it.
func (p *Pool) WithConn(ctx context.Context, fn func(*Conn) error) error {
	c, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(c)
	return fn(c)
}

// Drain closes every idle connection. Loaned connections are closed when
// they come back. The pool stays usable and reopens connections on demand.
func (p *Pool) Drain() {
	p.mu.Lock()
	p.gen++
	idle := p.idle
	p.idle = nil
	p.open -= len(idle)
	for range idle {
		p.grantSlotLocked()
	}
	p.mu.Unlock()

	for _, c := range idle {
		_ = c.conn.Close()
	}
}

// Close drains the pool, fails pending waiters and closes the database.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.open -= len(idle)
	waiters := p.waiters
	p.waiters = nil
	p.mu.Unlock()

	for _, ch := range waiters {
		ch <- nil
	}
	for _, c := range idle {
		_ = c.conn.Close()
	}
	return p.db.Close()
}

// Status returns a snapshot of pool counters.
func (p *Pool) Status() schema.PoolStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return schema.PoolStatus{
		Backend:        string(p.backend),
		MaxConnections: p.max,
		Open:           p.open,
		InUse:          len(p.inUse),
		Idle:           len(p.idle),
		Waiters:        len(p.waiters),
		WaitCount:      p.waitCount,
		TimeoutCount:   p.timeoutCount,
		AcquireTimeout: p.timeout,
	}
}

// create opens a new connection in a slot the caller already reserved.
func (p *Pool) create(ctx context.Context, start time.Time) (*Conn, error) {
	sqlConn, err := p.db.Conn(ctx)
	if err == nil {
		for _, stmt := range p.setup {
			if _, err = sqlConn.ExecContext(ctx, stmt); err != nil {
				err = &contract.StoreError{Statement: stmt, Err: err}
				_ = sqlConn.Close()
				break
			}
		}
	}
	if err != nil {
		p.releaseSlot()
		return nil, fmt.Errorf("failed to open %s connection: %w", p.backend, err)
	}

	p.mu.Lock()
	if p.closed {
		p.open--
		p.mu.Unlock()
		_ = sqlConn.Close()
		return nil, contract.ErrPoolClosed
	}
	p.nextID++
	c := &Conn{conn: sqlConn, id: p.nextID, createdAt: time.Now(), gen: p.gen}
	p.checkout(c)
	p.mu.Unlock()

	p.metrics.PoolAcquired(time.Since(start))
	contract.Logger().Debug().Int("conn", c.id).Str("backend", string(p.backend)).Msg("opened pooled connection")
	return c, nil
}

// handoff finishes an Acquire that was woken up by Release or Close.
// A nil connection means a slot was freed and the waiter may open its own.
func (p *Pool) handoff(ctx context.Context, c *Conn, start time.Time) (*Conn, error) {
	if c != nil {
		p.metrics.PoolAcquired(time.Since(start))
		return c, nil
	}
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, contract.ErrPoolClosed
	}
	return p.create(ctx, start)
}

// abandonWait removes a waiter after a timeout. If Release already served
// the waiter, the connection is taken instead of failing.
func (p *Pool) abandonWait(ctx context.Context, ch chan *Conn, start time.Time, cause error) (*Conn, error) {
	p.mu.Lock()
	if i := slices.Index(p.waiters, ch); i >= 0 {
		p.waiters = slices.Delete(p.waiters, i, i+1)
		p.timeoutCount++
		p.mu.Unlock()
		p.metrics.PoolTimeout()
		return nil, cause
	}
	p.mu.Unlock()
	return p.handoff(ctx, <-ch, start)
}

// releaseSlot gives back a reserved slot that never became a connection.
func (p *Pool) releaseSlot() {
	p.mu.Lock()
	p.open--
	p.grantSlotLocked()
	p.mu.Unlock()
}

// grantSlotLocked lets the first waiter open a connection if there is room.
// Callers must hold p.mu.
func (p *Pool) grantSlotLocked() {
	if p.closed || len(p.waiters) == 0 || p.open >= p.max {
		return
	}
	ch := p.waiters[0]
	p.waiters = p.waiters[1:]
	p.open++
	ch <- nil
}

// checkout marks a connection as loaned. Callers must hold p.mu.
func (p *Pool) checkout(c *Conn) {
	c.inUse = true
	p.inUse[c] = struct{}{}
	p.metrics.SetPoolInUse(len(p.inUse))
}
