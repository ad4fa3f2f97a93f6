package dc

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gotd/td/tgerr"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Dialer opens a transport to a DC and runs auth-key creation against it.
// The returned session is connected but not yet authorized.
type Dialer interface {
	Dial(ctx context.Context, dcID int) (*MediaSession, error)
}

// Registry owns every live media session, at most one per DC. The home
// session is installed at construction; foreign sessions are created on
// demand, authorized via export/import, and kept for the process lifetime.
// DCs inside a FLOOD_WAIT window are rejected without touching the network.
type Registry struct {
	log      *zap.Logger
	homeDC   int
	home     *MediaSession
	exporter AuthExporter
	dialer   Dialer

	mu       sync.Mutex
	sessions map[int]*sessionEntry
	backoff  map[int]time.Time

	group singleflight.Group

	// injectable for back-off tests
	now func() time.Time
}

type sessionEntry struct {
	session   *MediaSession
	createdAt time.Time
}

func NewRegistry(log *zap.Logger, homeDC int, home *MediaSession, exporter AuthExporter, dialer Dialer) *Registry {
	return &Registry{
		log:      log.Named("Registry"),
		homeDC:   homeDC,
		home:     home,
		exporter: exporter,
		dialer:   dialer,
		sessions: make(map[int]*sessionEntry),
		backoff:  make(map[int]time.Time),
		now:      time.Now,
	}
}

func (r *Registry) HomeDC() int         { return r.homeDC }
func (r *Registry) Home() *MediaSession { return r.home }

// Session returns the live media session for a DC, creating and authorizing
// one if needed. Creation is single-flight per DC: concurrent callers for
// the same uncached DC share one dial and one export/import.
func (r *Registry) Session(ctx context.Context, dcID int) (*MediaSession, error) {
	if dcID == r.homeDC {
		return r.home, nil
	}
	if session, err := r.lookup(dcID); session != nil || err != nil {
		return session, err
	}

	v, err, _ := r.group.Do(strconv.Itoa(dcID), func() (interface{}, error) {
		// A concurrent caller may have finished (or tripped a back-off)
		// while this one queued behind the flight.
		if session, err := r.lookup(dcID); session != nil || err != nil {
			return session, err
		}
		return r.create(ctx, dcID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*MediaSession), nil
}

// lookup checks the back-off window and the cache. It returns (nil, nil)
// when a creation attempt is warranted.
func (r *Registry) lookup(dcID int) (*MediaSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if deadline, ok := r.backoff[dcID]; ok {
		if r.now().Before(deadline) {
			return nil, &BackoffActiveError{DC: dcID, Deadline: deadline}
		}
		delete(r.backoff, dcID)
	}
	if entry, ok := r.sessions[dcID]; ok {
		return entry.session, nil
	}
	return nil, nil
}

func (r *Registry) create(ctx context.Context, dcID int) (*MediaSession, error) {
	r.log.Info("Creating media session", zap.Int("dc", dcID))

	session, err := r.dialer.Dial(ctx, dcID)
	if err != nil {
		if wait, ok := tgerr.AsFloodWait(err); ok {
			r.SetBackoff(dcID, wait)
		}
		return nil, fmt.Errorf("dial DC %d: %w", dcID, err)
	}

	if err := authorize(ctx, r.log, r.exporter, session); err != nil {
		session.Stop()
		if wait, ok := tgerr.AsFloodWait(err); ok {
			r.SetBackoff(dcID, wait)
		}
		return nil, fmt.Errorf("authorize DC %d: %w", dcID, err)
	}

	r.mu.Lock()
	r.sessions[dcID] = &sessionEntry{session: session, createdAt: r.now()}
	r.mu.Unlock()
	r.log.Info("Media session ready", zap.Int("dc", dcID))
	return session, nil
}

// SetBackoff records a FLOOD_WAIT deadline for a DC. New session attempts
// before the deadline fail fast with BackoffActiveError.
func (r *Registry) SetBackoff(dcID int, wait time.Duration) {
	deadline := r.now().Add(wait)
	r.mu.Lock()
	r.backoff[dcID] = deadline
	r.mu.Unlock()
	r.log.Warn("DC flood wait recorded",
		zap.Int("dc", dcID),
		zap.Duration("wait", wait),
		zap.Time("until", deadline))
}

// Invalidate drops and stops a foreign session, forcing a fresh dial on the
// next request. The home session is never invalidated.
func (r *Registry) Invalidate(dcID int) {
	if dcID == r.homeDC {
		return
	}
	r.mu.Lock()
	entry, ok := r.sessions[dcID]
	delete(r.sessions, dcID)
	r.mu.Unlock()
	if ok {
		entry.session.Stop()
		r.log.Warn("Invalidated media session", zap.Int("dc", dcID))
	}
}

// Close stops every foreign session. Called on process shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	entries := make([]*sessionEntry, 0, len(r.sessions))
	for dcID, entry := range r.sessions {
		entries = append(entries, entry)
		delete(r.sessions, dcID)
	}
	r.mu.Unlock()
	for _, entry := range entries {
		entry.session.Stop()
	}
	r.log.Info("Stopped all media sessions", zap.Int("count", len(entries)))
}

// SessionStat describes one live or backed-off DC for the status route.
type SessionStat struct {
	DC            int        `json:"dc"`
	Home          bool       `json:"home"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
	BackoffUntil  *time.Time `json:"backoff_until,omitempty"`
	BackoffActive bool       `json:"backoff_active"`
}

func (r *Registry) Stats() []SessionStat {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	stats := make(map[int]*SessionStat)
	stats[r.homeDC] = &SessionStat{DC: r.homeDC, Home: true}
	for dcID, entry := range r.sessions {
		createdAt := entry.createdAt
		stats[dcID] = &SessionStat{DC: dcID, CreatedAt: &createdAt}
	}
	for dcID, deadline := range r.backoff {
		stat, ok := stats[dcID]
		if !ok {
			stat = &SessionStat{DC: dcID}
			stats[dcID] = stat
		}
		d := deadline
		stat.BackoffUntil = &d
		stat.BackoffActive = now.Before(deadline)
	}

	out := make([]SessionStat, 0, len(stats))
	for _, stat := range stats {
		out = append(out, *stat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DC < out[j].DC })
	return out
}
