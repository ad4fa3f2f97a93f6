package dc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubAPI struct {
	mu        sync.Mutex
	imports   int
	importErr func(attempt int) error
}

func (s *stubAPI) UploadGetFile(ctx context.Context, req *tg.UploadGetFileRequest) (tg.UploadFileClass, error) {
	return &tg.UploadFile{}, nil
}

func (s *stubAPI) AuthImportAuthorization(ctx context.Context, req *tg.AuthImportAuthorizationRequest) (tg.AuthAuthorizationClass, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.imports++
	if s.importErr != nil {
		if err := s.importErr(s.imports); err != nil {
			return nil, err
		}
	}
	return &tg.AuthAuthorization{}, nil
}

type stubExporter struct {
	mu      sync.Mutex
	exports int
	err     error
}

func (s *stubExporter) AuthExportAuthorization(ctx context.Context, dcid int) (*tg.AuthExportedAuthorization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exports++
	if s.err != nil {
		return nil, s.err
	}
	return &tg.AuthExportedAuthorization{ID: 7, Bytes: []byte("auth")}, nil
}

type stubDialer struct {
	mu      sync.Mutex
	dials   int
	stopped int
	delay   time.Duration
	err     error
	api     *stubAPI
}

func (s *stubDialer) Dial(ctx context.Context, dcID int) (*MediaSession, error) {
	s.mu.Lock()
	s.dials++
	s.mu.Unlock()
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	stop := func() {
		s.mu.Lock()
		s.stopped++
		s.mu.Unlock()
	}
	return NewMediaSession(dcID, false, s.api, stop), nil
}

func newTestRegistry(exporter *stubExporter, dialer *stubDialer) (*Registry, *MediaSession) {
	home := NewMediaSession(2, true, &stubAPI{}, nil)
	registry := NewRegistry(zap.NewNop(), 2, home, exporter, dialer)
	return registry, home
}

func TestSessionReturnsHomeForHomeDC(t *testing.T) {
	dialer := &stubDialer{api: &stubAPI{}}
	registry, home := newTestRegistry(&stubExporter{}, dialer)

	session, err := registry.Session(context.Background(), 2)
	require.NoError(t, err)
	assert.Same(t, home, session)
	assert.Equal(t, 0, dialer.dials)
}

func TestSessionCreationIsSingleFlight(t *testing.T) {
	api := &stubAPI{}
	dialer := &stubDialer{api: api, delay: 50 * time.Millisecond}
	exporter := &stubExporter{}
	registry, _ := newTestRegistry(exporter, dialer)

	const callers = 16
	sessions := make([]*MediaSession, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i], errs[i] = registry.Session(context.Background(), 4)
		}(i)
	}
	wg.Wait()
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
	}

	assert.Equal(t, 1, dialer.dials, "concurrent callers must share one dial")
	assert.Equal(t, 1, exporter.exports, "exactly one authorization export")
	assert.Equal(t, 1, api.imports, "exactly one authorization import")
	for i := 1; i < callers; i++ {
		assert.Same(t, sessions[0], sessions[i])
	}
}

func TestSessionReusedAfterCreation(t *testing.T) {
	dialer := &stubDialer{api: &stubAPI{}}
	registry, _ := newTestRegistry(&stubExporter{}, dialer)

	first, err := registry.Session(context.Background(), 4)
	require.NoError(t, err)
	second, err := registry.Session(context.Background(), 4)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, dialer.dials)
}

func TestFloodWaitDuringExportSetsBackoff(t *testing.T) {
	api := &stubAPI{}
	dialer := &stubDialer{api: api}
	exporter := &stubExporter{err: tgerr.New(420, "FLOOD_WAIT_15")}
	registry, _ := newTestRegistry(exporter, dialer)

	base := time.Now()
	now := base
	var nowMu sync.Mutex
	registry.now = func() time.Time {
		nowMu.Lock()
		defer nowMu.Unlock()
		return now
	}

	_, err := registry.Session(context.Background(), 4)
	require.Error(t, err)
	assert.Equal(t, 1, dialer.dials)
	assert.Equal(t, 1, dialer.stopped, "failed session must be torn down")

	// Inside the window: fail fast, no dial, no export.
	_, err = registry.Session(context.Background(), 4)
	require.Error(t, err)
	assert.True(t, IsBackoffActive(err))
	var boErr *BackoffActiveError
	require.ErrorAs(t, err, &boErr)
	assert.Equal(t, 4, boErr.DC)
	assert.Equal(t, 1, dialer.dials)
	assert.Equal(t, 1, exporter.exports)

	// Past the deadline the next attempt goes through.
	nowMu.Lock()
	now = base.Add(16 * time.Second)
	nowMu.Unlock()
	exporter.err = nil

	session, err := registry.Session(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, 4, session.DC())
	assert.Equal(t, 2, dialer.dials)
}

func TestAuthBytesInvalidRetriesThenTearsDown(t *testing.T) {
	api := &stubAPI{importErr: func(attempt int) error {
		return tgerr.New(400, "AUTH_BYTES_INVALID")
	}}
	dialer := &stubDialer{api: api}
	exporter := &stubExporter{}
	registry, _ := newTestRegistry(exporter, dialer)

	_, err := registry.Session(context.Background(), 4)
	require.Error(t, err)
	assert.Equal(t, 5, api.imports, "import retried five times")
	assert.Equal(t, 5, exporter.exports, "each attempt re-exports")
	assert.Equal(t, 1, dialer.stopped)

	// Nothing was cached; the next request dials again.
	api.importErr = nil
	_, err = registry.Session(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, 2, dialer.dials)
}

func TestAuthBytesInvalidEventuallySucceeds(t *testing.T) {
	api := &stubAPI{importErr: func(attempt int) error {
		if attempt < 3 {
			return tgerr.New(400, "AUTH_BYTES_INVALID")
		}
		return nil
	}}
	dialer := &stubDialer{api: api}
	registry, _ := newTestRegistry(&stubExporter{}, dialer)

	session, err := registry.Session(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, 4, session.DC())
	assert.Equal(t, 3, api.imports)
	assert.Equal(t, 0, dialer.stopped)
}

func TestInvalidateStopsAndDropsSession(t *testing.T) {
	dialer := &stubDialer{api: &stubAPI{}}
	registry, _ := newTestRegistry(&stubExporter{}, dialer)

	_, err := registry.Session(context.Background(), 4)
	require.NoError(t, err)

	registry.Invalidate(4)
	assert.Equal(t, 1, dialer.stopped)

	_, err = registry.Session(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, 2, dialer.dials)
}

func TestCloseStopsAllForeignSessions(t *testing.T) {
	dialer := &stubDialer{api: &stubAPI{}}
	registry, _ := newTestRegistry(&stubExporter{}, dialer)

	_, err := registry.Session(context.Background(), 4)
	require.NoError(t, err)
	_, err = registry.Session(context.Background(), 5)
	require.NoError(t, err)

	registry.Close()
	assert.Equal(t, 2, dialer.stopped)
}

func TestStatsReportSessionsAndBackoffs(t *testing.T) {
	dialer := &stubDialer{api: &stubAPI{}}
	registry, _ := newTestRegistry(&stubExporter{}, dialer)

	_, err := registry.Session(context.Background(), 4)
	require.NoError(t, err)
	registry.SetBackoff(5, time.Minute)

	stats := registry.Stats()
	require.Len(t, stats, 3)
	assert.Equal(t, 2, stats[0].DC)
	assert.True(t, stats[0].Home)
	assert.Equal(t, 4, stats[1].DC)
	assert.NotNil(t, stats[1].CreatedAt)
	assert.Equal(t, 5, stats[2].DC)
	assert.True(t, stats[2].BackoffActive)
}
