package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"waypoint/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockVisitRepository keeps visits in memory, in insertion order
type mockVisitRepository struct {
	mu      sync.Mutex
	visits  []*domain.VisitRecord
	failing bool
}

func (m *mockVisitRepository) Create(ctx context.Context, visit *domain.VisitRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errors.New("storage unavailable")
	}
	copied := *visit
	m.visits = append(m.visits, &copied)
	return nil
}

func (m *mockVisitRepository) AttachReflection(ctx context.Context, visitID, reflection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errors.New("storage unavailable")
	}
	for _, visit := range m.visits {
		if visit.VisitID == visitID {
			visit.Reflection = &reflection
			return nil
		}
	}
	return domain.ErrVisitNotFound
}

func (m *mockVisitRepository) List(ctx context.Context) ([]*domain.VisitRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return nil, errors.New("storage unavailable")
	}
	return append([]*domain.VisitRecord{}, m.visits...), nil
}

// mockTabs records every pushed navigation command
type mockTabs struct {
	mu       sync.Mutex
	commands []string
}

func (m *mockTabs) Navigate(tabID int, url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, url)
}

func (m *mockTabs) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.commands) == 0 {
		return ""
	}
	return m.commands[len(m.commands)-1]
}

func (m *mockTabs) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.commands)
}

const validReason = "I need to check replies to an announcement I posted earlier today, and I want to keep this visit short and purposeful rather than drifting."

func newTestGate(t *testing.T) (*GateService, *mockVisitRepository, *mockTabs, *time.Time) {
	t.Helper()

	repo := &mockVisitRepository{}
	tabs := &mockTabs{}
	classifier := NewSiteClassifier([]string{"twitter.com", "x.com"})
	ledger := NewLedgerService(repo)
	views := NewViewURLs("moz-extension://waypoint")

	gate := NewGateService(classifier, ledger, tabs, views, nil)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	gate.now = func() time.Time { return now }

	return gate, repo, tabs, &now
}

func TestGateService_Decide_UnwatchedSiteAlwaysAllowed(t *testing.T) {
	gate, _, _, _ := newTestGate(t)

	assert.Equal(t, domain.VerdictAllow, gate.Decide(1, "https://example.com/page"))

	// A temporary block on a watched site changes nothing for others
	require.NoError(t, gate.BlockTemporarily(context.Background(), "https://x.com", 5))
	assert.Equal(t, domain.VerdictAllow, gate.Decide(1, "https://example.com/page"))
	assert.Equal(t, domain.VerdictAllow, gate.Decide(1, "not a url"))
}

func TestGateService_Decide_NoSession_RequiresJustification(t *testing.T) {
	gate, _, _, _ := newTestGate(t)

	assert.Equal(t, domain.VerdictRequireJustification, gate.Decide(1, "https://x.com/home"))
	assert.Equal(t, domain.VerdictRequireJustification, gate.Decide(1, "https://mobile.twitter.com/feed"))
}

func TestGateService_Grant_AllowsUntilExpiry(t *testing.T) {
	gate, repo, tabs, now := newTestGate(t)

	visitID, err := gate.Grant(context.Background(), 1, "https://x.com/home", validReason, 5)
	require.NoError(t, err)
	require.NotEmpty(t, visitID)

	// The tab was sent to its target
	assert.Equal(t, "https://x.com/home", tabs.last())

	// Any URL on the same site is allowed, other tabs are not
	assert.Equal(t, domain.VerdictAllow, gate.Decide(1, "https://x.com/anything"))
	assert.Equal(t, domain.VerdictAllow, gate.Decide(1, "https://www.x.com/other"))
	assert.Equal(t, domain.VerdictRequireJustification, gate.Decide(2, "https://x.com/home"))

	// A different watched site in the same tab is not covered
	assert.Equal(t, domain.VerdictRequireJustification, gate.Decide(1, "https://twitter.com/home"))

	// The ledger holds a pending record without reflection
	visits, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, visits, 1)
	assert.Equal(t, visitID, visits[0].VisitID)
	assert.Equal(t, 5, visits[0].Duration)
	assert.Nil(t, visits[0].Reflection)

	// Past the end time the session no longer counts
	*now = now.Add(5*time.Minute + time.Second)
	assert.Equal(t, domain.VerdictRequireJustification, gate.Decide(1, "https://x.com/anything"))
}

func TestGateService_Grant_RejectsBadInput(t *testing.T) {
	gate, repo, _, _ := newTestGate(t)

	_, err := gate.Grant(context.Background(), 1, "https://x.com", validReason, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = gate.Grant(context.Background(), 1, "https://x.com", validReason, 181)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = gate.Grant(context.Background(), 1, "https://x.com", "too short", 5)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = gate.Grant(context.Background(), 1, "https://unwatched.example.com", validReason, 5)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	visits, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, visits)
	assert.Equal(t, 0, gate.ActiveSessionCount())
}

func TestGateService_Grant_StorageFailureCreatesNoSession(t *testing.T) {
	gate, repo, tabs, _ := newTestGate(t)
	repo.failing = true

	_, err := gate.Grant(context.Background(), 1, "https://x.com/home", validReason, 5)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrInvalidInput)

	assert.Equal(t, 0, gate.ActiveSessionCount())
	assert.Equal(t, 0, tabs.count())
	assert.Equal(t, domain.VerdictRequireJustification, gate.Decide(1, "https://x.com/home"))
}

func TestGateService_Expiry_RedirectsToReflection(t *testing.T) {
	gate, _, tabs, now := newTestGate(t)

	visitID, err := gate.Grant(context.Background(), 1, "https://x.com/home", validReason, 5)
	require.NoError(t, err)

	*now = now.Add(6 * time.Minute)
	gate.SweepExpired()

	redirect := tabs.last()
	assert.Contains(t, redirect, "reflect.html")
	assert.Contains(t, redirect, "tabId=1")
	assert.Contains(t, redirect, "visitId="+visitID)
	assert.Equal(t, 0, gate.ActiveSessionCount())
}

func TestGateService_Expiry_TabAlreadyLeft_NoReflection(t *testing.T) {
	gate, _, tabs, now := newTestGate(t)

	_, err := gate.Grant(context.Background(), 2, "https://twitter.com/feed", validReason, 5)
	require.NoError(t, err)
	before := tabs.count()

	// The tab left the site but its navigation event was lost, say across a
	// browser reconnect. The expiry checks the last URL it knows about.
	gate.mu.Lock()
	gate.lastURL[2] = "https://news.example.com"
	gate.mu.Unlock()

	*now = now.Add(6 * time.Minute)
	gate.SweepExpired()

	assert.Equal(t, before, tabs.count(), "no reflection redirect expected")
	assert.Equal(t, 0, gate.ActiveSessionCount())
}

func TestGateService_StaleTimer_IsNoOpAfterRegrant(t *testing.T) {
	gate, _, tabs, now := newTestGate(t)

	first, err := gate.Grant(context.Background(), 1, "https://x.com/home", validReason, 5)
	require.NoError(t, err)

	// A later grant for the same tab replaces the session entirely
	second, err := gate.Grant(context.Background(), 1, "https://x.com/messages", validReason, 30)
	require.NoError(t, err)
	require.NotEqual(t, first, second)
	assert.Equal(t, 1, gate.ActiveSessionCount())

	// The first session's timer firing late must not touch the new session
	*now = now.Add(10 * time.Minute)
	before := tabs.count()
	gate.expireTab(1, first)

	assert.Equal(t, before, tabs.count())
	assert.Equal(t, 1, gate.ActiveSessionCount())
	assert.Equal(t, domain.VerdictAllow, gate.Decide(1, "https://x.com/home"))
}

func TestGateService_TabNavigated_AwayEndsSessionSilently(t *testing.T) {
	gate, _, tabs, _ := newTestGate(t)

	_, err := gate.Grant(context.Background(), 1, "https://x.com/home", validReason, 5)
	require.NoError(t, err)
	before := tabs.count()

	gate.TabNavigated(1, "https://example.com")

	assert.Equal(t, before, tabs.count(), "leaving early owes no reflection")
	assert.Equal(t, 0, gate.ActiveSessionCount())
	assert.Equal(t, domain.VerdictRequireJustification, gate.Decide(1, "https://x.com/home"))
}

func TestGateService_TabNavigated_ExpiredSessionTriggersReflection(t *testing.T) {
	gate, _, tabs, now := newTestGate(t)

	visitID, err := gate.Grant(context.Background(), 1, "https://x.com/home", validReason, 5)
	require.NoError(t, err)

	// Navigation event races the timer: still on the site, already expired
	*now = now.Add(5*time.Minute + time.Second)
	gate.TabNavigated(1, "https://x.com/explore")

	redirect := tabs.last()
	assert.Contains(t, redirect, "reflect.html")
	assert.Contains(t, redirect, "visitId="+visitID)
	assert.Contains(t, redirect, "target=https%3A%2F%2Fx.com%2Fexplore")
	assert.Equal(t, 0, gate.ActiveSessionCount())
}

func TestGateService_TabClosed_ForfeitsSilently(t *testing.T) {
	gate, _, tabs, now := newTestGate(t)

	_, err := gate.Grant(context.Background(), 1, "https://x.com/home", validReason, 5)
	require.NoError(t, err)
	before := tabs.count()

	gate.TabClosed(1)
	assert.Equal(t, 0, gate.ActiveSessionCount())

	// Closing the tab imposes no cool-down and no reflection
	*now = now.Add(10 * time.Minute)
	gate.SweepExpired()
	assert.Equal(t, before, tabs.count())
	assert.Equal(t, domain.VerdictRequireJustification, gate.Decide(3, "https://x.com"))

	// Closing an unknown tab is harmless
	gate.TabClosed(99)
}

func TestGateService_BlockTemporarily(t *testing.T) {
	gate, _, _, now := newTestGate(t)

	require.NoError(t, gate.BlockTemporarily(context.Background(), "https://x.com", 1))

	// Site-wide: any tab without a session is blocked
	assert.Equal(t, domain.VerdictTemporaryBlocked, gate.Decide(2, "https://x.com"))
	assert.Equal(t, domain.VerdictTemporaryBlocked, gate.Decide(7, "https://www.x.com/home"))

	// Other watched sites are untouched
	assert.Equal(t, domain.VerdictRequireJustification, gate.Decide(2, "https://twitter.com"))

	// Lazily purged once expired
	*now = now.Add(time.Minute)
	assert.Equal(t, domain.VerdictRequireJustification, gate.Decide(2, "https://x.com"))
}

func TestGateService_BlockTemporarily_OverwritesNotStacks(t *testing.T) {
	gate, _, _, now := newTestGate(t)

	require.NoError(t, gate.BlockTemporarily(context.Background(), "https://x.com", 30))
	require.NoError(t, gate.BlockTemporarily(context.Background(), "https://x.com", 1))

	*now = now.Add(2 * time.Minute)
	assert.Equal(t, domain.VerdictRequireJustification, gate.Decide(1, "https://x.com"),
		"second block overwrites the first, it does not extend it")
}

func TestGateService_BlockTemporarily_UnwatchedURLIsNoOp(t *testing.T) {
	gate, _, _, _ := newTestGate(t)

	require.NoError(t, gate.BlockTemporarily(context.Background(), "https://example.com", 5))
	require.NoError(t, gate.BlockTemporarily(context.Background(), "::bad url::", 5))

	assert.Equal(t, domain.VerdictAllow, gate.Decide(1, "https://example.com"))

	err := gate.BlockTemporarily(context.Background(), "https://x.com", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestGateService_ActiveSessionBeatsBlock(t *testing.T) {
	gate, _, _, _ := newTestGate(t)

	_, err := gate.Grant(context.Background(), 1, "https://x.com/home", validReason, 5)
	require.NoError(t, err)
	require.NoError(t, gate.BlockTemporarily(context.Background(), "https://x.com", 10))

	// The block gates new justification flows, not the running session
	assert.Equal(t, domain.VerdictAllow, gate.Decide(1, "https://x.com/home"))
	assert.Equal(t, domain.VerdictTemporaryBlocked, gate.Decide(2, "https://x.com/home"))
}

func TestGateService_CompleteReflection(t *testing.T) {
	gate, repo, _, _ := newTestGate(t)

	visitID, err := gate.Grant(context.Background(), 1, "https://x.com/home", validReason, 5)
	require.NoError(t, err)

	reflection := strings.Repeat("worth it? ", 12)

	found, err := gate.CompleteReflection(context.Background(), "no-such-visit", reflection)
	require.NoError(t, err)
	assert.False(t, found)

	found, err = gate.CompleteReflection(context.Background(), visitID, reflection)
	require.NoError(t, err)
	assert.True(t, found)

	visits, err := repo.List(context.Background())
	require.NoError(t, err)
	require.NotNil(t, visits[0].Reflection)
	assert.Equal(t, reflection, *visits[0].Reflection)

	// Last write wins on repeat
	second := strings.Repeat("no, it was not worth the time ", 5)
	found, err = gate.CompleteReflection(context.Background(), visitID, second)
	require.NoError(t, err)
	assert.True(t, found)

	visits, err = repo.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, second, *visits[0].Reflection)
}

func TestGateService_CompleteReflection_TooShort(t *testing.T) {
	gate, _, _, _ := newTestGate(t)

	_, err := gate.CompleteReflection(context.Background(), "any", "too short")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
