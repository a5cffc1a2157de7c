package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"waypoint/internal/domain"
	"waypoint/internal/observability"

	"github.com/google/uuid"
)

const (
	// MinReasonLength is the minimum justification length. The views enforce
	// it before a message reaches the daemon; this is defense in depth.
	MinReasonLength = 100

	// MinDurationMinutes and MaxDurationMinutes bound a session grant.
	MinDurationMinutes = 1
	MaxDurationMinutes = 180
)

// TabController pushes navigation commands to the connected browser. The
// websocket hub implements it.
type TabController interface {
	Navigate(tabID int, url string)
}

// EventPublisher receives visit lifecycle events. Implementations must not
// block the caller for long; publishing is fire-and-forget.
type EventPublisher interface {
	VisitGranted(ctx context.Context, visit *domain.VisitRecord)
	ReflectionStored(ctx context.Context, visitID string)
	SiteBlocked(ctx context.Context, site string, until time.Time)
}

// session is one tab's timed grant of access to one watched site.
type session struct {
	tabID      int
	targetURL  string
	targetSite string
	reason     string
	visitID    string
	startTime  time.Time
	endTime    time.Time
	timer      *time.Timer
}

// GateService is the block/session state machine. It decides the verdict for
// every intercepted navigation, owns all session timers and the site-wide
// temporary-block map, and is the only writer of either. All state is
// in-memory and reconstructed empty on restart.
type GateService struct {
	classifier *SiteClassifier
	ledger     *LedgerService
	tabs       TabController
	views      *ViewURLs
	events     EventPublisher // optional

	mu       sync.Mutex
	sessions map[int]*session
	blocks   map[string]time.Time
	lastURL  map[int]string // last URL seen per tab, consulted at expiry

	now func() time.Time
}

func NewGateService(classifier *SiteClassifier, ledger *LedgerService, tabs TabController, views *ViewURLs, events EventPublisher) *GateService {
	return &GateService{
		classifier: classifier,
		ledger:     ledger,
		tabs:       tabs,
		views:      views,
		events:     events,
		sessions:   make(map[int]*session),
		blocks:     make(map[string]time.Time),
		lastURL:    make(map[int]string),
		now:        time.Now,
	}
}

// Decide returns the verdict for one main-frame navigation. It is
// synchronous and touches only in-memory state: the interception layer waits
// on this answer before letting the request through.
func (g *GateService) Decide(tabID int, rawURL string) domain.Verdict {
	site, ok := g.classifier.Classify(rawURL)
	if !ok {
		return domain.VerdictAllow
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.lastURL[tabID] = rawURL

	if s := g.sessions[tabID]; s != nil && s.targetSite == site && g.now().Before(s.endTime) {
		observability.GateDecisions.WithLabelValues(string(domain.VerdictAllow)).Inc()
		return domain.VerdictAllow
	}

	g.purgeExpiredBlocksLocked()
	if _, blocked := g.blocks[site]; blocked {
		observability.GateDecisions.WithLabelValues(string(domain.VerdictTemporaryBlocked)).Inc()
		return domain.VerdictTemporaryBlocked
	}

	observability.GateDecisions.WithLabelValues(string(domain.VerdictRequireJustification)).Inc()
	return domain.VerdictRequireJustification
}

// Grant creates a session for the tab, appends the visit to the ledger, and
// navigates the tab to its target. Any existing session for the tab is
// replaced; the replaced session's timer is disarmed and additionally
// guarded by visit identity in case it already fired.
func (g *GateService) Grant(ctx context.Context, tabID int, targetURL, reason string, durationMinutes int) (string, error) {
	if durationMinutes < MinDurationMinutes || durationMinutes > MaxDurationMinutes {
		return "", fmt.Errorf("%w: duration %d minutes out of range", domain.ErrInvalidInput, durationMinutes)
	}
	if len(reason) < MinReasonLength {
		return "", fmt.Errorf("%w: reason below %d characters", domain.ErrInvalidInput, MinReasonLength)
	}
	site, ok := g.classifier.Classify(targetURL)
	if !ok {
		return "", fmt.Errorf("%w: %q is not a watched site", domain.ErrInvalidInput, targetURL)
	}

	now := g.now()
	visit := &domain.VisitRecord{
		VisitID:   uuid.NewString(),
		URL:       targetURL,
		Reason:    reason,
		Duration:  durationMinutes,
		Timestamp: now,
	}
	if err := g.ledger.Record(ctx, visit); err != nil {
		return "", fmt.Errorf("failed to record visit: %w", err)
	}

	s := &session{
		tabID:      tabID,
		targetURL:  targetURL,
		targetSite: site,
		reason:     reason,
		visitID:    visit.VisitID,
		startTime:  now,
		endTime:    now.Add(time.Duration(durationMinutes) * time.Minute),
	}

	g.mu.Lock()
	if old := g.sessions[tabID]; old != nil {
		if old.timer != nil {
			old.timer.Stop()
		}
		observability.SessionsEnded.WithLabelValues("superseded").Inc()
		observability.SessionsActive.Dec()
	}
	g.sessions[tabID] = s
	g.lastURL[tabID] = targetURL
	s.timer = time.AfterFunc(s.endTime.Sub(now), func() {
		g.expireTab(tabID, s.visitID)
	})
	observability.SessionsActive.Inc()
	g.mu.Unlock()

	observability.Info("session granted",
		"tab_id", tabID,
		"site", site,
		"visit_id", visit.VisitID,
		"duration_minutes", durationMinutes)

	g.tabs.Navigate(tabID, targetURL)
	if g.events != nil {
		g.events.VisitGranted(ctx, visit)
	}
	return visit.VisitID, nil
}

// Run drives the periodic expiry sweep, a safety net for timers lost to a
// suspended host. Timer callbacks and the sweep share expireTab, so a
// session that expires twice is handled once.
func (g *GateService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			observability.Info("stopping session sweep")
			g.stopTimers()
			return
		case <-ticker.C:
			g.SweepExpired()
		}
	}
}

// SweepExpired ends every session whose end time has passed.
func (g *GateService) SweepExpired() {
	g.mu.Lock()
	type expired struct {
		tabID   int
		visitID string
	}
	var due []expired
	now := g.now()
	for tabID, s := range g.sessions {
		if !now.Before(s.endTime) {
			due = append(due, expired{tabID, s.visitID})
		}
	}
	g.mu.Unlock()

	for _, e := range due {
		g.expireTab(e.tabID, e.visitID)
	}
}

// expireTab ends the session identified by (tabID, visitID). The visit
// identity check makes a stale timer for a superseded or destroyed session a
// silent no-op. When the tab still shows the session's site it is redirected
// to the reflection view; otherwise the session just goes away.
func (g *GateService) expireTab(tabID int, visitID string) {
	g.mu.Lock()
	s := g.sessions[tabID]
	if s == nil || s.visitID != visitID {
		g.mu.Unlock()
		return
	}
	if g.now().Before(s.endTime) {
		g.mu.Unlock()
		return
	}
	current := g.lastURL[tabID]
	g.removeSessionLocked(tabID)

	site, ok := g.classifier.Classify(current)
	stillThere := ok && site == s.targetSite
	if stillThere {
		observability.SessionsEnded.WithLabelValues("expired_reflect").Inc()
	} else {
		observability.SessionsEnded.WithLabelValues("expired_gone").Inc()
	}
	g.mu.Unlock()

	if stillThere {
		observability.Info("session expired, requesting reflection",
			"tab_id", tabID, "visit_id", visitID)
		g.tabs.Navigate(tabID, g.views.Reflection(current, tabID, visitID))
	}
}

// TabNavigated tracks a tab's URL and ends its session when the user leaves
// the target site early (no reflection owed) or, if the session already
// expired by wall clock, hands the tab to the reflection view. The latter
// covers the race between the navigation event and the expiry timer.
func (g *GateService) TabNavigated(tabID int, newURL string) {
	g.mu.Lock()
	g.lastURL[tabID] = newURL

	s := g.sessions[tabID]
	if s == nil {
		g.mu.Unlock()
		return
	}

	site, ok := g.classifier.Classify(newURL)
	if !ok || site != s.targetSite {
		g.removeSessionLocked(tabID)
		observability.SessionsEnded.WithLabelValues("navigated_away").Inc()
		g.mu.Unlock()
		observability.Debug("session ended early", "tab_id", tabID, "visit_id", s.visitID)
		return
	}

	if !g.now().Before(s.endTime) {
		g.removeSessionLocked(tabID)
		observability.SessionsEnded.WithLabelValues("expired_reflect").Inc()
		g.mu.Unlock()
		g.tabs.Navigate(tabID, g.views.Reflection(newURL, tabID, s.visitID))
		return
	}
	g.mu.Unlock()
}

// TabClosed drops the tab's session unconditionally. Closing the tab
// forfeits the pending reflection with no penalty, unlike abandoning the
// reflection view, which the views answer with a temporary block.
func (g *GateService) TabClosed(tabID int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.lastURL, tabID)
	if g.sessions[tabID] == nil {
		return
	}
	g.removeSessionLocked(tabID)
	observability.SessionsEnded.WithLabelValues("tab_closed").Inc()
}

// CompleteReflection attaches the reflection text to its visit record.
// Session and block state are not touched.
func (g *GateService) CompleteReflection(ctx context.Context, visitID, reflection string) (bool, error) {
	if len(reflection) < MinReasonLength {
		return false, fmt.Errorf("%w: reflection below %d characters", domain.ErrInvalidInput, MinReasonLength)
	}

	found, err := g.ledger.AttachReflection(ctx, visitID, reflection)
	if err != nil {
		return false, err
	}
	if found && g.events != nil {
		g.events.ReflectionStored(ctx, visitID)
	}
	return found, nil
}

// BlockTemporarily puts the site a URL belongs to into cool-down,
// overwriting any block already in place. URLs that don't classify are
// silently ignored.
func (g *GateService) BlockTemporarily(ctx context.Context, targetURL string, durationMinutes int) error {
	if durationMinutes < 1 {
		return fmt.Errorf("%w: duration %d minutes out of range", domain.ErrInvalidInput, durationMinutes)
	}
	site, ok := g.classifier.Classify(targetURL)
	if !ok {
		return nil
	}

	until := g.now().Add(time.Duration(durationMinutes) * time.Minute)
	g.mu.Lock()
	g.blocks[site] = until
	g.mu.Unlock()

	observability.TemporaryBlocksSet.Inc()
	observability.Info("temporary block set", "site", site, "until", until)
	if g.events != nil {
		g.events.SiteBlocked(ctx, site, until)
	}
	return nil
}

// ActiveSessionCount reports how many sessions are live, for readiness and
// the ctl status view.
func (g *GateService) ActiveSessionCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions)
}

// removeSessionLocked drops a session and disarms its timer. Callers hold mu.
func (g *GateService) removeSessionLocked(tabID int) {
	s := g.sessions[tabID]
	if s == nil {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	delete(g.sessions, tabID)
	observability.SessionsActive.Dec()
}

// purgeExpiredBlocksLocked lazily discards expired cool-downs. Callers hold mu.
func (g *GateService) purgeExpiredBlocksLocked() {
	now := g.now()
	for site, until := range g.blocks {
		if !now.Before(until) {
			delete(g.blocks, site)
		}
	}
}

func (g *GateService) stopTimers() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, s := range g.sessions {
		if s.timer != nil {
			s.timer.Stop()
		}
	}
}
