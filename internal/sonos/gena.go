package sonos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kaelwillow/sonocast/internal/protocol"
)

var (
	ErrGenaSubscriptionFailed = errors.New("gena subscription failed")
	ErrGenaRenewalFailed      = errors.New("gena renewal failed")
	ErrGenaMissingSID         = errors.New("gena response missing SID header")
)

type subscription struct {
	sid         string
	ip          string
	service     Service
	callbackURL string
	expiresAt   time.Time
}

// genaStore is the in-memory bookkeeping for active/pending GENA
// subscriptions, keyed by SID with a secondary (ip, service) index. All
// methods are safe for concurrent use.
type genaStore struct {
	mu      sync.Mutex
	byIPSvc map[ipService]string // -> sid, for active or pending subscriptions
	bySID   map[string]*subscription
}

type ipService struct {
	ip      string
	service Service
}

func newGenaStore() *genaStore {
	return &genaStore{
		byIPSvc: make(map[ipService]string),
		bySID:   make(map[string]*subscription),
	}
}

// tryMarkPending reserves the (ip, service) slot so concurrent Subscribe
// calls for the same target don't race into duplicate subscriptions. The
// reservation uses an empty placeholder SID until Insert replaces it.
func (s *genaStore) tryMarkPending(ip string, service Service) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ipService{ip, service}
	if _, exists := s.byIPSvc[key]; exists {
		return false
	}
	s.byIPSvc[key] = ""
	return true
}

func (s *genaStore) clearPending(ip string, service Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ipService{ip, service}
	if s.byIPSvc[key] == "" {
		delete(s.byIPSvc, key)
	}
}

func (s *genaStore) insert(sid, ip string, service Service, callbackURL string, timeoutSecs int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byIPSvc[ipService{ip, service}] = sid
	s.bySID[sid] = &subscription{
		sid:         sid,
		ip:          ip,
		service:     service,
		callbackURL: callbackURL,
		expiresAt:   time.Now().Add(time.Duration(timeoutSecs) * time.Second),
	}
}

func (s *genaStore) get(sid string) (ip string, service Service, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.bySID[sid]
	if !ok {
		return "", 0, false
	}
	return sub.ip, sub.service, true
}

func (s *genaStore) remove(sid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.bySID[sid]
	if !ok {
		return
	}
	delete(s.bySID, sid)
	key := ipService{sub.ip, sub.service}
	if s.byIPSvc[key] == sid {
		delete(s.byIPSvc, key)
	}
}

func (s *genaStore) updateExpiry(sid string, timeoutSecs int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.bySID[sid]; ok {
		sub.expiresAt = time.Now().Add(time.Duration(timeoutSecs) * time.Second)
	}
}

func (s *genaStore) isSubscribed(ip string, service Service) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sid, ok := s.byIPSvc[ipService{ip, service}]
	return ok && sid != ""
}

func (s *genaStore) subscribedIPs(service Service) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ips []string
	for key, sid := range s.byIPSvc {
		if key.service == service && sid != "" {
			ips = append(ips, key.ip)
		}
	}
	return ips
}

func (s *genaStore) sidsByIP(ip string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sids []string
	for _, sub := range s.bySID {
		if sub.ip == ip {
			sids = append(sids, sub.sid)
		}
	}
	return sids
}

func (s *genaStore) allSIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	sids := make([]string, 0, len(s.bySID))
	for sid := range s.bySID {
		sids = append(sids, sid)
	}
	return sids
}

// expiring returns subscriptions due to renew within buffer of their expiry.
func (s *genaStore) expiring(buffer time.Duration) []subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(buffer)
	var due []subscription
	for _, sub := range s.bySID {
		if sub.expiresAt.Before(cutoff) {
			due = append(due, *sub)
		}
	}
	return due
}

func (s *genaStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bySID)
}

// genaClient performs the raw HTTP GENA verbs (SUBSCRIBE/RENEW/UNSUBSCRIBE)
// against a speaker's event endpoint.
type genaClient struct {
	http *http.Client
}

func newGenaClient() *genaClient {
	return &genaClient{http: &http.Client{Timeout: protocol.SOAPTimeout}}
}

// NewSubscriptionManagerWithHTTP is like NewSubscriptionManager but lets
// tests inject a fake *http.Client in place of a real network transport.
func NewSubscriptionManagerWithHTTP(h *http.Client) (*SubscriptionManager, <-chan Event) {
	events := make(chan Event, protocol.GENAEventChannelCapacity)
	m := &SubscriptionManager{
		store:          newGenaStore(),
		client:         &genaClient{http: h},
		events:         events,
		expectedStream: make(map[string]string),
		stopRenewal:    make(chan struct{}),
	}
	return m, events
}

func (g *genaClient) doRequest(ctx context.Context, method, url string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return g.http.Do(req)
}

func extractTimeoutSecs(resp *http.Response) int {
	v := resp.Header.Get("TIMEOUT")
	secs, ok := strings.CutPrefix(v, "Second-")
	if !ok {
		return int(protocol.GENASubscriptionTimeout / time.Second)
	}
	n, err := strconv.Atoi(secs)
	if err != nil {
		return int(protocol.GENASubscriptionTimeout / time.Second)
	}
	return n
}

func (g *genaClient) subscribe(ctx context.Context, ip string, service Service, callbackURL string) (sid string, timeoutSecs int, err error) {
	url := BuildSonosURL(ip, service.EventPath())
	timeoutHeader := fmt.Sprintf("Second-%d", int(protocol.GENASubscriptionTimeout/time.Second))

	resp, err := g.doRequest(ctx, "SUBSCRIBE", url, map[string]string{
		"CALLBACK": "<" + callbackURL + ">",
		"NT":       "upnp:event",
		"TIMEOUT":  timeoutHeader,
	})
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", 0, fmt.Errorf("%w: status %d", ErrGenaSubscriptionFailed, resp.StatusCode)
	}
	sid = resp.Header.Get("SID")
	if sid == "" {
		return "", 0, ErrGenaMissingSID
	}
	return sid, extractTimeoutSecs(resp), nil
}

func (g *genaClient) renew(ctx context.Context, ip string, service Service, sid string) (timeoutSecs int, err error) {
	url := BuildSonosURL(ip, service.EventPath())
	timeoutHeader := fmt.Sprintf("Second-%d", int(protocol.GENASubscriptionTimeout/time.Second))

	resp, err := g.doRequest(ctx, "SUBSCRIBE", url, map[string]string{
		"SID":     sid,
		"TIMEOUT": timeoutHeader,
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("%w: status %d", ErrGenaRenewalFailed, resp.StatusCode)
	}
	return extractTimeoutSecs(resp), nil
}

func (g *genaClient) unsubscribe(ctx context.Context, ip string, service Service, sid string) bool {
	url := BuildSonosURL(ip, service.EventPath())
	resp, err := g.doRequest(ctx, "UNSUBSCRIBE", url, map[string]string{"SID": sid})
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// SubscriptionManager coordinates GENA subscribe/renew/unsubscribe for
// Sonos speakers and routes incoming NOTIFY bodies to typed Events. It
// composes a genaStore (pure state) with a genaClient (HTTP protocol).
type SubscriptionManager struct {
	store  *genaStore
	client *genaClient

	events chan Event

	expectedStreamMu sync.Mutex
	expectedStream   map[string]string // speaker IP -> expected stream URL, for source-change detection

	stopRenewal chan struct{}
	renewalOnce sync.Once
}

// NewSubscriptionManager returns a manager and its outbound event channel.
// The channel is generously buffered (protocol.GENAEventChannelCapacity) so
// a slow consumer doesn't stall the NOTIFY handler; emit drops (and logs)
// the new event rather than ever blocking on a full channel.
func NewSubscriptionManager() (*SubscriptionManager, <-chan Event) {
	events := make(chan Event, protocol.GENAEventChannelCapacity)
	m := &SubscriptionManager{
		store:          newGenaStore(),
		client:         newGenaClient(),
		events:         events,
		expectedStream: make(map[string]string),
		stopRenewal:    make(chan struct{}),
	}
	return m, events
}

func (m *SubscriptionManager) emit(e Event) {
	select {
	case m.events <- e:
	default:
		slog.Warn("gena: event channel full, dropping event", "kind", e.Kind)
	}
}

// SetExpectedStream records the stream URL that should currently be playing
// on ip, used to detect if the speaker was switched to another source
// out-of-band.
func (m *SubscriptionManager) SetExpectedStream(ip, url string) {
	m.expectedStreamMu.Lock()
	defer m.expectedStreamMu.Unlock()
	m.expectedStream[ip] = url
}

func (m *SubscriptionManager) ClearExpectedStream(ip string) {
	m.expectedStreamMu.Lock()
	defer m.expectedStreamMu.Unlock()
	delete(m.expectedStream, ip)
}

func (m *SubscriptionManager) expectedStreamFor(ip string) string {
	m.expectedStreamMu.Lock()
	defer m.expectedStreamMu.Unlock()
	return m.expectedStream[ip]
}

// IsSubscribed reports whether an active subscription exists for (ip, service).
func (m *SubscriptionManager) IsSubscribed(ip string, service Service) bool {
	return m.store.isSubscribed(ip, service)
}

// SubscribedIPs returns every IP with an active subscription to service.
func (m *SubscriptionManager) SubscribedIPs(service Service) []string {
	return m.store.subscribedIPs(service)
}

// Subscribe creates a GENA subscription for (ip, service), or returns
// immediately if one already exists or is in flight.
func (m *SubscriptionManager) Subscribe(ctx context.Context, ip string, service Service, callbackURL string) error {
	if !m.store.tryMarkPending(ip, service) {
		slog.Debug("gena: subscription already exists or in-flight", "service", service.Name(), "ip", ip)
		return nil
	}

	sid, timeoutSecs, err := m.client.subscribe(ctx, ip, service, callbackURL)
	if err != nil {
		m.store.clearPending(ip, service)
		return err
	}

	m.store.insert(sid, ip, service, callbackURL, timeoutSecs)
	slog.Info("gena: subscribed", "service", service.Name(), "ip", ip, "sid", sid)
	return nil
}

// Unsubscribe cancels a single subscription by SID. Subscription state is
// removed locally regardless of whether the speaker's UNSUBSCRIBE response
// succeeds, since an unreachable speaker shouldn't wedge local bookkeeping.
func (m *SubscriptionManager) Unsubscribe(ctx context.Context, sid string) {
	ip, service, ok := m.store.get(sid)
	if !ok {
		return
	}
	ok = m.client.unsubscribe(ctx, ip, service, sid)
	m.store.remove(sid)
	if ok {
		slog.Info("gena: unsubscribed", "sid", sid, "ip", ip, "service", service.Name())
	} else {
		slog.Warn("gena: unsubscribe request failed, removed locally anyway", "sid", sid, "ip", ip)
	}
}

// UnsubscribeByIPAndService cancels every subscription matching (ip, service).
// In practice there's at most one, but this tolerates a stale duplicate.
func (m *SubscriptionManager) UnsubscribeByIPAndService(ctx context.Context, ip string, service Service) {
	for _, sid := range m.store.sidsByIP(ip) {
		if gotIP, gotService, ok := m.store.get(sid); ok && gotIP == ip && gotService == service {
			m.Unsubscribe(ctx, sid)
		}
	}
}

// UnsubscribeByIP cancels all subscriptions (any service) for a speaker.
func (m *SubscriptionManager) UnsubscribeByIP(ctx context.Context, ip string) {
	for _, sid := range m.store.sidsByIP(ip) {
		m.Unsubscribe(ctx, sid)
	}
}

// UnsubscribeAll cancels every active subscription.
func (m *SubscriptionManager) UnsubscribeAll(ctx context.Context) {
	for _, sid := range m.store.allSIDs() {
		m.Unsubscribe(ctx, sid)
	}
}

// StartRenewalTask launches the background loop that renews subscriptions
// approaching expiry, re-subscribing from scratch if a renewal fails. It
// runs until ctx is cancelled or Shutdown is called.
func (m *SubscriptionManager) StartRenewalTask(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(protocol.GENARenewalCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopRenewal:
				return
			case <-ticker.C:
			}

			for _, sub := range m.store.expiring(protocol.GENARenewalBuffer) {
				timeoutSecs, err := m.client.renew(ctx, sub.ip, sub.service, sub.sid)
				if err == nil {
					m.store.updateExpiry(sub.sid, timeoutSecs)
					slog.Debug("gena: renewed", "sid", sub.sid, "ip", sub.ip, "service", sub.service.Name())
					continue
				}

				slog.Error("gena: renewal failed", "sid", sub.sid, "ip", sub.ip, "error", err)
				m.store.remove(sub.sid)

				slog.Info("gena: attempting re-subscribe", "service", sub.service.Name(), "ip", sub.ip)
				if resubErr := m.Subscribe(ctx, sub.ip, sub.service, sub.callbackURL); resubErr != nil {
					slog.Error("gena: re-subscribe failed", "service", sub.service.Name(), "ip", sub.ip, "error", resubErr)
					m.emit(Event{Kind: EventSubscriptionLost, SpeakerIP: sub.ip, Service: sub.service, Reason: resubErr.Error()})
				}
			}
		}
	}()
}

// Shutdown stops the renewal task and unsubscribes everything.
func (m *SubscriptionManager) Shutdown(ctx context.Context) {
	m.renewalOnce.Do(func() { close(m.stopRenewal) })
	slog.Info("gena: shutting down")
	m.UnsubscribeAll(ctx)
}

// HandleNotify dispatches an incoming NOTIFY body to the right parser based
// on the subscription's service, and emits the resulting Events. An unknown
// SID is logged and ignored: it may be a race with a just-removed
// subscription, a stale notification, or a replayed/forged request.
func (m *SubscriptionManager) HandleNotify(sid, body string, nowMS int64) {
	ip, service, ok := m.store.get(sid)
	if !ok {
		slog.Warn("gena: NOTIFY for unknown SID", "sid", sid, "bodyBytes", len(body))
		return
	}

	var events []Event
	switch service {
	case AVTransport:
		events = BuildAVTransportEvents(ip, body, m.expectedStreamFor(ip), nowMS)
	case GroupRenderingControl:
		events = BuildGroupRenderingEvents(ip, body, nowMS)
	case RenderingControl:
		events = BuildRenderingControlEvents(ip, body, nowMS)
	case ZoneGroupTopology:
		events = BuildZoneTopologyEvents(body, nowMS)
	}

	for _, e := range events {
		m.emit(e)
	}
}

// SubscriptionCount returns the number of currently active subscriptions.
func (m *SubscriptionManager) SubscriptionCount() int {
	return m.store.len()
}
