package emulator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ps2ble/bondmgr/api/companion"
	"github.com/ps2ble/bondmgr/pairing"
)

// manualScheduler records timers and fires them on demand.
type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) pairing.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &manualTimer{d: d, f: f}
	s.timers = append(s.timers, t)

	return t
}

func (s *manualScheduler) Every(d time.Duration, f func()) pairing.Timer {
	return s.AfterFunc(d, f)
}

func (t *manualTimer) Stop() bool {
	stopped := t.stopped
	t.stopped = true

	return !stopped
}

// fireAll runs every timer, stopped or not, the way a
// timer which raced with Stop would.
func (s *manualScheduler) fireAll() {
	s.mu.Lock()
	timers := append([]*manualTimer(nil), s.timers...)
	s.mu.Unlock()

	for _, t := range timers {
		t.f()
	}
}

func (s *manualScheduler) last() *manualTimer {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.timers) == 0 {
		return nil
	}

	return s.timers[len(s.timers)-1]
}

func newTestServer(t *testing.T) (http.Handler, *Store, *manualScheduler, *Metrics) {
	t.Helper()

	sched := &manualScheduler{}
	metrics := NewMetrics()
	store := NewStore(DefaultFixtures(), StoreOptions{
		PairDelay: 7 * time.Second,
		Scheduler: sched,
		Metrics:   metrics,
		Logger:    zerolog.Nop(),
	})
	t.Cleanup(store.Close)

	srv := NewServer(store, Options{Metrics: metrics, Logger: zerolog.Nop()})

	return srv.Router(), store, sched, metrics
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}

	return v
}

func TestBondedDevices(t *testing.T) {
	h, _, _, _ := newTestServer(t)

	rr := do(t, h, http.MethodGet, "/api/bonded-devices", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}

	resp := decode[companion.BondedDevicesResponse](t, rr)
	if len(resp.BondedDevices) != 3 {
		t.Fatalf("expected 3 bonded devices, got %d", len(resp.BondedDevices))
	}
	if d := resp.BondedDevices[0]; d.Address != "db:e9:33:80:a2:91" || !d.IsConnected || d.Appearance != companion.AppearanceMouse {
		t.Fatalf("unexpected first device %+v", d)
	}
	if !strings.Contains(rr.Body.String(), `"addressType":"random"`) {
		t.Fatalf("expected camel case fields, got %s", rr.Body.String())
	}
}

func TestDeleteBond_notFoundLeavesStateUnchanged(t *testing.T) {
	h, store, _, _ := newTestServer(t)
	before := store.BondedDevices()

	rr := do(t, h, http.MethodPost, "/api/bonded-devices/delete", `{"address":"c1:19:2d:08:75:00","addressType":"public"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	result := decode[companion.DeleteResult](t, rr)
	if result.Deleted || result.Message != "Bond not found" {
		t.Fatalf("unexpected result %+v", result)
	}

	after := store.BondedDevices()
	if len(after) != len(before) {
		t.Fatalf("expected the bonded set to be unchanged, got %d devices instead of %d", len(after), len(before))
	}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("device %d changed: %+v -> %+v", i, before[i], after[i])
		}
	}
}

func TestDeleteBond_locked(t *testing.T) {
	h, store, _, _ := newTestServer(t)

	rr := do(t, h, http.MethodPost, "/api/bonded-devices/delete", `{"address":"db:e9:33:80:a2:91","addressType":"random"}`)

	result := decode[companion.DeleteResult](t, rr)
	if result.Deleted || result.Message != "Failed to delete bond" {
		t.Fatalf("unexpected result %+v", result)
	}
	if n := len(store.BondedDevices()); n != 3 {
		t.Fatalf("expected 3 bonded devices, got %d", n)
	}
}

func TestDeleteBond_removesDevice(t *testing.T) {
	h, store, _, _ := newTestServer(t)

	rr := do(t, h, http.MethodPost, "/api/bonded-devices/delete", `{"address":"E4:2A:91:0C:5D:17","addressType":"public"}`)

	result := decode[companion.DeleteResult](t, rr)
	if !result.Deleted || result.Message != "" {
		t.Fatalf("unexpected result %+v", result)
	}

	for _, d := range store.BondedDevices() {
		if d.Address == "e4:2a:91:0c:5d:17" {
			t.Fatalf("expected the device to be removed")
		}
	}

	rr = do(t, h, http.MethodPost, "/api/bonded-devices/delete", `{"address":"e4:2a:91:0c:5d:17","addressType":"public"}`)
	if result := decode[companion.DeleteResult](t, rr); result.Deleted || result.Message != "Bond not found" {
		t.Fatalf("expected a second delete to report not found, got %+v", result)
	}

	body := do(t, h, http.MethodGet, "/metrics", "").Body.String()
	if !strings.Contains(body, `bondmgr_emulator_bond_deletes_total{deleted="true"} 1`) ||
		!strings.Contains(body, `bondmgr_emulator_bond_deletes_total{deleted="false"} 1`) {
		t.Fatalf("expected delete counters to be recorded; body=%s", body)
	}
}

func TestDeleteBond_addressTypeMismatch(t *testing.T) {
	h, _, _, _ := newTestServer(t)

	rr := do(t, h, http.MethodPost, "/api/bonded-devices/delete", `{"address":"e4:2a:91:0c:5d:17","addressType":"random"}`)
	if result := decode[companion.DeleteResult](t, rr); result.Deleted || result.Message != "Bond not found" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestDeleteBond_badRequest(t *testing.T) {
	h, _, _, _ := newTestServer(t)

	for _, body := range []string{
		`not json`,
		`{"addressType":"public"}`,
		`{"address":"e4:2a:91:0c:5d:17","addressType":"static"}`,
		`{"address":"e4:2a:91:0c:5d:17","addressType":"public","force":true}`,
	} {
		if rr := do(t, h, http.MethodPost, "/api/bonded-devices/delete", body); rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %s, got %d", body, rr.Code)
		}
	}
}

func TestScanMode_bondsCandidate(t *testing.T) {
	h, store, sched, _ := newTestServer(t)

	rr := do(t, h, http.MethodGet, "/api/last-connected-device", "")
	if resp := decode[companion.LastConnectedResponse](t, rr); resp.Exists || resp.LastConnectedDevice != nil {
		t.Fatalf("expected no last connected device, got %+v", resp)
	}
	if !strings.Contains(rr.Body.String(), `"exists":false`) || strings.Contains(rr.Body.String(), "lastConnectedDevice") {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}

	if rr := do(t, h, http.MethodPost, "/api/scan-mode", `{"scanMode":0}`); rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rr.Code, rr.Body.String())
	}
	if store.ScanMode() != companion.ScanNewDevicesOnly {
		t.Fatalf("expected NewDevicesOnly, got %v", store.ScanMode())
	}

	timer := sched.last()
	if timer == nil || timer.d != 7*time.Second {
		t.Fatalf("expected a bond to be scheduled after 7s, got %+v", timer)
	}
	timer.f()

	resp := decode[companion.LastConnectedResponse](t, do(t, h, http.MethodGet, "/api/last-connected-device", ""))
	if !resp.Exists || resp.LastConnectedDevice == nil {
		t.Fatalf("expected a last connected device, got %+v", resp)
	}
	if d := *resp.LastConnectedDevice; d.Address != "d3:55:a0:19:6b:e8" || d.Name != "Keyboard K380" || !d.IsConnected {
		t.Fatalf("unexpected device %+v", d)
	}
	if n := len(store.BondedDevices()); n != 4 {
		t.Fatalf("expected the candidate to join the bonded set, got %d devices", n)
	}

	// The next window bonds the next candidate.
	do(t, h, http.MethodPost, "/api/scan-mode", `{"scanMode":2}`)
	do(t, h, http.MethodPost, "/api/scan-mode", `{"scanMode":0}`)

	if _, ok := store.LastConnectedDevice(); ok {
		t.Fatalf("expected entering NewDevicesOnly to clear the last connected device")
	}

	sched.last().f()
	if d, ok := store.LastConnectedDevice(); !ok || d.Address != "c8:7f:54:22:91:0a" {
		t.Fatalf("expected the second candidate to bond, got %+v", d)
	}

	body := do(t, h, http.MethodGet, "/metrics", "").Body.String()
	if !strings.Contains(body, "bondmgr_emulator_bonds_total 2") {
		t.Fatalf("expected bonds counter to be 2; body=%s", body)
	}
	if !strings.Contains(body, "bondmgr_emulator_scan_mode 0") {
		t.Fatalf("expected scan mode gauge to be 0; body=%s", body)
	}
	if !strings.Contains(body, `bondmgr_emulator_http_requests_total{method="POST",path="/api/scan-mode",status="204"} 3`) {
		t.Fatalf("expected labeled request counter; body=%s", body)
	}
}

func TestScanMode_leavingCancelsPendingBond(t *testing.T) {
	h, store, sched, _ := newTestServer(t)

	do(t, h, http.MethodPost, "/api/scan-mode", `{"scanMode":0}`)
	do(t, h, http.MethodPost, "/api/scan-mode", `{"scanMode":2}`)

	if !sched.last().stopped {
		t.Fatalf("expected the pending bond to be stopped")
	}

	// A timer which raced with Stop must not bond.
	sched.fireAll()

	if _, ok := store.LastConnectedDevice(); ok {
		t.Fatalf("expected no device to bond after leaving NewDevicesOnly")
	}
	if n := len(store.BondedDevices()); n != 3 {
		t.Fatalf("expected 3 bonded devices, got %d", n)
	}
}

func TestScanMode_invalid(t *testing.T) {
	h, store, _, _ := newTestServer(t)

	for _, body := range []string{`{"scanMode":5}`, `{"scanMode":-1}`, `{}`, `{"scanMode":"0"}`} {
		if rr := do(t, h, http.MethodPost, "/api/scan-mode", body); rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %s, got %d", body, rr.Code)
		}
	}

	if store.ScanMode() != companion.ScanPairedDevicesOnly {
		t.Fatalf("expected the scan mode to be unchanged, got %v", store.ScanMode())
	}
}

func TestHealthzAndCORS(t *testing.T) {
	h, _, _, _ := newTestServer(t)

	rr := do(t, h, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected healthz response %d: %s", rr.Code, rr.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/bonded-devices", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected CORS header, got %q", got)
	}
}

func TestEndToEnd_pairingAgainstEmulator(t *testing.T) {
	store := NewStore(DefaultFixtures(), StoreOptions{PairDelay: 20 * time.Millisecond, Logger: zerolog.Nop()})
	t.Cleanup(store.Close)

	srv := httptest.NewServer(NewServer(store, Options{Logger: zerolog.Nop()}).Router())
	t.Cleanup(srv.Close)

	client, err := companion.New(srv.URL, companion.Options{Timeout: time.Second, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("companion.New: %v", err)
	}

	coordinator := pairing.New(client, pairing.NewBondPoller(client, zerolog.Nop()), pairing.Options{
		Interval: 10 * time.Millisecond,
		Timeout:  5 * time.Second,
		Logger:   zerolog.Nop(),
	})

	outcome := make(chan pairing.Outcome, 1)
	if _, err := coordinator.Begin(func(o pairing.Outcome) { outcome <- o }); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	select {
	case o := <-outcome:
		if o.State != pairing.Found || o.Device.Address != "d3:55:a0:19:6b:e8" {
			t.Fatalf("unexpected outcome %+v", o)
		}

	case <-time.After(5 * time.Second):
		t.Fatalf("expected the candidate to be found")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := coordinator.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if mode := store.ScanMode(); mode != companion.ScanPairedDevicesOnly {
		t.Fatalf("expected the adapter to be left in PairedDevicesOnly, got %v", mode)
	}

	result, err := client.DeleteBond(ctx, "c1:19:2d:08:75:00", companion.AddressPublic)
	if err != nil {
		t.Fatalf("DeleteBond: %v", err)
	}
	if result.Deleted || result.Message != "Bond not found" {
		t.Fatalf("unexpected delete result %+v", result)
	}

	devices, err := client.BondedDevices(ctx)
	if err != nil {
		t.Fatalf("BondedDevices: %v", err)
	}
	if len(devices) != 4 {
		t.Fatalf("expected 4 bonded devices, got %d", len(devices))
	}
}
