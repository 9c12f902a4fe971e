package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/levishimwe/Hadathub/internal/api"
	v1 "github.com/levishimwe/Hadathub/internal/api/handler/v1"
	"github.com/levishimwe/Hadathub/internal/clock"
	"github.com/levishimwe/Hadathub/internal/config"
	"github.com/levishimwe/Hadathub/internal/domain"
	"github.com/levishimwe/Hadathub/internal/payment"
	"github.com/levishimwe/Hadathub/internal/pkg/jwthelper"
	"github.com/levishimwe/Hadathub/internal/pkg/qrcode"
	"github.com/levishimwe/Hadathub/internal/repository/memory"
	"github.com/levishimwe/Hadathub/internal/service"
)

const signingKey = "server-test-signing-key"

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type testServer struct {
	router http.Handler
	feed   *v1.CheckInFeed
	tokens map[domain.Role]string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	conf := &config.AppConfig{
		API: &config.APIConfig{
			Port:               "0",
			BaseURL:            "localhost",
			AllowedCORSDomains: []string{"http://localhost:3000"},
			JWTSigningKey:      signingKey,
		},
		Gin: &config.GinConfig{Mode: "test"},
		QR:  &config.QRConfig{PNGSize: 128},
	}

	store := memory.New()
	clk := clock.NewManual(t0)
	signer, err := qrcode.NewSigner("server-test-qr-secret")
	require.NoError(t, err)
	payments := payment.NewSimulatedGateway()

	events := service.NewEventService(store, payments, clk)
	feed := v1.NewCheckInFeed(events, []string{"http://localhost:3000"})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go feed.Run(ctx)

	s := api.NewServer(conf, api.Services{
		Venues:   service.NewVenueService(store, clk),
		Events:   events,
		Tickets:  service.NewTicketService(store, payments, signer, clk),
		CheckIns: service.NewCheckInService(store, signer, clk, service.WithCheckInFeed(feed)),
		Feed:     feed,
	})

	ts := &testServer{router: s.Router, feed: feed, tokens: make(map[domain.Role]string)}
	for role, user := range map[domain.Role]string{
		domain.RoleOrganizer: "org-1",
		domain.RoleAttendee:  "user-1",
		domain.RoleStaff:     "staff-1",
	} {
		token, err := jwthelper.GenerateToken([]byte(signingKey), user, string(role), time.Hour)
		require.NoError(t, err)
		ts.tokens[role] = token
	}
	return ts
}

func (ts *testServer) do(t *testing.T, role domain.Role, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+ts.tokens[role])
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// publishedEvent creates a venue and publishes an event two days after t0
// whose sales are already open.
func (ts *testServer) publishedEvent(t *testing.T, capacity int) domain.Event {
	t.Helper()

	w := ts.do(t, domain.RoleOrganizer, http.MethodPost, "/api/v1/venues", map[string]any{
		"name":     "Main Hall",
		"capacity": capacity,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	venue := decode[domain.Venue](t, w)

	start := t0.Add(48 * time.Hour)
	w = ts.do(t, domain.RoleOrganizer, http.MethodPost, "/api/v1/events", map[string]any{
		"venue_id":       venue.ID,
		"name":           "Concert",
		"start_at":       start,
		"end_at":         start.Add(3 * time.Hour),
		"sales_start_at": t0.Add(-time.Hour),
		"sales_end_at":   start,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	event := decode[domain.Event](t, w)
	assert.Equal(t, domain.EventDraft, event.Status)

	w = ts.do(t, domain.RoleOrganizer, http.MethodPost, "/api/v1/events/"+event.ID+"/publish", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[domain.Event](t, w)
}

func (ts *testServer) purchase(t *testing.T, eventID, key, paymentRef string) *httptest.ResponseRecorder {
	t.Helper()
	return ts.do(t, domain.RoleAttendee, http.MethodPost, "/api/v1/events/"+eventID+"/tickets", map[string]any{
		"price_paid":  2500,
		"currency":    "USD",
		"payment_ref": paymentRef,
	}, "Idempotency-Key", key)
}

func TestHealthcheck(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, "", http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestAuthAndRoles(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, "", http.MethodPost, "/api/v1/venues", map[string]any{"name": "Hall", "capacity": 10})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, domain.RoleAttendee, http.MethodPost, "/api/v1/venues", map[string]any{"name": "Hall", "capacity": 10})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Forbidden", decode[map[string]any](t, w)["kind"])

	w = ts.do(t, domain.RoleOrganizer, http.MethodPost, "/api/v1/venues", map[string]any{"name": "Hall", "capacity": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, domain.RoleOrganizer, http.MethodGet, "/api/v1/events/"+"missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPurchaseFlow(t *testing.T) {
	ts := newTestServer(t)
	event := ts.publishedEvent(t, 2)

	w := ts.purchase(t, event.ID, "intent-1", "pay_1")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	first := decode[domain.Ticket](t, w)
	assert.Equal(t, domain.TicketPaid, first.Status)

	t.Run("retry with the same key returns the same ticket", func(t *testing.T) {
		w := ts.purchase(t, event.ID, "intent-1", "pay_1")
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Equal(t, first.ID, decode[domain.Ticket](t, w).ID)
	})

	t.Run("declined payment releases the slot", func(t *testing.T) {
		w := ts.purchase(t, event.ID, "intent-2", "fail_card")
		require.Equal(t, http.StatusPaymentRequired, w.Code, w.Body.String())
		outcome := decode[map[string]any](t, w)
		assert.Equal(t, "PaymentFailed", outcome["kind"])
		assert.Equal(t, string(domain.TicketCancelled), outcome["ticket"].(map[string]any)["status"])
	})

	t.Run("pending payment keeps the reservation", func(t *testing.T) {
		w := ts.purchase(t, event.ID, "intent-3", "pending_bank")
		require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
		outcome := decode[map[string]any](t, w)
		assert.Equal(t, "PaymentPending", outcome["kind"])
		assert.Equal(t, string(domain.TicketReserved), outcome["ticket"].(map[string]any)["status"])
	})

	t.Run("sold out", func(t *testing.T) {
		w := ts.purchase(t, event.ID, "intent-4", "")
		require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
		assert.Equal(t, "SoldOut", decode[map[string]any](t, w)["kind"])
	})

	w = ts.do(t, domain.RoleAttendee, http.MethodGet, "/api/v1/events/"+event.ID+"/availability", nil)
	require.Equal(t, http.StatusOK, w.Code)
	availability := decode[domain.Availability](t, w)
	assert.Equal(t, 2, availability.LiveCount)
	assert.Equal(t, 0, availability.Remaining)

	w = ts.do(t, domain.RoleAttendee, http.MethodGet, "/api/v1/users/me/tickets", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.Ticket](t, w), 3)

	w = ts.do(t, domain.RoleAttendee, http.MethodGet, "/api/v1/tickets/"+first.ID+"/qr", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))
}

func TestPurchaseValidation(t *testing.T) {
	ts := newTestServer(t)
	event := ts.publishedEvent(t, 5)

	w := ts.do(t, domain.RoleAttendee, http.MethodPost, "/api/v1/events/"+event.ID+"/tickets", map[string]any{
		"price_paid": 100,
		"currency":   "usd",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, domain.RoleAttendee, http.MethodPost, "/api/v1/events/"+event.ID+"/tickets", "not an object")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelTicketWithRefund(t *testing.T) {
	ts := newTestServer(t)
	event := ts.publishedEvent(t, 5)

	w := ts.purchase(t, event.ID, "intent-1", "pay_ok")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	ticket := decode[domain.Ticket](t, w)

	w = ts.do(t, domain.RoleAttendee, http.MethodPost, "/api/v1/tickets/"+ticket.ID+"/cancel", map[string]any{"refund": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[map[string]any](t, w)
	assert.Equal(t, string(domain.TicketCancelled), body["ticket"].(map[string]any)["status"])
	assert.Equal(t, string(domain.RefundDone), body["refund"].(map[string]any)["status"])

	w = ts.do(t, domain.RoleAttendee, http.MethodPost, "/api/v1/tickets/"+ticket.ID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "InvalidTransition", decode[map[string]any](t, w)["kind"])
}

func TestScan(t *testing.T) {
	ts := newTestServer(t)
	event := ts.publishedEvent(t, 5)

	w := ts.purchase(t, event.ID, "intent-1", "pay_1")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	ticket := decode[domain.Ticket](t, w)

	w = ts.do(t, domain.RoleStaff, http.MethodPost, "/api/v1/checkins/scan", map[string]any{
		"qr_code": ticket.QRCode,
		"gate":    "north-1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	checkIn := decode[domain.CheckIn](t, w)
	assert.Equal(t, ticket.ID, checkIn.TicketID)

	w = ts.do(t, domain.RoleStaff, http.MethodPost, "/api/v1/checkins/scan", map[string]any{
		"ticket_id": ticket.ID,
	})
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	again := decode[service.ScanResult](t, w)
	assert.Equal(t, "AlreadyCheckedIn", again.Kind)
	require.NotNil(t, again.CheckIn)
	assert.Equal(t, checkIn.ID, again.CheckIn.ID)

	w = ts.do(t, domain.RoleAttendee, http.MethodPost, "/api/v1/checkins/scan", map[string]any{
		"ticket_id": ticket.ID,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestBulkScan(t *testing.T) {
	ts := newTestServer(t)
	event := ts.publishedEvent(t, 5)

	var tickets []domain.Ticket
	for i := 0; i < 2; i++ {
		w := ts.purchase(t, event.ID, fmt.Sprintf("intent-%d", i), fmt.Sprintf("pay_%d", i))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		tickets = append(tickets, decode[domain.Ticket](t, w))
	}

	w := ts.do(t, domain.RoleStaff, http.MethodPost, "/api/v1/checkins/bulk", map[string]any{
		"scans": []map[string]any{
			{"qr_code": tickets[0].QRCode},
			{"gate": "east"},
			{"ticket_id": tickets[1].ID},
			{"qr_code": tickets[0].QRCode},
			{"qr_code": "forged.tag"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	results := decode[struct {
		Results []service.ScanResult `json:"results"`
	}](t, w).Results

	require.Len(t, results, 5)
	assert.Empty(t, results[0].Kind)
	assert.Equal(t, "Validation", results[1].Kind)
	assert.Empty(t, results[2].Kind)
	assert.Equal(t, "AlreadyCheckedIn", results[3].Kind)
	assert.Equal(t, "NotFound", results[4].Kind)
	assert.Equal(t, results[0].CheckIn.ID, results[3].CheckIn.ID)
}

func TestCancelEventReport(t *testing.T) {
	ts := newTestServer(t)
	event := ts.publishedEvent(t, 5)

	for i, ref := range []string{"pay_a", "pay_norefund", ""} {
		w := ts.purchase(t, event.ID, fmt.Sprintf("intent-%d", i), ref)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := ts.do(t, domain.RoleOrganizer, http.MethodPost, "/api/v1/events/"+event.ID+"/cancel", map[string]any{"refund_tickets": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	report := decode[service.CancelEventReport](t, w)
	assert.Equal(t, domain.EventCancelled, report.Event.Status)
	assert.Len(t, report.CancelledTickets, 3)
	assert.Len(t, report.Refunds, 2)
	assert.Equal(t, 1, report.RefundFailures())

	w = ts.do(t, domain.RoleAttendee, http.MethodGet, "/api/v1/events/"+event.ID+"/availability", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decode[domain.Availability](t, w).LiveCount)
}

func TestLiveCheckInFeed(t *testing.T) {
	ts := newTestServer(t)
	event := ts.publishedEvent(t, 5)

	w := ts.purchase(t, event.ID, "intent-1", "pay_1")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	ticket := decode[domain.Ticket](t, w)

	srv := httptest.NewServer(ts.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") +
		"/api/v1/events/" + event.ID + "/checkins/live?access_token=" + ts.tokens[domain.RoleStaff]
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	require.Eventually(t, func() bool {
		return ts.feed.Subscribers(event.ID) == 1
	}, time.Second, 10*time.Millisecond)

	w = ts.do(t, domain.RoleStaff, http.MethodPost, "/api/v1/checkins/scan", map[string]any{"qr_code": ticket.QRCode})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got domain.CheckIn
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, ticket.ID, got.TicketID)

	_, resp, err = websocket.DefaultDialer.Dial(strings.Replace(url, ts.tokens[domain.RoleStaff], ts.tokens[domain.RoleAttendee], 1), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
