package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/swellwatch/internal/monitor"
)

var testCreds = Credentials{APIKey: "key-123", AuthToken: "tok-456"}

// newTestClient points a client at the given handler, asserting auth headers
// on every request.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-456", r.Header.Get("Authorization"))
		assert.Equal(t, "key-123", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "no-cache", r.Header.Get("Cache-Control"))
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL, "ws://example.invalid", testCreds)
}

func TestPing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/session", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})
	require.NoError(t, c.Ping(context.Background()))
}

func TestPingRejectedSession(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"session expired"}`))
	})
	err := c.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session expired")
	assert.Contains(t, err.Error(), "status=401")
}

func TestStartJob(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/monitors", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		var req monitor.StartRequest
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "m-1", req.Subject.MemberID)
		assert.Equal(t, "intermediate", req.Criteria.Level)

		_, _ = w.Write([]byte(`{"id":"j-77"}`))
	})

	id, err := c.StartJob(context.Background(), monitor.StartRequest{
		Kind:    monitor.KindPreferenceSweep,
		Subject: monitor.Subject{MemberID: "m-1", DisplayName: "Alex Reef"},
		Criteria: monitor.Criteria{
			Level:         "intermediate",
			Side:          "any",
			Dates:         []string{"2026-09-01"},
			BudgetMinutes: 45,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "j-77", id)
}

func TestStartJobMissingID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	_, err := c.StartJob(context.Background(), monitor.StartRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing job id")
}

func TestStopJobEscapesID(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.WriteHeader(http.StatusOK)
	})
	require.NoError(t, c.StopJob(context.Background(), "j/1"))
	assert.Equal(t, "/api/monitors/j%2F1/stop", gotPath)
}

func TestUpdateJobReportsRestart(t *testing.T) {
	level := "expert"
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/monitors/j-1", r.URL.Path)
		_, _ = w.Write([]byte(`{"restarted":true}`))
	})
	restarted, err := c.UpdateJob(context.Background(), "j-1", monitor.CriteriaPatch{Level: &level})
	require.NoError(t, err)
	assert.True(t, restarted)
}

func TestRosterDecode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/monitors", r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"id":"j-1","status":"running","subject":{"member_id":"m-1","member_name":"Alex Reef"},"elapsed_seconds":120},
			{"id":"j-2","status":"completed","result":{"success":true,"voucher":"V-1","accessCode":"9876"}}
		]`))
	})
	jobs, err := c.Roster(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, monitor.StatusRunning, jobs[0].Status)
	assert.Equal(t, "Alex Reef", jobs[0].Subject.DisplayName)
	assert.Equal(t, 120, jobs[0].ElapsedSeconds)
	require.NotNil(t, jobs[1].Result)
	assert.Equal(t, "V-1", jobs[1].Result.Voucher)
}

func TestCreateBooking(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/bookings", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		var payload struct {
			MemberID string         `json:"member_id"`
			Slot     SlotDescriptor `json:"slot"`
		}
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Equal(t, "m-9", payload.MemberID)
		assert.Equal(t, "2026-09-05", payload.Slot.Date)

		_, _ = w.Write([]byte(`{"voucherCode":"V-55","accessCode":"4321"}`))
	})
	conf, err := c.CreateBooking(context.Background(), "m-9", SlotDescriptor{Date: "2026-09-05"})
	require.NoError(t, err)
	assert.Equal(t, "V-55", conf.VoucherCode)
	assert.Equal(t, "4321", conf.AccessCode)
}

func TestCreateBookingError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"slot fully booked"}`))
	})
	_, err := c.CreateBooking(context.Background(), "m-9", SlotDescriptor{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slot fully booked")
}

func TestAvailabilityAndRescan(t *testing.T) {
	updated := time.Date(2026, 8, 29, 11, 59, 30, 0, time.UTC)
	payload := `{"slots":[{"date":"2026-09-05","start":"10:00","end":"11:00","level":"advanced","side":"left","package_id":"pkg-3","product_id":"prod-7","available":2}],"cacheUpdatedAt":"2026-08-29T11:59:30Z"}`

	var methods []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method+" "+r.URL.Path)
		_, _ = w.Write([]byte(payload))
	})

	avail, err := c.Availability(context.Background())
	require.NoError(t, err)
	require.Len(t, avail.Slots, 1)
	assert.Equal(t, "prod-7", avail.Slots[0].ProductID)
	assert.True(t, avail.CacheUpdatedAt.Equal(updated))

	scanned, err := c.Rescan(context.Background())
	require.NoError(t, err)
	assert.True(t, scanned.CacheUpdatedAt.Equal(updated))

	assert.Equal(t, []string{"GET /api/availability", "POST /api/scan"}, methods)
}

func TestChannelURL(t *testing.T) {
	c := New("https://api.example.com/", "wss://api.example.com/", testCreds)
	assert.Equal(t, "wss://api.example.com/api/monitors/j%2F1/events", c.ChannelURL("j/1"))

	h := c.AuthHeader()
	assert.Equal(t, "Bearer tok-456", h.Get("Authorization"))
	assert.Equal(t, "key-123", h.Get("X-Api-Key"))
}
