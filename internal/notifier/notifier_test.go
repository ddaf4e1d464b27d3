package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RialLedger/internal/calculator"
	"RialLedger/internal/calendar"
	"RialLedger/internal/model"
	"RialLedger/internal/recorder"
	"RialLedger/internal/retry"
)

type fakeBotAPI struct {
	mu       sync.Mutex
	failures int
	sent     []map[string]string
	updates  string
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		if f.failures > 0 {
			f.failures--
			http.Error(w, `{"ok":false}`, http.StatusTooManyRequests)
			return
		}
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		f.sent = append(f.sent, payload)
		fmt.Fprint(w, `{"ok":true}`)
	case strings.HasSuffix(r.URL.Path, "/getUpdates"):
		if r.URL.Query().Get("offset") == "0" {
			fmt.Fprint(w, f.updates)
			return
		}
		time.Sleep(10 * time.Millisecond)
		fmt.Fprint(w, `{"ok":true,"result":[]}`)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeBotAPI) messages() []map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]string(nil), f.sent...)
}

func newTestNotifier(t *testing.T, api *fakeBotAPI) *TelegramNotifier {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	n := NewTelegramNotifier("TOKEN", "42", "", logger)
	n.APIBase = srv.URL
	return n
}

func TestSend(t *testing.T) {
	api := &fakeBotAPI{}
	n := newTestNotifier(t, api)

	require.NoError(t, n.Send(context.Background(), "hello"))
	msgs := api.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "42", msgs[0]["chat_id"])
	assert.Equal(t, "hello", msgs[0]["text"])
	assert.Equal(t, "HTML", msgs[0]["parse_mode"])
}

func TestSendWithPolicy_RetriesThenSucceeds(t *testing.T) {
	api := &fakeBotAPI{failures: 2}
	n := newTestNotifier(t, api)

	require.NoError(t, n.sendWithPolicy(context.Background(), "hi", retry.Fixed(3, 0)))
	assert.Len(t, api.messages(), 1)
}

func TestSendWithPolicy_Exhausted(t *testing.T) {
	api := &fakeBotAPI{failures: 5}
	n := newTestNotifier(t, api)

	err := n.sendWithPolicy(context.Background(), "hi", retry.Fixed(2, 0))
	assert.ErrorIs(t, err, retry.ErrExhausted)
	assert.Empty(t, api.messages())
}

func TestPolling_RepliesToConfiguredChat(t *testing.T) {
	api := &fakeBotAPI{updates: `{"ok":true,"result":[
		{"update_id":7,"message":{"text":"/status","chat":{"id":99}}},
		{"update_id":8,"message":{"text":" /status ","chat":{"id":42}}}
	]}`}
	n := newTestNotifier(t, api)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var got []string
	var mu sync.Mutex
	done := make(chan struct{})
	go func() {
		defer close(done)
		n.poll(ctx, func(_ context.Context, cmd string) string {
			mu.Lock()
			got = append(got, cmd)
			mu.Unlock()
			return "ok: " + cmd
		}, 0, time.Millisecond)
	}()

	require.Eventually(t, func() bool { return len(api.messages()) == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/status"}, got)
	assert.Equal(t, "ok: /status", api.messages()[0]["text"])
}

func TestFormatRunSummary(t *testing.T) {
	evt := &recorder.RunEvent{
		Mode:       "incremental",
		FinishedAt: time.Date(2025, 8, 2, 11, 30, 0, 0, time.UTC),
		Pages:      1,
		Fetched:    3,
		New:        1,
		StopReason: "cutoff",
		BaseTotal:  1500,
		FirstDate:  "26/11/2011",
		LastDate:   "02/08/2025",
		Warnings:   []model.Warning{model.Warnf(model.WarnMalformed, "price <n/a>")},
	}
	msg := FormatRunSummary(evt)
	assert.Contains(t, msg, "✅")
	assert.Contains(t, msg, "New: 1")
	assert.Contains(t, msg, "Total records: 1500")
	assert.Contains(t, msg, "26/11/2011 → 02/08/2025")
	assert.Contains(t, msg, "&lt;n/a&gt;")

	evt.Err = "feed unreachable"
	msg = FormatRunSummary(evt)
	assert.Contains(t, msg, "❌")
	assert.Contains(t, msg, "Error: feed unreachable")
	assert.NotContains(t, msg, "Pages:")
}

func TestFormatRunSummary_CapsWarnings(t *testing.T) {
	evt := &recorder.RunEvent{Mode: "rebuild"}
	for i := 0; i < 8; i++ {
		evt.Warnings = append(evt.Warnings, model.Warnf(model.WarnUndated, "row %d", i))
	}
	msg := FormatRunSummary(evt)
	assert.Contains(t, msg, "Warnings (8)")
	assert.Contains(t, msg, "and 3 more")
	assert.NotContains(t, msg, "row 6")
}

func TestFormatNewRecords(t *testing.T) {
	assert.Equal(t, "No new records.", FormatNewRecords(nil, nil))

	rial := model.Series{model.NewRecord("31/07/2025", "1404/05/09", "482,000", "481,000", "489,000", "487,000")}
	toman := model.Series{model.NewRecord("31/07/2025", "1404/05/09", "48,200", "48,100", "48,900", "48,700")}
	msg := FormatNewRecords(rial, toman)
	assert.Contains(t, msg, "31/07/2025 (1404/05/09): close 487,000 IRR / 48,700 Toman")
}

func TestFormatLastRun(t *testing.T) {
	assert.Equal(t, "No runs recorded yet.", FormatLastRun(nil))
	msg := FormatLastRun(&recorder.RunInfo{Mode: "incremental", New: 2, BaseTotal: 10, LastDate: "02/08/2025", Warnings: 1})
	assert.Contains(t, msg, "Latest date: 02/08/2025")
	assert.Contains(t, msg, "Warnings: 1")
}

func TestFormatMarket(t *testing.T) {
	series := model.Series{
		model.NewRecord("30/07/2025", "", "482,000", "478,000", "485,000", "482,000", calendar.StoredLayouts...),
		model.NewRecord("31/07/2025", "", "482,000", "481,000", "489,000", "487,000", calendar.StoredLayouts...),
	}
	snap, ok := calculator.Summarize(series)
	require.True(t, ok)

	msg := FormatMarket(snap)
	assert.Contains(t, msg, "USD/IRR 31/07/2025</b>: 487,000 (+5,000, +1.04%)")
	assert.Contains(t, msg, "30-record range: 478,000 – 489,000 (position 0.82)")
	assert.NotContains(t, msg, "MA7")
}
