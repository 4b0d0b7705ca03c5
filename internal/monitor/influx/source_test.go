package influx

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pedrodavics/PGR/internal/models"
	"github.com/pedrodavics/PGR/internal/reporterr"
)

const csvResult = `#datatype,string,long,dateTime:RFC3339,double
#group,false,false,false,false
#default,_result,,,
,result,table,_time,_value
,,0,2024-05-01T00:00:00Z,10.5
,,0,2024-05-01T01:00:00Z,20

`

func TestParseItem(t *testing.T) {
	it, err := ParseItem("cpu/usage_user@db01")
	require.NoError(t, err)
	assert.Equal(t, Item{Measurement: "cpu", Field: "usage_user", Host: "db01"}, it)
	assert.Equal(t, "cpu/usage_user@db01", it.ID())

	it, err = ParseItem("mem/used_percent")
	require.NoError(t, err)
	assert.Empty(t, it.Host)

	_, err = ParseItem("cpu")
	assert.Error(t, err)
}

func TestRangeQuery(t *testing.T) {
	w := models.Window{
		From: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	q := RangeQuery("telegraf", "host", Item{Measurement: "cpu", Field: "usage_user", Host: "db01"}, w, "1h")

	assert.Contains(t, q, `from(bucket: "telegraf")`)
	assert.Contains(t, q, "range(start: 2024-05-01T00:00:00Z, stop: 2024-06-01T00:00:00Z)")
	assert.Contains(t, q, `r["host"] == "db01"`)
	assert.Contains(t, q, "aggregateWindow(every: 1h, fn: mean")

	raw := RangeQuery("telegraf", "host", Item{Measurement: "cpu", Field: "usage_user"}, w, "")
	assert.NotContains(t, raw, "aggregateWindow")
	assert.NotContains(t, raw, `r["host"]`)
}

func TestSource_HistoryOverHTTP(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotQuery = string(body)
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		_, _ = w.Write([]byte(csvResult))
	}))
	defer srv.Close()

	src := New(Config{URL: srv.URL, Token: "t", Org: "o", Bucket: "b"}, zap.NewNop())
	defer src.Close()

	w := models.Window{From: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), To: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)}
	samples, err := src.History(context.Background(), "cpu/usage_user@db01", 0, w)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, 10.5, samples[0].Value)
	assert.Equal(t, time.Date(2024, 5, 1, 1, 0, 0, 0, time.UTC), samples[1].Timestamp.UTC())
	assert.True(t, strings.Contains(gotQuery, "usage_user"))
}

func TestSource_ServerErrorIsConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"unauthorized","message":"unauthorized access"}`))
	}))
	defer srv.Close()

	src := New(Config{URL: srv.URL, Token: "bad", Org: "o", Bucket: "b"}, zap.NewNop())
	defer src.Close()

	_, err := src.ValueType(context.Background(), "cpu/usage_user")
	assert.True(t, reporterr.Is(err, reporterr.KindConnection))
}
