package zabbix

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pedrodavics/PGR/internal/models"
	"github.com/pedrodavics/PGR/internal/reporterr"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "CPU_utiliza__o", SafeName("CPU utilização"))
	assert.Equal(t, "Mem_ria_RAM__1_", SafeName("Memória RAM (1)"))
}

func TestFileName_DoesNotCollideWithRenderedCharts(t *testing.T) {
	assert.Equal(t, "graph_42_CPU_load.png", FileName(Graph{ID: "42", Name: "CPU load"}))
	assert.NotEqual(t, "CPU_load.png", FileName(Graph{ID: "42", Name: "CPU load"}))
}

func TestDownloader_Download(t *testing.T) {
	var fetched atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api_jsonrpc.php", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0", "id": 1,
			"result": []Graph{{ID: "1", Name: "CPU load"}, {ID: "2", Name: "Disk IO"}, {ID: "3", Name: "CPU jumps"}},
		})
	})
	mux.HandleFunc("/index.php", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "zbx_session", Value: "s"})
		_, _ = w.Write([]byte("<html>dashboard</html>"))
	})
	mux.HandleFunc("/chart2.php", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("zbx_session"); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("graphid") == "1" {
			fetched.Add(1)
		}
		if r.URL.Query().Get("graphid") == "3" {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("error"))
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngMagic)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newClient(t, srv.URL)
	d, err := c.NewDownloader(2, 1200, 300)
	require.NoError(t, err)

	dir := t.TempDir()
	w := models.Window{From: time.Unix(1700000000, 0), To: time.Unix(1702592000, 0)}
	got, issues := d.Download(context.Background(), "10084",
		[]GraphRequest{{Label: "cpu", Keyword: "CPU"}, {Label: "mem", Keyword: "memória"}, {Label: "load", Keyword: "load"}}, w, dir)

	require.Len(t, got, 1)
	assert.Equal(t, int32(1), fetched.Load())
	assert.Equal(t, "cpu", got[0].Label)
	assert.Equal(t, filepath.Join(dir, "graph_1_CPU_load.png"), got[0].Path)
	data, err := os.ReadFile(got[0].Path)
	require.NoError(t, err)
	assert.Equal(t, pngMagic, data)

	require.Len(t, issues, 2)
	assert.True(t, reporterr.Is(issues[0], reporterr.KindNoData))
	assert.True(t, reporterr.Is(issues[1], reporterr.KindRender))
}

func TestDownloader_LoginRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/index.php", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<button>Sign in</button>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	d, err := newClient(t, srv.URL).NewDownloader(1, 10, 10)
	require.NoError(t, err)
	err = d.Login(context.Background())
	assert.True(t, reporterr.Is(err, reporterr.KindConnection))
}
