package dashboard

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/IshaanNene/TrendGoat/internal/config"
)

// StatsProvider provides engine statistics.
type StatsProvider interface {
	GetStats() map[string]any
}

// Dashboard serves the index page with the run button.
type Dashboard struct {
	provider    StatsProvider
	metricsPath string
	tmpl        *template.Template
	logger      *slog.Logger
}

type pageData struct {
	Version     string
	State       string
	MetricsPath string
}

// NewDashboard creates the index page handler. metricsPath is empty when
// metrics are disabled.
func NewDashboard(provider StatsProvider, metricsPath string, logger *slog.Logger) *Dashboard {
	return &Dashboard{
		provider:    provider,
		metricsPath: metricsPath,
		tmpl:        template.Must(template.New("index").Parse(dashboardHTML)),
		logger:      logger.With("component", "dashboard"),
	}
}

func (d *Dashboard) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		Version:     config.Version,
		State:       "idle",
		MetricsPath: d.metricsPath,
	}
	if d.provider != nil {
		if state, ok := d.provider.GetStats()["state"]; ok {
			data.State = fmt.Sprint(state)
		}
	}

	var buf bytes.Buffer
	if err := d.tmpl.Execute(&buf, data); err != nil {
		d.logger.Error("render index", "error", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
