package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"finviz/internal/core"
	"finviz/internal/log"
)

type bucketResponse struct {
	Month string      `json:"month"`
	Label string      `json:"label"`
	Total json.Number `json:"total"`
}

type chartResponse struct {
	Buckets []bucketResponse `json:"buckets"`
	Skipped int              `json:"skipped"`
}

func toChartResponse(s core.MonthlySummary) chartResponse {
	out := chartResponse{Buckets: make([]bucketResponse, 0, len(s.Buckets)), Skipped: s.Skipped}
	for _, b := range s.Buckets {
		out.Buckets = append(out.Buckets, bucketResponse{
			Month: b.Key,
			Label: b.Label,
			Total: json.Number(b.Total.String()),
		})
	}
	return out
}

// handleMonthlyChart serves the monthly totals series. ?order=label keeps
// the lexicographic label order; the default comes from CHART_ORDER.
func (s *Server) handleMonthlyChart(w http.ResponseWriter, r *http.Request) {
	order := s.chartOrder
	if v := strings.TrimSpace(r.URL.Query().Get("order")); v != "" {
		parsed, err := core.ParseSortOrder(v)
		if err != nil {
			BadRequestError(err.Error()).Write(w)
			return
		}
		order = parsed
	}

	summary, err := s.dashboard.Chart(r.Context(), order)
	if err != nil {
		s.structured.LogError(r.Context(), "Monthly chart failed", err, log.ComponentChart, log.OpAggregate, nil)
		InternalServerError().Write(w)
		return
	}

	NewResponse().JSON(toChartResponse(summary)).Write(w)
}
