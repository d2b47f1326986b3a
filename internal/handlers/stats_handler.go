package handlers

import (
	"net/http"
	"strconv"

	"cantogame/internal/service"
)

// StatsHandler serves the statistics endpoints
type StatsHandler struct {
	stats *service.StatisticsService
}

// NewStatsHandler creates a new statistics handler
func NewStatsHandler(stats *service.StatisticsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// GetStatistics handles GET /api/statistics?userId=&deckId=. The user
// defaults to the caller.
func (h *StatsHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	viewer, _ := ViewerFrom(r.Context())
	q := r.URL.Query()

	userID := q.Get("userId")
	if userID == "" {
		userID = viewer.UserID
	}

	res, err := h.stats.Statistics(r.Context(), viewer, userID, q.Get("deckId"))
	if err != nil {
		respondWithServiceError(w, "failed to get statistics", err)
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

// GetErrorRatios handles GET /api/words/error-ratios?deckId=&limit=
func (h *StatsHandler) GetErrorRatios(w http.ResponseWriter, r *http.Request) {
	viewer, _ := ViewerFrom(r.Context())
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "limit must be an integer", "", nil)
			return
		}
		limit = n
	}

	words, err := h.stats.TopWrongWords(r.Context(), viewer, q.Get("deckId"), limit)
	if err != nil {
		respondWithServiceError(w, "failed to get error ratios", err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"words": words})
}

// ListStudents handles GET /api/students
func (h *StatsHandler) ListStudents(w http.ResponseWriter, r *http.Request) {
	viewer, _ := ViewerFrom(r.Context())

	students, err := h.stats.Students(r.Context(), viewer)
	if err != nil {
		respondWithServiceError(w, "failed to list students", err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"students": students})
}
