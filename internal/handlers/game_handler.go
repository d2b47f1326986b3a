package handlers

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"cantogame/internal/audio"
	"cantogame/internal/service"
)

// multipartOverhead is the allowance for form fields on top of the audio cap
const multipartOverhead = 1 << 20

// GameHandler serves the game session endpoints
type GameHandler struct {
	game          *service.GameService
	maxAudioBytes int64
}

// NewGameHandler creates a new game handler
func NewGameHandler(game *service.GameService, maxAudioBytes int64) *GameHandler {
	return &GameHandler{game: game, maxAudioBytes: maxAudioBytes}
}

type startRequest struct {
	DeckID string `json:"deckId"`
}

// StartSession handles POST /api/games/start
func (h *GameHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	viewer, _ := ViewerFrom(r.Context())

	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return
	}

	res, err := h.game.StartSession(r.Context(), viewer.UserID, req.DeckID)
	if err != nil {
		respondWithServiceError(w, "failed to start session", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, res)
}

type attemptRequest struct {
	WordID         string `json:"wordId"`
	RecognizedText string `json:"recognizedText"`
	ResponseTimeMs int    `json:"responseTimeMs"`
}

// SubmitAttempt handles POST /api/games/{sessionId}/attempts. The body is
// either JSON or a multipart form with an optional audio file.
func (h *GameHandler) SubmitAttempt(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]
	if !h.ownsSession(w, r, sessionID) {
		return
	}

	in := service.AttemptInput{SessionID: sessionID}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxAudioBytes+multipartOverhead)
		if err := r.ParseMultipartForm(h.maxAudioBytes + multipartOverhead); err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				respondWithError(w, http.StatusRequestEntityTooLarge, "Audio too large", "", nil)
				return
			}
			respondWithError(w, http.StatusBadRequest, ErrInvalidFormData, "", nil)
			return
		}

		in.WordID = r.FormValue("wordId")
		in.RecognizedText = r.FormValue("recognizedText")
		if raw := r.FormValue("responseTimeMs"); raw != "" {
			ms, err := strconv.Atoi(raw)
			if err != nil {
				respondWithError(w, http.StatusBadRequest, "responseTimeMs must be an integer", "", nil)
				return
			}
			in.ResponseTimeMs = ms
		}

		clip, ok := h.readAudio(w, r)
		if !ok {
			return
		}
		in.Audio = clip
	} else {
		var req attemptRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, ErrInvalidJSON, "", nil)
			return
		}
		in.WordID = req.WordID
		in.RecognizedText = req.RecognizedText
		in.ResponseTimeMs = req.ResponseTimeMs
	}

	res, err := h.game.SubmitAttempt(r.Context(), in)
	if err != nil {
		respondWithServiceError(w, "failed to submit attempt", err)
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

// readAudio reads the optional "audio" form file. It writes the error reply
// and returns false when the upload is unusable.
func (h *GameHandler) readAudio(w http.ResponseWriter, r *http.Request) (*audio.Clip, bool) {
	file, header, err := r.FormFile("audio")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, true
	}
	if err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidFormData, "", nil)
		return nil, false
	}
	defer file.Close()

	clip, err := audio.Read(file, h.maxAudioBytes, header.Filename)
	switch {
	case errors.Is(err, audio.ErrTooLarge):
		respondWithError(w, http.StatusRequestEntityTooLarge, "Audio too large", "", nil)
		return nil, false
	case errors.Is(err, audio.ErrUnsupportedFormat):
		respondWithError(w, http.StatusUnsupportedMediaType, "Unsupported audio format", "", nil)
		return nil, false
	case err != nil:
		respondWithError(w, http.StatusBadRequest, "Failed to read audio", "failed to read audio upload", err)
		return nil, false
	}
	return clip, true
}

// EndSession handles POST /api/games/{sessionId}/end
func (h *GameHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]
	if !h.ownsSession(w, r, sessionID) {
		return
	}

	res, err := h.game.EndSession(r.Context(), sessionID)
	if err != nil {
		respondWithServiceError(w, "failed to end session", err)
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

// GetSession handles GET /api/games/{sessionId}
func (h *GameHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	viewer, _ := ViewerFrom(r.Context())
	session, err := h.game.GetSession(r.Context(), mux.Vars(r)["sessionId"])
	if err != nil {
		respondWithServiceError(w, "failed to get session", err)
		return
	}
	if session.UserID != viewer.UserID && !viewer.IsAdmin() {
		respondWithServiceError(w, "session belongs to another user", service.ErrForbidden)
		return
	}
	respondWithJSON(w, http.StatusOK, session)
}

// ownsSession checks that the viewer is the session's player. Only the
// player may submit attempts or end a session.
func (h *GameHandler) ownsSession(w http.ResponseWriter, r *http.Request, sessionID string) bool {
	viewer, _ := ViewerFrom(r.Context())
	session, err := h.game.GetSession(r.Context(), sessionID)
	if err != nil {
		respondWithServiceError(w, "failed to get session", err)
		return false
	}
	if session.UserID != viewer.UserID {
		respondWithServiceError(w, "session belongs to another user", service.ErrForbidden)
		return false
	}
	return true
}
