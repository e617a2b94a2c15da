package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/unklstewy/opensky-overlay/internal/auth"
	"github.com/unklstewy/opensky-overlay/internal/overlay"
	"github.com/unklstewy/opensky-overlay/internal/tracks"
	"github.com/unklstewy/opensky-overlay/pkg/coordinates"
	"github.com/unklstewy/opensky-overlay/pkg/flightstatus"
	"github.com/unklstewy/opensky-overlay/pkg/opensky"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

// trackSummary is one row of the track list.
type trackSummary struct {
	ICAO24        string          `json:"icao24"`
	Callsign      string          `json:"callsign,omitempty"`
	OriginCountry string          `json:"origin_country,omitempty"`
	Header        *overlay.Header `json:"header,omitempty"`
	Look          *lookAngle      `json:"look,omitempty"`
	LastUpdated   time.Time       `json:"last_updated"`
	Selected      bool            `json:"selected"`
}

type lookAngle struct {
	Elevation float64 `json:"elevation"`
	Azimuth   float64 `json:"azimuth"`
	RangeNM   float64 `json:"range_nm"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// handleHealth reports liveness and a few counters.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status":   "ok",
		"tracks":   s.opts.Store.Len(),
		"sessions": s.SessionCount(),
	}
	if s.opts.Health != nil {
		for k, v := range s.opts.Health() {
			body[k] = v
		}
	}
	respondJSON(w, http.StatusOK, body)
}

// handleLogin authenticates the operator and returns a token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.opts.Auth == nil {
		respondError(w, http.StatusNotFound, "Authentication is disabled")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, err := s.opts.Auth.Authenticate(req.Username, req.Password)
	if err != nil {
		s.logger.Warn().Str("username", req.Username).Msg("login failed")
		respondError(w, http.StatusUnauthorized, auth.ErrInvalidCredentials.Error())
		return
	}

	s.logger.Info().Str("username", req.Username).Msg("login")
	respondJSON(w, http.StatusOK, loginResponse{Token: token})
}

// handleListTracks returns all live tracks.
func (s *Server) handleListTracks(w http.ResponseWriter, r *http.Request) {
	selected := s.opts.Selection.ICAO24()

	list := s.opts.Store.List()
	out := make([]trackSummary, 0, len(list))
	for _, track := range list {
		out = append(out, s.summarize(track, selected))
	}
	respondJSON(w, http.StatusOK, out)
}

// handleGetTrack returns one track with its raw state vector.
func (s *Server) handleGetTrack(w http.ResponseWriter, r *http.Request) {
	track := s.opts.Store.Get(chi.URLParam(r, "icao24"))
	if track == nil {
		respondError(w, http.StatusNotFound, "Track not found")
		return
	}
	respondJSON(w, http.StatusOK, track)
}

// handleGetOverlay returns the overlay snapshot as of now.
func (s *Server) handleGetOverlay(w http.ResponseWriter, r *http.Request) {
	track := s.opts.Store.Get(chi.URLParam(r, "icao24"))
	if track == nil {
		respondError(w, http.StatusNotFound, "Track not found")
		return
	}
	respondJSON(w, http.StatusOK, s.snapshotNow(track))
}

// handleGetSelection returns the overlay of the selected aircraft. With
// nothing selected the snapshot is the placeholder.
func (s *Server) handleGetSelection(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.snapshotNow(s.opts.Selection.Selected()))
}

// handleSelect makes an aircraft the selected one.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	icao24 := chi.URLParam(r, "icao24")
	if err := s.opts.Selection.Select(icao24); err != nil {
		if errors.Is(err, tracks.ErrUnknownTrack) {
			respondError(w, http.StatusNotFound, "Track not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logger.Info().Str("icao24", strings.ToLower(icao24)).Str("by", actor(r)).Msg("aircraft selected")
	respondJSON(w, http.StatusOK, s.snapshotNow(s.opts.Selection.Selected()))
}

// handleRelease clears the selection if it is the given aircraft.
func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	icao24 := chi.URLParam(r, "icao24")
	if !s.opts.Selection.Release(icao24) {
		respondError(w, http.StatusConflict, "Aircraft is not selected")
		return
	}

	s.logger.Info().Str("icao24", strings.ToLower(icao24)).Str("by", actor(r)).Msg("aircraft released")
	w.WriteHeader(http.StatusNoContent)
}

// handleGetHistory returns stored state vectors, newest first.
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	if s.opts.History == nil {
		respondError(w, http.StatusServiceUnavailable, "History is not enabled")
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		if n > maxHistoryLimit {
			n = maxHistoryLimit
		}
		limit = n
	}

	history, err := s.opts.History.History(r.Context(), strings.ToLower(chi.URLParam(r, "icao24")), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("history query failed")
		respondError(w, http.StatusInternalServerError, "Failed to load history")
		return
	}
	respondJSON(w, http.StatusOK, history)
}

// snapshotNow builds a snapshot with the counter computed from the clock,
// as a freshly mounted overlay would show it.
func (s *Server) snapshotNow(track *opensky.Track) overlay.Snapshot {
	var seconds int64
	if track != nil && track.StateVector != nil {
		var r overlay.Recency
		r.Reset(s.now(), track.StateVector.TimePosition)
		seconds = r.Seconds
	}
	return overlay.BuildSnapshot(track, seconds, s.opts.Location)
}

func (s *Server) summarize(track *opensky.Track, selected string) trackSummary {
	sum := trackSummary{
		ICAO24:      track.ICAO24,
		LastUpdated: track.LastUpdated,
		Selected:    track.ICAO24 == selected,
	}
	sv := track.StateVector
	if sv == nil {
		return sum
	}

	if sv.Callsign != nil {
		sum.Callsign = *sv.Callsign
	}
	sum.OriginCountry = sv.OriginCountry
	header := overlay.BuildHeader(sv)
	sum.Header = &header

	if s.opts.Observer != nil {
		alt := flightstatus.EffectiveAltitude(sv.GeoAltitude, sv.BaroAltitude)
		if pos, ok := coordinates.FromStateVector(sv, alt); ok {
			look := coordinates.Look(*s.opts.Observer, pos)
			sum.Look = &lookAngle{
				Elevation: look.Elevation,
				Azimuth:   look.Azimuth,
				RangeNM:   look.RangeNM,
			}
		}
	}
	return sum
}

func actor(r *http.Request) string {
	if claims := claimsFrom(r.Context()); claims != nil {
		return claims.Username
	}
	return "anonymous"
}
