package httpadapter

import (
	"net/http"

	"homeward/internal/domain"
)

func (s *Server) listShowings(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "matchID", "match")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	list, err := s.svc.Showings.List(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(list, newShowingResponse))
}

func (s *Server) scheduleShowing(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "matchID", "match")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req scheduleShowingRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sh, err := s.svc.Showings.Schedule(r.Context(), domain.NewShowingInput{
		MatchID:  id,
		At:       *req.At,
		BrokerID: req.BrokerID,
		Notes:    req.Notes,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newShowingResponse(sh))
}

func (s *Server) getShowing(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "showingID", "showing")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sh, err := s.svc.Showings.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newShowingResponse(sh))
}

func (s *Server) rescheduleShowing(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "showingID", "showing")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req rescheduleRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sh, err := s.svc.Showings.Reschedule(r.Context(), id, *req.At)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newShowingResponse(sh))
}

func (s *Server) updateShowingStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "showingID", "showing")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req showingStatusRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sh, err := s.svc.Showings.UpdateStatus(r.Context(), id, domain.ShowingStatus(req.Status), req.Notes)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newShowingResponse(sh))
}
