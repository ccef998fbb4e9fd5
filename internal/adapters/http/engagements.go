package httpadapter

import (
	"net/http"

	"homeward/internal/domain"
)

func (s *Server) getEngagement(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "engagementID", "engagement")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	e, err := s.svc.Engagements.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newEngagementResponse(e))
}

func (s *Server) changeStage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "engagementID", "engagement")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req stageChangeRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	e, err := s.svc.Engagements.ChangeStage(r.Context(), id, req.change())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newEngagementResponse(e))
}

func (s *Server) updatePreferences(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "engagementID", "engagement")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req preferencesRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	e, err := s.svc.Engagements.UpdatePreferences(r.Context(), id, req.preferences())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newEngagementResponse(e))
}

func (s *Server) appendNote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "engagementID", "engagement")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req noteRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	e, err := s.svc.Engagements.AppendNote(r.Context(), id, req.Text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newEngagementResponse(e))
}

func (s *Server) evaluateRequirements(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "engagementID", "engagement")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	to := r.URL.Query().Get("to")
	if to == "" {
		s.writeError(w, r, domain.Validation("query parameter to is required"))
		return
	}
	d, err := s.svc.Engagements.EvaluateStageRequirements(r.Context(), id, domain.Stage(to))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newGateResponse(d))
}
