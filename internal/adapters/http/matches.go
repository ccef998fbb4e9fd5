package httpadapter

import (
	"net/http"

	"homeward/internal/domain"
)

func (s *Server) listMatches(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "engagementID", "engagement")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	list, err := s.svc.Matches.List(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(list, newMatchResponse))
}

func (s *Server) createMatch(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "engagementID", "engagement")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req createMatchRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	m, err := s.svc.Matches.Create(r.Context(), domain.NewMatchInput{
		EngagementID:     id,
		ListingID:        req.ListingID,
		Score:            req.Score,
		ScoreExplanation: req.ScoreExplanation,
		AutoMatched:      req.AutoMatched,
		Notes:            req.Notes,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newMatchResponse(m))
}

func (s *Server) requestShowings(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "engagementID", "engagement")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req showingBatchRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ids := make([]string, 0, len(req.MatchIDs))
	for _, mid := range req.MatchIDs {
		ids = append(ids, mid.String())
	}
	list, err := s.svc.Matches.RequestShowingsBatch(r.Context(), id, ids)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(list, newMatchResponse))
}

func (s *Server) getMatch(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "matchID", "match")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	m, err := s.svc.Matches.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newMatchResponse(m))
}

func (s *Server) updateMatchStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "matchID", "match")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req matchStatusRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	m, err := s.svc.Matches.UpdateStatus(r.Context(), id, domain.StatusChange{
		Status:      domain.MatchStatus(req.Status),
		Notes:       req.Notes,
		OfferAmount: req.OfferAmount,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newMatchResponse(m))
}

func (s *Server) updateScore(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "matchID", "match")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req scoreRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	m, err := s.svc.Matches.UpdateScore(r.Context(), id, *req.Score, req.ScoreExplanation)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newMatchResponse(m))
}
