package httpadapter

import (
	"net/http"

	"homeward/internal/domain"
)

func (s *Server) listEvidenceTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.svc.Evidence.ListTypes(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(types, newEvidenceTypeResponse))
}

func (s *Server) createEvidenceType(w http.ResponseWriter, r *http.Request) {
	var req evidenceTypeRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.svc.Evidence.CreateType(r.Context(), req.Name, req.DisplayName)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newEvidenceTypeResponse(t))
}

func (s *Server) deactivateEvidenceType(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "typeID", "evidence type")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.svc.Evidence.DeactivateType(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newEvidenceTypeResponse(t))
}

func (s *Server) listRequirements(w http.ResponseWriter, r *http.Request) {
	reqs, err := s.svc.Evidence.ListRequirements(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(reqs, newRequirementResponse))
}

func (s *Server) setRequirement(w http.ResponseWriter, r *http.Request) {
	var req requirementRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.svc.Evidence.SetRequirement(r.Context(), domain.Requirement{
		From:           domain.Stage(req.From),
		To:             domain.Stage(req.To),
		EvidenceTypeID: req.EvidenceTypeID,
		Required:       req.Required,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newRequirementResponse(out))
}

func (s *Server) removeRequirement(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to, typeID := q.Get("from"), q.Get("to"), q.Get("evidence_type_id")
	if from == "" || to == "" || typeID == "" {
		s.writeError(w, r, domain.Validation("from, to and evidence_type_id are required"))
		return
	}
	if err := s.svc.Evidence.RemoveRequirement(r.Context(), domain.Stage(from), domain.Stage(to), typeID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
