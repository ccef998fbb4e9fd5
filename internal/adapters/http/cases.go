package httpadapter

import (
	"errors"
	"fmt"
	"net/http"

	"homeward/internal/domain"
	"homeward/internal/ports"
)

func (s *Server) submitCase(w http.ResponseWriter, r *http.Request) {
	var req submitCaseRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	v, err := s.svc.Cases.Submit(r.Context(), req.applicant())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCaseResponse(v))
}

func (s *Server) getCase(w http.ResponseWriter, r *http.Request) {
	caseID, err := pathID(r, "caseID", "case")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	v, err := s.svc.Cases.Get(r.Context(), caseID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCaseResponse(v))
}

func (s *Server) recordDecision(w http.ResponseWriter, r *http.Request) {
	caseID, err := pathID(r, "caseID", "case")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req decisionRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	v, err := s.svc.Cases.RecordBoardDecision(r.Context(), caseID, domain.BoardDecision{
		Decision:   domain.Decision(req.Decision),
		Notes:      req.Notes,
		ReviewerID: req.ReviewerID,
		ReviewDate: dateTime(req.ReviewDate),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCaseResponse(v))
}

func (s *Server) startEngagement(w http.ResponseWriter, r *http.Request) {
	caseID, err := pathID(r, "caseID", "case")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	e, err := s.svc.Cases.StartNewEngagement(r.Context(), caseID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newEngagementResponse(e))
}

// multipart bodies beyond this spill to temporary files
const maxUploadMemory = 32 << 20

func (s *Server) uploadEvidence(w http.ResponseWriter, r *http.Request) {
	caseID, err := pathID(r, "caseID", "case")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	typeID, err := pathID(r, "typeID", "evidence type")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{
				Code:    "PAYLOAD_TOO_LARGE",
				Message: fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit),
			})
			return
		}
		s.writeError(w, r, domain.Validation("expected a multipart form with a file field: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, domain.Validation("file field is required"))
		return
	}
	defer file.Close()

	entry, err := s.svc.Evidence.RecordUpload(r.Context(), ports.UploadInput{
		CaseID:         caseID,
		EvidenceTypeID: typeID,
		FileName:       header.Filename,
		ContentType:    header.Header.Get("Content-Type"),
		Size:           header.Size,
		Body:           file,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newLedgerEntryResponse(entry))
}

func (s *Server) listCaseEvidence(w http.ResponseWriter, r *http.Request) {
	caseID, err := pathID(r, "caseID", "case")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	entries, err := s.svc.Evidence.ListCaseEvidence(r.Context(), caseID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(entries, newLedgerEntryResponse))
}

func (s *Server) evidenceURL(w http.ResponseWriter, r *http.Request) {
	caseID, err := pathID(r, "caseID", "case")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	typeID, err := pathID(r, "typeID", "evidence type")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.svc.Evidence.AccessURL(r.Context(), caseID, typeID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": u})
}
