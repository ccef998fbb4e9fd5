// Package httpadapter exposes the command surface as JSON over HTTP.
package httpadapter

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"homeward/internal/ports"
)

// Services groups the command surfaces the router dispatches to.
type Services struct {
	Cases       ports.Cases
	Engagements ports.Engagements
	Evidence    ports.Evidence
	Matches     ports.Matches
	Showings    ports.Showings
}

// DefaultMaxUploadBytes caps an evidence upload request when New is given
// no positive limit.
const DefaultMaxUploadBytes int64 = 32 << 20

type Server struct {
	svc       Services
	log       *zap.Logger
	validate  *validator.Validate
	maxUpload int64
}

// New builds the server. maxUpload caps the size of an evidence upload
// request body in bytes.
func New(svc Services, log *zap.Logger, maxUpload int64) *Server {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	return &Server{
		svc:       svc,
		log:       log,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		maxUpload: maxUpload,
	}
}

// Routes returns the router with middleware and every handler mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(actor)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/cases", func(r chi.Router) {
		r.Post("/", s.submitCase)
		r.Route("/{caseID}", func(r chi.Router) {
			r.Get("/", s.getCase)
			r.Post("/decision", s.recordDecision)
			r.Post("/engagements", s.startEngagement)
			r.Get("/evidence", s.listCaseEvidence)
			r.Post("/evidence/{typeID}", s.uploadEvidence)
			r.Get("/evidence/{typeID}/url", s.evidenceURL)
		})
	})

	r.Route("/engagements/{engagementID}", func(r chi.Router) {
		r.Get("/", s.getEngagement)
		r.Post("/stage", s.changeStage)
		r.Put("/preferences", s.updatePreferences)
		r.Post("/notes", s.appendNote)
		r.Get("/requirements", s.evaluateRequirements)
		r.Get("/matches", s.listMatches)
		r.Post("/matches", s.createMatch)
		r.Post("/showing-requests", s.requestShowings)
	})

	r.Route("/matches/{matchID}", func(r chi.Router) {
		r.Get("/", s.getMatch)
		r.Post("/status", s.updateMatchStatus)
		r.Put("/score", s.updateScore)
		r.Get("/showings", s.listShowings)
		r.Post("/showings", s.scheduleShowing)
	})

	r.Route("/showings/{showingID}", func(r chi.Router) {
		r.Get("/", s.getShowing)
		r.Post("/reschedule", s.rescheduleShowing)
		r.Post("/status", s.updateShowingStatus)
	})

	r.Get("/evidence-types", s.listEvidenceTypes)
	r.Post("/evidence-types", s.createEvidenceType)
	r.Post("/evidence-types/{typeID}/deactivate", s.deactivateEvidenceType)
	r.Get("/evidence-requirements", s.listRequirements)
	r.Put("/evidence-requirements", s.setRequirement)
	r.Delete("/evidence-requirements", s.removeRequirement)

	return r
}
