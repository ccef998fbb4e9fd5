package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"homeward/internal/adapters/memory"
	"homeward/internal/policy"
	"homeward/internal/services/cases"
	"homeward/internal/services/engagements"
	"homeward/internal/services/evidence"
	"homeward/internal/services/matches"
	"homeward/internal/services/showings"
)

var now = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type harness struct {
	t      *testing.T
	router http.Handler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithUploadLimit(t, 0)
}

func newHarnessWithUploadLimit(t *testing.T, maxUpload int64) *harness {
	t.Helper()
	store := memory.NewStore()
	clock := memory.NewClock(now)
	ev := evidence.New(store, memory.NewStorage(clock), clock, zap.NewNop(), time.Minute)
	p, err := policy.Default()
	require.NoError(t, err)
	require.NoError(t, ev.SeedPolicy(context.Background(), p))

	srv := New(Services{
		Cases:       cases.New(store, clock, zap.NewNop()),
		Engagements: engagements.New(store, clock, zap.NewNop()),
		Evidence:    ev,
		Matches:     matches.New(store, clock, zap.NewNop()),
		Showings:    showings.New(store, clock, zap.NewNop(), time.Hour),
	}, zap.NewNop(), maxUpload)
	return &harness{t: t, router: srv.Routes()}
}

func (h *harness) do(method, path string, body any, out any) int {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(UserIDHeader, "coordinator-1")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	if out != nil {
		require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func (h *harness) upload(caseID, typeID, name string) int {
	h.t.Helper()
	return h.uploadContent(caseID, typeID, name, []byte("signed agreement"), nil)
}

func (h *harness) uploadContent(caseID, typeID, name string, content []byte, out any) int {
	h.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(h.t, err)
	_, err = fw.Write(content)
	require.NoError(h.t, err)
	require.NoError(h.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/cases/"+caseID+"/evidence/"+typeID, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	if out != nil {
		require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

// approvedCase submits and approves a case and returns it.
func (h *harness) approvedCase() caseResponse {
	h.t.Helper()
	var c caseResponse
	require.Equal(h.t, http.StatusCreated, h.do(http.MethodPost, "/cases", map[string]any{"primary_name": "Ana Silva"}, &c))
	require.Equal(h.t, http.StatusOK, h.do(http.MethodPost, "/cases/"+c.ID+"/decision", map[string]any{"decision": "Approved"}, &c))
	require.Len(h.t, c.Engagements, 1)
	return c
}

func (h *harness) typeIDs() map[string]string {
	h.t.Helper()
	var list []evidenceTypeResponse
	require.Equal(h.t, http.StatusOK, h.do(http.MethodGet, "/evidence-types", nil, &list))
	out := map[string]string{}
	for _, t := range list {
		out[t.Name] = t.ID
	}
	return out
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	var body map[string]string
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/healthz", nil, &body))
	assert.Equal(t, "ok", body["status"])
}

func TestCaseIntakeAndDecision(t *testing.T) {
	h := newHarness(t)
	c := h.approvedCase()
	assert.Equal(t, "Approved", c.Decision)
	assert.Equal(t, "coordinator-1", c.CreatedBy)
	assert.Equal(t, "coordinator-1", c.ReviewerID)
	assert.Equal(t, "AwaitingAgreements", c.Engagements[0].Stage)

	var e errorBody
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/cases/"+c.ID+"/decision", map[string]any{"decision": "Rejected"}, &e))
	assert.Equal(t, "INVALID_STATE", e.Code)

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/cases/"+uuid.NewString(), nil, &e))
	assert.Equal(t, "NOT_FOUND", e.Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/cases/not-a-uuid", nil, nil))

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/cases", map[string]any{"email": "ana@example.com"}, &e))
	assert.Equal(t, "VALIDATION", e.Code)
}

func TestStageChangeIsGatedByEvidence(t *testing.T) {
	h := newHarness(t)
	c := h.approvedCase()
	types := h.typeIDs()
	eng := "/engagements/" + c.Engagements[0].ID

	var e errorBody
	require.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, eng+"/stage", map[string]any{"to": "Searching"}, &e))
	assert.Equal(t, "GATE_BLOCKED", e.Code)
	assert.ElementsMatch(t, []string{types["broker_agreement"], types["buyer_agreement"]}, e.Missing)

	require.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, eng+"/stage", map[string]any{"to": "MovedIn"}, &e))
	assert.Equal(t, "ILLEGAL_TRANSITION", e.Code)
	assert.Equal(t, []string{"Searching"}, e.Allowed)

	for _, name := range []string{"broker_agreement", "buyer_agreement"} {
		require.Equal(t, http.StatusCreated, h.upload(c.ID, types[name], name+".pdf"))
	}

	var gate gateResponse
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, eng+"/requirements?to=Searching", nil, &gate))
	assert.True(t, gate.Allowed)
	assert.Len(t, gate.Checklist, 2)

	var got engagementResponse
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, eng+"/stage", map[string]any{"to": "Searching"}, &got))
	assert.Equal(t, "Searching", got.Stage)

	require.Equal(t, http.StatusOK, h.do(http.MethodPost, eng+"/stage", map[string]any{
		"to": "UnderContract", "listing_id": "listing-7", "price": "425000.00", "contract_date": "2026-03-02",
	}, &got))
	require.NotNil(t, got.CurrentContract)
	assert.Equal(t, "listing-7", got.CurrentContract.ListingID)

	var entries []ledgerEntryResponse
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/cases/"+c.ID+"/evidence", nil, &entries))
	assert.Len(t, entries, 2)

	var link map[string]string
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/cases/"+c.ID+"/evidence/"+types["broker_agreement"]+"/url", nil, &link))
	assert.Contains(t, link["url"], "memory://")
}

func TestUploadIsCapped(t *testing.T) {
	h := newHarnessWithUploadLimit(t, 4<<10)
	c := h.approvedCase()
	types := h.typeIDs()

	var e errorBody
	require.Equal(t, http.StatusRequestEntityTooLarge,
		h.uploadContent(c.ID, types["broker_agreement"], "agreement.pdf", bytes.Repeat([]byte("x"), 64<<10), &e))
	assert.Equal(t, "PAYLOAD_TOO_LARGE", e.Code)

	var entries []ledgerEntryResponse
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/cases/"+c.ID+"/evidence", nil, &entries))
	assert.Empty(t, entries)

	require.Equal(t, http.StatusCreated, h.upload(c.ID, types["broker_agreement"], "agreement.pdf"))
}

func TestMatchesAndShowings(t *testing.T) {
	h := newHarness(t)
	c := h.approvedCase()
	eng := "/engagements/" + c.Engagements[0].ID

	var a, b matchResponse
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, eng+"/matches", map[string]any{"listing_id": "a", "score": 40}, &a))
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, eng+"/matches", map[string]any{"listing_id": "b", "score": 90}, &b))

	var e errorBody
	assert.Equal(t, http.StatusConflict, h.do(http.MethodPost, eng+"/matches", map[string]any{"listing_id": "a", "score": 10}, &e))
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, eng+"/matches", map[string]any{"listing_id": "c", "score": 101}, &e))

	var list []matchResponse
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, eng+"/matches", nil, &list))
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)

	require.Equal(t, http.StatusOK, h.do(http.MethodPost, eng+"/showing-requests", map[string]any{"match_ids": []string{a.ID, b.ID}}, &list))
	for _, m := range list {
		assert.Equal(t, "ShowingRequested", m.Status)
	}

	var m matchResponse
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/matches/"+a.ID+"/status", map[string]any{"status": "OfferMade", "offer_amount": "410000"}, &m))
	require.NotNil(t, m.OfferAmount)
	assert.Equal(t, "410000", m.OfferAmount.String())
	require.Equal(t, http.StatusOK, h.do(http.MethodPut, "/matches/"+a.ID+"/score", map[string]any{"score": 77}, &m))
	assert.Equal(t, 77, m.Score)

	var sh showingResponse
	at := now.Add(48 * time.Hour)
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/matches/"+b.ID+"/showings", map[string]any{"at": at, "broker_id": "broker-3"}, &sh))
	assert.Equal(t, "Scheduled", sh.Status)
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/showings/"+sh.ID+"/reschedule", map[string]any{"at": at.Add(time.Hour)}, &sh))
	assert.True(t, sh.ScheduledAt.Equal(at.Add(time.Hour)))
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/showings/"+sh.ID+"/status", map[string]any{"status": "Cancelled", "notes": "seller withdrew"}, &sh))
	assert.Equal(t, "Cancelled", sh.Status)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/showings/"+sh.ID+"/status", map[string]any{"status": "Completed"}, &e))
	assert.Equal(t, "ILLEGAL_TRANSITION", e.Code)

	var shows []showingResponse
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/matches/"+b.ID+"/showings", nil, &shows))
	assert.Len(t, shows, 1)
}

func TestCatalogEndpoints(t *testing.T) {
	h := newHarness(t)

	var ty evidenceTypeResponse
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/evidence-types", map[string]any{"name": "photo_id", "display_name": "Photo ID"}, &ty))
	var e errorBody
	assert.Equal(t, http.StatusConflict, h.do(http.MethodPost, "/evidence-types", map[string]any{"name": "photo_id", "display_name": "Again"}, &e))

	var req requirementResponse
	require.Equal(t, http.StatusOK, h.do(http.MethodPut, "/evidence-requirements", map[string]any{
		"from": "Searching", "to": "Paused", "evidence_type_id": ty.ID, "required": true,
	}, &req))
	assert.True(t, req.Required)

	var reqs []requirementResponse
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/evidence-requirements", nil, &reqs))
	assert.Len(t, reqs, 4)

	path := "/evidence-requirements?from=Searching&to=Paused&evidence_type_id=" + ty.ID
	assert.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, path, nil, nil))
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodDelete, path, nil, &e))

	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/evidence-types/"+ty.ID+"/deactivate", nil, &ty))
	assert.False(t, ty.Active)
}
