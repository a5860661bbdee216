package api

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/genepilepsy-guide/internal/domain"
	"github.com/genepilepsy-guide/internal/middleware"
	"github.com/genepilepsy-guide/internal/service"
)

// LookupVariantRequest is the body of POST /api/v1/variants/lookup.
type LookupVariantRequest struct {
	Gene    string `json:"gene"`
	Variant string `json:"variant"`
}

// LookupResponse describes a stored lookup.
type LookupResponse struct {
	LookupID  string                `json:"lookup_id"`
	Gene      string                `json:"gene"`
	Variant   string                `json:"variant"`
	Reports   []domain.DoctorReport `json:"reports"`
	Syndromes []string              `json:"syndromes"`
	Raw       any                   `json:"raw"`
}

// SyndromeRequest is the body of POST /api/v1/lookups/:id/treatment.
type SyndromeRequest struct {
	Syndrome string `json:"syndrome"`
}

// RecommendTreatmentRequest is the body of POST /api/v1/treatments/recommend.
type RecommendTreatmentRequest struct {
	Syndrome       string `json:"syndrome"`
	PatientContext string `json:"patient_context"`
}

// TreatmentResponse carries one syndrome's treatment markdown.
type TreatmentResponse struct {
	Syndrome       string `json:"syndrome"`
	PatientContext string `json:"patient_context"`
	Treatment      string `json:"treatment"`
}

// DescriptionRequest is the body of the parse and workflow endpoints.
type DescriptionRequest struct {
	Description string `json:"description"`
}

func (s *Server) respondError(c *gin.Context, status int, code, message string, err error) {
	details := ""
	if err != nil {
		details = err.Error()
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error": domain.NewServiceError(code, message, details, c.GetString(middleware.CorrelationIDKey)),
	})
}

func (s *Server) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrInvalidInput, "Request body must be valid JSON", err)
		return false
	}
	return true
}

func (s *Server) requireField(c *gin.Context, field, value string) bool {
	if strings.TrimSpace(value) == "" {
		s.respondError(c, http.StatusBadRequest, domain.ErrInvalidInput, field+" is required",
			domain.NewValidationError(field, "must not be blank", value))
		return false
	}
	return true
}

func (s *Server) handleLookupVariant(c *gin.Context) {
	var req LookupVariantRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if !s.requireField(c, "gene", req.Gene) || !s.requireField(c, "variant", req.Variant) {
		return
	}
	gene, variant := strings.TrimSpace(req.Gene), strings.TrimSpace(req.Variant)

	res, err := s.workflow.LookupVariant(c.Request.Context(), gene, variant)
	if err != nil {
		s.respondError(c, http.StatusBadGateway, domain.ErrLanguageModel, "Failed to generate variant reports", err)
		return
	}

	lookup := domain.Lookup{
		Gene:      gene,
		Variant:   variant,
		Reports:   res.Reports,
		Syndromes: res.Syndromes,
		Raw:       res.Records,
	}
	id, err := s.sessions.Save(c.Request.Context(), lookup)
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, domain.ErrInternalServer, "Failed to store lookup", err)
		return
	}
	lookup.ID = id

	c.JSON(http.StatusOK, toLookupResponse(lookup))
}

func (s *Server) loadLookup(c *gin.Context) (domain.Lookup, bool) {
	lookup, err := s.sessions.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, domain.ErrSessionNotFound) {
		s.respondError(c, http.StatusNotFound, domain.ErrNotFound, "Lookup not found or expired", nil)
		return domain.Lookup{}, false
	}
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, domain.ErrInternalServer, "Failed to load lookup", err)
		return domain.Lookup{}, false
	}
	return lookup, true
}

func (s *Server) handleGetLookup(c *gin.Context) {
	lookup, ok := s.loadLookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toLookupResponse(lookup))
}

func (s *Server) handleDeleteLookup(c *gin.Context) {
	if err := s.sessions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, http.StatusInternalServerError, domain.ErrInternalServer, "Failed to delete lookup", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleLookupTreatment(c *gin.Context) {
	lookup, ok := s.loadLookup(c)
	if !ok {
		return
	}
	var req SyndromeRequest
	if !s.bindJSON(c, &req) || !s.requireField(c, "syndrome", req.Syndrome) {
		return
	}
	syndrome := strings.TrimSpace(req.Syndrome)
	if !lookup.HasSyndrome(syndrome) {
		s.respondError(c, http.StatusBadRequest, domain.ErrInvalidInput, "Syndrome was not resolved by this lookup",
			domain.NewValidationError("syndrome", "not among the lookup's syndromes", syndrome))
		return
	}

	patientContext := service.PatientContext(lookup.Gene, lookup.Variant)
	c.JSON(http.StatusOK, TreatmentResponse{
		Syndrome:       syndrome,
		PatientContext: patientContext,
		Treatment:      s.workflow.RecommendTreatment(c.Request.Context(), syndrome, patientContext),
	})
}

func (s *Server) handleRecommendTreatment(c *gin.Context) {
	var req RecommendTreatmentRequest
	if !s.bindJSON(c, &req) || !s.requireField(c, "syndrome", req.Syndrome) {
		return
	}
	syndrome := strings.TrimSpace(req.Syndrome)
	c.JSON(http.StatusOK, TreatmentResponse{
		Syndrome:       syndrome,
		PatientContext: req.PatientContext,
		Treatment:      s.workflow.RecommendTreatment(c.Request.Context(), syndrome, req.PatientContext),
	})
}

func (s *Server) handleParse(c *gin.Context) {
	var req DescriptionRequest
	if !s.bindJSON(c, &req) || !s.requireField(c, "description", req.Description) {
		return
	}
	c.JSON(http.StatusOK, s.workflow.ParseDescription(c.Request.Context(), req.Description))
}

func (s *Server) handleWorkflow(c *gin.Context) {
	var req DescriptionRequest
	if !s.bindJSON(c, &req) || !s.requireField(c, "description", req.Description) {
		return
	}
	state, err := s.workflow.Run(c.Request.Context(), req.Description)
	if err != nil {
		s.respondError(c, http.StatusBadGateway, domain.ErrLanguageModel, "Workflow run failed", err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func toLookupResponse(lookup domain.Lookup) LookupResponse {
	reports := lookup.Reports
	if reports == nil {
		reports = []domain.DoctorReport{}
	}
	// Syndromes are offered for selection in sorted order.
	syndromes := slices.Clone(lookup.Syndromes)
	if syndromes == nil {
		syndromes = []string{}
	}
	slices.Sort(syndromes)
	var raw any = lookup.Raw
	if lookup.Raw == nil {
		raw = map[string]any{}
	}
	return LookupResponse{
		LookupID:  lookup.ID,
		Gene:      lookup.Gene,
		Variant:   lookup.Variant,
		Reports:   reports,
		Syndromes: syndromes,
		Raw:       raw,
	}
}
