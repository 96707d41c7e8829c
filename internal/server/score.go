package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

type batchScoreRequest struct {
	CompanyIDs []string `json:"company_ids"`
}

type setSeatLicenseRequest struct {
	LicensedSeats int `json:"licensed_seats"`
}

type setOnboardingStartRequest struct {
	StartedAt time.Time `json:"started_at"`
}

func (s *Server) GetRenewalHealth(c *gin.Context) {
	result, err := s.renewalSvc.Score(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) GetUsageTrend(c *gin.Context) {
	result, err := s.behavioralSvc.Analyze(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) GetOnboardingHealth(c *gin.Context) {
	var startedAt *time.Time
	if raw := strings.TrimSpace(c.Query("started_at")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			AbortWithError(c, newValidationError("started_at", "invalid_timestamp", "started_at must be RFC3339"))
			return
		}
		startedAt = &parsed
	}

	result, err := s.onboardingSvc.Score(c.Request.Context(), strings.TrimSpace(c.Param("id")), startedAt)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) GetExpansionPrediction(c *gin.Context) {
	result, err := s.expansionSvc.Predict(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) BatchRenewalHealth(c *gin.Context) {
	req, ok := bindBatchScoreRequest(c)
	if !ok {
		return
	}
	results, err := s.renewalSvc.BatchScore(c.Request.Context(), req.CompanyIDs)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (s *Server) BatchUsageTrend(c *gin.Context) {
	req, ok := bindBatchScoreRequest(c)
	if !ok {
		return
	}
	results, err := s.behavioralSvc.BatchAnalyze(c.Request.Context(), req.CompanyIDs)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (s *Server) BatchOnboardingHealth(c *gin.Context) {
	req, ok := bindBatchScoreRequest(c)
	if !ok {
		return
	}
	results, err := s.onboardingSvc.BatchScore(c.Request.Context(), req.CompanyIDs)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (s *Server) BatchExpansionPrediction(c *gin.Context) {
	req, ok := bindBatchScoreRequest(c)
	if !ok {
		return
	}
	results, err := s.expansionSvc.BatchPredict(c.Request.Context(), req.CompanyIDs)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (s *Server) SetSeatLicense(c *gin.Context) {
	var req setSeatLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_json", err.Error()))
		return
	}

	companyID := strings.TrimSpace(c.Param("id"))
	if err := s.expansionSvc.SetSeatLicense(c.Request.Context(), companyID, req.LicensedSeats); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"company_id": companyID, "licensed_seats": req.LicensedSeats})
}

func (s *Server) SetOnboardingStart(c *gin.Context) {
	var req setOnboardingStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_json", err.Error()))
		return
	}
	if req.StartedAt.IsZero() {
		AbortWithError(c, newValidationError("started_at", "required", "started_at is required"))
		return
	}

	companyID := strings.TrimSpace(c.Param("id"))
	if err := s.onboardingSvc.SetStartDate(c.Request.Context(), companyID, req.StartedAt); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"company_id": companyID, "started_at": req.StartedAt.UTC()})
}

func bindBatchScoreRequest(c *gin.Context) (batchScoreRequest, bool) {
	var req batchScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_json", err.Error()))
		return req, false
	}
	if len(req.CompanyIDs) == 0 {
		AbortWithError(c, newValidationError("company_ids", "required", "company_ids must not be empty"))
		return req, false
	}
	return req, true
}
