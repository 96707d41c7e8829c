package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	eventdomain "github.com/pulselens/pulselens/internal/event/domain"
)

func (s *Server) RecordEvent(c *gin.Context) {
	var req eventdomain.RecordEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_json", err.Error()))
		return
	}

	event, err := s.eventSvc.Record(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, event)
}

func (s *Server) RecordEventBatch(c *gin.Context) {
	var reqs []eventdomain.RecordEventRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_json", err.Error()))
		return
	}

	resp, err := s.eventSvc.RecordBatch(c.Request.Context(), reqs)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) ListEvents(c *gin.Context) {
	var req eventdomain.ListEventsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_query", err.Error()))
		return
	}

	resp, err := s.eventSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) ListCompanies(c *gin.Context) {
	companies, err := s.eventSvc.Companies(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"company_ids": companies})
}

func (s *Server) ResetCompanyEvents(c *gin.Context) {
	companyID := strings.TrimSpace(c.Param("id"))
	if err := s.eventSvc.Reset(c.Request.Context(), companyID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted", "company_id": companyID})
}
