package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/MarcoPoloResearchLab/jobtracker/internal/applications"
	"github.com/gin-gonic/gin"
)

type applicationRequestPayload struct {
	CompanyName string `json:"companyName"`
	JobTitle    string `json:"jobTitle"`
	EmailUsed   string `json:"emailUsed"`
	Link        string `json:"link"`
	Status      string `json:"status"`
	Date        string `json:"date"`
}

type statusRequestPayload struct {
	Status string `json:"status"`
	Date   string `json:"date"`
}

func (h *httpHandler) handleListApplications(c *gin.Context) {
	page := 1
	if raw := strings.TrimSpace(c.Query("page")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondInvalidRequest(c, "page must be a positive integer")
			return
		}
		page = parsed
	}
	result, err := h.applications.List(c.Request.Context(), accountID(c), applications.ListQuery{
		Sort:  c.Query("sort"),
		Order: c.Query("order"),
		Page:  page,
		Query: c.Query("query"),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	if h.respondIfSuperseded(c) {
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *httpHandler) handleGetApplication(c *gin.Context) {
	application, err := h.applications.Get(c.Request.Context(), accountID(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, application)
}

func (h *httpHandler) handleCreateApplication(c *gin.Context) {
	var request applicationRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidRequest(c, "malformed request body")
		return
	}
	application, err := h.applications.Create(c.Request.Context(), accountID(c), applications.CreateInput{
		CompanyName: request.CompanyName,
		JobTitle:    request.JobTitle,
		EmailUsed:   request.EmailUsed,
		Link:        request.Link,
		Status:      request.Status,
		Date:        request.Date,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, application)
}

func (h *httpHandler) handleUpdateApplication(c *gin.Context) {
	var request applicationRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidRequest(c, "malformed request body")
		return
	}
	application, err := h.applications.UpdateDetails(c.Request.Context(), accountID(c), c.Param("id"), applications.DetailsInput{
		CompanyName: request.CompanyName,
		JobTitle:    request.JobTitle,
		EmailUsed:   request.EmailUsed,
		Link:        request.Link,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, application)
}

func (h *httpHandler) handleDeleteApplication(c *gin.Context) {
	application, err := h.applications.Delete(c.Request.Context(), accountID(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, application)
}

func (h *httpHandler) handleDeleteAllApplications(c *gin.Context) {
	var request passwordConfirmationPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidRequest(c, "malformed request body")
		return
	}
	deleted, err := h.applications.DeleteAll(c.Request.Context(), accountID(c), request.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, deleted)
}

func (h *httpHandler) handleAppendStatus(c *gin.Context) {
	var request statusRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidRequest(c, "malformed request body")
		return
	}
	application, err := h.applications.AppendStatus(c.Request.Context(), accountID(c), c.Param("id"), applications.StatusInput{
		Status: request.Status,
		Date:   request.Date,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, application)
}

func (h *httpHandler) handleEditStatus(c *gin.Context) {
	var request statusRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidRequest(c, "malformed request body")
		return
	}
	application, err := h.applications.EditStatus(c.Request.Context(), accountID(c), c.Param("id"), c.Param("statusId"), applications.StatusInput{
		Status: request.Status,
		Date:   request.Date,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, application)
}

func (h *httpHandler) handleDeleteStatus(c *gin.Context) {
	application, err := h.applications.DeleteStatus(c.Request.Context(), accountID(c), c.Param("id"), c.Param("statusId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, application)
}

func (h *httpHandler) handleStatistics(c *gin.Context) {
	report, err := h.applications.Statistics(c.Request.Context(), accountID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if h.respondIfSuperseded(c) {
		return
	}
	c.JSON(http.StatusOK, report)
}

// respondIfSuperseded answers 409 instead of returning data a newer request replaced.
func (h *httpHandler) respondIfSuperseded(c *gin.Context) bool {
	if !Superseded(c.Request.Context()) {
		return false
	}
	c.JSON(http.StatusConflict, errorResponse{Error: errorCodeSuperseded, Message: "a newer request for this view replaced this one"})
	return true
}
