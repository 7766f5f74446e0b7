package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/Domenick1991/travelquotes/internal/domain"
	"github.com/Domenick1991/travelquotes/internal/service/offers"
	"github.com/Domenick1991/travelquotes/internal/service/quotes"
	"github.com/gin-gonic/gin"
)

// ResultReader serves the last cached search results of a quote.
type ResultReader interface {
	CachedResults(ctx context.Context, quoteID string) ([]offers.SearchResult, bool, error)
}

type QuoteHandler struct {
	service quotes.QuoteUseCase
	results ResultReader
}

type updateStateRequest struct {
	State string `json:"state" binding:"required"`
}

type reassignRequest struct {
	UserID string `json:"userId" binding:"required"`
}

type flightResponse struct {
	TripType            string   `json:"tripType,omitempty"`
	OriginIataCode      string   `json:"originIataCode,omitempty"`
	DestinationIataCode string   `json:"destinationIataCode,omitempty"`
	DepartureDate       string   `json:"departureDate,omitempty"`
	ReturnDate          string   `json:"returnDate,omitempty"`
	DepartEarliestTime  string   `json:"departEarliestTime,omitempty"`
	DepartLatestTime    string   `json:"departLatestTime,omitempty"`
	ReturnEarliestTime  string   `json:"returnEarliestTime,omitempty"`
	ReturnLatestTime    string   `json:"returnLatestTime,omitempty"`
	CabinClass          string   `json:"cabinClass,omitempty"`
	MaxCabinClass       string   `json:"maxCabinClass,omitempty"`
	SelectedAirlines    []string `json:"selectedAirlines,omitempty"`
	Alliances           []string `json:"alliances,omitempty"`
}

type quoteResponse struct {
	ID                 string         `json:"id"`
	Type               string         `json:"type"`
	State              string         `json:"state"`
	OrganizationID     string         `json:"organizationId"`
	CreatedBy          string         `json:"createdBy"`
	AssignedServicerID string         `json:"assignedServicerId,omitempty"`
	PolicyID           string         `json:"policyId,omitempty"`
	PolicyKind         string         `json:"policyKind,omitempty"`
	Currency           string         `json:"currency,omitempty"`
	Approvals          []bool         `json:"approvals"`
	PendingApproval    int            `json:"pendingApproval"`
	Note               string         `json:"note,omitempty"`
	TravelerIDs        []string       `json:"travelerIds"`
	Flight             flightResponse `json:"flight"`
	CreatedAt          string         `json:"createdAt"`
	UpdatedAt          string         `json:"updatedAt"`
}

func NewQuoteHandler(service quotes.QuoteUseCase, results ResultReader) *QuoteHandler {
	return &QuoteHandler{service: service, results: results}
}

func (h *QuoteHandler) Register(router *gin.RouterGroup) {
	router.POST("/", h.create)
	router.POST("/expire", h.expire)
	router.GET("/:id", h.get)
	router.PATCH("/:id/flight", h.patchFlight)
	router.PUT("/:id/state", h.updateState)
	router.PUT("/:id/created-by", h.reassign)
	router.POST("/:id/approvals/:level", h.approve)
	router.POST("/:id/reject", h.reject)
	router.POST("/:id/cancel", h.cancel)
	router.GET("/:id/offers", h.offers)
}

func (h *QuoteHandler) create(c *gin.Context) {
	var req quotes.CreateQuoteInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	res, err := h.service.CreateFromDto(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	if !res.OK {
		c.JSON(http.StatusBadRequest, res)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *QuoteHandler) get(c *gin.Context) {
	q, found, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !found {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, newQuoteResponse(q))
}

func (h *QuoteHandler) patchFlight(c *gin.Context) {
	var patch domain.FlightSearchPayload
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	patch.ID = c.Param("id")
	if err := h.service.IngestFlightUIResultPatch(c.Request.Context(), patch); err != nil {
		writeError(c, err)
		return
	}
	h.get(c)
}

func (h *QuoteHandler) updateState(c *gin.Context) {
	var req updateStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	state, ok := domain.ParseQuoteState(req.State)
	if !ok {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "unknown state " + req.State})
		return
	}
	h.respondUpdated(c, func(ctx context.Context, id string) (bool, error) {
		return h.service.UpdateState(ctx, id, state)
	})
}

func (h *QuoteHandler) reassign(c *gin.Context) {
	var req reassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	h.respondUpdated(c, func(ctx context.Context, id string) (bool, error) {
		return h.service.ReassignCreatedBy(ctx, id, req.UserID)
	})
}

func (h *QuoteHandler) approve(c *gin.Context) {
	level, err := strconv.Atoi(c.Param("level"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid level"})
		return
	}
	h.respondUpdated(c, func(ctx context.Context, id string) (bool, error) {
		return h.service.RecordApproval(ctx, id, level)
	})
}

func (h *QuoteHandler) reject(c *gin.Context) {
	h.respondUpdated(c, h.service.Reject)
}

func (h *QuoteHandler) cancel(c *gin.Context) {
	h.respondUpdated(c, h.service.Cancel)
}

func (h *QuoteHandler) expire(c *gin.Context) {
	n, err := h.service.ExpireOldQuotes(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expired": n})
}

func (h *QuoteHandler) offers(c *gin.Context) {
	results, ok, err := h.results.CachedResults(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, results)
}

// respondUpdated runs a point update and answers with the fresh quote, or 404.
func (h *QuoteHandler) respondUpdated(c *gin.Context, update func(ctx context.Context, id string) (bool, error)) {
	ok, err := update(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		notFound(c)
		return
	}
	h.get(c)
}

func newQuoteResponse(q *domain.TravelQuote) quoteResponse {
	f := q.Flight
	return quoteResponse{
		ID:                 q.ID,
		Type:               string(q.Type),
		State:              q.State.String(),
		OrganizationID:     q.OrganizationID,
		CreatedBy:          q.CreatedBy,
		AssignedServicerID: q.AssignedServicerID,
		PolicyID:           q.Policy.ID,
		PolicyKind:         string(q.Policy.Kind),
		Currency:           q.Currency,
		Approvals:          q.Approvals[:],
		PendingApproval:    q.LowestPendingApproval(),
		Note:               q.Note,
		TravelerIDs:        append([]string{}, q.TravelerIDs...),
		Flight: flightResponse{
			TripType:            string(f.TripType),
			OriginIataCode:      f.OriginIataCode,
			DestinationIataCode: f.DestinationIataCode,
			DepartureDate:       f.DepartureDate,
			ReturnDate:          f.ReturnDate,
			DepartEarliestTime:  f.DepartEarliestTime,
			DepartLatestTime:    f.DepartLatestTime,
			ReturnEarliestTime:  f.ReturnEarliestTime,
			ReturnLatestTime:    f.ReturnLatestTime,
			CabinClass:          string(f.CabinClass),
			MaxCabinClass:       string(f.MaxCabinClass),
			SelectedAirlines:    f.SelectedAirlines,
			Alliances:           f.Alliances,
		},
		CreatedAt: q.CreatedAt.Format(time.RFC3339),
		UpdatedAt: q.UpdatedAt.Format(time.RFC3339),
	}
}
