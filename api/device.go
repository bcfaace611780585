package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/habedi/totempark/account"
	"github.com/habedi/totempark/db"
	"github.com/habedi/totempark/pkg/apperr"
	"github.com/habedi/totempark/pkg/validation"
)

func (s *Server) handleIssueToken(c *gin.Context) {
	token, err := s.Issuer.IssueToken(c.Request.Context(), c.Param("external_pos_id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token})
}

type paymentRequest struct {
	PaymentID   string     `json:"payment_id" binding:"required"`
	AmountCents int64      `json:"amount_cents" binding:"gte=0"`
	Currency    string     `json:"currency" binding:"required,len=3"`
	Status      string     `json:"status" binding:"required"`
	OccurredAt  *time.Time `json:"occurred_at"`
}

type parkingEventRequest struct {
	Plate      string     `json:"plate"`
	Kind       string     `json:"kind" binding:"required"`
	OccurredAt *time.Time `json:"occurred_at"`
}

// handlePayment stores a payment confirmation reported by a totem.
func (s *Server) handlePayment(c *gin.Context) {
	totem, ok := s.deviceTotem(c)
	if !ok {
		return
	}
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, apperr.New(apperr.InvalidRequest, "Invalid payment payload: "+err.Error(), err))
		return
	}

	event := &db.PaymentEvent{
		TotemID:       totem.ID,
		ExternalPosID: totem.ExternalPosID,
		PaymentID:     req.PaymentID,
		AmountCents:   req.AmountCents,
		Currency:      strings.ToUpper(req.Currency),
		Status:        req.Status,
		OccurredAt:    occurredAt(req.OccurredAt),
	}
	if err := s.Events.AddPayment(c.Request.Context(), event); err != nil {
		abortWithError(c, account.Classify("Could not record payment", err))
		return
	}
	c.JSON(http.StatusCreated, event)
}

// handleParkingEvents appends a batch of entries and exits. Batches are not
// deduplicated.
func (s *Server) handleParkingEvents(c *gin.Context) {
	totem, ok := s.deviceTotem(c)
	if !ok {
		return
	}
	var req []parkingEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, apperr.New(apperr.InvalidRequest, "Invalid parking events payload: "+err.Error(), err))
		return
	}

	events := make([]db.ParkingEvent, 0, len(req))
	for _, r := range req {
		if err := validation.ValidateParkingKind(r.Kind); err != nil {
			abortWithError(c, apperr.New(apperr.InvalidRequest, err.Error(), err))
			return
		}
		events = append(events, db.ParkingEvent{
			TotemID:       totem.ID,
			ExternalPosID: totem.ExternalPosID,
			Plate:         strings.ToUpper(strings.TrimSpace(r.Plate)),
			Kind:          r.Kind,
			OccurredAt:    occurredAt(r.OccurredAt),
		})
	}
	if err := s.Events.AddParkingEvents(c.Request.Context(), events); err != nil {
		abortWithError(c, account.Classify("Could not record parking events", err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"received": len(events)})
}

func (s *Server) deviceTotem(c *gin.Context) (*db.Totem, bool) {
	totem, err := s.Totems.GetByExternalID(c.Request.Context(), c.Param("external_pos_id"))
	if err != nil {
		abortWithError(c, account.Classify("Totem not found", err))
		return nil, false
	}
	return totem, true
}

func occurredAt(t *time.Time) time.Time {
	if t == nil || t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
