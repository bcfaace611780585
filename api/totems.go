package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/habedi/totempark/account"
	"github.com/habedi/totempark/db"
	"github.com/habedi/totempark/pkg/apperr"
	"github.com/habedi/totempark/pkg/validation"
)

type totemRequest struct {
	ExternalPosID string  `json:"external_pos_id"`
	Location      *string `json:"location"`
	IsActive      *bool   `json:"is_active"`
	OwnerID       *uint   `json:"owner_id"`
}

// handleCreateTotem registers a totem for the caller. owner_id, when sent,
// must be the caller's own id.
func (s *Server) handleCreateTotem(c *gin.Context) {
	var req totemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, apperr.New(apperr.InvalidRequest, "Invalid request body", err))
		return
	}
	caller := currentSeller(c)
	if req.OwnerID != nil && *req.OwnerID != caller.ID {
		abortWithError(c, apperr.New(apperr.Forbidden, "Cannot create totem for another seller", nil))
		return
	}
	req.ExternalPosID = strings.TrimSpace(req.ExternalPosID)
	if err := validation.ValidateExternalPosID(req.ExternalPosID); err != nil {
		abortWithError(c, apperr.New(apperr.InvalidRequest, err.Error(), err))
		return
	}

	totem := &db.Totem{
		ExternalPosID: req.ExternalPosID,
		Location:      req.Location,
		IsActive:      req.IsActive == nil || *req.IsActive,
		OwnerID:       &caller.ID,
	}
	if err := s.Totems.Create(c.Request.Context(), totem); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			abortWithError(c, apperr.New(apperr.Conflict, "Totem with this external_pos_id already exists", err))
			return
		}
		abortWithError(c, account.Classify("Could not create totem", err))
		return
	}
	c.JSON(http.StatusCreated, totem)
}

func (s *Server) handleListTotems(c *gin.Context) {
	skip, limit, ok := page(c)
	if !ok {
		return
	}
	var ownerID *uint
	if raw := c.Query("owner_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			abortWithError(c, apperr.New(apperr.InvalidRequest, "owner_id must be an integer", err))
			return
		}
		owner := uint(id)
		ownerID = &owner
	}
	totems, err := s.Totems.List(c.Request.Context(), skip, limit, ownerID)
	if err != nil {
		abortWithError(c, account.Classify("Could not list totems", err))
		return
	}
	if totems == nil {
		totems = []db.Totem{}
	}
	c.JSON(http.StatusOK, totems)
}

func (s *Server) handleGetTotem(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	totem, err := s.Totems.GetByID(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, account.Classify("Totem not found", err))
		return
	}
	c.JSON(http.StatusOK, totem)
}

func (s *Server) handleUpdateTotem(c *gin.Context) {
	totem, ok := s.ownedTotem(c, "update")
	if !ok {
		return
	}
	var update db.TotemUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		abortWithError(c, apperr.New(apperr.InvalidRequest, "Invalid request body", err))
		return
	}
	if update.ExternalPosID != nil {
		if err := validation.ValidateExternalPosID(*update.ExternalPosID); err != nil {
			abortWithError(c, apperr.New(apperr.InvalidRequest, err.Error(), err))
			return
		}
	}
	if update.OwnerID != nil && *update.OwnerID != currentSeller(c).ID && !currentSeller(c).IsAdmin {
		abortWithError(c, apperr.New(apperr.Forbidden, "Only admins can transfer a totem", nil))
		return
	}

	update.Apply(totem)
	if err := s.Totems.Update(c.Request.Context(), totem); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			abortWithError(c, apperr.New(apperr.Conflict, "Totem with this external_pos_id already exists", err))
			return
		}
		abortWithError(c, account.Classify("Could not update totem", err))
		return
	}
	c.JSON(http.StatusOK, totem)
}

func (s *Server) handleDeleteTotem(c *gin.Context) {
	totem, ok := s.ownedTotem(c, "delete")
	if !ok {
		return
	}
	if err := s.Totems.Delete(c.Request.Context(), totem.ID); err != nil {
		abortWithError(c, account.Classify("Could not delete totem", err))
		return
	}
	c.JSON(http.StatusOK, totem)
}

// ownedTotem loads the :id totem and checks the caller owns it.
func (s *Server) ownedTotem(c *gin.Context, action string) (*db.Totem, bool) {
	id, ok := idParam(c)
	if !ok {
		return nil, false
	}
	totem, err := s.Totems.GetByID(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, account.Classify("Totem not found", err))
		return nil, false
	}
	if totem.OwnerID == nil || *totem.OwnerID != currentSeller(c).ID {
		abortWithError(c, apperr.New(apperr.Forbidden, "Not authorized to "+action+" this totem", nil))
		return nil, false
	}
	return totem, true
}
