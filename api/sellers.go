package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/habedi/totempark/account"
	"github.com/habedi/totempark/db"
	"github.com/habedi/totempark/pkg/apperr"
	"github.com/habedi/totempark/pkg/validation"
	"github.com/rs/zerolog/log"
)

// sellerView is the public shape of a seller. Credential fields are never
// serialised; only whether they are present.
type sellerView struct {
	*db.Seller
	Linked bool `json:"mp_linked"`
}

func viewOf(s *db.Seller) sellerView {
	if s.Totems == nil {
		s.Totems = []db.Totem{}
	}
	return sellerView{Seller: s, Linked: s.MPLinked()}
}

// handleLogin implements the OAuth2 password grant used by the dashboard.
func (s *Server) handleLogin(c *gin.Context) {
	username := strings.TrimSpace(c.PostForm("username"))
	password := c.PostForm("password")
	if username == "" || password == "" {
		abortWithError(c, apperr.New(apperr.InvalidRequest, "username and password are required", nil))
		return
	}

	_, _, reset, ok, err := s.loginLimit.Take(c.Request.Context(), strings.ToLower(username))
	if err != nil {
		abortWithError(c, apperr.New(apperr.Internal, "Failed to log in", err))
		return
	}
	if !ok {
		wait := time.Until(time.Unix(0, int64(reset)))
		c.Header("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
		log.Warn().Str("username", username).Msg("Login rate limit exceeded")
		abortWithError(c, apperr.New(apperr.RateLimited, "Too many login attempts, try again later", nil))
		return
	}

	token, err := s.Accounts.Authenticate(c.Request.Context(), username, password)
	if err != nil {
		if apperr.Is(err, apperr.Unauthorized) {
			c.Header("WWW-Authenticate", "Bearer")
		}
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}

func (s *Server) handleRegister(c *gin.Context) {
	var req account.Registration
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, apperr.New(apperr.InvalidRequest, "Invalid request body", err))
		return
	}
	seller, err := s.Accounts.Register(c.Request.Context(), req)
	if err != nil {
		if apperr.Is(err, apperr.Conflict) {
			err = apperr.New(apperr.Conflict, "Email already registered", err)
		}
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewOf(seller))
}

func (s *Server) handleMe(c *gin.Context) {
	c.JSON(http.StatusOK, viewOf(currentSeller(c)))
}

func (s *Server) handleUpdateMe(c *gin.Context) {
	var update db.SellerUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		abortWithError(c, apperr.New(apperr.InvalidRequest, "Invalid request body", err))
		return
	}
	if update.Name != nil {
		if err := validation.ValidateNonEmptyString("name", *update.Name); err != nil {
			abortWithError(c, apperr.New(apperr.InvalidRequest, err.Error(), err))
			return
		}
	}
	if update.Email != nil {
		if err := validation.ValidateEmail(*update.Email); err != nil {
			abortWithError(c, apperr.New(apperr.InvalidRequest, err.Error(), err))
			return
		}
	}

	seller := currentSeller(c)
	if !update.Empty() {
		update.Apply(seller)
		if err := s.Sellers.Update(c.Request.Context(), seller); err != nil {
			abortWithError(c, account.Classify("Could not update seller", err))
			return
		}
	}
	c.JSON(http.StatusOK, viewOf(seller))
}

func (s *Server) handleListSellers(c *gin.Context) {
	skip, limit, ok := page(c)
	if !ok {
		return
	}
	sellers, err := s.Sellers.List(c.Request.Context(), skip, limit)
	if err != nil {
		abortWithError(c, account.Classify("Could not list sellers", err))
		return
	}
	views := make([]sellerView, 0, len(sellers))
	for i := range sellers {
		views = append(views, viewOf(&sellers[i]))
	}
	c.JSON(http.StatusOK, views)
}

// handleDeleteSeller lets admins delete anyone and sellers delete themselves.
// The seller's totems are kept and detached.
func (s *Server) handleDeleteSeller(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	caller := currentSeller(c)
	if !caller.IsAdmin && caller.ID != id {
		abortWithError(c, apperr.New(apperr.Forbidden, "Not authorized to delete this seller", nil))
		return
	}
	seller, err := s.Sellers.GetByID(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, account.Classify("Seller not found", err))
		return
	}
	if err := s.Sellers.Delete(c.Request.Context(), id); err != nil {
		abortWithError(c, account.Classify("Could not delete seller", err))
		return
	}
	log.Info().Uint("seller_id", id).Uint("deleted_by", caller.ID).Msg("Seller deleted")
	c.JSON(http.StatusOK, viewOf(seller))
}

func idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		abortWithError(c, apperr.New(apperr.InvalidRequest, "Invalid id", err))
		return 0, false
	}
	return uint(id), true
}

// page reads skip and limit, defaulting to 0 and 100.
func page(c *gin.Context) (int, int, bool) {
	skip, err1 := strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, err2 := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err1 != nil || err2 != nil {
		abortWithError(c, apperr.New(apperr.InvalidRequest, "skip and limit must be integers", nil))
		return 0, 0, false
	}
	if err := validation.ValidatePage(skip, limit); err != nil {
		abortWithError(c, apperr.New(apperr.InvalidRequest, err.Error(), err))
		return 0, 0, false
	}
	return skip, limit, true
}
