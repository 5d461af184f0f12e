package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/middleware"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/profile"
	"github.com/therealutkarshpriyadarshi/ideasaver/pkg/models"
)

// upsertProfile fetches or creates the caller's profile, merging any overrides
func (api *API) upsertProfile(c *gin.Context) {
	var req models.ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.respondError(c, invalidBody(err))
		return
	}
	if req.UserID == "" || req.UserEmail == "" {
		api.respondError(c, profile.ErrMissingIdentity)
		return
	}
	if err := requireSelf(c, req.UserID); err != nil {
		api.respondError(c, err)
		return
	}
	email, err := selfEmail(c, req.UserEmail)
	if err != nil {
		api.respondError(c, err)
		return
	}

	p, err := api.profiles.Upsert(c.Request.Context(), req.UserID, email, req.ProfileOverrides)
	if err != nil {
		api.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ProfileResponse{Success: true, Profile: p})
}

func (api *API) getProfile(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	p, err := api.profiles.Get(c.Request.Context(), userID)
	if err != nil {
		api.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ProfileResponse{Success: true, Profile: p})
}
