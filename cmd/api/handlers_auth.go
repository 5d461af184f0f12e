package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/apperrors"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/middleware"
	"github.com/therealutkarshpriyadarshi/ideasaver/pkg/models"
)

func invalidBody(err error) error {
	return apperrors.Validation("invalid_body", "Invalid request body").WithDetails(err.Error())
}

func (api *API) signUp(c *gin.Context) {
	var creds models.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		api.respondError(c, invalidBody(err))
		return
	}

	session, err := api.auth.SignUp(c.Request.Context(), creds)
	if err != nil {
		api.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (api *API) login(c *gin.Context) {
	var creds models.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		api.respondError(c, invalidBody(err))
		return
	}

	session, err := api.auth.SignIn(c.Request.Context(), creds)
	if err != nil {
		api.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (api *API) refresh(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	session, err := api.auth.Refresh(userID, middleware.GetUserEmail(c))
	if err != nil {
		api.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}
