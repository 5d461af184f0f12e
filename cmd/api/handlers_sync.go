package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/middleware"
	"github.com/therealutkarshpriyadarshi/ideasaver/pkg/models"
)

// syncRecording accepts a recording for cloud backup. The caller's profile
// is read from the store, never from the request.
func (api *API) syncRecording(c *gin.Context) {
	if api.sync == nil {
		api.respondError(c, errSyncUnavailable)
		return
	}

	var rec models.AudioRecording
	if err := c.ShouldBindJSON(&rec); err != nil {
		api.respondError(c, invalidBody(err))
		return
	}

	userID, _ := middleware.GetUserID(c)
	p, err := api.profiles.Get(c.Request.Context(), userID)
	if err != nil {
		api.respondError(c, err)
		return
	}

	jobID, err := api.sync.Submit(c.Request.Context(), p, rec)
	if err != nil {
		api.respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, models.SyncResponse{JobID: jobID})
}
