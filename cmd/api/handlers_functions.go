package main

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/ai"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/apperrors"
	"github.com/therealutkarshpriyadarshi/ideasaver/internal/profile"
	"github.com/therealutkarshpriyadarshi/ideasaver/pkg/models"
)

var (
	errMissingAudioFields = apperrors.Validation("missing_fields", "Missing required fields: audioDataUri, durationSeconds, or userId")
	errMissingTitleText   = apperrors.Validation("missing_fields", "Missing transcriptionText")
)

func (api *API) transcribeAudio(c *gin.Context) {
	var req models.TranscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.respondError(c, invalidBody(err))
		return
	}
	if req.AudioDataURI == "" || req.DurationSeconds == nil || req.UserID == "" {
		api.respondError(c, errMissingAudioFields)
		return
	}
	if err := requireSelf(c, req.UserID); err != nil {
		api.respondError(c, err)
		return
	}

	mimeType, payload, err := ai.ParseDataURI(req.AudioDataURI)
	if err != nil {
		api.respondError(c, err)
		return
	}

	text, err := api.ai.Transcribe(c.Request.Context(), mimeType, payload)
	if err != nil {
		api.respondError(c, err)
		return
	}

	api.logger.WithUserID(req.UserID).WithField("duration_seconds", *req.DurationSeconds).Debug("Audio transcribed")
	c.JSON(http.StatusOK, models.TranscribeResponse{Transcription: text})
}

func (api *API) generateTitle(c *gin.Context) {
	var req models.TitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.respondError(c, invalidBody(err))
		return
	}
	if strings.TrimSpace(req.TranscriptionText) == "" {
		api.respondError(c, errMissingTitleText)
		return
	}

	title, err := api.ai.GenerateTitle(c.Request.Context(), req.TranscriptionText)
	if err != nil {
		api.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.TitleResponse{Title: title})
}

func (api *API) redeemGiftCode(c *gin.Context) {
	var req models.RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.respondError(c, invalidBody(err))
		return
	}
	if req.Code == "" || req.UserID == "" {
		api.respondError(c, profile.ErrMissingGiftCode)
		return
	}
	if err := requireSelf(c, req.UserID); err != nil {
		api.respondError(c, err)
		return
	}

	newCredits, err := api.profiles.RedeemGiftCode(c.Request.Context(), strings.TrimSpace(req.Code), req.UserID)
	if err != nil {
		api.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.RedeemResponse{Success: true, NewCredits: newCredits})
}
