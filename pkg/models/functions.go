package models

// TranscribeRequest is the body of the transcribe-audio function
type TranscribeRequest struct {
	AudioDataURI    string `json:"audioDataUri"`
	DurationSeconds *int   `json:"durationSeconds"`
	UserID          string `json:"userId"`
}

// TranscribeResponse is the reply of the transcribe-audio function
type TranscribeResponse struct {
	Transcription string `json:"transcription"`
}

// TitleRequest is the body of the generate-title function
type TitleRequest struct {
	TranscriptionText string `json:"transcriptionText"`
}

// TitleResponse is the reply of the generate-title function
type TitleResponse struct {
	Title string `json:"title"`
}

// RedeemRequest is the body of the redeem-gift-code function
type RedeemRequest struct {
	Code   string `json:"code"`
	UserID string `json:"userId"`
}

// RedeemResponse is the reply of the redeem-gift-code function
type RedeemResponse struct {
	Success    bool `json:"success"`
	NewCredits int  `json:"newCredits"`
}

// ErrorResponse is the body of every failed API call
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Code    string `json:"code,omitempty"`
}
