package api

import "github.com/jansahayak/agent/domain/entities"

// LanguagesResponse lists the supported conversation languages.
type LanguagesResponse struct {
	Languages []entities.Language `json:"languages"`
}

// RegionsResponse lists the selectable states.
type RegionsResponse struct {
	Regions []string `json:"regions"`
}

// SchemesResponse lists scheme records.
type SchemesResponse struct {
	Schemes []entities.Scheme `json:"schemes"`
}

// SummariesResponse lists persisted conversation summaries, newest first.
type SummariesResponse struct {
	Summaries []entities.ConversationSummary `json:"summaries"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
