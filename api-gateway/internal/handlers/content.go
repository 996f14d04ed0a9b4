package handlers

import "net/http"

type SuggestionRequest struct {
	ImageURL string `json:"image_url" validate:"required,url"`
	Title    string `json:"title" validate:"max=200"`
}

// SuggestContent drafts listing text for an uploaded photo. It answers 200 with whatever could be
// generated; the seller is free to ignore or edit all of it.
func (h *Handler) SuggestContent(w http.ResponseWriter, r *http.Request) {
	if h.content == nil {
		respondError(w, http.StatusServiceUnavailable, reasonUnavailable, "content generation is not configured")
		return
	}

	var req SuggestionRequest
	if !h.decode(w, r, &req) {
		return
	}

	respondJSON(w, http.StatusOK, h.content.Suggest(r.Context(), req.ImageURL, req.Title))
}
