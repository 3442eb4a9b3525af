package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kekahyde/inferd/internal/model"
)

// promptRequest is the JSON body for POST /v1/prompt.
type promptRequest struct {
	Prompt string        `json:"prompt"`
	Policy *model.Policy `json:"policy"`
}

// promptResponse is the synchronous inference reply.
type promptResponse struct {
	Output string `json:"output"`
}

// handlePrompt runs one prompt synchronously on the local engine. It
// bypasses execution tracking entirely: no id, no status broadcasts, no
// offload. The request context carries cancellation.
func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Prompt == "" {
		s.writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	if req.Policy != nil {
		if _, err := req.Policy.Enforce(); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	out, err := s.engine.Run(r.Context(), req.Prompt)
	if err != nil {
		if errors.Is(err, r.Context().Err()) && r.Context().Err() != nil {
			return // Client disconnected mid-generation.
		}
		s.logger.Error("synchronous prompt failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "inference failed")
		return
	}

	s.writeJSON(w, http.StatusOK, promptResponse{Output: out})
}
