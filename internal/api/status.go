package api

import "net/http"

// statusResponse is the JSON body for GET /v1/status.
type statusResponse struct {
	ModelLoaded bool   `json:"model_loaded"`
	State       string `json:"state"`
	ExecutionID string `json:"execution_id,omitempty"`
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		ModelLoaded: s.engine.Loaded(),
		State:       "idle",
	}
	if id, ok := s.manager.Active(); ok {
		resp.State = "running"
		resp.ExecutionID = id
	}
	s.writeJSON(w, http.StatusOK, resp)
}
