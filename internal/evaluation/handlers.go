package evaluation

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// writeJSON encodes v as the response body
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// lookupError maps a service error to a response
func lookupError(w http.ResponseWriter, what string, err error) {
	if errors.Is(err, ErrNotFound) {
		corsError(w, what+" not found", http.StatusNotFound)
		return
	}
	slog.Error("Error getting "+what, "error", err)
	corsError(w, "Internal server error", http.StatusInternalServerError)
}

// handleIndex serves the HTML run report
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleListRuns returns a list of all runs
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.service.ListRuns()
	if err != nil {
		slog.Error("Error listing runs", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Ensure we always return an array, not nil
	if runs == nil {
		runs = []*Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// handleStartRun evaluates the configured document root and returns the run
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	if s.root == "" {
		corsError(w, "No document root configured", http.StatusBadRequest)
		return
	}

	run, err := s.service.Run(r.Context(), s.root)
	if err != nil {
		slog.Error("Error running evaluation", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusCreated, run)
}

// handleInspect describes the configured document root
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	if s.root == "" {
		corsError(w, "No document root configured", http.StatusBadRequest)
		return
	}

	inspection, err := s.service.Inspect(r.Context(), s.root)
	if err != nil {
		slog.Error("Error inspecting documents", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, inspection)
}

// handleGetRun returns a single run
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.service.GetRun(r.PathValue("id"))
	if err != nil {
		lookupError(w, "Run", err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleDeleteRun deletes a run
func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteRun(r.PathValue("id")); err != nil {
		lookupError(w, "Run", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListDocuments returns the document results of a run
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.service.ListDocuments(r.PathValue("id"))
	if err != nil {
		lookupError(w, "Run", err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

// handleGetDocument returns one document result
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.service.GetDocument(r.PathValue("id"), r.PathValue("doc"))
	if err != nil {
		lookupError(w, "Document", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleGetDiff returns the unified diff of a mismatched document
func (s *Server) handleGetDiff(w http.ResponseWriter, r *http.Request) {
	data, err := s.service.GetDiff(r.PathValue("id"), r.PathValue("doc"))
	if err != nil {
		lookupError(w, "Diff", err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(data)
}
