package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/michaelbrown/gauntlet/internal/catalog"
	"github.com/michaelbrown/gauntlet/internal/dispatch"
	"github.com/michaelbrown/gauntlet/internal/harness"
	"github.com/michaelbrown/gauntlet/internal/service"
	"github.com/michaelbrown/gauntlet/internal/storage"
)

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// writeCoreError reports an execution failure. Every failure of the core,
// validation included, is a 404 carrying the error message.
func writeCoreError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusNotFound, err.Error())
}

// --- Execution handlers ---

func (s *Server) handleListRuntimes(w http.ResponseWriter, r *http.Request) {
	rts, err := s.svc.ListRuntimes(r.Context())
	if err != nil {
		writeCoreError(w, err)
		return
	}
	if rts == nil {
		rts = []catalog.Runtime{}
	}
	writeJSON(w, http.StatusOK, rts)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req dispatch.Request
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	exec, err := s.svc.ExecuteCode(r.Context(), req)
	if err != nil {
		s.log.Debug().Err(err).Str("language", req.Language).Msg("execute failed")
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exec)
}

func (s *Server) handleRunTests(w http.ResponseWriter, r *http.Request) {
	var req harness.Request
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	res, err := s.svc.RunTests(r.Context(), req)
	if err != nil {
		s.log.Debug().Err(err).Str("language", req.Language).Msg("test run failed")
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- Run history handlers ---

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	opts := storage.RunListOptions{
		Status:   storage.RunStatus(r.URL.Query().Get("status")),
		Language: r.URL.Query().Get("language"),
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			opts.Limit = n
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if n, err := strconv.Atoi(offset); err == nil {
			opts.Offset = n
		}
	}

	runs, err := s.svc.Runs(r.Context(), opts)
	if err != nil {
		writeHistoryError(w, err)
		return
	}

	if runs == nil {
		runs = []storage.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.svc.Run(r.Context(), id)
	if err != nil {
		writeHistoryError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, run)
}

func writeHistoryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrHistoryDisabled):
		writeError(w, http.StatusNotImplemented, err.Error())
	case strings.Contains(err.Error(), "not found"):
		writeError(w, http.StatusNotFound, "run not found")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
