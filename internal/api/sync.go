package api

import (
	"net/http"

	"wxsync/internal/sync"
)

// postSync runs one sync cycle inline and returns its result. The periodic
// loop keeps its own schedule; this is for kicking one off by hand.
// ?stale=true limits the refresh to feeds past the staleness threshold.
func (s *Server) postSync(w http.ResponseWriter, r *http.Request) error {
	var (
		result sync.CycleResult
		err    error
	)
	if r.URL.Query().Get("stale") == "true" {
		result, err = s.syncer.RunStaleCycle(r.Context(), s.retentionDays)
	} else {
		result, err = s.syncer.RunCycle(r.Context(), s.retentionDays)
	}
	if err != nil {
		return err
	}

	return writeJSON(w, http.StatusOK, result)
}
