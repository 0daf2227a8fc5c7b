package api

import (
	"encoding/json"
	"net/http"
	"runtime"
)

// BuildInfo is stamped into the binary via ldflags.
type BuildInfo struct {
	Version   string
	GitCommit string
	BuildDate string
	// Driver is the active storage backend.
	Driver string
}

type versionResponse struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Driver    string `json:"db_driver,omitempty"`
}

// VersionHandler reports build metadata. Empty fields fall back to "dev" and
// "unknown".
func VersionHandler(info BuildInfo) http.Handler {
	if info.Version == "" {
		info.Version = "dev"
	}
	if info.GitCommit == "" {
		info.GitCommit = "unknown"
	}
	if info.BuildDate == "" {
		info.BuildDate = "unknown"
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(versionResponse{
			Version:   info.Version,
			GitCommit: info.GitCommit,
			BuildDate: info.BuildDate,
			GoVersion: runtime.Version(),
			Driver:    info.Driver,
		})
	})
}
