/*
 * Berth
 * Copyright (C) 2025  Quayside, Inc.
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

package service

import (
	"net/http"
	"os"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quayside/berth"
	logutils "github.com/quayside/berth/lib/utils/log"
)

var diagLog = logutils.NewPackageLogger(berth.ComponentKey, berth.Component(berth.ComponentService, berth.ComponentDiag))

// newDiagHandler serves the diagnostic endpoint: liveness, readiness
// and Prometheus metrics. It is bound to a separate listener so the
// endpoint can stay private while the S3 API is exposed.
func newDiagHandler(dataDir string) http.Handler {
	router := httprouter.New()
	router.GET("/healthz", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	router.GET("/readyz", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if _, err := os.Stat(dataDir); err != nil {
			diagLog.WarnContext(r.Context(), "Readiness probe failed.", "data_dir", dataDir, "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("data directory unavailable\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	router.Handler(http.MethodGet, "/metrics", promhttp.Handler())
	return router
}
