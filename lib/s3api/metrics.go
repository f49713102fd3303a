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

package s3api

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "berth_s3_requests_total",
			Help: "Number of S3 API requests processed, by operation and response code.",
		},
		[]string{"operation", "code"},
	)
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "berth_s3_request_duration_seconds",
			Help:    "Latency of S3 API requests, by operation.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	authFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "berth_s3_auth_failures_total",
			Help: "Number of rejected request signatures, by error code.",
		},
		[]string{"code"},
	)
	receivedBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "berth_s3_received_bytes_total",
			Help: "Request body bytes declared by clients.",
		},
	)
	sentBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "berth_s3_sent_bytes_total",
			Help: "Response body bytes written to clients.",
		},
	)

	s3Collectors = []prometheus.Collector{
		requestsTotal,
		requestDuration,
		authFailures,
		receivedBytes,
		sentBytes,
	}
)
