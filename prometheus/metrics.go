/*
# Software Name : SIP Decoy Endpoint (SDE)
# SPDX-FileCopyrightText: Copyright (c) Orange Business - OINIS/Services/NSF
# SPDX-License-Identifier: Apache-2.0
#
# This software is distributed under the Apache-2.0
# See the "LICENSES" directory for more details.
#
# Authors:
# - Moatassem Talaat <moatassem.talaat@orange.com>

---
*/

package prometheus

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	ConSessions prometheus.Gauge
	ConCalls    prometheus.Gauge
	Caps        prometheus.Gauge

	Registrations prometheus.Counter
	AuthFailures  prometheus.Counter
	ParseErrors   prometheus.Counter
	RtpPackets    prometheus.Counter

	registry *prometheus.Registry
}

func NewMetrics(name string) *Metrics {
	ns := strings.ToLower(name)
	reg := prometheus.NewRegistry()

	m := &Metrics{
		ConSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "concurrent_sessions",
			Help:      "Number of live peer sessions.",
		}),
		ConCalls: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "concurrent_calls",
			Help:      "Number of live call transactions.",
		}),
		Caps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "session_attempts_per_second",
			Help:      "New session attempts observed in the last second.",
		}),
		Registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "registrations_total",
			Help:      "Accepted REGISTER requests.",
		}),
		AuthFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "auth_failures_total",
			Help:      "Failed digest verifications.",
		}),
		ParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "parse_errors_total",
			Help:      "Inbound datagrams dropped as unparseable.",
		}),
		RtpPackets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "rtp_packets_total",
			Help:      "Inbound RTP packets received on media relays.",
		}),
		registry: reg,
	}

	reg.MustRegister(m.ConSessions, m.ConCalls, m.Caps, m.Registrations, m.AuthFailures, m.ParseErrors, m.RtpPackets)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
