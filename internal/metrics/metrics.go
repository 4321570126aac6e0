// Package metrics defines the Prometheus metric types for the stack's MIB
// counters (spec.md §6.5) and for congestion-control/RTO transitions.
//
// The core only increments these; nothing in tcpstack, linklayer or
// rawsocket ever reads a counter back, matching the opaque,
// externally-owned MIB-counter collaborator spec.md describes. This file
// is a direct generalization of the teacher's metrics/metrics.go: same
// promauto constructors, same "vars block of promauto.New*" shape, only
// the metric names and label sets are new.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Per-interface inbound/outbound counters, labeled by interface name,
	// realizing spec.md §6.5's ifIn*/ifOut* MIB counters.
	IfInOctets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netstack_if_in_octets_total",
			Help: "Total octets received on the interface.",
		}, []string{"iface"})

	IfOutOctets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netstack_if_out_octets_total",
			Help: "Total octets transmitted on the interface.",
		}, []string{"iface"})

	IfInUcastPkts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netstack_if_in_ucast_pkts_total",
			Help: "Unicast packets received.",
		}, []string{"iface"})

	IfInNUcastPkts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netstack_if_in_nucast_pkts_total",
			Help: "Non-unicast (broadcast/multicast) packets received.",
		}, []string{"iface"})

	IfOutUcastPkts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netstack_if_out_ucast_pkts_total",
			Help: "Unicast packets transmitted.",
		}, []string{"iface"})

	IfOutNUcastPkts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netstack_if_out_nucast_pkts_total",
			Help: "Non-unicast (broadcast/multicast) packets transmitted.",
		}, []string{"iface"})

	IfInDiscards = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netstack_if_in_discards_total",
			Help: "Inbound packets discarded (queue full, policy drop).",
		}, []string{"iface"})

	IfInErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netstack_if_in_errors_total",
			Help: "Inbound packets dropped due to malformed content (bad CRC, short frame).",
		}, []string{"iface"})

	IfInUnknownProtos = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netstack_if_in_unknown_protos_total",
			Help: "Inbound frames dropped for an unrecognized EtherType.",
		}, []string{"iface"})

	// TCP-wide counters, unlabeled, mirroring spec.md §6.5's tcp* globals.
	TCPActiveOpens = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "netstack_tcp_active_opens_total",
			Help: "TCP connections opened actively (via Connect).",
		})

	TCPPassiveOpens = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "netstack_tcp_passive_opens_total",
			Help: "TCP connections opened passively (via Accept).",
		})

	TCPOutSegs = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "netstack_tcp_out_segs_total",
			Help: "TCP segments sent, including retransmissions.",
		})

	TCPRetransSegs = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "netstack_tcp_retrans_segs_total",
			Help: "TCP segments retransmitted.",
		})

	TCPOutRsts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "netstack_tcp_out_rsts_total",
			Help: "TCP RST segments sent.",
		})

	// Congestion-control and RTT observability, not named in spec.md's MIB
	// list but a natural instrumentation point for the congestion state
	// machine (spec.md §4.G.6), grounded on the teacher's
	// SyscallTimeHistogram/PollingHistogram pattern.
	CongestionStateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netstack_tcp_congestion_state_transitions_total",
			Help: "Transitions between IDLE/RECOVERY/LOSS_RECOVERY congestion states.",
		}, []string{"to"})

	RTOHistogram = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "netstack_tcp_rto_seconds",
			Help:    "Distribution of the computed retransmission timeout.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		})

	SRTTHistogram = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "netstack_tcp_srtt_seconds",
			Help:    "Distribution of the smoothed RTT estimate.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		})

	ARPCacheSizeHistogram = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "netstack_arp_cache_size",
			Help:    "Number of entries in the ARP neighbor cache at each tick.",
			Buckets: prometheus.LinearBuckets(0, 1, 9),
		})

	// FlowEventsCounter counts connection lifecycle events logged by
	// tcpstack.Stack's flowCreated/flowDeleted, labeled "open"/"close".
	FlowEventsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netstack_flow_events_total",
			Help: "Connection open/close events logged by the stack's lifecycle hooks.",
		}, []string{"type"})
)
