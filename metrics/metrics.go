// Package metrics defines the Prometheus metrics exported by softgw. All
// metrics use the "softgw_" namespace.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "softgw"

var (
	// FramesReceived counts ingress Ethernet frames by interface and
	// ethertype.
	FramesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_received_total",
		Help:      "Total Ethernet frames received, by interface and ethertype.",
	}, []string{"interface", "ethertype"})

	// FramesDropped counts frames dropped during ingress processing, by
	// the reason they were dropped.
	FramesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_dropped_total",
		Help:      "Total frames dropped, by reason.",
	}, []string{"reason"})

	// PacketsForwarded counts IPv4 datagrams handed to egress after a
	// successful route lookup: relayed datagrams and router-originated
	// ones (echo replies, ICMP errors) alike, including datagrams queued
	// behind ARP resolution and ones whose send failed.
	PacketsForwarded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "packets_forwarded_total",
		Help:      "Total IPv4 datagrams forwarded.",
	})

	// ICMPSent counts ICMP messages emitted by the router, by type.
	ICMPSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "icmp_sent_total",
		Help:      "Total ICMP messages emitted, by type.",
	}, []string{"type"})
)

var (
	// ARPCacheEntries is a gauge of currently resolved ARP cache entries.
	ARPCacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "arp_cache_entries",
		Help:      "Number of resolved entries currently in the ARP cache.",
	})

	// ARPRequestsPending is a gauge of unresolved ARP requests.
	ARPRequestsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "arp_requests_pending",
		Help:      "Number of unresolved ARP requests awaiting reply or retry.",
	})

	// ARPHostUnreachable counts requests that exhausted their retries.
	ARPHostUnreachable = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "arp_host_unreachable_total",
		Help:      "Total ARP requests that exhausted retries without a reply.",
	})
)

var (
	// NATMappingsActive is a gauge of live NAT mappings, by type.
	NATMappingsActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "nat_mappings_active",
		Help:      "Number of currently active NAT mappings, by type.",
	}, []string{"type"})

	// NATAllocationFailures counts insert calls that failed due to
	// external-aux exhaustion, by type.
	NATAllocationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "nat_allocation_failures_total",
		Help:      "Total NAT insert calls that failed due to external-aux exhaustion, by type.",
	}, []string{"type"})
)
