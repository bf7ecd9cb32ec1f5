package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/holochain/dht-core/utils/wrappers"
)

// Store tracks table sizes and write throughput for the persistence layer.
type Store struct {
	Registry prometheus.Registerer

	ActionsWritten Counter
	EntriesWritten Counter
	OpsWritten     Counter
	WriteLatency   Averager
}

// NewStore registers and returns the Store metrics bundle.
func NewStore(reg prometheus.Registerer, errs *wrappers.Errs) *Store {
	return &Store{
		Registry:       reg,
		ActionsWritten: NewCounter(),
		EntriesWritten: NewCounter(),
		OpsWritten:     NewCounter(),
		WriteLatency:   NewAveragerWithErrs("store_write_latency_ms", "store write latency in milliseconds", reg, errs),
	}
}

// ValidationPipeline tracks queue depth and integration latency for the
// sys/app/integration work queues.
type ValidationPipeline struct {
	Registry prometheus.Registerer

	SysQueueDepth         Gauge
	AppQueueDepth         Gauge
	IntegrationQueueDepth Gauge
	Rejected              Counter
	Integrated            Counter
	IntegrationLatency    Averager
}

// NewValidationPipeline registers and returns the ValidationPipeline metrics bundle.
func NewValidationPipeline(reg prometheus.Registerer, errs *wrappers.Errs) *ValidationPipeline {
	return &ValidationPipeline{
		Registry:              reg,
		SysQueueDepth:         NewGauge(),
		AppQueueDepth:         NewGauge(),
		IntegrationQueueDepth: NewGauge(),
		Rejected:              NewCounter(),
		Integrated:            NewCounter(),
		IntegrationLatency:    NewAveragerWithErrs("validation_integration_latency_ms", "time from pending to integrated in milliseconds", reg, errs),
	}
}

// Gossip tracks bytes and ops exchanged during publish and gossip rounds.
type Gossip struct {
	Registry prometheus.Registerer

	OpsPublished Counter
	OpsReceived  Counter
	BytesSent    Counter
	BytesRecv    Counter
	RoundLatency Averager
}

// NewGossip registers and returns the Gossip metrics bundle.
func NewGossip(reg prometheus.Registerer, errs *wrappers.Errs) *Gossip {
	return &Gossip{
		Registry:     reg,
		OpsPublished: NewCounter(),
		OpsReceived:  NewCounter(),
		BytesSent:    NewCounter(),
		BytesRecv:    NewCounter(),
		RoundLatency: NewAveragerWithErrs("gossip_round_latency_ms", "gossip round round-trip latency in milliseconds", reg, errs),
	}
}

