package server

import "time"

// RecordEvent is the Kafka envelope carrying one raw record and its
// document kind into the streaming aggregator.
type RecordEvent struct {
	Kind      string         `json:"kind"`
	Record    map[string]any `json:"record"`
	Timestamp time.Time      `json:"timestamp"`
}

// StatsResponse is the HTTP payload of the stats endpoint.
type StatsResponse struct {
	GeneratedAt string           `json:"generated_at"`
	RecordsSeen int64            `json:"records_seen"`
	RecordsBad  int64            `json:"records_bad"`
	Groups      int              `json:"groups"`
	Records     []map[string]any `json:"records"`
}
