package metrics

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/emberlabs/embermine/pkg/errors"
)

// InfluxConfig holds InfluxDB connection configuration.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
	Wallet string
}

// InfluxRecorder ships mining measurements to InfluxDB through the
// non-blocking write API. Points are batched and flushed in the background;
// Close drains whatever is still buffered.
type InfluxRecorder struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	wallet   string
}

// NewInfluxRecorder creates a recorder backed by InfluxDB and verifies the
// server is reachable before returning.
//
// Parameters:
//   - cfg: connection settings and the wallet used to tag every point
//
// Returns:
//   - *InfluxRecorder: connected recorder
//   - error: network error when the health check fails
func NewInfluxRecorder(cfg *InfluxConfig) (*InfluxRecorder, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeNetwork, "influx_health", "failed to check InfluxDB health").
			WithContext("url", cfg.URL)
	}

	if health.Status != "pass" {
		client.Close()
		msg := ""
		if health.Message != nil {
			msg = *health.Message
		}
		return nil, errors.New(errors.ErrorTypeNetwork, "influx_health", "InfluxDB health check failed").
			WithContext("url", cfg.URL).
			WithContext("status", string(health.Status)).
			WithContext("message", msg)
	}

	return &InfluxRecorder{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
		wallet:   cfg.Wallet,
	}, nil
}

// RecordHashRate records the aggregate search rate across all workers.
func (r *InfluxRecorder) RecordHashRate(hashesPerSec float64, workers int) {
	tags := map[string]string{
		"wallet": r.wallet,
	}

	fields := map[string]interface{}{
		"hashes_per_sec": hashesPerSec,
		"workers":        int64(workers),
	}

	point := write.NewPoint("hashrate", tags, fields, time.Now())
	r.writeAPI.WritePoint(point)
}

// RecordRound records a finished round, its outcome, and how many submit
// attempts it took.
func (r *InfluxRecorder) RecordRound(outcome string, round uint64, attempts int, duration time.Duration) {
	tags := map[string]string{
		"wallet":  r.wallet,
		"outcome": outcome,
	}

	fields := map[string]interface{}{
		"round":       int64(round),
		"attempts":    int64(attempts),
		"duration_ms": float64(duration.Milliseconds()),
		"count":       1,
	}

	point := write.NewPoint("rounds", tags, fields, time.Now())
	r.writeAPI.WritePoint(point)
}

// RecordReward records claimable rewards credited by a confirmed solution.
func (r *InfluxRecorder) RecordReward(round uint64, amount uint64) {
	tags := map[string]string{
		"wallet": r.wallet,
	}

	fields := map[string]interface{}{
		"round":  int64(round),
		"amount": int64(amount),
		"count":  1,
	}

	point := write.NewPoint("rewards", tags, fields, time.Now())
	r.writeAPI.WritePoint(point)
}

// Close flushes pending points and closes the connection.
func (r *InfluxRecorder) Close() {
	r.writeAPI.Flush()
	r.client.Close()
}
