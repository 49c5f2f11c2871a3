package probe

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/Combine-Capital/connwatch/pkg/config"
	"github.com/alicebob/miniredis/v2"
)

func newMiniredisProber(t *testing.T) (*miniredis.Miniredis, *RedisProber) {
	t.Helper()
	mr := miniredis.RunT(t)

	port, err := strconv.Atoi(mr.Port())
	if err != nil {
		t.Fatalf("miniredis port: %v", err)
	}
	client := NewRedisClient(config.CacheConfig{
		Host:        mr.Host(),
		Port:        port,
		DialTimeout: time.Second,
		ReadTimeout: time.Second,
	})
	t.Cleanup(func() { _ = client.Close() })

	prober := NewRedisProber(client, "standalone", config.DependencyConfig{
		StormThreshold: 3,
		StormWindow:    time.Minute,
	}, nil)
	return mr, prober
}

func TestRedisProbeSuccess(t *testing.T) {
	_, prober := newMiniredisProber(t)

	res := prober.Probe(context.Background())
	if res.Err != nil {
		t.Fatalf("Probe() error = %v, want nil", res.Err)
	}
	if res.Latency <= 0 {
		t.Error("expected positive latency")
	}
	if res.Metadata["mode"] != "standalone" {
		t.Errorf("mode metadata = %q", res.Metadata["mode"])
	}
	if _, ok := res.Metadata["totalConns"]; !ok {
		t.Error("pool stats missing from metadata")
	}
}

func TestRedisProbeFailure(t *testing.T) {
	mr, prober := newMiniredisProber(t)

	// Prime the connection, then take the server down.
	if res := prober.Probe(context.Background()); res.Err != nil {
		t.Fatalf("priming probe failed: %v", res.Err)
	}
	mr.Close()

	res := prober.Probe(context.Background())
	if res.Err == nil {
		t.Fatal("Probe() against a stopped server should fail")
	}
}

func TestRedisProbeContextCancelled(t *testing.T) {
	_, prober := newMiniredisProber(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := prober.Probe(ctx)
	if res.Err == nil {
		t.Fatal("Probe() with cancelled context should fail")
	}
}
