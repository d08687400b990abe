package conf

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDurationUnmarshal(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{`"5s"`, 5 * time.Second},
		{`"1m30s"`, 90 * time.Second},
		{`2`, 2 * time.Second},
		{`0.5`, 500 * time.Millisecond},
		{`null`, 0},
	}
	for _, tc := range cases {
		var d Duration
		if err := json.Unmarshal([]byte(tc.in), &d); err != nil {
			t.Fatalf("unmarshal %s: %v", tc.in, err)
		}
		if d.AsDuration() != tc.want {
			t.Fatalf("unmarshal %s: got %v want %v", tc.in, d.AsDuration(), tc.want)
		}
	}

	var bad Duration
	if err := json.Unmarshal([]byte(`"soon"`), &bad); err == nil {
		t.Fatalf("expected error for invalid duration")
	}
}

func TestBootstrapDecode(t *testing.T) {
	raw := `{
		"server": {"http": {"addr": "0.0.0.0:8000", "timeout": "3s"}},
		"dataforseo": {"timeout": "120s", "poll_interval": "6s", "priority": 2},
		"kafka": {"brokers": ["localhost:9092"], "topic": "reviews.ingested"}
	}`
	var bc Bootstrap
	if err := json.Unmarshal([]byte(raw), &bc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if bc.Server.Http.Timeout.AsDuration() != 3*time.Second {
		t.Fatalf("server timeout: %v", bc.Server.Http.Timeout.AsDuration())
	}
	if bc.DataForSEO.PollInterval.AsDuration() != 6*time.Second || bc.DataForSEO.Priority != 2 {
		t.Fatalf("dataforseo: %+v", bc.DataForSEO)
	}
	if bc.DataForSEO.PendingTtl.AsDuration() != 0 {
		t.Fatalf("missing duration should be zero")
	}
	if len(bc.Kafka.Brokers) != 1 {
		t.Fatalf("brokers: %v", bc.Kafka.Brokers)
	}
}
