package cache

import (
	"strings"
	"testing"
	"time"
)

func TestVerifyBucket(t *testing.T) {
	t.Parallel()

	a := VerifyBucket("192.168.1.100")
	if a != VerifyBucket("192.168.1.100") {
		t.Error("bucket must be stable for one IP")
	}
	if a == VerifyBucket("192.168.1.101") || a == VerifyBucket("::1") {
		t.Error("different IPs must not share a bucket")
	}
	if strings.Contains(a, "192.168") {
		t.Errorf("bucket %q contains the raw IP", a)
	}
	if !strings.HasPrefix(a, rateLimitPrefix+"verify:") || len(a) != len(rateLimitPrefix+"verify:")+16 {
		t.Errorf("unexpected bucket %q", a)
	}
}

func TestAPIKeyBucket(t *testing.T) {
	t.Parallel()

	if got := APIKeyBucket("01HX"); got != "tagdesk:ratelimit:key:01HX" {
		t.Errorf("APIKeyBucket() = %q", got)
	}
}

func TestFullAfter(t *testing.T) {
	t.Parallel()

	limit := Limit{PerMinute: 60, Burst: 10}
	tests := []struct {
		remaining int64
		want      time.Duration
	}{
		{10, 0},
		{9, time.Second},
		{0, 10 * time.Second},
		{12, 0},
	}
	for _, tt := range tests {
		if got := fullAfter(limit, tt.remaining); got != tt.want {
			t.Errorf("fullAfter(%d) = %v, want %v", tt.remaining, got, tt.want)
		}
	}
}
