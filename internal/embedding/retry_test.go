package embedding

import (
	"testing"
	"time"
)

func TestPolicyDelayGrowth(t *testing.T) {
	p := Policy{MaxAttempts: 4, BaseDelay: time.Second, Multiplier: 2}

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	for i, w := range want {
		if got := p.Delay(i + 1); got != w {
			t.Errorf("Delay(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestPolicyDelayJitterBounds(t *testing.T) {
	p := Policy{MaxAttempts: 3, BaseDelay: time.Second, Multiplier: 2, Jitter: 0.5}

	for i := 0; i < 100; i++ {
		d := p.Delay(2)
		if d < time.Second || d > 3*time.Second {
			t.Fatalf("Delay(2) = %v outside jitter bounds [1s, 3s]", d)
		}
	}
}

func TestPolicyDelayClampsAttempt(t *testing.T) {
	p := Policy{MaxAttempts: 3, BaseDelay: time.Second, Multiplier: 3}
	if got := p.Delay(0); got != time.Second {
		t.Errorf("Delay(0) = %v, want base delay", got)
	}
}
