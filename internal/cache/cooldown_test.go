package cache

import (
	"context"
	"testing"
	"time"
)

func TestDisabledCooldownAllowsEverything(t *testing.T) {
	c, err := NewCooldown("", 30*time.Second)
	if err != nil {
		t.Fatalf("NewCooldown: %v", err)
	}
	defer c.Close()

	for i := 0; i < 3; i++ {
		ok, remaining := c.Allow(context.Background(), 42)
		if !ok || remaining != 0 {
			t.Fatalf("Allow = (%v, %v), want always allowed when disabled", ok, remaining)
		}
	}
	if err := c.Reset(context.Background(), 42); err != nil {
		t.Fatalf("Reset: %v", err)
	}
}

func TestNewCooldownRejectsBadURL(t *testing.T) {
	if _, err := NewCooldown("not a url", time.Second); err == nil {
		t.Fatal("expected an error for an unparseable redis url")
	}
}

func TestCooldownKeyFormat(t *testing.T) {
	if got := cooldownKey(123456789); got != "search_cooldown:123456789" {
		t.Errorf("cooldownKey = %q", got)
	}
}
