// ABOUTME: Tests for mDNS discovery
// ABOUTME: Tests manager construction and sampler address formatting
package discovery

import (
	"testing"
)

func TestNewManager(t *testing.T) {
	config := Config{
		InstanceName: "Test Sampler",
		Port:         9314,
	}

	mgr := NewManager(config)
	if mgr == nil {
		t.Fatal("expected manager to be created")
	}
	mgr.Stop()
}

func TestSamplerAddr(t *testing.T) {
	info := &SamplerInfo{
		Name: "kitchen-sampler",
		Host: "192.168.1.40",
		Port: 9314,
	}

	if got := info.Addr(); got != "192.168.1.40:9314" {
		t.Errorf("expected 192.168.1.40:9314, got %s", got)
	}
}
