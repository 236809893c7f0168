package factory

import (
	"errors"
	"strings"
	"testing"
)

type sample struct {
	URL     string
	Timeout int
}

type sampleConf struct {
	URL     string `json:"url"`
	Timeout int    `json:"timeout_seconds"`
}

func sampleFactory(conf map[string]any) (*sample, error) {
	var c sampleConf
	if err := Decode(conf, &c); err != nil {
		return nil, err
	}
	return &sample{URL: c.URL, Timeout: c.Timeout}, nil
}

func TestRegistry_Create(t *testing.T) {
	reg := NewRegistry[*sample]()
	if err := reg.Register("influx", sampleFactory); err != nil {
		t.Fatalf("register: %v", err)
	}
	inst, err := reg.Create(ModuleConfig{Type: "Influx", Conf: map[string]any{"url": "http://x", "timeout_seconds": 3}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if inst.URL != "http://x" || inst.Timeout != 3 {
		t.Fatalf("unexpected instance %+v", inst)
	}
}

// Environment overrides deliver every value as a string.
func TestDecode_WeakTypes(t *testing.T) {
	var c sampleConf
	if err := Decode(map[string]any{"url": "http://x", "timeout_seconds": "7"}, &c); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if c.Timeout != 7 {
		t.Fatalf("timeout = %d", c.Timeout)
	}
}

func TestDecode_RejectsUnknownKeys(t *testing.T) {
	var c sampleConf
	if err := Decode(map[string]any{"ulr": "http://x"}, &c); err == nil {
		t.Fatal("expected error for misspelled key")
	}
}

func TestRegistry_Errors(t *testing.T) {
	reg := NewRegistry[*sample]()
	if err := reg.Register("x", sampleFactory); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register("X", sampleFactory); err == nil {
		t.Fatal("expected duplicate error")
	}
	if err := reg.Register("y", nil); err == nil {
		t.Fatal("expected nil factory error")
	}
	_, err := reg.Create(ModuleConfig{Type: "y"})
	if !errors.Is(err, ErrUnknownType) || !strings.Contains(err.Error(), "known: x") {
		t.Fatalf("unexpected error %v", err)
	}
	if _, err := reg.Create(ModuleConfig{Type: "x", Conf: map[string]any{"bogus": 1}}); err == nil || !strings.HasPrefix(err.Error(), "x: ") {
		t.Fatalf("factory error should be prefixed with the type: %v", err)
	}
}

func TestRegistry_Names(t *testing.T) {
	reg := NewRegistry[*sample]()
	for _, n := range []string{"prometheus", "influx", "nop"} {
		if err := reg.Register(n, sampleFactory); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	if got := strings.Join(reg.Names(), ","); got != "influx,nop,prometheus" {
		t.Fatalf("names = %s", got)
	}
}
