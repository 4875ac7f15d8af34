package config

import "testing"

func TestHostPolicyNormalize(t *testing.T) {
	cfg := HostPolicyConfig{
		Allow:    []string{"Learn.Microsoft.com", "https://www.learn.microsoft.com/en-us/training/", " docs.example.com "},
		Disallow: []string{"www.Bad.com", "", "bad.com"},
	}

	norm := cfg.Normalize()
	if len(norm.Allow) != 2 || norm.Allow[0] != "docs.example.com" || norm.Allow[1] != "learn.microsoft.com" {
		t.Fatalf("unexpected allow list: %#v", norm.Allow)
	}
	if len(norm.Disallow) != 1 || norm.Disallow[0] != "bad.com" {
		t.Fatalf("unexpected disallow list: %#v", norm.Disallow)
	}
}

func TestHostPolicyValidate(t *testing.T) {
	valid := HostPolicyConfig{
		Allow:    []string{"example.com"},
		Disallow: []string{"blocked.com"},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}

	conflict := HostPolicyConfig{
		Allow:    []string{"example.com"},
		Disallow: []string{"https://www.example.com"},
	}
	if err := conflict.Validate(); err == nil {
		t.Fatalf("expected conflict validation error")
	}
}
