package webserver

import (
	"crypto/x509"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func leafOf(t *testing.T, dir string, hosts []string) *x509.Certificate {
	t.Helper()
	cfg, err := SelfSignedTLS(dir, hosts)
	if err != nil {
		t.Fatalf("SelfSignedTLS: %v", err)
	}
	leaf, err := x509.ParseCertificate(cfg.Certificates[0].Certificate[0])
	if err != nil {
		t.Fatal(err)
	}
	return leaf
}

func TestSelfSignedTLS_ReusesCert(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tls")
	first := leafOf(t, dir, []string{"localhost"})
	second := leafOf(t, dir, []string{"localhost"})
	if !first.Equal(second) {
		t.Error("expected cached certificate to be reused")
	}
}

func TestSelfSignedTLS_RegeneratesCorruptCert(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, certName), []byte("garbage"), 0644)
	leaf := leafOf(t, dir, []string{"localhost"})
	if err := leaf.VerifyHostname("localhost"); err != nil {
		t.Error(err)
	}
}

func TestSelfSignedTLS_CoversConfiguredHosts(t *testing.T) {
	dir := t.TempDir()
	first := leafOf(t, dir, []string{"localhost"})
	if first.VerifyHostname("hub.example.lan") == nil {
		t.Fatal("unexpected coverage before the host was configured")
	}

	second := leafOf(t, dir, []string{"localhost", "hub.example.lan", "10.1.2.3"})
	if first.Equal(second) {
		t.Fatal("expected a new certificate once a host is added")
	}
	for _, h := range []string{"localhost", "hub.example.lan", "10.1.2.3"} {
		if err := second.VerifyHostname(h); err != nil {
			t.Errorf("%s: %v", h, err)
		}
	}
	if !second.IsCA {
		t.Error("certificate must be usable as a client root")
	}
}

func TestCertHosts(t *testing.T) {
	hosts := certHosts("0.0.0.0", []string{"hub.lan"})
	if slices.Contains(hosts, "0.0.0.0") {
		t.Error("unspecified listen address must not be a SAN")
	}
	for _, want := range []string{"localhost", "127.0.0.1", "hub.lan"} {
		if !slices.Contains(hosts, want) {
			t.Errorf("missing %s in %v", want, hosts)
		}
	}
	if !slices.Contains(certHosts("192.168.1.5", nil), "192.168.1.5") {
		t.Error("listen address must be a SAN")
	}
}
