package discovery

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestPortOf(t *testing.T) {
	tests := []struct {
		addr    string
		want    int
		wantErr bool
	}{
		{"127.0.0.1:8765", 8765, false},
		{":9000", 9000, false},
		{"localhost", 0, true},
		{"host:http", 0, true},
		{"host:70000", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			got, err := portOf(tt.addr)
			if (err != nil) != tt.wantErr {
				t.Fatalf("portOf(%q) error = %v, wantErr %v", tt.addr, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("portOf(%q) = %d, want %d", tt.addr, got, tt.want)
			}
		})
	}
}

func TestTextRecords(t *testing.T) {
	text := parseText(txtRecords("bracelet"))
	if text["jewelry"] != "bracelet" {
		t.Errorf("jewelry = %q, want bracelet", text["jewelry"])
	}
	if text["events"] != "/api/events" {
		t.Errorf("events = %q", text["events"])
	}
}

func TestNew(t *testing.T) {
	s, err := New("0.0.0.0:8765", testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if s.Port() != 8765 {
		t.Errorf("Port() = %d", s.Port())
	}
	if s.Instance() == "" {
		t.Error("Instance() should not be empty")
	}

	// Stop before Start is a no-op.
	s.Stop()
}

func TestRegisterAndBrowse(t *testing.T) {
	if testing.Short() || os.Getenv("TRYON_TEST_MDNS") == "" {
		t.Skip("set TRYON_TEST_MDNS to run multicast tests")
	}

	s, err := New(":18765", testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Start("ring"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	endpoints, err := Browse(ctx)
	if err != nil {
		t.Fatalf("Browse() error = %v", err)
	}
	for ep := range endpoints {
		if ep.Instance == s.Instance() {
			if ep.Port != 18765 || ep.Text["jewelry"] != "ring" {
				t.Errorf("endpoint = %+v", ep)
			}
			return
		}
	}
	t.Fatal("registered service not found")
}
