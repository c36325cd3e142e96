package natsdomain

import "testing"

func TestJobSubject(t *testing.T) {
	tests := []struct {
		subject string
		kind    string
	}{
		{JobSubject("scan"), "scan"},
		{JobSubject("custom_webhook"), "custom_webhook"},
		{"jobs.", ""},
		{"jobs", ""},
		{"payments.created", ""},
	}

	for _, tt := range tests {
		if got := KindFromSubject(tt.subject); got != tt.kind {
			t.Errorf("KindFromSubject(%q) = %q, want %q", tt.subject, got, tt.kind)
		}
	}

	if JobSubject("scan") != "jobs.scan" {
		t.Fatal(JobSubject("scan"))
	}
}
