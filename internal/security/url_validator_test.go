package security

import (
	"errors"
	"testing"
)

func TestValidateTargetURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr error
	}{
		{"valid post url", "https://x.com/someone/status/1234567890", nil},
		{"valid www host", "https://www.x.com/someone/status/1234567890", nil},
		{"valid legacy host", "https://twitter.com/someone/status/1234567890", nil},
		{"valid mobile host", "https://mobile.x.com/someone/status/1234567890", nil},
		{"http scheme accepted", "http://x.com/someone/status/1", nil},
		{"uppercase host", "https://X.com/someone/status/1", nil},

		{"empty", "", ErrInvalidURL},
		{"relative", "/someone/status/1", ErrInvalidURL},
		{"no host", "https:///status/1", ErrInvalidURL},
		{"file scheme", "file:///etc/passwd", ErrBlockedScheme},
		{"javascript scheme", "javascript:alert(1)", ErrBlockedScheme},
		{"foreign host", "https://example.com/status/1", ErrBlockedHost},
		{"suffix spoof", "https://evilx.com/status/1", ErrBlockedHost},
		{"subdomain spoof", "https://x.com.evil.example/status/1", ErrBlockedHost},
		{"localhost", "https://localhost/status/1", ErrBlockedHost},
		{"metadata ip", "http://169.254.169.254/latest/meta-data/", ErrBlockedHost},
		{"bare host", "https://x.com", ErrEmptyPath},
		{"root path only", "https://x.com/", ErrEmptyPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTargetURL(tt.url)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateTargetURL(%q) = %v, want nil", tt.url, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateTargetURL(%q) = %v, want %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestAllowedHostList(t *testing.T) {
	hosts := AllowedHostList()
	if len(hosts) == 0 {
		t.Fatal("Expected non-empty allow-list")
	}
	seen := make(map[string]bool, len(hosts))
	for _, h := range hosts {
		seen[h] = true
	}
	for _, want := range []string{"x.com", "twitter.com", "www.x.com"} {
		if !seen[want] {
			t.Errorf("Allow-list missing %q", want)
		}
	}
}
