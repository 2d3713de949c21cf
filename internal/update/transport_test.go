package update

import "testing"

func TestIsSecureURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{url: "https://x/y", want: true},
		{url: "HTTPS://example.com/officeApp/OfficeApp_1.0.zip", want: true},
		{url: "https://127.0.0.1:8443/a", want: true},
		{url: "http://x/y", want: false},
		{url: "ftp://x/y", want: false},
		{url: "file:///etc/passwd", want: false},
		{url: "//x/y", want: false},
		{url: "https:///no-host", want: false},
		{url: "/officeApp/OfficeApp_1.0.zip", want: false},
		{url: "", want: false},
		{url: "https://[::1", want: false},
	}
	for _, tt := range tests {
		if got := IsSecureURL(tt.url); got != tt.want {
			t.Errorf("IsSecureURL(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}
