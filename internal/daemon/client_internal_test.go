package daemon

import "testing"

func TestBaseURL(t *testing.T) {
	tests := []struct {
		bind string
		want string
	}{
		{"127.0.0.1:7490", "http://127.0.0.1:7490"},
		{"0.0.0.0:7490", "http://127.0.0.1:7490"},
		{":7490", "http://127.0.0.1:7490"},
		{"[::]:7490", "http://127.0.0.1:7490"},
		{"http://host:1/", "http://host:1"},
	}
	for _, tt := range tests {
		if got := baseURL(tt.bind); got != tt.want {
			t.Fatalf("baseURL(%q) = %q, want %q", tt.bind, got, tt.want)
		}
	}
}
