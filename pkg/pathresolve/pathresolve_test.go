package pathresolve

import "testing"

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		wd, raw string
		want    string
	}{
		{"already absolute", "/home/user", "/etc/passwd", "/etc/passwd"},
		{"relative", "/home/user", "data.txt", "/home/user/data.txt"},
		{"relative with dot", "/home/user", "./data.txt", "/home/user/data.txt"},
		{"relative with dotdot", "/home/user/sub", "../data.txt", "/home/user/data.txt"},
		{"absolute with dotdot", "/home/user", "/a/b/../c", "/a/b/../c"},
		{"double slashes", "/home/user", "a//b", "/home/user/a/b"},
		{"trailing slash collapsed", "/home/user", "a/", "/home/user/a"},
		{"root stays root", "/", ".", "/"},
		{"empty raw resolves to wd", "/home/user", "", "/home/user"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(tt.wd, tt.raw); got != tt.want {
				t.Errorf("Resolve(%q, %q) = %q, want %q", tt.wd, tt.raw, got, tt.want)
			}
		})
	}
}
