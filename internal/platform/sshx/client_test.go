package sshx

import "testing"

func TestQuote(t *testing.T) {
	cases := map[string]string{
		"/root/task":       "'/root/task'",
		"it's here":        `'it'\''s here'`,
		"a b; rm -rf /tmp": "'a b; rm -rf /tmp'",
	}
	for in, want := range cases {
		if got := Quote(in); got != want {
			t.Fatalf("Quote(%q): want=%s got=%s", in, want, got)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.User != "root" || cfg.Port != 22 || cfg.ConnectTimeout != DefaultConnectTimeout {
		t.Fatalf("withDefaults: got %+v", cfg)
	}
}
