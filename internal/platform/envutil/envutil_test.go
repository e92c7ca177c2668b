package envutil

import (
	"errors"
	"strings"
	"testing"
)

func TestListSplitsOnCommasAndSpace(t *testing.T) {
	t.Setenv("AVAILABLE_IPS", "10.0.0.1, 10.0.0.2\n10.0.0.3,,")
	got := List("AVAILABLE_IPS")
	want := []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}
	if len(got) != len(want) {
		t.Fatalf("List: want=%v got=%v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("List[%d]: want=%q got=%q", i, want[i], got[i])
		}
	}
}

func TestRequireNamesEveryMissingVariable(t *testing.T) {
	t.Setenv("GITHUB_GIST_TOKEN", "x")
	t.Setenv("GITHUB_UTKRUSHTAPPS_TOKEN", "")
	t.Setenv("REPO_OWNER", " ")

	_, err := Require("GITHUB_GIST_TOKEN", "GITHUB_UTKRUSHTAPPS_TOKEN", "REPO_OWNER")
	if !errors.Is(err, ErrMissingEnv) {
		t.Fatalf("Require: want ErrMissingEnv, got %v", err)
	}
	if !strings.Contains(err.Error(), "GITHUB_UTKRUSHTAPPS_TOKEN") || !strings.Contains(err.Error(), "REPO_OWNER") {
		t.Fatalf("Require: error should name missing vars, got %q", err.Error())
	}
}

func TestBoolAndIntDefaults(t *testing.T) {
	t.Setenv("X_BOOL", "maybe")
	if got := Bool("X_BOOL", true); !got {
		t.Fatalf("Bool: unparseable should return default")
	}
	t.Setenv("X_INT", "12a")
	if got := Int("X_INT", 7); got != 7 {
		t.Fatalf("Int: want=%d got=%d", 7, got)
	}
}
