package daemon

import (
	"reflect"
	"testing"
)

func TestFilterDaemonFlag(t *testing.T) {
	cases := []struct {
		in   []string
		want []string
	}{
		{[]string{"-d"}, []string{}},
		{[]string{"--daemon"}, []string{}},
		{[]string{"--daemon=true"}, []string{}},
		{[]string{"--device", "/dev/dri/card0", "-d"}, []string{"--device", "/dev/dri/card0"}},
		{[]string{"--debug"}, []string{"--debug"}},
	}
	for _, c := range cases {
		got := filterDaemonFlag(c.in)
		if !reflect.DeepEqual(got, c.want) {
			t.Fatalf("filterDaemonFlag(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestAlreadyDaemonizedFalseByDefault(t *testing.T) {
	if AlreadyDaemonized() {
		t.Fatalf("AlreadyDaemonized() must be false outside a re-exec'd child")
	}
}
