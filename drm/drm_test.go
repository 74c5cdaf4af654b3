package drm_test

import (
	"testing"

	"github.com/wxd9199/drmclone/drm"
)

func TestOpenCardMissingDevice(t *testing.T) {
	if _, err := drm.OpenCard(99); err == nil {
		t.Fatalf("OpenCard(99) unexpectedly succeeded; expected no such device")
	}
}

func TestAvailable(t *testing.T) {
	v, err := drm.Available()
	if err != nil {
		t.Skip("no /dev/dri/card0 available in this environment")
	}
	if v.Name == "" {
		t.Fatalf("Available() returned a version with an empty driver name")
	}
}

func TestGetVersion(t *testing.T) {
	f, err := drm.OpenCard(0)
	if err != nil {
		t.Skip("no /dev/dri/card0 available in this environment")
	}
	defer f.Close()

	v, err := drm.GetVersion(f)
	if err != nil {
		t.Fatalf("GetVersion: %v", err)
	}
	if v.Major < 0 || v.Minor < 0 {
		t.Fatalf("GetVersion returned negative major/minor: %+v", v)
	}
}
