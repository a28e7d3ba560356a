package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Faultbox/meshdeck/internal/geometry"
)

const triangleOBJ = `v 0 0 0
v 1 0 0
v 0 1 0
f 1 2 3
`

func writeModel(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testOptions() LoadOptions {
	return LoadOptions{
		NormalsPolicy: geometry.PolicyAuto,
		HardAngleDeg:  60,
	}
}

func waitLoaded(t *testing.T, c *Controller) Loaded {
	t.Helper()
	select {
	case res := <-c.Loaded():
		return res
	case fail := <-c.Failed():
		t.Fatalf("load failed: %s", fail.ErrorText)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for load result")
	}
	return Loaded{}
}

func TestStartLoadDeliversPayload(t *testing.T) {
	c := NewController(testOptions())
	path := writeModel(t, "tri.obj", triangleOBJ)

	id, ok := c.StartLoad(3, path, false)
	if !ok {
		t.Fatal("load refused")
	}

	res := waitLoaded(t, c)
	if res.RequestID != id || res.Row != 3 || res.Path != path {
		t.Errorf("result mismatch: %+v", res)
	}
	if res.Payload == nil || res.Payload.TriangleCount() != 1 {
		t.Error("payload missing or wrong triangle count")
	}
	if !c.Accept(res.RequestID) {
		t.Error("current result must be accepted")
	}
}

func TestStaleResultsAreRejected(t *testing.T) {
	c := NewController(testOptions())
	first := writeModel(t, "a.obj", triangleOBJ)
	second := writeModel(t, "b.obj", triangleOBJ)

	firstID, _ := c.StartLoad(0, first, false)
	secondID, _ := c.StartLoad(1, second, false)
	if secondID <= firstID {
		t.Fatalf("request ids must increase: %d then %d", firstID, secondID)
	}

	if c.Accept(firstID) {
		t.Error("superseded request id accepted")
	}
	if !c.Accept(secondID) {
		t.Error("current request id rejected")
	}

	// Both workers deliver; the buffered channels never block them.
	got := make(map[uint64]bool)
	for i := 0; i < 2; i++ {
		res := waitLoaded(t, c)
		got[res.RequestID] = true
	}
	if !got[firstID] || !got[secondID] {
		t.Errorf("expected both deliveries, got %v", got)
	}
}

func TestFailedLoadCarriesMessage(t *testing.T) {
	c := NewController(testOptions())

	id, ok := c.StartLoad(0, filepath.Join(t.TempDir(), "missing.obj"), false)
	if !ok {
		t.Fatal("load refused")
	}

	select {
	case fail := <-c.Failed():
		if fail.RequestID != id {
			t.Errorf("request id %d, want %d", fail.RequestID, id)
		}
		if fail.ErrorText == "" {
			t.Error("failure must carry a message")
		}
	case <-c.Loaded():
		t.Fatal("missing file load succeeded")
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for failure")
	}
}

func TestHeavyFileNeedsConfirmation(t *testing.T) {
	opts := testOptions()
	opts.HeavyFileSizeMB = 1
	c := NewController(opts)

	path := filepath.Join(t.TempDir(), "big.obj")
	data := make([]byte, 2*1024*1024)
	copy(data, triangleOBJ)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	if !c.NeedsConfirmation(path) {
		t.Fatal("oversized file must need confirmation")
	}

	before := c.CurrentRequestID()
	if _, ok := c.StartLoad(0, path, false); ok {
		t.Error("unconfirmed heavy load must be refused")
	}
	if c.CurrentRequestID() != before {
		t.Error("refused load must not consume a request id")
	}

	if _, ok := c.StartLoad(0, path, true); !ok {
		t.Error("confirmed heavy load must start")
	}
	// Drain whichever result the padded file produces.
	select {
	case <-c.Loaded():
	case <-c.Failed():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for heavy load result")
	}
}
