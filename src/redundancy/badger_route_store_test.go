package redundancy

import (
	"reflect"
	"testing"
	"time"

	"github.com/dcfnet/dcf/src/common"
)

func TestBadgerRouteStore(t *testing.T) {
	dir := t.TempDir()
	logger := common.NewTestEntry(t, common.TestLogLevel)

	store, err := NewBadgerRouteStore(dir, logger)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	samples := map[string][]time.Duration{
		"10.0.0.1:1337": {time.Millisecond, 3 * time.Millisecond},
		"10.0.0.2:1337": {40 * time.Millisecond},
	}

	if err := store.Save(samples); err != nil {
		t.Fatalf("err: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("err: %v", err)
	}

	store, err = NewBadgerRouteStore(dir, logger)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer store.Close()

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !reflect.DeepEqual(loaded, samples) {
		t.Fatalf("loaded samples should be %v, not %v", samples, loaded)
	}
}
