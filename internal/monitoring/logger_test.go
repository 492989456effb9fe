package monitoring

import (
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	if !called {
		t.Error("Custom logger was not called")
	}

	called = false
	SetLogger(nil)
	Logf("test message")
	if called {
		t.Error("nil logger should be a no-op")
	}
}

func TestPrefixed(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got string
	SetLogger(func(format string, v ...interface{}) {
		got = fmt.Sprintf(format, v...)
	})

	logf := Prefixed("[import] ")
	logf("%d rows", 3)
	if got != "[import] 3 rows" {
		t.Errorf("got %q, want %q", got, "[import] 3 rows")
	}
}

func TestSolveTotalCounter(t *testing.T) {
	c := SolveTotal.WithLabelValues("abv_brix", "solved")
	before := testutil.ToFloat64(c)
	c.Inc()
	if after := testutil.ToFloat64(c); after != before+1 {
		t.Errorf("counter = %v, want %v", after, before+1)
	}
}
