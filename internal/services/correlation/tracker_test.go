package correlation

import (
	"math"
	"sync"
	"testing"
)

func TestMatrixSymmetricAndBounded(t *testing.T) {
	tr := New(100, 0.7)
	for i := 0; i < 50; i++ {
		x := math.Sin(float64(i))
		tr.RecordOutcome("a", x)
		tr.RecordOutcome("b", -x)
		tr.RecordOutcome("c", math.Cos(float64(i)*1.7))
	}

	snap := tr.SnapshotMatrix()
	n := len(snap.Strategies)
	if n != 3 {
		t.Fatalf("expected 3 strategies, got %d", n)
	}
	for i := 0; i < n; i++ {
		if snap.Matrix[i][i] != 1 {
			t.Fatalf("diagonal not 1 at %d: %v", i, snap.Matrix[i][i])
		}
		for j := 0; j < n; j++ {
			v := snap.Matrix[i][j]
			if v < -1 || v > 1 || math.IsNaN(v) {
				t.Fatalf("entry out of range at %d,%d: %v", i, j, v)
			}
			if snap.Matrix[i][j] != snap.Matrix[j][i] {
				t.Fatalf("matrix not symmetric at %d,%d", i, j)
			}
		}
	}
}

func TestPerfectlyAntiCorrelated(t *testing.T) {
	tr := New(100, 0.7)
	for i := 0; i < 30; i++ {
		x := float64(i%7) - 3
		tr.RecordOutcome("a", x)
		tr.RecordOutcome("b", -x)
	}
	snap := tr.SnapshotMatrix()
	if got := snap.Pair("a", "b"); math.Abs(got+1) > 1e-9 {
		t.Fatalf("expected -1, got %v", got)
	}
}

func TestHistoryBounded(t *testing.T) {
	tr := New(10, 0.7)
	for i := 0; i < 100; i++ {
		tr.RecordOutcome("a", float64(i))
	}
	tr.mu.Lock()
	n := len(tr.histories["a"])
	tr.mu.Unlock()
	if n != 10 {
		t.Fatalf("history not bounded: %d", n)
	}
}

func TestNonFiniteReturnsDropped(t *testing.T) {
	tr := New(10, 0.7)
	tr.RecordOutcome("a", math.NaN())
	tr.RecordOutcome("a", math.Inf(1))
	tr.mu.Lock()
	n := len(tr.histories["a"])
	tr.mu.Unlock()
	if n != 0 {
		t.Fatalf("non-finite returns recorded: %d", n)
	}
}

func TestSnapshotImmuneToConcurrentAppends(t *testing.T) {
	tr := New(500, 0.7)
	for i := 0; i < 50; i++ {
		tr.RecordOutcome("a", float64(i%5))
		tr.RecordOutcome("b", float64((i+2)%5))
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				tr.RecordOutcome("a", 0.1)
				tr.RecordOutcome("c", -0.2)
			}
		}
	}()

	for i := 0; i < 200; i++ {
		snap := tr.SnapshotMatrix()
		for r := range snap.Matrix {
			for c := range snap.Matrix[r] {
				v := snap.Matrix[r][c]
				if math.IsNaN(v) || v < -1 || v > 1 {
					close(stop)
					wg.Wait()
					t.Fatalf("invalid entry under concurrency: %v", v)
				}
			}
		}
	}
	close(stop)
	wg.Wait()
}

func TestClusterAssignment(t *testing.T) {
	tr := New(100, 0.9)
	for i := 0; i < 40; i++ {
		x := math.Sin(float64(i) / 3)
		tr.RecordOutcome("a", x)
		tr.RecordOutcome("b", x*2) // perfectly correlated with a
		tr.RecordOutcome("c", math.Cos(float64(i)*2.3))
	}
	snap := tr.SnapshotMatrix()
	if snap.Cluster("a") != snap.Cluster("b") {
		t.Fatalf("correlated strategies not clustered: a=%d b=%d", snap.Cluster("a"), snap.Cluster("b"))
	}
	if snap.Cluster("unknown") != -1 {
		t.Fatalf("unknown strategy must map to -1")
	}
}
