package policy

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"

	"github.com/mimipynb/agentDial/internal/params"
)

func rowOf(t *testing.T, p *MarkovPolicy, n params.Name, i params.Action) []float64 {
	t.Helper()
	m, err := p.Matrix(n)
	if err != nil {
		t.Fatalf("Matrix: %v", err)
	}
	return m.RawRowView(int(i))
}

// #region update-tests
func TestMarkovUpdateNormalizesRow(t *testing.T) {
	p := NewMarkov(nil, 1)
	p.prev[params.Temperature] = params.Increase

	if err := p.Update(params.Temperature, params.Decrease, 1.0, Observation{}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got := rowOf(t, p, params.Temperature, params.Increase)
	want := []float64{0.5, 0.5, 0}
	if !floats.EqualApprox(got, want, 1e-12) {
		t.Fatalf("expected row %v, got %v", want, got)
	}
	if prev, _ := p.Prev(params.Temperature); prev != params.Decrease {
		t.Fatalf("expected prev=decrease, got %s", prev)
	}
}

func TestMarkovFirstUpdateOnlyRecordsPrev(t *testing.T) {
	p := NewMarkov(nil, 1)
	if err := p.Update(params.TopK, params.Hold, 0.7, Observation{}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	for i := params.Increase; i <= params.Hold; i++ {
		row := rowOf(t, p, params.TopK, i)
		for j, v := range row {
			want := 0.0
			if j == int(i) {
				want = 1
			}
			if v != want {
				t.Fatalf("row %d changed on cold start: %v", i, row)
			}
		}
	}
	if prev, ok := p.Prev(params.TopK); !ok || prev != params.Hold {
		t.Fatalf("expected prev=hold, got %s (%v)", prev, ok)
	}
}

func TestMarkovRejectsNegativeReward(t *testing.T) {
	p := NewMarkov(nil, 1)
	p.prev[params.TopP] = params.Hold
	before := p.Snapshot()

	err := p.Update(params.TopP, params.Increase, -0.1, Observation{})
	if !errors.Is(err, ErrInvalidReward) {
		t.Fatalf("expected ErrInvalidReward, got %v", err)
	}
	assertSnapshotEqual(t, before, p.Snapshot())
}

func TestMarkovRowsStayStochastic(t *testing.T) {
	p := NewMarkov(nil, 42)
	rewards := []float64{0, 0.3, 1, 2.5, 0, 0.01, 7}
	for step := 0; step < 60; step++ {
		for _, n := range params.Names {
			a := params.Actions[(step+len(n))%params.NumActions]
			if err := p.Update(n, a, rewards[step%len(rewards)], Observation{}); err != nil {
				t.Fatalf("Update: %v", err)
			}
			m, _ := p.Matrix(n)
			for i := 0; i < params.NumActions; i++ {
				if sum := floats.Sum(m.RawRowView(i)); math.Abs(sum-1) > 1e-9 {
					t.Fatalf("step %d %s row %d sums to %g", step, n, i, sum)
				}
			}
		}
	}
}

func TestNormalizeRowZeroBecomesUniform(t *testing.T) {
	row := []float64{0, 0, 0}
	normalizeRow(row)
	for _, v := range row {
		if math.Abs(v-1.0/3) > 1e-12 {
			t.Fatalf("expected uniform row, got %v", row)
		}
	}
}
// #endregion update-tests

// #region selection-tests
func TestMarkovNextActionFollowsRowArgmax(t *testing.T) {
	p := NewMarkov(nil, 1)
	p.prev[params.Temperature] = params.Increase
	p.Update(params.Temperature, params.Decrease, 3.0, Observation{})
	// prev is now decrease; push decrease -> hold.
	p.Update(params.Temperature, params.Hold, 5.0, Observation{})
	p.prev[params.Temperature] = params.Decrease

	d, err := p.NextAction(Observation{})
	if err != nil {
		t.Fatalf("NextAction: %v", err)
	}
	if d[params.Temperature] != params.Hold {
		t.Fatalf("expected hold, got %s", d[params.Temperature])
	}
}

func TestMarkovTieBreaksLowestIndex(t *testing.T) {
	p := NewMarkov(nil, 1)
	p.prev[params.TopK] = params.Hold
	p.Update(params.TopK, params.Increase, 1.0, Observation{}) // hold row -> [0.5, 0, 0.5]
	p.prev[params.TopK] = params.Hold

	d, _ := p.NextAction(Observation{})
	if d[params.TopK] != params.Increase {
		t.Fatalf("expected lowest-index tie break (increase), got %s", d[params.TopK])
	}
}

func TestMarkovColdStartIsValidAction(t *testing.T) {
	p := NewMarkov(nil, 9)
	for i := 0; i < 50; i++ {
		d, err := p.NextAction(Observation{})
		if err != nil {
			t.Fatalf("NextAction: %v", err)
		}
		for n, a := range d {
			if !a.Valid() {
				t.Fatalf("%s: invalid cold-start action %d", n, a)
			}
		}
	}
}

func TestMarkovNextActionDoesNotLearn(t *testing.T) {
	p := NewMarkov(nil, 3)
	p.Run(Observation{Reward: 0.5})
	p.Run(Observation{Reward: 0.2})
	before := p.Snapshot()

	first, _ := p.NextAction(Observation{})
	for i := 0; i < 10; i++ {
		d, _ := p.NextAction(Observation{})
		for _, n := range params.Names {
			if d[n] != first[n] {
				t.Fatalf("NextAction not deterministic once warm: %v vs %v", d, first)
			}
		}
	}
	assertSnapshotEqual(t, before, p.Snapshot())
}
// #endregion selection-tests
