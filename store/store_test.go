package store

import (
	"context"
	"flag"
	"log"
	"math/cmplx"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/fumin/tmps"
	"github.com/fumin/tmps/mat"
	"github.com/fumin/tmps/mpa"
)

func TestWriteEvolution(t *testing.T) {
	t.Parallel()
	dir, err := os.MkdirTemp("", "")
	if err != nil {
		t.Fatalf("%+v", err)
	}
	defer os.RemoveAll(dir)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := Open(ctx, filepath.Join(dir, "tmps.db"))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	defer db.Close()

	up := mat.M([][]complex128{{1, 0}, {0, 0}})
	state, err := tmps.ProductMPO(slices.Repeat([]*mat.CDense{up}, 3))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	compr := mpa.NewCompressOptions().RelErr(1e-10)
	ev, err := tmps.Evolve(state, tmps.TransverseFieldIsing(1, 1), []float64{0, 0.1, 0.2}, 4, tmps.MPO, compr)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	mz := make([]complex128, 0, ev.Len())
	for _, s := range ev.States {
		m, err := tmps.Magnetization(s, tmps.MPO, mat.M(mat.PauliZ))
		if err != nil {
			t.Fatalf("%+v", err)
		}
		mz = append(mz, m)
	}
	observables := map[string][]complex128{"mz": mz}

	// Writing twice replaces the first write.
	for range 2 {
		if err := db.WriteEvolution(ctx, "ising", ev, observables); err != nil {
			t.Fatalf("%+v", err)
		}
	}

	steps, err := db.ReadSteps(ctx, "ising")
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if len(steps) != ev.Len() {
		t.Fatalf("%d, expected %d", len(steps), ev.Len())
	}
	for i, s := range steps {
		if s.Time != ev.Times[i] || s.Fidelity != ev.Fidelities[i] || s.TrotterError != ev.TrotterErrors[i] {
			t.Fatalf("%d %#v", i, s)
		}
		if s.Observables["mz"] != mz[i] {
			t.Fatalf("%d %v, expected %v", i, s.Observables["mz"], mz[i])
		}
	}

	for i, expected := range ev.States {
		got, err := db.ReadState(ctx, "ising", i)
		if err != nil {
			t.Fatalf("%+v", err)
		}
		if err := got.ToMatrix().Equal(expected.ToMatrix(), 0); err != nil {
			t.Fatalf("%d %+v", i, err)
		}
	}
	if tr := mpa.Trace(ev.States[2]); cmplx.Abs(tr-1) > 1e-4 {
		t.Fatalf("%v", tr)
	}

	runs, err := db.Runs(ctx)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if !slices.Equal(runs, []string{"ising"}) {
		t.Fatalf("%#v", runs)
	}
}

func TestWriteEvolutionWrongObservables(t *testing.T) {
	t.Parallel()
	dir, err := os.MkdirTemp("", "")
	if err != nil {
		t.Fatalf("%+v", err)
	}
	defer os.RemoveAll(dir)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := Open(ctx, filepath.Join(dir, "tmps.db"))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	defer db.Close()

	ev := tmps.Evolution{Times: []float64{0}, Fidelities: []float64{1}, TrotterErrors: []float64{0}}
	if err := db.WriteEvolution(ctx, "a", ev, map[string][]complex128{"mz": {1, 2}}); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := db.ReadState(ctx, "a", 0); err == nil {
		t.Fatalf("expected error")
	}
}

func TestMain(m *testing.M) {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)

	m.Run()
}
