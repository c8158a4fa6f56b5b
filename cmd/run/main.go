// Command run evolves a transverse field Ising chain from the all up state,
// stores the evolution in SQLite and prints the observables as CSV.
// Complex observables are printed in the format numpy.complex128 parses.
//
// Example config.yaml:
//
//	n: 8
//	j: 1
//	h: 0.5
//	times: [0, 0.5, 1, 1.5, 2]
//	slices: 40
//	method: pmps
//	order: 4
//	relerr: 1e-10
//	rank: 32
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/fumin/tmps"
	"github.com/fumin/tmps/mat"
	"github.com/fumin/tmps/mpa"
	"github.com/fumin/tmps/store"
	"github.com/fumin/tmps/util"
)

const (
	fnameDB = "tmps.db"

	obsMagnetization = "mz"
	obsEnergy        = "energy"
)

var (
	configPath = flag.String("c", "config.yaml", "config file")
	runDir     = flag.String("d", filepath.Join("runs", "tmps"), "run directory")
)

type Config struct {
	N      int       `yaml:"n"`
	J      float64   `yaml:"j"`
	H      float64   `yaml:"h"`
	Times  []float64 `yaml:"times"`
	Slices int       `yaml:"slices"`
	Method string    `yaml:"method"`
	Order  int       `yaml:"order"`
	RelErr float64   `yaml:"relerr"`
	Rank   int       `yaml:"rank"`
}

func readConfig(fpath string) (Config, error) {
	b, err := os.ReadFile(fpath)
	if err != nil {
		return Config{}, errors.Wrap(err, "")
	}
	c := Config{J: 1, Method: "mpo", Order: 2}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Config{}, errors.Wrap(err, "")
	}
	return c, nil
}

func (c Config) name() string {
	return fmt.Sprintf("n%d_j%g_h%g_%s_o%d_s%d", c.N, c.J, c.H, c.Method, c.Order, c.Slices)
}

func initialState(n int, method tmps.Method) (*mpa.MPArray, error) {
	switch method {
	case tmps.MPO:
		up := mat.M([][]complex128{{1, 0}, {0, 0}})
		return tmps.ProductMPO(slices.Repeat([]*mat.CDense{up}, n))
	default:
		return tmps.ProductPMPS(slices.Repeat([][]complex128{{1, 0}}, n))
	}
}

func evolve(c Config) (tmps.Evolution, map[string][]complex128, error) {
	method, err := tmps.ParseMethod(c.Method)
	if err != nil {
		return tmps.Evolution{}, nil, errors.Wrap(err, "")
	}
	state, err := initialState(c.N, method)
	if err != nil {
		return tmps.Evolution{}, nil, errors.Wrap(err, "")
	}
	h := tmps.TransverseFieldIsing(c.J, c.H)

	compr := mpa.NewCompressOptions().RelErr(c.RelErr).Rank(c.Rank)
	throttler := util.NewSkipThrottler(5 * time.Second)
	progress := throttler.Progress(func(step, total int) {
		log.Printf("slice %d/%d", step, total)
	})
	opt := tmps.NewEvolveOptions().TrotterOrder(c.Order).Progress(progress)
	ev, err := tmps.Evolve(state, h, c.Times, c.Slices, method, compr, opt)
	if err != nil {
		return tmps.Evolution{}, nil, errors.Wrap(err, "")
	}

	observables := map[string][]complex128{
		obsMagnetization: make([]complex128, 0, ev.Len()),
		obsEnergy:        make([]complex128, 0, ev.Len()),
	}
	for i, s := range ev.States {
		m, err := tmps.Magnetization(s, method, mat.M(mat.PauliZ))
		if err != nil {
			return tmps.Evolution{}, nil, errors.Wrap(err, fmt.Sprintf("%d", i))
		}
		e, err := tmps.Energy(s, method, h)
		if err != nil {
			return tmps.Evolution{}, nil, errors.Wrap(err, fmt.Sprintf("%d", i))
		}
		observables[obsMagnetization] = append(observables[obsMagnetization], m)
		observables[obsEnergy] = append(observables[obsEnergy], e)
	}
	return ev, observables, nil
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)

	if err := mainWithErr(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func mainWithErr() error {
	c, err := readConfig(*configPath)
	if err != nil {
		return errors.Wrap(err, "")
	}
	if err := os.MkdirAll(*runDir, os.ModePerm); err != nil {
		return errors.Wrap(err, "")
	}

	log.Printf("%#v", c)
	ev, observables, err := evolve(c)
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("%#v", c))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	db, err := store.Open(ctx, filepath.Join(*runDir, fnameDB))
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer db.Close()
	if err := db.WriteEvolution(ctx, c.name(), ev, observables); err != nil {
		return errors.Wrap(err, "")
	}

	fmt.Printf("t,fidelity,trotter,mz,energy\n")
	mz, energy := observables[obsMagnetization], observables[obsEnergy]
	for i := range ev.Len() {
		fmt.Printf("%f,%f,%g,%s,%s\n", ev.Times[i], ev.Fidelities[i], ev.TrotterErrors[i], mat.FormatNumpy(mz[i]), mat.FormatNumpy(energy[i]))
	}
	return nil
}
