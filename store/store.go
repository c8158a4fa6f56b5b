// Package store persists time evolutions in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/fumin/tensor"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/fumin/tmps"
	"github.com/fumin/tmps/mpa"
)

const (
	tableStep       = "step"
	tableObservable = "observable"
	tableSite       = "site"
	tableElement    = "element"
)

// DB stores the evolutions of runs, each identified by a name.
type DB struct {
	Path string
	db   *sql.DB
}

// Step is a stored entry of an evolution.
type Step struct {
	Time         float64
	Fidelity     float64
	TrotterError float64
	Observables  map[string]complex128
}

// Open opens or creates the database at path.
func Open(ctx context.Context, path string) (*DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	if err := prepareDB(ctx, db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "")
	}
	return &DB{Path: path, db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// WriteEvolution replaces the stored evolution of run with ev.
// observables maps a name to the values of the observable at every entry of ev.
func (d *DB) WriteEvolution(ctx context.Context, run string, ev tmps.Evolution, observables map[string][]complex128) error {
	for name, values := range observables {
		if len(values) != ev.Len() {
			return errors.Errorf("observable %s has %d values, evolution %d", name, len(values), ev.Len())
		}
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "")
	}
	if err := writeEvolution(ctx, tx, run, ev, observables); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "")
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

func writeEvolution(ctx context.Context, tx *sql.Tx, run string, ev tmps.Evolution, observables map[string][]complex128) error {
	if err := deleteRun(ctx, tx, run); err != nil {
		return errors.Wrap(err, "")
	}

	for i := range ev.Len() {
		sqlStr := fmt.Sprintf(`INSERT INTO %s (run, i, t, fidelity, trotter) VALUES (?, ?, ?, ?, ?)`, tableStep)
		args := []any{run, i, ev.Times[i], ev.Fidelities[i], ev.TrotterErrors[i]}
		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			return errors.Wrap(err, fmt.Sprintf("%s %#v", sqlStr, args))
		}

		for name, values := range observables {
			sqlStr := fmt.Sprintf(`INSERT INTO %s (run, i, name, re, im) VALUES (?, ?, ?, ?, ?)`, tableObservable)
			args := []any{run, i, name, real(values[i]), imag(values[i])}
			if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
				return errors.Wrap(err, fmt.Sprintf("%s %#v", sqlStr, args))
			}
		}

		for j, s := range ev.States[i].Sites {
			if err := writeSite(ctx, tx, run, i, j, s); err != nil {
				return errors.Wrap(err, fmt.Sprintf("%d %d", i, j))
			}
		}
	}
	return nil
}

func writeSite(ctx context.Context, tx *sql.Tx, run string, i, site int, t *tensor.Dense) error {
	shape := make([]string, 0, len(t.Shape()))
	for _, d := range t.Shape() {
		shape = append(shape, strconv.Itoa(d))
	}
	sqlStr := fmt.Sprintf(`INSERT INTO %s (run, i, site, shape) VALUES (?, ?, ?, ?)`, tableSite)
	if _, err := tx.ExecContext(ctx, sqlStr, run, i, site, strings.Join(shape, ",")); err != nil {
		return errors.Wrap(err, "")
	}

	// Zeros are not stored, as in a sparse matrix.
	// Elements are indexed in row major order.
	sqlStr = fmt.Sprintf(`INSERT INTO %s (run, i, site, idx, re, im) VALUES (?, ?, ?, ?, ?, ?)`, tableElement)
	idx := -1
	for _, v := range t.All() {
		idx++
		if v == 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, sqlStr, run, i, site, idx, real(v), imag(v)); err != nil {
			return errors.Wrap(err, fmt.Sprintf("%d", idx))
		}
	}
	return nil
}

// ReadSteps returns the stored entries of run in increasing order of time.
func (d *DB) ReadSteps(ctx context.Context, run string) ([]Step, error) {
	sqlStr := fmt.Sprintf(`SELECT t, fidelity, trotter FROM %s WHERE run=? ORDER BY i`, tableStep)
	rows, err := d.db.QueryContext(ctx, sqlStr, run)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer rows.Close()

	steps := make([]Step, 0)
	for rows.Next() {
		s := Step{Observables: make(map[string]complex128)}
		if err := rows.Scan(&s.Time, &s.Fidelity, &s.TrotterError); err != nil {
			return nil, errors.Wrap(err, "")
		}
		steps = append(steps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}

	sqlStr = fmt.Sprintf(`SELECT i, name, re, im FROM %s WHERE run=?`, tableObservable)
	obsRows, err := d.db.QueryContext(ctx, sqlStr, run)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer obsRows.Close()
	for obsRows.Next() {
		var i int
		var name string
		var re, im float64
		if err := obsRows.Scan(&i, &name, &re, &im); err != nil {
			return nil, errors.Wrap(err, "")
		}
		if i < 0 || i >= len(steps) {
			return nil, errors.Errorf("observable %s of step %d, %d steps", name, i, len(steps))
		}
		steps[i].Observables[name] = complex(re, im)
	}
	if err := obsRows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}

	return steps, nil
}

// ReadState returns the state of the i-th entry of run.
func (d *DB) ReadState(ctx context.Context, run string, i int) (*mpa.MPArray, error) {
	sqlStr := fmt.Sprintf(`SELECT site, shape FROM %s WHERE run=? AND i=? ORDER BY site`, tableSite)
	rows, err := d.db.QueryContext(ctx, sqlStr, run, i)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer rows.Close()

	// Sites are read as flat vectors, and reshaped after all elements are set.
	sites := make([]*tensor.Dense, 0)
	shapes := make([][]int, 0)
	for rows.Next() {
		var site int
		var shapeStr string
		if err := rows.Scan(&site, &shapeStr); err != nil {
			return nil, errors.Wrap(err, "")
		}
		if site != len(sites) {
			return nil, errors.Errorf("missing site %d", len(sites))
		}
		shape, err := parseShape(shapeStr)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("%d", site))
		}
		size := 1
		for _, d := range shape {
			size *= d
		}
		sites = append(sites, tensor.Zeros(size))
		shapes = append(shapes, shape)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	if len(sites) == 0 {
		return nil, errors.Errorf("no state %s %d", run, i)
	}

	sqlStr = fmt.Sprintf(`SELECT site, idx, re, im FROM %s WHERE run=? AND i=?`, tableElement)
	elemRows, err := d.db.QueryContext(ctx, sqlStr, run, i)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer elemRows.Close()
	for elemRows.Next() {
		var site, idx int
		var re, im float64
		if err := elemRows.Scan(&site, &idx, &re, &im); err != nil {
			return nil, errors.Wrap(err, "")
		}
		if site < 0 || site >= len(sites) || idx < 0 || idx >= sites[site].Shape()[0] {
			return nil, errors.Errorf("element %d %d out of range", site, idx)
		}
		sites[site].SetAt([]int{idx}, complex64(complex(re, im)))
	}
	if err := elemRows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	for k, shape := range shapes {
		sites[k] = sites[k].Reshape(shape...)
	}

	state, err := mpa.New(sites)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return state, nil
}

// Runs returns the names of the stored runs.
func (d *DB) Runs(ctx context.Context) ([]string, error) {
	sqlStr := fmt.Sprintf(`SELECT DISTINCT run FROM %s`, tableStep)
	rows, err := d.db.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer rows.Close()

	runs := make([]string, 0)
	for rows.Next() {
		var run string
		if err := rows.Scan(&run); err != nil {
			return nil, errors.Wrap(err, "")
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	slices.Sort(runs)
	return runs, nil
}

func parseShape(s string) ([]int, error) {
	fields := strings.Split(s, ",")
	shape := make([]int, 0, len(fields))
	for _, f := range fields {
		d, err := strconv.Atoi(f)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("%#v", s))
		}
		shape = append(shape, d)
	}
	return shape, nil
}

func deleteRun(ctx context.Context, tx *sql.Tx, run string) error {
	for _, table := range []string{tableStep, tableObservable, tableSite, tableElement} {
		sqlStr := fmt.Sprintf(`DELETE FROM %s WHERE run=?`, table)
		if _, err := tx.ExecContext(ctx, sqlStr, run); err != nil {
			return errors.Wrap(err, "")
		}
	}
	return nil
}

func prepareDB(ctx context.Context, db *sql.DB) error {
	sqlStrs := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (run TEXT, i INTEGER, t REAL, fidelity REAL, trotter REAL, PRIMARY KEY (run, i)) STRICT`, tableStep),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (run TEXT, i INTEGER, name TEXT, re REAL, im REAL, PRIMARY KEY (run, i, name)) STRICT`, tableObservable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (run TEXT, i INTEGER, site INTEGER, shape TEXT, PRIMARY KEY (run, i, site)) STRICT`, tableSite),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (run TEXT, i INTEGER, site INTEGER, idx INTEGER, re REAL, im REAL, PRIMARY KEY (run, i, site, idx)) STRICT`, tableElement),
	}
	for _, sqlStr := range sqlStrs {
		if _, err := db.ExecContext(ctx, sqlStr); err != nil {
			return errors.Wrap(err, sqlStr)
		}
	}
	return nil
}
