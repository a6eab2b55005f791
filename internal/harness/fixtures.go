package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/cosmongo/internal/cosmos"
)

// Fixture is one translation case loaded from CUE.
type Fixture struct {
	Name   string             `json:"name"`
	Query  string             `json:"query"`
	Params []cosmos.Parameter `json:"params,omitempty"`

	// Expect maps expectation keys to their JSON-decoded values.
	Expect map[string]any `json:"expect,omitempty"`

	// Pos is the file:line:column of the case.
	Pos string `json:"pos,omitempty"`
}

// FixtureSet is the result of loading a fixtures directory.
type FixtureSet struct {
	Files int       `json:"files"`
	Cases []Fixture `json:"cases"`
}

// expectKeys lists the recognized expectation keys.
var expectKeys = map[string]bool{
	"filter": true, "sort": true, "projection": true, "skip": true, "limit": true,
	"aggregate": true, "pipeline": true, "diagnostics": true,
}

// LoadFixtures reads every .cue file under dir and collects the cases
// lists, in file then list order.
func LoadFixtures(dir string) (*FixtureSet, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("fixtures directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("error scanning directory: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	ctx := cuecontext.New()
	set := &FixtureSet{Files: len(files)}
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		value := ctx.CompileBytes(data, cue.Filename(path))
		if err := value.Err(); err != nil {
			return nil, fmt.Errorf("building CUE value: %w", err)
		}

		cases := value.LookupPath(cue.ParsePath("cases"))
		if !cases.Exists() {
			continue
		}
		iter, err := cases.List()
		if err != nil {
			return nil, fmt.Errorf("%s: cases must be a list: %w", path, err)
		}
		for iter.Next() {
			f, err := decodeFixture(iter.Value())
			if err != nil {
				return nil, fmt.Errorf("%s: %w", iter.Value().Pos(), err)
			}
			set.Cases = append(set.Cases, f)
		}
	}

	if len(set.Cases) == 0 {
		return nil, fmt.Errorf("no cases found in %s", dir)
	}
	return set, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func decodeFixture(v cue.Value) (Fixture, error) {
	f := Fixture{Pos: v.Pos().String()}

	name, err := v.LookupPath(cue.ParsePath("name")).String()
	if err != nil {
		return f, fmt.Errorf("case name: %w", err)
	}
	f.Name = name

	query, err := v.LookupPath(cue.ParsePath("query")).String()
	if err != nil {
		return f, fmt.Errorf("case %s: query: %w", name, err)
	}
	f.Query = query

	if params := v.LookupPath(cue.ParsePath("params")); params.Exists() {
		var m map[string]any
		if err := decodeJSON(params, &m); err != nil {
			return f, fmt.Errorf("case %s: params: %w", name, err)
		}
		for _, k := range slices.Sorted(maps.Keys(m)) {
			f.Params = append(f.Params, cosmos.Parameter{Name: k, Value: m[k]})
		}
	}

	if expect := v.LookupPath(cue.ParsePath("expect")); expect.Exists() {
		if err := decodeJSON(expect, &f.Expect); err != nil {
			return f, fmt.Errorf("case %s: expect: %w", name, err)
		}
		for k := range f.Expect {
			if !expectKeys[k] {
				return f, fmt.Errorf("case %s: unknown expect key %q", name, k)
			}
		}
	}
	return f, nil
}

// decodeJSON exports a concrete CUE value through JSON, keeping numbers
// as json.Number so integers stay integers.
func decodeJSON(v cue.Value, out any) error {
	data, err := v.MarshalJSON()
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(out)
}

// CaseResult is the outcome of checking one fixture.
type CaseResult struct {
	Name        string       `json:"name"`
	Pass        bool         `json:"pass"`
	Errors      []string     `json:"errors,omitempty"`
	Translation *Translation `json:"translation,omitempty"`
}

// CheckFixture translates the fixture's query and compares every
// expectation it carries.
func CheckFixture(f Fixture) CaseResult {
	res := CaseResult{Name: f.Name, Pass: true}

	t, err := Translate(f.Query, f.Params)
	if err != nil {
		res.Pass = false
		res.Errors = append(res.Errors, err.Error())
		return res
	}
	res.Translation = t

	for _, key := range slices.Sorted(maps.Keys(f.Expect)) {
		want := f.Expect[key]
		var got any
		if key == "diagnostics" {
			got = t.DiagnosticCodes()
		} else {
			got = t.Mongo[key]
		}
		if !valuesEqual(got, want) {
			gotJSON, _ := canonical(got)
			wantJSON, _ := canonical(want)
			res.Pass = false
			res.Errors = append(res.Errors, fmt.Sprintf("%s: expected %s, got %s", key, wantJSON, gotJSON))
		}
	}
	return res
}
