// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Command overpassql is the CLI front-end (spec.md §6, an "external
// collaborator" the core is driven by, not part of it): it reads a
// QUERY script and one or more PBF... paths off the command line,
// wires ast/lang -> trace -> planner -> engine, and writes each
// Output node's set to stdout in script order. The PBF decoder itself
// stays out of scope (spec.md §1) — this binary uses
// source.TestDecoder, the reference in-memory decoder, standing in
// for whatever real protobuf/zlib codec a production deployment would
// plug in behind osm.Decoder.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/overpassql/overpassql/ast/lang"
	"github.com/overpassql/overpassql/cache"
	"github.com/overpassql/overpassql/config"
	"github.com/overpassql/overpassql/engine"
	"github.com/overpassql/overpassql/osm"
	"github.com/overpassql/overpassql/planner"
	"github.com/overpassql/overpassql/source"
	"github.com/overpassql/overpassql/trace"
)

var (
	dashConfig         string
	dashWorkers        int
	dashVerbose        bool
	dashOut            string
	dashFile           bool
	dashCacheDir       string
	dashSpillThreshold int
)

func init() {
	flag.StringVar(&dashConfig, "config", "", "path to a YAML config.Config file")
	flag.IntVar(&dashWorkers, "workers", 0, "worker goroutines per pass (0: use config/GOMAXPROCS)")
	flag.BoolVar(&dashVerbose, "v", false, "log per-pass progress to stderr")
	flag.StringVar(&dashOut, "o", "", "file for output (default stdout)")
	flag.BoolVar(&dashFile, "f", false, "read QUERY as a path to a file containing the script")
	flag.StringVar(&dashCacheDir, "cache-dir", "", "persist the plan cache to this directory")
	flag.IntVar(&dashSpillThreshold, "spill-threshold", 0, "spill an oversized per-pass worker set to disk above this many members (0 disables)")
	flag.Usage = usage
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [flags] QUERY PBF...\n\n", filepath.Base(os.Args[0]))
	flag.PrintDefaults()
}

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg := config.Default()
	if dashConfig != "" {
		loaded, err := config.Load(dashConfig)
		if err != nil {
			exitUser(err)
		}
		cfg = loaded
	}
	if dashWorkers > 0 {
		cfg.Workers = dashWorkers
	}
	if dashVerbose {
		cfg.Verbose = true
	}
	if dashCacheDir != "" {
		cfg.CacheDir = dashCacheDir
	}
	if dashSpillThreshold > 0 {
		cfg.SpillThreshold = dashSpillThreshold
	}

	query := args[0]
	if dashFile {
		data, err := os.ReadFile(query)
		if err != nil {
			exitUser(err)
		}
		query = string(data)
	}
	paths := args[1:]

	dst := io.Writer(os.Stdout)
	if dashOut != "" {
		f, err := os.Create(dashOut)
		if err != nil {
			exitUser(err)
		}
		defer f.Close()
		dst = f
	}

	if err := run(query, paths, cfg, dst); err != nil {
		if isUserError(err) {
			exitUser(err)
		}
		exitInternal(err)
	}
}

// run is the non-CLI-specific body of main: parse -> trace -> plan ->
// execute -> sink, optionally consulting a cache.Cache for the
// trace/plan pair. Split out from main so it never calls os.Exit,
// matching the teacher's convention of keeping exit codes at the
// outermost layer only (cmd/sneller/main.go's do/exit split).
func run(query string, paths []string, cfg config.Config, dst io.Writer) error {
	var c *cache.Cache
	var key [32]byte
	if cfg.CacheDir != "" || cfg.CacheEntries > 0 {
		c = cache.New(cfg.CacheDir, cfg.CacheEntries)
		stats, err := statPaths(paths)
		if err != nil {
			return err
		}
		key = cache.Key([]byte(query), stats)
	}

	var tr trace.Trace
	var pl planner.Plan
	if c != nil {
		if entry, ok := c.Get(key); ok {
			tr, pl = entry.Trace, entry.Plan
		}
	}

	if tr == nil {
		statements, err := lang.Parse(query)
		if err != nil {
			return err
		}
		tr, err = trace.Build(statements)
		if err != nil {
			return err
		}
		pl, err = planner.Build(tr)
		if err != nil {
			return err
		}
		if c != nil {
			if err := c.Put(key, cache.Entry{Trace: tr, Plan: pl}); err != nil {
				log.Printf("overpassql: cache put: %v", err)
			}
		}
	}

	src := source.FileSource{Paths: paths}
	decoder := source.TestDecoder{}
	runCfg := engine.Config{
		Workers:        cfg.Workers,
		Verbose:        cfg.Verbose,
		SpillThreshold: cfg.SpillThreshold,
		SpillDir:       cfg.SpillDir,
	}

	sets, err := engine.Run(context.Background(), pl, tr, src, decoder, runCfg)
	if err != nil {
		return err
	}

	return sink(dst, tr, sets)
}

// sink writes each Output node's materialized Set to dst in script
// order (spec.md §6: "the core emits, for every Output node, a
// (UniqueSet, Set) pair to the external formatter in script order").
// This is a minimal stand-in for the real formatter, which spec.md §1
// scopes out as an external collaborator; a production deployment
// would hand these pairs to that formatter instead of printing them.
func sink(dst io.Writer, tr trace.Trace, sets map[trace.UniqueSet]*osm.Set) error {
	for _, id := range tr.Outputs() {
		set := sets[id]
		if set == nil {
			set = osm.NewSet()
		}
		fmt.Fprintf(dst, "set %d: %d items\n", id, set.Len())
		for _, idn := range sortedIdentities(set) {
			fmt.Fprintf(dst, "  %s %d\n", idn.Kind, idn.ID)
		}
	}
	return nil
}

func sortedIdentities(set *osm.Set) []osm.Identity {
	var out []osm.Identity
	set.Each(func(id osm.Identity) { out = append(out, id) })
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func statPaths(paths []string) ([]cache.PathStat, error) {
	stats := make([]cache.PathStat, len(paths))
	for i, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			return nil, &source.IOError{Path: p, Cause: err}
		}
		stats[i] = cache.PathStat{Path: p, Size: fi.Size(), ModTime: fi.ModTime().Truncate(time.Second)}
	}
	return stats, nil
}

// isUserError reports whether err is one of the user-correctable
// failure kinds spec.md §6 assigns exit code 1 to: a bad script, an
// unresolved reference, an unsatisfiable plan, or an unreadable file.
// Everything else (a decode failure, a bug surfaced as a generic
// error) is an internal error, exit code 2.
func isUserError(err error) bool {
	switch err.(type) {
	case *lang.LexError, *lang.ParseError, *lang.RegexError:
		return true
	case *trace.ResolveError:
		return true
	case *planner.PlanError:
		return true
	case *source.IOError:
		return true
	}
	if re, ok := err.(*engine.RunError); ok {
		return isUserError(re.Cause)
	}
	return false
}

func exitUser(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func exitInternal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(2)
}
