// Command cfmeta inspects a multi-file CF dataset: it prints the
// consolidated metadata record and optionally extracts one time step's
// arrays.
//
// Usage:
//
//	cfmeta -regex '/data/cmip/tas_.*\.nc'
//	cfmeta -config dataset.yaml -step 3 -arrays tas,pr
package main

import (
	"flag"
	"fmt"
	"log"
	"reflect"
	"strings"

	"github.com/batchatco/go-cf-reader/cfreader"
	"github.com/batchatco/go-cf-reader/cfreader/bag"
)

func main() {
	var (
		configPath = flag.String("config", "", "yaml configuration file")
		fileName   = flag.String("file", "", "single dataset file")
		filesRegex = flag.String("regex", "", "directory plus basename regex")
		xAxis      = flag.String("x", "", "x axis variable (default lon)")
		yAxis      = flag.String("y", "", "y axis variable (default lat)")
		zAxis      = flag.String("z", "", "z axis variable")
		tAxis      = flag.String("t", "", "time axis variable (default time)")
		step       = flag.Int64("step", -1, "time step to extract")
		arrays     = flag.String("arrays", "", "comma-separated arrays to extract")
		verbose    = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	if *verbose {
		cfreader.SetLogLevel(cfreader.LevelInfo)
	}

	cfg := defaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("loading %s: %v", *configPath, err)
		}
		cfg = loaded
	}
	if *fileName != "" {
		cfg.Dataset.FileName = *fileName
	}
	if *filesRegex != "" {
		cfg.Dataset.FilesRegex = *filesRegex
	}
	if *xAxis != "" {
		cfg.Axes.X = *xAxis
	}
	if *yAxis != "" {
		cfg.Axes.Y = *yAxis
	}
	if *zAxis != "" {
		cfg.Axes.Z = *zAxis
	}
	if *tAxis != "" {
		cfg.Axes.T = *tAxis
	}
	if *step >= 0 {
		cfg.Read.Step = *step
	}
	if *arrays != "" {
		cfg.Read.Arrays = strings.Split(*arrays, ",")
	}

	r := cfreader.New(nil)
	if cfg.Dataset.FileName != "" {
		r.SetFileName(cfg.Dataset.FileName)
	}
	if cfg.Dataset.FilesRegex != "" {
		r.SetFilesRegex(cfg.Dataset.FilesRegex)
	}
	r.SetXAxisVariable(cfg.Axes.X)
	r.SetYAxisVariable(cfg.Axes.Y)
	r.SetZAxisVariable(cfg.Axes.Z)
	r.SetTAxisVariable(cfg.Axes.T)
	r.SetThreadPoolSize(cfg.Threads)

	md, err := r.Metadata()
	if err != nil {
		log.Fatalf("metadata phase: %v", err)
	}
	printSummary(md)

	if len(cfg.Read.Arrays) == 0 {
		return
	}
	req := bag.New()
	req.SetInt64(cfreader.KeyTimeStep, cfg.Read.Step)
	if len(cfg.Read.Extent) == 6 {
		req.SetInt64s(cfreader.KeyExtent, cfg.Read.Extent)
	}
	req.Set(cfreader.KeyArrays, cfg.Read.Arrays)
	m, err := r.Execute(req)
	if err != nil {
		log.Fatalf("execute phase: %v", err)
	}

	fmt.Printf("\nstep %d  time %g  extent %v\n", cfg.Read.Step, m.Time, m.Extent)
	for _, name := range m.PointArrayNames() {
		printHead(name, m.PointArray(name).Data())
	}
	for _, name := range m.InfoArrayNames() {
		printHead(name+" (info)", m.InfoArray(name).Data())
	}
}

func printSummary(md *bag.Bag) {
	root, _ := md.String(cfreader.KeyRoot)
	files, _ := md.Strings(cfreader.KeyFiles)
	steps, _ := md.Int64(cfreader.KeyNumberOfTimeSteps)
	stepCount, _ := md.Int64s(cfreader.KeyStepCount)
	whole, _ := md.Int64s(cfreader.KeyWholeExtent)
	vars, _ := md.Strings(cfreader.KeyVariables)
	timeVars, _ := md.Strings(cfreader.KeyTimeVariables)

	fmt.Printf("root:         %s\n", root)
	fmt.Printf("files:        %d\n", len(files))
	for i, f := range files {
		fmt.Printf("  %-40s %d steps\n", f, stepCount[i])
	}
	fmt.Printf("time steps:   %d\n", steps)
	fmt.Printf("whole extent: %v\n", whole)
	fmt.Printf("variables:    %s\n", strings.Join(vars, ", "))
	if len(timeVars) > 0 {
		fmt.Printf("time vars:    %s\n", strings.Join(timeVars, ", "))
	}
	if coords, err := md.Nested(cfreader.KeyCoordinates); err == nil {
		if tAtts, err := coords.Nested("t_attributes"); err == nil && !tAtts.Empty() {
			units, _ := tAtts.String("units")
			cal, _ := tAtts.String("calendar")
			fmt.Printf("time units:   %s %s\n", units, cal)
		}
	}
}

const headLen = 8

func printHead(name string, data any) {
	rv := reflect.ValueOf(data)
	n := rv.Len()
	suffix := ""
	if n > headLen {
		rv = rv.Slice(0, headLen)
		suffix = fmt.Sprintf(" ... (%d total)", n)
	}
	fmt.Printf("  %-20s %v%s\n", name, rv.Interface(), suffix)
}
