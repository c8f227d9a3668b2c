package main

import (
	"dqa/cmd/mockgen/engine"
	"flag"
	"fmt"
	"os"
	"time"
)

func main() {
	scenario := flag.String("scenario", "mild", "Scenario to generate: mild, chaos, drift")
	distribution := flag.String("distribution", "uniform", "Distribution to use: uniform, weibull")
	outDir := flag.String("out", "./.cache/mock", "Output directory for the extraction CSV files")
	districts := flag.Int("districts", 4, "Number of districts")
	facilities := flag.Int("facilities", 10, "Facilities per district")
	elements := flag.Int("elements", 8, "Number of data elements")
	start := flag.String("start", "202101", "First period")
	end := flag.String("end", "202212", "Last period")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	flag.Parse()

	cfg := engine.GeneratorConfig{
		Scenario:     *scenario,
		Distribution: *distribution,
		Districts:    *districts,
		Facilities:   *facilities,
		Elements:     *elements,
		Start:        *start,
		End:          *end,
		Seed:         *seed,
	}

	fmt.Printf("Generating scenario '%s' (Distribution: %s, %d facilities x %d elements, %s..%s) to %s...\n",
		cfg.Scenario, cfg.Distribution, cfg.Districts*cfg.Facilities, cfg.Elements, cfg.Start, cfg.End, *outDir)

	ext, err := engine.Generate(cfg)
	if err != nil {
		fmt.Printf("Failed to generate mock data: %v\n", err)
		os.Exit(1)
	}
	if err := engine.Save(*outDir, ext); err != nil {
		fmt.Printf("Failed to save mock data: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Done: %d observations.\n", len(ext.Observations))
}
