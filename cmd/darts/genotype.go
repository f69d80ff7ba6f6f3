package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/born-ml/darts/internal/autodiff"
	"github.com/born-ml/darts/internal/backend/cpu"
	"github.com/born-ml/darts/internal/nas"
	"github.com/born-ml/darts/internal/serialization"
)

func runGenotype(args []string) {
	fs := flag.NewFlagSet("genotype", flag.ExitOnError)
	checkpoint := fs.String("checkpoint", "search.darts", "Checkpoint written by 'darts search'")
	input := fs.String("in", "", "Genotype JSON file to check and print instead of a checkpoint")
	asJSON := fs.Bool("json", false, "Print the genotype as JSON")
	_ = fs.Parse(args)

	var (
		g    nas.Genotype
		meta *serialization.CheckpointMeta
	)
	if *input != "" {
		var err error
		g, err = nas.LoadGenotype(*input, nas.Primitives)
		if err != nil {
			log.Fatalf("Invalid genotype: %v", err)
		}
	} else {
		backend := autodiff.New(cpu.New())
		net, header, err := nas.LoadCheckpoint(*checkpoint, nil, backend)
		if err != nil {
			log.Fatalf("Failed to load checkpoint: %v", err)
		}
		g, meta = net.Genotype(), header.CheckpointMeta
		if err := g.Validate(net.Config().Primitives); err != nil {
			log.Fatalf("Invalid genotype: %v", err)
		}
	}

	if *asJSON {
		data, err := g.MarshalIndent()
		if err != nil {
			log.Fatalf("Failed to encode genotype: %v", err)
		}
		fmt.Println(string(data))
		return
	}

	if meta != nil {
		fmt.Printf("Epoch %d, step %d, valid acc %.2f%%\n", meta.Epoch, meta.Step, meta.ValidAccuracy*100)
	}
	fmt.Println(g)
}
