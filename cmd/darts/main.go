// Package main provides the darts command line tool.
package main

import (
	"fmt"
	"os"
)

const version = "v0.1.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "search":
		runSearch(os.Args[2:])
	case "genotype":
		runGenotype(os.Args[2:])
	case "version":
		fmt.Printf("darts %s\n", version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("darts - differentiable architecture search")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  search     Search a cell architecture on CIFAR-10 or synthetic data, or resume one")
	fmt.Println("  genotype   Print and check the genotype of a checkpoint or JSON file")
	fmt.Println("  version    Show version")
	fmt.Println("")
	fmt.Println("Run 'darts <command> -h' for command flags.")
}
