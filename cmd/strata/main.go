// Package main provides the Strata ML Framework CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/strata-ml/strata/convnext"
	"github.com/strata-ml/strata/datasets"
	"github.com/strata-ml/strata/internal/serialization"
)

const version = "v0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	var err error
	switch os.Args[1] {
	case "version":
		fmt.Printf("Strata ML Framework %s\n", version)
	case "variants":
		for _, name := range convnext.Variants() {
			fmt.Println(name)
		}
	case "inspect":
		err = inspect(os.Args[2:])
	case "datasets":
		err = runDatasets(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "strata: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Strata ML Framework - Convolutional Vision Backbones for Go")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version                    Show version")
	fmt.Println("  variants                   List named backbone variants")
	fmt.Println("  inspect <file.strata>      Describe a checkpoint file")
	fmt.Println("  datasets list              List known datasets")
	fmt.Println("  datasets fetch <name> <dir>  Download and extract a dataset")
}

func inspect(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: strata inspect <file.strata>")
	}
	r, err := serialization.Open(args[0])
	if err != nil {
		return err
	}
	h := r.Header()
	fmt.Printf("format version: %d\n", h.FormatVersion)
	fmt.Printf("library:        %s\n", h.LibraryVersion)
	fmt.Printf("model type:     %s\n", h.ModelType)
	fmt.Printf("created:        %s\n", h.CreatedAt.Format("2006-01-02 15:04:05 UTC"))
	for k, v := range h.Metadata {
		fmt.Printf("%s: %s\n", k, v)
	}
	fmt.Printf("tensors:        %d\n", len(h.Tensors))
	total := int64(0)
	for _, meta := range h.Tensors {
		fmt.Printf("  %-48s %-8s %v\n", meta.Name, meta.DType, meta.Shape)
		total += meta.Size
	}
	fmt.Printf("data size:      %d bytes\n", total)
	return nil
}

func runDatasets(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: strata datasets <list|fetch>")
	}
	catalog := datasets.DefaultCatalog()
	switch args[0] {
	case "list":
		for _, name := range catalog.Names() {
			entry, _ := catalog.Get(name)
			fmt.Printf("%-20s %s\n", name, entry.Description)
		}
		return nil
	case "fetch":
		if len(args) != 3 {
			return fmt.Errorf("usage: strata datasets fetch <name> <dir>")
		}
		entry, ok := catalog.Get(args[1])
		if !ok {
			return fmt.Errorf("unknown dataset %q (known: %v)", args[1], catalog.Names())
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		archive, err := datasets.NewFetcher(nil).DownloadAndExtract(ctx, entry.URL, entry.SHA256, args[2])
		if err != nil {
			return err
		}
		fmt.Printf("fetched %s\n", archive)
		return nil
	default:
		return fmt.Errorf("unknown datasets command %q", args[0])
	}
}
