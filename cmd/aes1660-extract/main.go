package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"aes1660-go/internal/container"
	"aes1660-go/internal/logging"
	"aes1660-go/internal/output"
	"aes1660-go/internal/render"
)

func main() {
	var (
		outputDir = flag.String("out", ".", "Directory for frame-NNNNN.pnm files")
		pngOut    = flag.Bool("png", false, "Also write frame-NNNNN.png")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Printf("Usage: %s filename\n", filepath.Base(os.Args[0]))
		return
	}

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		log.Fatalf("open dump: %v", err)
	}
	defer f.Close()

	writer, err := output.NewImageWriter(*outputDir)
	if err != nil {
		log.Fatalf("failed to prepare output dir: %v", err)
	}
	if *pngOut {
		writer.WithRenderer(render.Ext, render.WritePNG)
	}

	frames, err := container.Extract(f, writer, logging.FromEnv())
	fmt.Printf("Got %d frames!\n", frames)
	if err != nil {
		log.Fatalf("extract: %v", err)
	}
}
