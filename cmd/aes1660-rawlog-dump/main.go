package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"

	"aes1660-go/internal/nibble"
	"aes1660-go/internal/output"
)

func main() {
	var (
		path   = flag.String("path", "", "Path to rawlog .bin file")
		limit  = flag.Int("limit", 1, "Number of records to dump (0 for all)")
		pixels = flag.Bool("pixels", false, "Print the image as PGM after each record")
	)
	flag.Parse()

	if *path == "" {
		log.Fatal("path is required")
	}

	f, err := os.Open(*path)
	if err != nil {
		log.Fatalf("open rawlog: %v", err)
	}
	defer f.Close()

	reader, err := output.NewRawLogReader(f)
	if err != nil {
		log.Fatalf("open rawlog: %v", err)
	}

	count := 0
	for {
		if *limit > 0 && count >= *limit {
			return
		}
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			log.Fatalf("read record: %v", err)
		}
		if len(rec.Payload) == 0 {
			log.Printf("record %d: empty payload", count)
			count++
			continue
		}

		var decoded any
		if err := cbor.Unmarshal(rec.Payload, &decoded); err != nil {
			log.Printf("record %d: CBOR decode error: %v", count, err)
			count++
			continue
		}

		pretty, err := json.MarshalIndent(output.NormalizeJSONValue(decoded), "", "  ")
		if err != nil {
			log.Printf("record %d: JSON encode error: %v", count, err)
			count++
			continue
		}

		log.Printf("record %d timestamp=%s size=%d", count, rec.Time.Format(time.RFC3339Nano), len(rec.Payload))
		fmt.Println(string(pretty))

		if *pixels {
			c, err := rec.Capture()
			if err != nil {
				log.Printf("record %d: not a capture: %v", count, err)
			} else if err := nibble.WritePGM(os.Stdout, c.Grid()); err != nil {
				log.Fatalf("write image: %v", err)
			}
		}
		count++
	}
}
