package main

import (
	"encoding/json"
	"log"
	"os"

	"hexclash/server/internal/catalog"
)

func main() {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(catalog.Schema()); err != nil {
		log.Fatalf("encode schema: %v", err)
	}
}
