//go:build ignore

// Generates a synthetic change-event corpus for load testing.
// Usage: go run scripts/generate-corpus.go -records 1000 -output corpus.json
// Feed the output to: pkms-search notify --file corpus.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"
)

var (
	numRecords = flag.Int("records", 1000, "Number of records to generate")
	outputPath = flag.String("output", "corpus.json", "Output file")
	owner      = flag.String("owner", "loadtest", "Owner for all records")
	seed       = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var types = []string{"note", "document", "task", "journal_entry", "archive_item", "archive_folder", "project"}

var topics = []string{
	"budget", "deploy", "vacation", "taxes", "standup", "roadmap",
	"groceries", "insurance", "renovation", "conference", "invoice",
}

var verbs = []string{"review", "plan", "draft", "archive", "finalize", "discuss"}

var tagPool = []string{"finance", "work", "home", "urgent", "2025", "archive", "travel"}

type event struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Tags      []string  `json:"tags,omitempty"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Filename  string    `json:"filename,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Favorite  bool      `json:"favorite,omitempty"`
	Archived  bool      `json:"archived,omitempty"`
	SizeBytes int64     `json:"size_bytes,omitempty"`
}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	now := time.Now().UTC()
	events := make([]event, 0, *numRecords)
	for i := 0; i < *numRecords; i++ {
		typ := types[rng.Intn(len(types))]
		topic := topics[rng.Intn(len(topics))]
		verb := verbs[rng.Intn(len(verbs))]

		ev := event{
			Type:      typ,
			ID:        fmt.Sprintf("%s-%06d", typ, i),
			Owner:     *owner,
			Title:     fmt.Sprintf("%s %s %d", verb, topic, i),
			Body:      fmt.Sprintf("Synthetic body text about %s. Needs to %s before the deadline.", topic, verb),
			CreatedAt: now.Add(-time.Duration(rng.Intn(365*24)) * time.Hour),
			Favorite:  rng.Intn(20) == 0,
			Archived:  rng.Intn(10) == 0,
		}
		ev.UpdatedAt = ev.CreatedAt.Add(time.Duration(rng.Intn(72)) * time.Hour)
		if typ == "document" || typ == "archive_item" {
			ev.Filename = fmt.Sprintf("%s-%d.pdf", topic, i)
			ev.SizeBytes = int64(rng.Intn(5 << 20))
		}
		for _, tag := range tagPool {
			if rng.Intn(4) == 0 {
				ev.Tags = append(ev.Tags, tag)
			}
		}
		events = append(events, ev)
	}

	f, err := os.Create(*outputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create output: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(events); err != nil {
		fmt.Fprintf(os.Stderr, "encode corpus: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %d events to %s\n", len(events), *outputPath)
}
