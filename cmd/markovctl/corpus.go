package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/Conceptual-Machines/magda-markov/internal/music"
	"gopkg.in/yaml.v3"
)

// corpus is the training material read from disk. JSON is valid YAML, so
// one decoder handles both.
type corpus struct {
	Pitches   [][]int         `yaml:"pitches"`
	Notes     [][]string      `yaml:"notes"`
	Durations [][]int         `yaml:"durations"`
	Messages  []music.Message `yaml:"messages"`
}

func loadCorpus(path string) (*corpus, error) {
	if path == "" {
		return nil, errors.New("--corpus is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus: %w", err)
	}

	var c corpus
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse corpus %s: %w", path, err)
	}
	return &c, nil
}

// sequences returns the pitch and duration streams, including those
// written as note names and those recovered from raw messages.
func (c *corpus) sequences() ([][]int, [][]int, error) {
	pitches := append([][]int(nil), c.Pitches...)
	durations := append([][]int(nil), c.Durations...)

	for i, names := range c.Notes {
		p, err := music.ParseNoteNames(names)
		if err != nil {
			return nil, nil, fmt.Errorf("notes[%d]: %w", i, err)
		}
		pitches = append(pitches, p)
	}

	if len(c.Messages) > 0 {
		events, err := music.PairMessages(c.Messages)
		if err != nil {
			return nil, nil, err
		}
		p, d := music.ExtractSequences(events)
		if len(p) > 0 {
			pitches = append(pitches, p)
			durations = append(durations, d)
		}
	}
	return pitches, durations, nil
}
