package source

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/okian/coinboard/internal/domain/model"
)

// Seed is the layout of a YAML seed file.
type Seed struct {
	Game       model.GameState       `yaml:"game"`
	Activities []model.ActivityEvent `yaml:"activities"`
}

// File reads the game and its activity seed from a YAML file. The file is
// read on every fetch.
type File struct {
	path string
}

// NewFile creates a file source.
func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) load() (Seed, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		return Seed{}, fmt.Errorf("%w: read %s: %v", ErrDataUnavailable, f.path, err)
	}
	var seed Seed
	if err := yaml.Unmarshal(b, &seed); err != nil {
		return Seed{}, fmt.Errorf("%w: parse %s: %v", ErrDataUnavailable, f.path, err)
	}
	return seed, nil
}

// FetchGameState implements GameSource. Chapters listed without a name take
// their map key.
func (f *File) FetchGameState(_ context.Context) (model.GameState, error) {
	seed, err := f.load()
	if err != nil {
		return model.GameState{}, err
	}
	for key, c := range seed.Game.Chapters {
		if c.Name == "" {
			c.Name = key
			seed.Game.Chapters[key] = c
		}
	}
	return seed.Game, nil
}

// FetchRecentActivity implements ActivitySource.
func (f *File) FetchRecentActivity(_ context.Context) ([]model.ActivityEvent, error) {
	seed, err := f.load()
	if err != nil {
		return nil, err
	}
	return seed.Activities, nil
}
