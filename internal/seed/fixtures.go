package seed

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"cozytiny/internal/content"
	"cozytiny/internal/service"

	"gopkg.in/yaml.v3"
)

//go:embed fixtures/posts.yml
var defaultFixtures []byte

// Fixture is one hand-written post in a fixtures file.
type Fixture struct {
	Title     string            `yaml:"title"`
	MetaDesc  string            `yaml:"meta_desc"`
	Category  string            `yaml:"category"`
	Thumbnail string            `yaml:"thumbnail"`
	Content   []content.Segment `yaml:"content"`
	Steps     []FixtureStep     `yaml:"steps"`
}

type FixtureStep struct {
	Title   string `yaml:"title"`
	Content string `yaml:"content"`
	Image   string `yaml:"image"`
	Video   string `yaml:"video"`
}

type fixtureFile struct {
	Posts []Fixture `yaml:"posts"`
}

// DefaultFixtures returns the fixtures bundled with the binary.
func DefaultFixtures() ([]Fixture, error) {
	return ParseFixtures(defaultFixtures)
}

// LoadFixtures reads a fixtures file from disk.
func LoadFixtures(path string) ([]Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return ParseFixtures(data)
}

// ParseFixtures decodes a fixtures document. Unknown keys are rejected so a
// typo does not silently drop a field.
func ParseFixtures(data []byte) ([]Fixture, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file fixtureFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	for i, f := range file.Posts {
		if f.Title == "" {
			return nil, fmt.Errorf("parse fixtures: post %d has no title", i)
		}
		for j, seg := range f.Content {
			if !seg.Type.Valid() {
				return nil, fmt.Errorf("parse fixtures: %q segment %d has unknown type %q", f.Title, j, seg.Type)
			}
		}
	}
	return file.Posts, nil
}

// Input converts the fixture to the payload accepted by the post service.
func (f Fixture) Input() (service.CreatePostInput, error) {
	body, err := content.Serialize(f.Content)
	if err != nil {
		return service.CreatePostInput{}, err
	}
	in := service.CreatePostInput{
		Title:        f.Title,
		MetaDesc:     f.MetaDesc,
		Content:      body,
		Category:     f.Category,
		ThumbnailURL: f.Thumbnail,
		Steps:        make([]service.StepInput, 0, len(f.Steps)),
	}
	for _, s := range f.Steps {
		in.Steps = append(in.Steps, service.StepInput{
			Title:   s.Title,
			Content: s.Content,
			Image:   optional(s.Image),
			Video:   optional(s.Video),
		})
	}
	return in, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
