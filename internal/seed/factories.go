package seed

import (
	"fmt"
	"strings"

	"cozytiny/internal/content"
	"cozytiny/internal/service"

	"github.com/brianvoe/gofakeit/v6"
)

var videoEmbeds = []string{
	"https://www.youtube.com/embed/ysz5S6PUM-U",
	"https://www.youtube.com/embed/jNQXAC9IVRw",
	"https://player.vimeo.com/video/76979871",
}

// Factory builds random post payloads. The same seed yields the same posts.
type Factory struct {
	faker      *gofakeit.Faker
	categories []string
}

// NewFactory creates a Factory drawing categories from the given names. A
// zero seed picks a random one.
func NewFactory(seed int64, categories []string) *Factory {
	return &Factory{faker: gofakeit.New(seed), categories: categories}
}

// BuildPost returns a post with a mix of text, image and video segments and
// zero to five steps.
func (f *Factory) BuildPost() service.CreatePostInput {
	title := strings.TrimSuffix(f.faker.HipsterSentence(f.faker.Number(3, 6)), ".")

	segments := []content.Segment{{Type: content.TypeText, Value: f.paragraph()}}
	for i, n := 0, f.faker.Number(1, 4); i < n; i++ {
		switch f.faker.Number(0, 5) {
		case 0:
			segments = append(segments, content.Segment{Type: content.TypeVideo, Value: f.faker.RandomString(videoEmbeds)})
		case 1, 2:
			segments = append(segments, content.Segment{Type: content.TypeImage, Value: f.imageURL(1200, 800)})
		default:
			segments = append(segments, content.Segment{Type: content.TypeText, Value: f.paragraph()})
		}
	}
	// Segments only hold strings, so this cannot fail.
	body, _ := content.Serialize(segments)

	in := service.CreatePostInput{
		Title:        title,
		MetaDesc:     f.faker.HipsterSentence(12),
		Content:      body,
		ThumbnailURL: f.imageURL(1200, 800),
	}
	if len(f.categories) > 0 {
		in.Category = f.faker.RandomString(f.categories)
	}

	steps := f.faker.Number(0, 5)
	in.Steps = make([]service.StepInput, 0, steps)
	for i := 0; i < steps; i++ {
		step := service.StepInput{
			Title:   fmt.Sprintf("Step %d: %s", i+1, strings.TrimSuffix(f.faker.HipsterSentence(3), ".")),
			Content: f.faker.Paragraph(1, 3, 12, " "),
		}
		if f.faker.Bool() {
			img := f.imageURL(800, 600)
			step.Image = &img
		}
		in.Steps = append(in.Steps, step)
	}
	return in
}

func (f *Factory) paragraph() string {
	return f.faker.Paragraph(1, f.faker.Number(2, 5), 14, " ")
}

func (f *Factory) imageURL(w, h int) string {
	return fmt.Sprintf("https://picsum.photos/seed/%s/%d/%d", f.faker.LetterN(10), w, h)
}
