package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	"image/png"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"cozytiny/internal/config"
	"cozytiny/internal/models"
	"cozytiny/internal/observability"
	"cozytiny/internal/slug"
	"cozytiny/internal/upload"

	"github.com/chai2010/webp"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultMaxUploadSizeMB = 10
	DefaultThumbnailMaxPx  = 1200
	JPEGQuality            = 82
	WebPQuality            = 70
)

// UploadKind selects where an upload is stored and how it is processed.
type UploadKind string

const (
	// KindThumbnail is a post's cover image, downscaled on upload.
	KindThumbnail UploadKind = "thumbnail"
	// KindContentImage is an inline image segment, stored as sent.
	KindContentImage UploadKind = "content"
)

type UploadInput struct {
	Kind        UploadKind
	Filename    string
	ContentType string
	Content     []byte
}

// UploadResult describes a stored image. WebPURL points at the WebP sibling.
type UploadResult struct {
	URL     string `json:"url"`
	WebPURL string `json:"webp_url"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Bytes   int    `json:"bytes"`

	keys []string
}

type UploadService struct {
	store              upload.Store
	maxUploadSizeBytes int64
	thumbnailMaxPx     int
}

func NewUploadService(store upload.Store, cfg *config.Config) *UploadService {
	maxMB := DefaultMaxUploadSizeMB
	thumbPx := DefaultThumbnailMaxPx
	if cfg != nil {
		if cfg.UploadMaxSizeMB > 0 {
			maxMB = cfg.UploadMaxSizeMB
		}
		if cfg.UploadThumbnailMaxPx > 0 {
			thumbPx = cfg.UploadThumbnailMaxPx
		}
	}
	return &UploadService{
		store:              store,
		maxUploadSizeBytes: int64(maxMB) * 1024 * 1024,
		thumbnailMaxPx:     thumbPx,
	}
}

// MaxUploadSizeBytes is the largest accepted file.
func (s *UploadService) MaxUploadSizeBytes() int64 {
	return s.maxUploadSizeBytes
}

func (s *UploadService) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	dir, err := kindDir(in.Kind)
	if err != nil {
		return nil, err
	}
	if len(in.Content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if int64(len(in.Content)) > s.maxUploadSizeBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadSizeBytes/(1024*1024)))
	}

	detectedType := http.DetectContentType(in.Content)
	if !isAllowedImageMIME(detectedType) {
		return nil, models.NewValidationError("Only image files are allowed")
	}

	decoded, format, err := image.Decode(bytes.NewReader(in.Content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}
	if !isSupportedDecodedFormat(format) {
		return nil, models.NewValidationError("Unsupported image format")
	}
	sourceMime := decodedFormatToMime(format)
	if provided := normalizeContentType(in.ContentType); strings.HasPrefix(provided, "image/") && !isMatchingContentType(provided, sourceMime) {
		return nil, models.NewValidationError("Image content type mismatch")
	}

	data, contentType, ext := in.Content, sourceMime, formatExt(format)
	img := decoded
	if in.Kind == KindThumbnail {
		resized := resizeToFit(decoded, s.thumbnailMaxPx, s.thumbnailMaxPx)
		if resized != decoded {
			img = resized
			data, contentType, ext, err = reencode(resized, format)
			if err != nil {
				return nil, models.NewInternalError(err)
			}
		}
	}

	stem := uuid.NewString() + "-" + sanitizeStem(in.Filename)
	key := upload.Key(dir, stem+ext)

	url, err := s.store.Put(ctx, key, data, contentType)
	if err != nil {
		return nil, models.NewStorageError(err)
	}
	result := &UploadResult{
		URL:     url,
		WebPURL: url,
		Width:   img.Bounds().Dx(),
		Height:  img.Bounds().Dy(),
		Bytes:   len(data),
		keys:    []string{key},
	}

	if ext != ".webp" {
		webpData, err := encodeWebP(img, WebPQuality)
		if err != nil {
			s.cleanup(ctx, key)
			return nil, models.NewInternalError(err)
		}
		webpURL, err := s.store.Put(ctx, upload.Key(dir, stem+".webp"), webpData, "image/webp")
		if err != nil {
			s.cleanup(ctx, key)
			return nil, models.NewStorageError(err)
		}
		result.WebPURL = webpURL
		result.keys = append(result.keys, upload.Key(dir, stem+".webp"))
	}

	observability.UploadsTotal.WithLabelValues(string(in.Kind), s.store.Backend()).Inc()
	observability.UploadBytes.WithLabelValues(string(in.Kind)).Observe(float64(len(data)))
	return result, nil
}

// Discard removes the files of an upload whose owning post was never saved.
func (s *UploadService) Discard(ctx context.Context, res *UploadResult) {
	if res == nil {
		return
	}
	s.cleanup(ctx, res.keys...)
}

func (s *UploadService) cleanup(ctx context.Context, keys ...string) {
	for _, k := range keys {
		_ = s.store.Delete(ctx, k)
	}
}

func kindDir(kind UploadKind) (string, error) {
	switch kind {
	case KindThumbnail:
		return upload.DirThumbnails, nil
	case KindContentImage:
		return upload.DirContentImages, nil
	default:
		return "", models.NewValidationError("Unknown upload kind")
	}
}

// sanitizeStem keeps a readable, URL-safe remnant of the client file name.
func sanitizeStem(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	stem := slug.Make(strings.TrimSuffix(base, filepath.Ext(base)))
	if len(stem) > 64 {
		stem = strings.TrimRight(stem[:64], "-")
	}
	if stem == "" {
		return "image"
	}
	return stem
}

func reencode(img image.Image, format string) ([]byte, string, string, error) {
	if format == "png" {
		buf := bytes.NewBuffer(nil)
		if err := png.Encode(buf, img); err != nil {
			return nil, "", "", err
		}
		return buf.Bytes(), "image/png", ".png", nil
	}
	data, err := encodeJPEG(img, JPEGQuality)
	return data, "image/jpeg", ".jpg", err
}

func formatExt(format string) string {
	switch strings.ToLower(format) {
	case "jpeg", "jpg":
		return ".jpg"
	default:
		return "." + strings.ToLower(format)
	}
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scaleW := float64(maxWidth) / float64(w)
	scaleH := float64(maxHeight) / float64(h)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}
	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func isMatchingContentType(provided, detected string) bool {
	p := normalizeContentType(provided)
	d := normalizeContentType(detected)
	if p == d {
		return true
	}
	return (p == "image/jpg" && d == "image/jpeg") || (p == "image/jpeg" && d == "image/jpg")
}

func isSupportedDecodedFormat(format string) bool {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg", "png", "gif", "webp":
		return true
	default:
		return false
	}
}

func decodedFormatToMime(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return ""
	}
}
