package ingest

import (
	"context"
	"encoding/base64"
	"fmt"
	"image"

	"github.com/rs/zerolog"

	"styleforge-server/modules/common/config"
	"styleforge-server/modules/common/utils"
)

// Options - size limits and encoder settings of a Pipeline
type Options struct {
	MaxBytes     int64
	MaxDimension int
	MaxPixels    int64
	JPEGQuality  int
}

// DefaultMaxPixels - decode budget used when Options.MaxPixels is unset
const DefaultMaxPixels = 50_000_000

// OptionsFromConfig - pipeline limits from the environment
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxBytes:     cfg.MaxUploadBytes,
		MaxDimension: cfg.MaxImageDimension,
		MaxPixels:    cfg.MaxImagePixels,
		JPEGQuality:  cfg.JPEGQuality,
	}
}

// Pipeline validates and normalizes user-selected images.
type Pipeline struct {
	opts     Options
	previews *PreviewRegistry
	log      zerolog.Logger
}

// NewPipeline - creates a pipeline issuing previews from the given registry
func NewPipeline(opts Options, previews *PreviewRegistry, log zerolog.Logger) *Pipeline {
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = DefaultMaxPixels
	}
	return &Pipeline{opts: opts, previews: previews, log: log}
}

// Ingest turns f into an asset plus a fresh preview handle. On error nothing
// is allocated.
func (p *Pipeline) Ingest(ctx context.Context, f File) (*Upload, error) {
	mimeType := normalizeContentType(f.ContentType)
	if mimeType == "" {
		p.log.Warn().Str("file", f.Name).Str("content_type", f.ContentType).Msg("⚠️  Rejected upload with unsupported type")
		return nil, ErrUnsupportedFormat
	}

	originalSize := int64(len(f.Data))
	p.log.Info().
		Str("file", f.Name).
		Str("content_type", mimeType).
		Str("size_mb", fmt.Sprintf("%.2f", float64(originalSize)/1024/1024)).
		Msg("📥 Ingesting image")

	// header first: the pixel budget is enforced before any pixel is allocated
	header, format, err := utils.ReadImageHeader(f.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if mimeForFormat(format) != mimeType {
		p.log.Warn().Str("file", f.Name).Str("content_type", mimeType).Str("detected", format).Msg("⚠️  Rejected upload whose content does not match its type")
		return nil, fmt.Errorf("%w: declared %s but content is %s", ErrUnsupportedFormat, mimeType, format)
	}
	if pixels := int64(header.Width) * int64(header.Height); header.Width <= 0 || header.Height <= 0 || pixels > p.opts.MaxPixels {
		p.log.Warn().Str("file", f.Name).Int("width", header.Width).Int("height", header.Height).Msg("⚠️  Rejected upload over the pixel budget")
		return nil, fmt.Errorf("%w: %dx%d exceeds the %d pixel limit", ErrDecode, header.Width, header.Height, p.opts.MaxPixels)
	}

	img, _, err := utils.DecodeImage(f.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data := f.Data
	resized := false
	if originalSize > p.opts.MaxBytes {
		img, data, resized, err = p.downscale(img, mimeType)
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	preview, err := p.previews.Create(img)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	up := &Upload{
		Asset: UploadedAsset{
			EncodedData:    []byte(base64.StdEncoding.EncodeToString(data)),
			SourceFileName: f.Name,
			SourceByteSize: originalSize,
			ContentType:    mimeType,
			Width:          bounds.Dx(),
			Height:         bounds.Dy(),
		},
		Preview:  preview,
		Resized:  resized,
		ByteSize: int64(len(data)),
	}

	p.log.Info().
		Str("file", f.Name).
		Int("width", up.Asset.Width).
		Int("height", up.Asset.Height).
		Bool("resized", resized).
		Int("bytes", len(data)).
		Msg("✅ Image ingested")

	return up, nil
}

func mimeForFormat(format string) string {
	switch format {
	case utils.FormatJPEG:
		return MimeJPEG
	case utils.FormatPNG:
		return MimePNG
	}
	return ""
}

// downscale clamps the longer side to MaxDimension and re-encodes in the
// original format. Images already within bounds are re-encoded as they are.
func (p *Pipeline) downscale(img image.Image, mimeType string) (image.Image, []byte, bool, error) {
	b := img.Bounds()
	w, h := utils.ScaleToFit(b.Dx(), b.Dy(), p.opts.MaxDimension)
	resized := w != b.Dx() || h != b.Dy()
	if resized {
		p.log.Info().Int("from_w", b.Dx()).Int("from_h", b.Dy()).Int("to_w", w).Int("to_h", h).Msg("🔄 Downscaling oversized image")
		img = utils.ResizeImage(img, w, h)
	}

	var (
		data []byte
		err  error
	)
	switch mimeType {
	case MimeJPEG:
		data, err = utils.EncodeJPEG(img, p.opts.JPEGQuality)
	default:
		data, err = utils.EncodePNG(img)
	}
	if err != nil {
		return nil, nil, false, err
	}
	return img, data, resized, nil
}
