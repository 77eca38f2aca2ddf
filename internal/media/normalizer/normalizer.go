package normalizer

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/disintegration/imaging"
	"github.com/jdeng/goheif"
	"github.com/rs/zerolog"
	"github.com/rwcarlsen/goexif/exif"

	"healthbyte/api/internal/media/sniffer"
	"healthbyte/api/internal/models"
)

// UnsupportedFormatError means the declared type of an item is outside the
// supported set. Fatal for the whole run.
type UnsupportedFormatError struct {
	Filename string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported image format: %s", e.Filename)
}

// ConversionError means a supported item could not be decoded or re-encoded.
// Fatal for the whole run.
type ConversionError struct {
	Filename string
	Err      error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert %s: %v", e.Filename, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

const jpegQuality = 90

type Normalizer struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Normalizer {
	return &Normalizer{log: log.With().Str("component", "normalizer").Logger()}
}

// NormalizeAll converts every item in place to jpeg/png bytes. Items are
// processed one at a time to bound peak memory while decoding large images.
func (n *Normalizer) NormalizeAll(ctx context.Context, items []*models.MediaItem) error {
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := n.normalize(item); err != nil {
			return err
		}
	}
	return nil
}

func (n *Normalizer) normalize(item *models.MediaItem) error {
	declared, err := sniffer.DetectDeclared(item.DeclaredMIME, item.Filename)
	if err != nil {
		return &UnsupportedFormatError{Filename: item.Filename}
	}

	switch declared.Type {
	case sniffer.TypeJPEG, sniffer.TypePNG:
		// Already a universally decodable raster format, but only if the
		// bytes really are what the upload claims.
		actual, err := sniffer.DetectHead(item.Data)
		if err != nil {
			return &ConversionError{Filename: item.Filename, Err: err}
		}
		if actual.Type != declared.Type {
			return &ConversionError{
				Filename: item.Filename,
				Err:      fmt.Errorf("declared %s but content is %s", declared.MIME, actual.MIME),
			}
		}
		item.NormalizedMIME = declared.MIME
	case sniffer.TypeHEIC:
		converted, err := n.convertHEIC(item.Data)
		if err != nil {
			return &ConversionError{Filename: item.Filename, Err: err}
		}
		n.log.Debug().
			Str("filename", item.Filename).
			Int("size_before", len(item.Data)).
			Int("size_after", len(converted)).
			Msg("heic converted")
		item.Data = converted
		item.NormalizedMIME = "image/jpeg"
	default:
		return &UnsupportedFormatError{Filename: item.Filename}
	}

	item.Advance(models.MediaStageNormalized)
	return nil
}

// convertHEIC decodes HEIC bytes and re-encodes them as JPEG. The EXIF
// orientation is baked into the pixels so downstream consumers never need
// the original metadata.
func (n *Normalizer) convertHEIC(data []byte) ([]byte, error) {
	img, err := goheif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode heic: %w", err)
	}

	img = applyOrientation(img, orientationOf(data))

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func orientationOf(data []byte) int {
	raw, err := goheif.ExtractExif(bytes.NewReader(data))
	if err != nil || len(raw) == 0 {
		return 1
	}
	meta, err := exif.Decode(bytes.NewReader(raw))
	if err != nil {
		return 1
	}
	tag, err := meta.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	orientation, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return orientation
}

func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
