package tickets

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
)

var ErrUnsupportedImage = errors.New("unsupported image type, expected JPEG, PNG or WebP")

const (
	contentTypeJPEG = "image/jpeg"
	contentTypePNG  = "image/png"
	contentTypeWebP = "image/webp"
)

// IsSupportedContentType reports whether a photo of this type can be scanned
func IsSupportedContentType(contentType string) bool {
	switch contentType {
	case contentTypeJPEG, contentTypePNG, contentTypeWebP:
		return true
	}
	return false
}

// CompressImage decodes a JPEG or PNG photo, shrinks it to maxWidth keeping the
// aspect ratio and re-encodes it as JPEG. Narrower photos are only re-encoded.
func CompressImage(data []byte, maxWidth int, quality int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}

	bounds := img.Bounds()
	if maxWidth > 0 && bounds.Dx() > maxWidth {
		height := uint(float64(maxWidth) * float64(bounds.Dy()) / float64(bounds.Dx()))
		if height == 0 {
			height = 1
		}
		img = resize.Resize(uint(maxWidth), height, img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode to jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// prepareImage returns the bytes sent to vision and archive with their content type.
// WebP has no decoder available and is passed through untouched.
func prepareImage(data []byte, contentType string, maxWidth, quality int) ([]byte, string, error) {
	if !IsSupportedContentType(contentType) {
		return nil, "", ErrUnsupportedImage
	}
	if contentType == contentTypeWebP {
		if !bytes.HasPrefix(data, []byte("RIFF")) || len(data) < 12 || string(data[8:12]) != "WEBP" {
			return nil, "", fmt.Errorf("%w: not a WebP file", ErrUnsupportedImage)
		}
		return data, contentType, nil
	}

	compressed, err := CompressImage(data, maxWidth, quality)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return compressed, contentTypeJPEG, nil
}
