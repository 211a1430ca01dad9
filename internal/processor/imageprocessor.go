// imageprocessor.go - Image preparation before OCR submission

package processor

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

// PrepareForOCR downscales images whose longer side exceeds maxDimension.
// Images that already fit are returned unchanged (resized == false).
// The output keeps the input's encoding (PNG stays PNG, everything else becomes JPEG).
func PrepareForOCR(data []byte, maxDimension int) (out []byte, resized bool, err error) {
	if maxDimension <= 0 {
		return data, false, nil
	}

	config, format, err := imageConfig(data)
	if err != nil {
		return nil, false, err
	}
	if config.Width <= maxDimension && config.Height <= maxDimension {
		return data, false, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode image: %w", err)
	}

	// Resize along the longer side and keep aspect ratio
	bounds := img.Bounds()
	if bounds.Dx() >= bounds.Dy() {
		img = imaging.Resize(img, maxDimension, 0, imaging.Lanczos)
	} else {
		img = imaging.Resize(img, 0, maxDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	switch format {
	case "png":
		err = imaging.Encode(&buf, img, imaging.PNG)
	default:
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(95))
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode processed image: %w", err)
	}

	return buf.Bytes(), true, nil
}
