// Copyright 2025 The CampussGo Authors
// Licensed under the EUPL-1.2

package users

import (
	"bytes"

	"github.com/disintegration/imaging"
)

const (
	profileImageWidth  = 500
	profileImageHeight = 500
)

// processImage decodes an uploaded image, resizes it to the profile
// dimensions and re-encodes it as JPEG.
func processImage(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ErrInvalidImage
	}

	resized := imaging.Resize(img, profileImageWidth, profileImageHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
