package rest

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// Dimensions is the "processed dimensions" the upload
// endpoint returns. No example repo in the retrieval pack imports a
// third-party image library (grep across the pack turns up only MIME-type
// string constants); decoding just the header via the stdlib image
// package's registered codecs is the narrowest stdlib-only exception.
type Dimensions struct {
	Width  int
	Height int
}

func DecodeDimensions(raw []byte, _ string) Dimensions {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return Dimensions{}
	}
	return Dimensions{Width: cfg.Width, Height: cfg.Height}
}
