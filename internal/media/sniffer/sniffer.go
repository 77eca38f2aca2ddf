package sniffer

import (
	"bytes"
	"errors"
	"path"
	"strings"
)

type MediaType string

const (
	TypeJPEG MediaType = "jpeg"
	TypePNG  MediaType = "png"
	TypeHEIC MediaType = "heic"
)

var ErrUnknownType = errors.New("unknown media type")

type Result struct {
	Type MediaType
	MIME string
}

// DetectHead identifies the media type from the leading bytes of the file.
func DetectHead(head []byte) (Result, error) {
	if len(head) == 0 {
		return Result{}, ErrUnknownType
	}

	if isJPEG(head) {
		return Result{Type: TypeJPEG, MIME: "image/jpeg"}, nil
	}
	if isPNG(head) {
		return Result{Type: TypePNG, MIME: "image/png"}, nil
	}
	if isHEIC(head) {
		return Result{Type: TypeHEIC, MIME: "image/heic"}, nil
	}

	return Result{}, ErrUnknownType
}

// DetectDeclared resolves the declared type from the Content-Type header
// value, falling back to the filename extension.
func DetectDeclared(contentType, filename string) (Result, error) {
	mime := contentType
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = mime[:idx]
	}
	mime = strings.ToLower(strings.TrimSpace(mime))

	switch mime {
	case "image/jpeg", "image/jpg":
		return Result{Type: TypeJPEG, MIME: "image/jpeg"}, nil
	case "image/png":
		return Result{Type: TypePNG, MIME: "image/png"}, nil
	case "image/heic", "image/heif":
		return Result{Type: TypeHEIC, MIME: "image/heic"}, nil
	}

	switch strings.ToLower(path.Ext(filename)) {
	case ".jpg", ".jpeg":
		return Result{Type: TypeJPEG, MIME: "image/jpeg"}, nil
	case ".png":
		return Result{Type: TypePNG, MIME: "image/png"}, nil
	case ".heic", ".heif":
		return Result{Type: TypeHEIC, MIME: "image/heic"}, nil
	}

	return Result{}, ErrUnknownType
}

func isJPEG(head []byte) bool {
	return len(head) > 3 &&
		head[0] == 0xff &&
		head[1] == 0xd8 &&
		head[2] == 0xff
}

func isPNG(head []byte) bool {
	pngMagic := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	return len(head) >= len(pngMagic) && bytes.Equal(head[:len(pngMagic)], pngMagic)
}

func isHEIC(head []byte) bool {
	if len(head) < 12 {
		return false
	}
	if string(head[4:8]) != "ftyp" {
		return false
	}
	brand := string(head[8:12])
	switch brand {
	case "heic", "heix", "hevc", "hevx", "mif1", "msf1":
		return true
	}
	return false
}
