package browser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Result describes the outcome of a capture operation.
type Result struct {
	Data     []byte
	MimeType string
}

// ScreenshotOptions controls page screenshot behaviour.
type ScreenshotOptions struct {
	// FullPage extends the viewport before capture.
	FullPage bool

	// Format is one of png, jpeg. Defaults to png.
	Format string

	// Quality configures jpeg output (0-100).
	Quality *int
}

// CaptureScreenshot produces a screenshot of a rod page and returns raw bytes plus mime type.
func CaptureScreenshot(page *rod.Page, opts ScreenshotOptions) (*Result, error) {
	if page == nil {
		return nil, errors.New("capture screenshot: page is nil")
	}

	protoFormat, mimeType, err := screenshotFormat(opts.Format)
	if err != nil {
		return nil, err
	}

	req := &proto.PageCaptureScreenshot{
		Format:      protoFormat,
		Quality:     opts.Quality,
		FromSurface: true,
	}
	data, err := page.Screenshot(opts.FullPage, req)
	if err != nil {
		return nil, fmt.Errorf("capture screenshot: page: %w", err)
	}
	return &Result{Data: data, MimeType: mimeType}, nil
}

func screenshotFormat(format string) (proto.PageCaptureScreenshotFormat, string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "png":
		return proto.PageCaptureScreenshotFormatPng, "image/png", nil
	case "jpeg", "jpg":
		return proto.PageCaptureScreenshotFormatJpeg, "image/jpeg", nil
	}
	return "", "", fmt.Errorf("capture screenshot: unsupported format %q", format)
}
