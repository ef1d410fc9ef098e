package download

import (
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/spf13/afero"

	"galleryrip/internal/domain"
	"galleryrip/internal/domain/ports"
)

// extensionForMimeType maps a response content type to the on-disk extension.
// Anything outside this map fails the image.
func extensionForMimeType(mimeType string) (string, bool) {
	parsed, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		parsed = strings.ToLower(strings.TrimSpace(mimeType))
	}
	switch parsed {
	case "image/bmp":
		return "BMP", true
	case "image/gif":
		return "GIF", true
	case "image/jpeg":
		return "JPG", true
	case "image/png":
		return "PNG", true
	case "image/webp":
		return "WEBP", true
	default:
		return "", false
	}
}

// finalFilename builds the sanitized destination name, optionally zero-padded
// by the image's position for strict gallery ordering.
func finalFilename(name, ext string, index int, forceOrder bool) string {
	base := name
	if filepath.Ext(name) != "" {
		base = strings.TrimSuffix(name, filepath.Ext(name))
	}
	base = sanitizeFilename(base)
	if base == "" {
		base = "image"
	}
	filename := base + "." + ext
	if forceOrder {
		filename = fmt.Sprintf("%03d_", index+1) + filename
	}
	return filename
}

var filenameSanitizer = strings.NewReplacer(
	"\\", "_", "/", "_", ":", "_", "*", "_", "?", "_",
	"\"", "_", "<", "_", ">", "_", "|", "_",
)

func sanitizeFilename(name string) string {
	return strings.TrimSpace(filenameSanitizer.Replace(name))
}

// moveFile renames src to dst, falling back to copy+remove when the rename
// crosses filesystems.
func moveFile(fs afero.Fs, src, dst string) error {
	if err := fs.Rename(src, dst); err == nil {
		return nil
	}
	in, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := fs.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return fs.Remove(src)
}

func fetchOptions(settings domain.Settings, transferred *atomic.Int64) ports.FetchOptions {
	return ports.FetchOptions{
		Timeout: settings.ConnectionTimeout,
		Progress: func(delta int64) {
			transferred.Add(delta)
		},
	}
}
