package files

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/wailsapp/mimetype"

	"supportchat/internal/domain"
)

// Describe builds the attachment record of the local file at path. The MIME
// type is sniffed from the content.
func Describe(path string) (domain.Attachment, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return domain.Attachment{}, fmt.Errorf("attachment path is empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return domain.Attachment{}, fmt.Errorf("resolve %q: %w", path, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return domain.Attachment{}, fmt.Errorf("stat %q: %w", path, err)
	}
	if info.IsDir() {
		return domain.Attachment{}, fmt.Errorf("%q is a directory", path)
	}

	kind, err := mimetype.DetectFile(abs)
	if err != nil {
		return domain.Attachment{}, fmt.Errorf("detect type of %q: %w", path, err)
	}

	return domain.Attachment{
		URI:      fileURI(abs),
		MimeType: kind.String(),
		FileName: info.Name(),
		Size:     info.Size(),
	}, nil
}

func fileURI(abs string) string {
	slashed := filepath.ToSlash(abs)
	if !strings.HasPrefix(slashed, "/") {
		slashed = "/" + slashed
	}
	return (&url.URL{Scheme: "file", Path: slashed}).String()
}
