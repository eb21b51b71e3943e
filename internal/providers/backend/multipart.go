package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"supportchat/internal/audio"
	"supportchat/internal/domain"
)

func (c *Client) SubmitInquiry(ctx context.Context, req domain.InquiryRequest) error {
	if len(req.Files) > domain.MaxAttachments {
		return fmt.Errorf("inquiry carries %d files, at most %d are accepted", len(req.Files), domain.MaxAttachments)
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	fields := []struct{ name, value string }{
		{"business_name", req.BusinessName},
		{"business_number", req.BusinessNumber},
		{"phone", req.Phone},
		{"content", req.Content},
		{"inquiry_type", string(req.InquiryType)},
	}
	for _, field := range fields {
		if err := form.WriteField(field.name, field.value); err != nil {
			return fmt.Errorf("failed to write %s: %w", field.name, err)
		}
	}
	for _, file := range req.Files {
		if err := writeAttachment(form, file); err != nil {
			return err
		}
	}
	if err := form.Close(); err != nil {
		return fmt.Errorf("failed to finish inquiry form: %w", err)
	}

	return c.do(ctx, http.MethodPost, c.endpoint(pathInquiries, nil), &body, form.FormDataContentType(), nil)
}

func writeAttachment(form *multipart.Writer, file domain.Attachment) error {
	path, err := attachmentPath(file.URI)
	if err != nil {
		return err
	}
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open attachment %q: %w", file.FileName, err)
	}
	defer src.Close()

	name := file.FileName
	if name == "" {
		name = filepath.Base(path)
	}
	mimeType := file.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	part, err := form.CreatePart(filePartHeader("files", name, mimeType))
	if err != nil {
		return fmt.Errorf("failed to add attachment %q: %w", name, err)
	}
	if _, err := io.Copy(part, src); err != nil {
		return fmt.Errorf("failed to read attachment %q: %w", name, err)
	}
	return nil
}

// attachmentPath accepts plain paths and file:// URIs.
func attachmentPath(uri string) (string, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return "", fmt.Errorf("attachment has no location")
	}
	if !strings.HasPrefix(uri, "file://") {
		return uri, nil
	}
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("invalid attachment uri %q: %w", uri, err)
	}
	if parsed.Path == "" {
		return "", fmt.Errorf("invalid attachment uri %q", uri)
	}
	return filepath.FromSlash(parsed.Path), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func filePartHeader(field, name, mimeType string) textproto.MIMEHeader {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(name)))
	header.Set("Content-Type", mimeType)
	return header
}

type transcribeResponse struct {
	Text     string `json:"text"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Transcribe uploads one utterance as WAV. The backend answers either with
// plain text or with a question it already answered.
func (c *Client) Transcribe(ctx context.Context, clip domain.AudioClip, language string) (domain.Recognition, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if language != "" {
		if err := form.WriteField("language", language); err != nil {
			return domain.Recognition{}, fmt.Errorf("failed to write language: %w", err)
		}
	}
	part, err := form.CreatePart(filePartHeader("file", recordingName, recordingFormat))
	if err != nil {
		return domain.Recognition{}, fmt.Errorf("failed to add recording: %w", err)
	}
	if err := audio.WriteWAV(part, clip); err != nil {
		return domain.Recognition{}, fmt.Errorf("failed to encode recording: %w", err)
	}
	if err := form.Close(); err != nil {
		return domain.Recognition{}, fmt.Errorf("failed to finish recording form: %w", err)
	}

	var resp transcribeResponse
	if err := c.do(ctx, http.MethodPost, c.endpoint(pathTranscribe, nil), &body, form.FormDataContentType(), &resp); err != nil {
		return domain.Recognition{}, err
	}
	return domain.Recognition{
		Text:     strings.TrimSpace(resp.Text),
		Question: strings.TrimSpace(resp.Question),
		Answer:   strings.TrimSpace(resp.Answer),
	}, nil
}
