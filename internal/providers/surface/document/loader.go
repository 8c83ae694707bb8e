package document

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/microcosm-cc/bluemonday"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

const blankDocument = "<html><head></head><body></body></html>"

var textPolicy = bluemonday.StrictPolicy()

// decode turns a fetched body into UTF-8 markup. contentType is the
// response header and may be empty.
func decode(body []byte, contentType, address string) (string, error) {
	media, params := mediaType(body, contentType)

	switch {
	case media == "text/html" || media == "application/xhtml+xml":
		return transcode(body, params["charset"])
	case strings.HasPrefix(media, "text/") || media == "application/json" || strings.HasSuffix(media, "+json") || media == "application/xml":
		text, err := transcode(body, params["charset"])
		if err != nil {
			return "", err
		}
		return textDocument(textPolicy.Sanitize(text)), nil
	case strings.HasPrefix(media, "image/"):
		return fmt.Sprintf(`<html><head></head><body><img src="%s"></body></html>`, html.EscapeString(address)), nil
	default:
		return "", fmt.Errorf("unsupported content type %q", media)
	}
}

// mediaType prefers the declared type and falls back to sniffing
func mediaType(body []byte, contentType string) (string, map[string]string) {
	if contentType != "" {
		media, params, err := mime.ParseMediaType(contentType)
		if err == nil && media != "application/octet-stream" {
			return media, params
		}
	}
	if len(body) == 0 {
		return "text/html", map[string]string{}
	}
	media, params, err := mime.ParseMediaType(mimetype.Detect(body).String())
	if err != nil {
		return "application/octet-stream", map[string]string{}
	}
	return media, params
}

// detectCharset guesses the encoding of undeclared bodies
func detectCharset(data []byte) string {
	result, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil || result == nil {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}

func transcode(body []byte, declared string) (string, error) {
	label := declared
	if label == "" {
		label = detectCharset(body)
	}
	r, err := charset.NewReader(bytes.NewReader(body), "text/html; charset="+label)
	if err != nil {
		return string(body), nil
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decode %s body: %w", label, err)
	}
	return string(out), nil
}

func textDocument(escaped string) string {
	return `<html><head></head><body><pre>` + escaped + `</pre></body></html>`
}
