package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/BaSui01/ragcore/rag"
)

// quoted reply separators inside a message body
var replySeparators = []*regexp.Regexp{
	regexp.MustCompile(`^[ \t]*-{2,}[ \t]*Original Message[ \t]*-{2,}[ \t]*$`),
	regexp.MustCompile(`^[ \t]*On [^\n]{1,200}wrote:[ \t]*$`),
	regexp.MustCompile(`^From:[ \t]\S`),
}

// EmailLoader loads RFC 5322 messages (.eml). The top-level headers are kept
// at the start of the content and copied into metadata; every quoted reply
// separator in the body becomes a thread boundary hint.
type EmailLoader struct{}

// NewEmailLoader creates an EmailLoader.
func NewEmailLoader() *EmailLoader {
	return &EmailLoader{}
}

// Load reads one message file and returns it as an email Document.
func (l *EmailLoader) Load(ctx context.Context, source string) ([]rag.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("email loader: %w", err)
	}
	msg, err := mail.ReadMessage(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("email loader: parsing %s: %w", source, err)
	}
	body, err := plainTextBody(msg.Header, msg.Body)
	if err != nil {
		return nil, fmt.Errorf("email loader: body of %s: %w", source, err)
	}
	body = strings.ReplaceAll(body, "\r\n", "\n")

	meta := sourceMetadata(source, "message/rfc822", "email")
	var head strings.Builder
	for _, name := range []string{"From", "To", "Cc", "Date", "Subject"} {
		v := decodeHeader(msg.Header.Get(name))
		if v == "" {
			continue
		}
		fmt.Fprintf(&head, "%s: %s\n", name, v)
		meta[strings.ToLower(name)] = v
	}
	if id := msg.Header.Get("Message-Id"); id != "" {
		meta["message_id"] = strings.Trim(id, "<>")
	}
	head.WriteString("\n")

	content := head.String() + strings.TrimSpace(body) + "\n"
	doc := rag.Document{
		ID:       documentID(source),
		Content:  content,
		Type:     rag.DocTypeEmail,
		Hints:    rag.StructuralHints{ThreadBoundaries: threadBoundaries(content, utf8.RuneCountInString(head.String()))},
		Metadata: meta,
	}
	return []rag.Document{doc}, nil
}

// threadBoundaries returns the rune offsets of reply separators at or after
// bodyStart. Offset 0 always starts the newest message.
func threadBoundaries(content string, bodyStart int) []int {
	bounds := []int{0}
	offset := 0
	for _, line := range strings.SplitAfter(content, "\n") {
		if offset >= bodyStart {
			trimmed := strings.TrimRight(line, "\r\n")
			for _, re := range replySeparators {
				if re.MatchString(trimmed) {
					bounds = append(bounds, offset)
					break
				}
			}
		}
		offset += utf8.RuneCountInString(line)
	}
	return bounds
}

// plainTextBody picks the first text/plain part and undoes transfer encoding.
func plainTextBody(header mail.Header, r io.Reader) (string, error) {
	mediaType, params, err := mime.ParseMediaType(header.Get("Content-Type"))
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		mr := multipart.NewReader(r, params["boundary"])
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return "", nil
			}
			if err != nil {
				return "", err
			}
			partHeader := mail.Header(part.Header)
			if pt, _, _ := mime.ParseMediaType(partHeader.Get("Content-Type")); pt == "" || pt == "text/plain" || strings.HasPrefix(pt, "multipart/") {
				// multipart.Part 已经处理 quoted-printable
				return plainTextBody(partHeader, part)
			}
		}
	}

	if strings.EqualFold(header.Get("Content-Transfer-Encoding"), "quoted-printable") {
		r = quotedprintable.NewReader(r)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeHeader(v string) string {
	dec := new(mime.WordDecoder)
	if out, err := dec.DecodeHeader(v); err == nil {
		return out
	}
	return v
}

// SupportedTypes returns the extensions handled by EmailLoader.
func (l *EmailLoader) SupportedTypes() []string {
	return []string{".eml"}
}
