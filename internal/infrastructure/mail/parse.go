package mail

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	_ "github.com/emersion/go-message/charset"
	gomail "github.com/emersion/go-message/mail"

	"NewsletterDigest/internal/domain"
)

const sourceEmail = "email"

// ParseMessage reads an RFC 5322 message into a domain.Message, keeping the
// first text/html and text/plain inline parts.
func ParseMessage(uid string, r io.Reader) (domain.Message, error) {
	mr, err := gomail.CreateReader(r)
	if err != nil {
		return domain.Message{}, fmt.Errorf("read message: %w", err)
	}
	defer mr.Close()

	msg := domain.Message{UID: uid, Source: sourceEmail}
	if subject, err := mr.Header.Subject(); err == nil {
		msg.Subject = subject
	} else {
		msg.Subject = mr.Header.Get("Subject")
	}
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		msg.From = from[0].Address
	}
	msg.DateStr = mr.Header.Get("Date")
	if t, err := ParseDate(msg.DateStr); err == nil {
		msg.Date = t
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return msg, fmt.Errorf("read part: %w", err)
		}
		inline, ok := part.Header.(*gomail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, err := inline.ContentType()
		if err != nil {
			contentType, _, _ = mime.ParseMediaType(inline.Get("Content-Type"))
		}
		body, err := io.ReadAll(part.Body)
		if err != nil {
			return msg, fmt.Errorf("read body: %w", err)
		}
		switch {
		case strings.EqualFold(contentType, "text/html") && msg.HTML == "":
			msg.HTML = string(body)
		case (contentType == "" || strings.EqualFold(contentType, "text/plain")) && msg.Text == "":
			msg.Text = string(body)
		}
	}
	return msg, nil
}
