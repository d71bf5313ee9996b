// Package mailparse turns raw RFC 5322 messages into core.Message values.
package mailparse

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"

	"github.com/mikey/ticket-automation/internal/core"
)

// Parser decodes messages and spools their attachments below a base dir
type Parser struct {
	attachmentDir string
	logger        *zap.Logger
}

// NewParser creates a parser. An empty dir means the OS temp directory.
func NewParser(attachmentDir string, logger *zap.Logger) *Parser {
	if attachmentDir == "" {
		attachmentDir = os.TempDir()
	}
	return &Parser{attachmentDir: attachmentDir, logger: logger}
}

// Parse decodes raw into a Message. Attachments are written to a fresh
// directory that Release removes again.
func (p *Parser) Parse(ref core.MessageRef, raw []byte) (*core.Message, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}
	if err != nil {
		p.logger.Warn("Unknown charset in message header", zap.Stringer("ref", ref), zap.Error(err))
	}
	defer mr.Close()

	msg := &core.Message{Ref: ref}

	if msg.Subject, err = mr.Header.Subject(); err != nil {
		p.logger.Debug("Failed to decode subject", zap.Error(err))
		msg.Subject = mr.Header.Get("Subject")
	}

	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		msg.Sender = from[0].Address
		msg.SenderName = from[0].Name
	} else {
		msg.Sender = strings.TrimSpace(mr.Header.Get("From"))
	}
	msg.Recipients = p.addresses(mr.Header, "To")
	msg.Cc = p.addresses(mr.Header, "Cc")

	var plain, html string
	var hasPlain, hasHTML bool
	spool := ""
	fail := func(err error) (*core.Message, error) {
		if spool != "" {
			os.RemoveAll(spool)
		}
		return nil, err
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return fail(fmt.Errorf("failed to read message part: %w", err))
		}
		if err != nil {
			p.logger.Warn("Unknown charset in message part", zap.Stringer("ref", ref), zap.Error(err))
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			switch {
			case contentType == "text/plain" && !hasPlain:
				plain, hasPlain = p.readText(part.Body), true
			case contentType == "text/html" && !hasHTML:
				html, hasHTML = p.readText(part.Body), true
			}

		case *mail.AttachmentHeader:
			if spool == "" {
				if spool, err = os.MkdirTemp(p.attachmentDir, "msg-"); err != nil {
					return fail(fmt.Errorf("failed to create attachment directory: %w", err))
				}
			}
			filename, _ := h.Filename()
			path, err := saveAttachment(spool, filename, len(msg.Attachments), part.Body)
			if err != nil {
				return fail(err)
			}
			msg.Attachments = append(msg.Attachments, path)
		}
	}

	switch {
	case hasPlain:
		msg.Body = plain
	case hasHTML:
		msg.Body = html
	}

	if spool != "" && len(msg.Attachments) == 0 {
		os.RemoveAll(spool)
	}

	p.logger.Debug("Parsed message",
		zap.Stringer("ref", ref),
		zap.String("sender", msg.Sender),
		zap.Int("attachments", len(msg.Attachments)))
	return msg, nil
}

// Release removes the spooled attachments of msg
func (p *Parser) Release(msg *core.Message) {
	if msg == nil || len(msg.Attachments) == 0 {
		return
	}

	dir := filepath.Dir(msg.Attachments[0])
	if filepath.Dir(dir) != filepath.Clean(p.attachmentDir) {
		p.logger.Warn("Refusing to remove attachment directory outside spool", zap.String("dir", dir))
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		p.logger.Warn("Failed to remove attachments", zap.String("dir", dir), zap.Error(err))
	}
	msg.Attachments = nil
}

func (p *Parser) addresses(h mail.Header, key string) []string {
	list, err := h.AddressList(key)
	if err != nil {
		p.logger.Debug("Failed to parse address list", zap.String("header", key), zap.Error(err))
		return nil
	}

	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.Address)
	}
	return out
}

func (p *Parser) readText(r io.Reader) string {
	b, err := io.ReadAll(r)
	if err != nil {
		p.logger.Debug("Failed to read text part", zap.Error(err))
	}
	return string(b)
}

func saveAttachment(dir, filename string, index int, r io.Reader) (string, error) {
	name := filepath.Base(filename)
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = fmt.Sprintf("attachment-%d", index+1)
	}

	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err == nil {
		path = filepath.Join(dir, fmt.Sprintf("%d-%s", index+1, name))
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create attachment file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("failed to write attachment: %w", err)
	}
	return path, nil
}
