// Package mailbox wraps the Gmail API for the polling cycle: find sent
// messages carrying XML attachments, download their XML/PDF parts into the
// local downloads directory, and tag processed messages with a label so they
// are recognizable across sessions.
package mailbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/AlleexMartinsT/Botana/internal/logger"
)

// LabelName tags messages whose attachments were already processed.
const LabelName = "XML Processado Botana"

// sentQuery selects candidate messages: sent, with an XML attachment.
const sentQuery = "in:sent has:attachment filename:xml"

// Service handles Gmail operations for one mailbox.
type Service struct {
	api *gmail.Service
	log zerolog.Logger

	// labelID caches the processed-label id after the first lookup.
	labelID string
}

// NewService creates a Gmail service from service-account credentials.
func NewService(ctx context.Context, credsPath string) (*Service, error) {
	const op = "NewService"

	log := logger.WithComponent("mailbox")

	creds, err := os.ReadFile(credsPath)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read credentials file: %w", op, err)
	}

	config, err := google.JWTConfigFromJSON(creds, gmail.GmailModifyScope)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse credentials: %w", op, err)
	}

	client := config.Client(ctx)
	api, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create gmail service: %w", op, err)
	}

	return &Service{api: api, log: log}, nil
}

// SearchSent returns the ids of up to max candidate messages.
func (s *Service) SearchSent(ctx context.Context, max int64) ([]string, error) {
	const op = "SearchSent"

	resp, err := s.api.Users.Messages.List("me").Q(sentQuery).MaxResults(max).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list messages: %w", op, err)
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	s.log.Info().Int("messages", len(ids)).Msg("Candidate sent messages found")
	return ids, nil
}

// DownloadAttachments fetches the message and writes every XML or PDF
// attachment into dir, returning the saved file paths. Attachments are
// recognized by filename suffix first, MIME type when the part is unnamed.
// Saved names are prefixed with the message id and part index to avoid
// collisions between messages.
func (s *Service) DownloadAttachments(ctx context.Context, msgID, dir string) ([]string, error) {
	const op = "DownloadAttachments"

	msg, err := s.api.Users.Messages.Get("me", msgID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get message %s: %w", op, msgID, err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	parts := flattenParts(msg.Payload)
	var saved []string
	for idx, part := range parts {
		filename := part.Filename
		mime := strings.ToLower(part.MimeType)

		if !hasSuffixFold(filename, ".xml") && !hasSuffixFold(filename, ".pdf") {
			if !strings.Contains(mime, "xml") && !strings.Contains(mime, "pdf") {
				continue
			}
		}
		if filename == "" {
			ext := ".xml"
			if strings.Contains(mime, "pdf") {
				ext = ".pdf"
			}
			filename = fmt.Sprintf("%s_%d%s", msgID, idx+1, ext)
		}

		data, err := s.partData(ctx, msgID, part)
		if err != nil {
			s.log.Error().Err(err).Str("filename", filename).Msg("Failed to download attachment")
			continue
		}
		if data == nil {
			continue
		}

		path := filepath.Join(dir, fmt.Sprintf("%s_%d_%s", msgID, idx+1, filename))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			s.log.Error().Err(err).Str("file", path).Msg("Failed to save attachment")
			continue
		}
		saved = append(saved, path)
	}

	s.log.Debug().Int("saved", len(saved)).Str("message_id", msgID).Msg("Attachments downloaded")
	return saved, nil
}

// partData resolves a part's bytes: small parts come inline, larger ones via
// a separate attachment fetch.
func (s *Service) partData(ctx context.Context, msgID string, part *gmail.MessagePart) ([]byte, error) {
	if part.Body == nil {
		return nil, nil
	}
	if part.Body.Data != "" {
		return DecodeBase64(part.Body.Data)
	}
	if part.Body.AttachmentId != "" {
		attach, err := s.api.Users.Messages.Attachments.Get("me", msgID, part.Body.AttachmentId).Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		if attach.Data == "" {
			return nil, nil
		}
		return DecodeBase64(attach.Data)
	}
	return nil, nil
}

// MarkProcessed applies the processed label to a message, creating the label
// on first use. Applying the label twice is harmless, which keeps the mark
// idempotent.
func (s *Service) MarkProcessed(ctx context.Context, msgID string) error {
	const op = "MarkProcessed"

	labelID, err := s.ensureLabel(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	req := &gmail.ModifyMessageRequest{AddLabelIds: []string{labelID}}
	if _, err := s.api.Users.Messages.Modify("me", msgID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("%s: failed to label message %s: %w", op, msgID, err)
	}
	return nil
}

func (s *Service) ensureLabel(ctx context.Context) (string, error) {
	if s.labelID != "" {
		return s.labelID, nil
	}

	list, err := s.api.Users.Labels.List("me").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to list labels: %w", err)
	}
	for _, l := range list.Labels {
		if strings.EqualFold(l.Name, LabelName) {
			s.labelID = l.Id
			return s.labelID, nil
		}
	}

	created, err := s.api.Users.Labels.Create("me", &gmail.Label{
		Name:                  LabelName,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create label: %w", err)
	}

	s.log.Info().Str("label", LabelName).Str("id", created.Id).Msg("Label created")
	s.labelID = created.Id
	return s.labelID, nil
}

// flattenParts walks the MIME tree depth-first and returns the leaf parts.
func flattenParts(payload *gmail.MessagePart) []*gmail.MessagePart {
	if payload == nil {
		return nil
	}
	if len(payload.Parts) == 0 {
		return []*gmail.MessagePart{payload}
	}
	var leaves []*gmail.MessagePart
	for _, p := range payload.Parts {
		leaves = append(leaves, flattenParts(p)...)
	}
	return leaves
}

func hasSuffixFold(s, suffix string) bool {
	return strings.HasSuffix(strings.ToLower(s), suffix)
}
