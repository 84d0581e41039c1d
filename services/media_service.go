package services

import (
	"bytes"
	"chat-relay/blobstore"
	"chat-relay/domain"
	errs "chat-relay/errors"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
)

// sniffLen is how many leading bytes are inspected when the client did not
// declare a usable content type.
const sniffLen = 3072

// UploadCommand describes one streamed upload. Body is consumed exactly
// once; DeclaredSize is the Content-Length when known, negative otherwise.
type UploadCommand struct {
	ChatroomID   string `validate:"required"`
	SenderID     string `validate:"required"`
	Filename     string
	ContentType  string
	DeclaredSize int64
	Body         io.Reader
}

type IMediaService interface {
	Upload(ctx context.Context, cmd UploadCommand) (domain.Media, error)
	Download(name string) (*blobstore.Reader, error)
}

// MediaService is the streaming half of the media ingest pipeline: it feeds
// the upload into the blob store chunk by chunk, and only once the blob is
// fully committed hands over to ChatService.PostMedia for the
// persist-then-publish step.
type MediaService struct {
	log            *slog.Logger
	validate       *validator.Validate
	blobs          *blobstore.Store
	chat           IChatService
	maxUploadBytes int64
}

func NewMediaService(
	log *slog.Logger,
	blobs *blobstore.Store,
	chat IChatService,
	maxUploadBytes int64,
) *MediaService {
	return &MediaService{
		log:            log,
		validate:       validator.New(),
		blobs:          blobs,
		chat:           chat,
		maxUploadBytes: maxUploadBytes,
	}
}

// Upload runs the full media ingest pipeline for a binary payload.
// Field validation and the size cap are checked before a single chunk is
// written; any failure after that aborts the sink so neither a blob nor a
// media record survives a bad upload.
func (s *MediaService) Upload(ctx context.Context, cmd UploadCommand) (domain.Media, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return domain.Media{}, fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}
	if cmd.DeclaredSize > s.maxUploadBytes {
		return domain.Media{}, fmt.Errorf("%w: declared %d bytes", errs.ErrPayloadTooLarge, cmd.DeclaredSize)
	}

	body := cmd.Body
	contentType := cmd.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		var err error
		contentType, body, err = sniffContentType(body)
		if err != nil {
			return domain.Media{}, fmt.Errorf("failed to read upload: %w", err)
		}
	}

	name := blobstore.GenerateName(cmd.Filename)
	sink, err := s.blobs.OpenWrite(name, contentType)
	if err != nil {
		return domain.Media{}, fmt.Errorf("failed to open blob sink: %w", err)
	}

	// The extra byte past the cap turns "exactly at the limit" and "over the
	// limit" into distinguishable outcomes without reading the whole excess.
	copied, err := io.Copy(sink, io.LimitReader(body, s.maxUploadBytes+1))
	if err != nil {
		sink.Abort()
		return domain.Media{}, fmt.Errorf("blob write failed: %w", err)
	}
	if copied > s.maxUploadBytes {
		sink.Abort()
		return domain.Media{}, fmt.Errorf("%w: limit is %d bytes", errs.ErrPayloadTooLarge, s.maxUploadBytes)
	}
	if err := sink.Finish(); err != nil {
		sink.Abort()
		return domain.Media{}, fmt.Errorf("blob commit failed: %w", err)
	}

	media, err := s.chat.PostMedia(ctx, domain.PostMediaCommand{
		ChatroomID: cmd.ChatroomID,
		SenderID:   cmd.SenderID,
		MediaURL:   "/file/" + name,
	})
	if err != nil {
		// The blob is committed but its record is not: remove it so a failed
		// upload leaves no trace.
		if removeErr := s.blobs.Remove(name); removeErr != nil {
			s.log.Warn("Failed to remove orphaned blob", "name", name, "error", removeErr)
		}
		return domain.Media{}, err
	}

	s.log.Info("Media uploaded", "room", media.ChatroomID, "name", name, "bytes", copied)
	return media, nil
}

// Download opens a committed blob for streaming. Unknown names surface
// errors.ErrBlobNotFound.
func (s *MediaService) Download(name string) (*blobstore.Reader, error) {
	return s.blobs.OpenRead(name)
}

func sniffContentType(body io.Reader) (string, io.Reader, error) {
	header := make([]byte, sniffLen)
	n, err := io.ReadFull(body, header)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", nil, err
	}
	detected := mimetype.Detect(header[:n])
	return detected.String(), io.MultiReader(bytes.NewReader(header[:n]), body), nil
}
