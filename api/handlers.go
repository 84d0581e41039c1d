// Package api exposes the request/response surface: the streamed upload and
// download endpoints and the read-only history routes.
package api

import (
	"chat-relay/domain"
	errs "chat-relay/errors"
	"chat-relay/services"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// multipartSlack covers boundaries and form fields when comparing the
// declared request size against the payload cap. The exact file size is
// still enforced while streaming.
const multipartSlack = 64 << 10

// maxFieldBytes bounds non-file form fields; ids are tiny.
const maxFieldBytes = 4 << 10

type Handler struct {
	log            *slog.Logger
	chat           services.IChatService
	media          services.IMediaService
	maxUploadBytes int64
}

func NewHandler(log *slog.Logger, chat services.IChatService, media services.IMediaService, maxUploadBytes int64) *Handler {
	return &Handler{log: log, chat: chat, media: media, maxUploadBytes: maxUploadBytes}
}

// Upload streams a multipart body into the media ingest pipeline. The parts
// are walked by hand instead of ParseMultipartForm so the file bytes go
// straight to the blob store without ever being buffered whole.
// Field parts must precede the file part, which is how every mainstream
// client serializes its form. A form with the file first arrives at the
// pipeline with its ids still empty and gets the same 400 as a form without
// ids at all; accepting trailing fields would mean buffering the file before
// validating it.
func (h *Handler) Upload(c *gin.Context) {
	if c.Request.ContentLength > h.maxUploadBytes+multipartSlack {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File too large"})
		return
	}

	reader, err := c.Request.MultipartReader()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}

	fields := make(map[string]string)
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
			return
		}
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed upload"})
			return
		}

		if part.FormName() != "file" {
			value, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed upload"})
				return
			}
			fields[part.FormName()] = string(value)
			continue
		}

		record, err := h.media.Upload(c.Request.Context(), services.UploadCommand{
			ChatroomID:   strings.TrimSpace(fields["chatroomId"]),
			SenderID:     strings.TrimSpace(fields["senderId"]),
			Filename:     part.FileName(),
			ContentType:  part.Header.Get("Content-Type"),
			DeclaredSize: -1,
			Body:         part,
		})
		switch {
		case errors.Is(err, errs.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": "ChatroomId and SenderId are required"})
		case errors.Is(err, errs.ErrPayloadTooLarge):
			c.JSON(http.StatusBadRequest, gin.H{"error": "File too large"})
		case err != nil:
			h.log.Error("Upload failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "File upload failed"})
		default:
			c.JSON(http.StatusOK, gin.H{"message": "File uploaded to database", "media": record})
		}
		return
	}
}

// Download streams a blob back with its stored content type.
func (h *Handler) Download(c *gin.Context) {
	name := c.Param("filename")

	reader, err := h.media.Download(name)
	if errors.Is(err, errs.ErrBlobNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}
	if err != nil {
		h.log.Error("Download failed", "name", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error retrieving file"})
		return
	}
	defer reader.Close()

	meta := reader.Meta()
	c.DataFromReader(http.StatusOK, meta.Length, meta.ContentType, reader, nil)
}

// Messages returns the full message history of a room, creation time
// ascending.
func (h *Handler) Messages(c *gin.Context) {
	roomID := domain.RoomID(c.Param("chatroomId"))

	messages, err := h.chat.GetMessages(roomID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	c.JSON(http.StatusOK, messages)
}

// MediaHistory returns the full media history of a room, creation time
// ascending.
func (h *Handler) MediaHistory(c *gin.Context) {
	roomID := domain.RoomID(c.Param("chatroomId"))

	records, err := h.chat.GetMedia(roomID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if records == nil {
		records = []domain.Media{}
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
