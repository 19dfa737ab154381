package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/classpal-api/internal/models"
	appErrors "github.com/noah-isme/classpal-api/pkg/errors"
)

type attachmentFileStorage interface {
	SaveStream(relPath string, r io.Reader, limit int64) (int64, error)
	Open(relPath string) (*os.File, error)
	Delete(relPath string) error
}

type attachmentSigner interface {
	Generate(scope, relPath string) (string, time.Time, error)
	Parse(token string) (scope, relPath string, expiresAt time.Time, err error)
}

// AttachmentUpload carries an uploaded file stream.
type AttachmentUpload struct {
	Filename string
	MimeType string
	Content  io.Reader
}

// AttachmentDownload bundles an opened file for streaming.
type AttachmentDownload struct {
	File        *os.File
	Filename    string
	ContentType string
	SizeBytes   int64
	ExpiresAt   time.Time
}

// AttachmentServiceConfig holds upload limits.
type AttachmentServiceConfig struct {
	MaxFileSize  int64
	AllowedMIMEs []string
	APIPrefix    string
}

// AttachmentService stores proof photos and receipts and hands out signed
// download links. Stored paths have the form classID/kind/name.ext.
type AttachmentService struct {
	storage attachmentFileStorage
	signer  attachmentSigner
	access  *AccessService
	logger  *zap.Logger
	cfg     AttachmentServiceConfig
	mimeSet map[string]string
}

// NewAttachmentService constructs the service with defaults.
func NewAttachmentService(storage attachmentFileStorage, signer attachmentSigner, access *AccessService, logger *zap.Logger, cfg AttachmentServiceConfig) *AttachmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 5 * 1024 * 1024
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{"image/jpeg", "image/png", "image/webp", "application/pdf"}
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	mimeSet := make(map[string]string, len(cfg.AllowedMIMEs))
	for _, mt := range cfg.AllowedMIMEs {
		mt = strings.ToLower(mt)
		mimeSet[mt] = mimeExtension(mt)
	}
	return &AttachmentService{storage: storage, signer: signer, access: access, logger: logger, cfg: cfg, mimeSet: mimeSet}
}

// Upload stores a file for the actor's class. Proofs may be uploaded by any
// member; receipts need manage_funds.
func (s *AttachmentService) Upload(ctx context.Context, actor models.Actor, kind models.AttachmentKind, upload AttachmentUpload) (*models.Attachment, error) {
	switch kind {
	case models.AttachmentProof:
		if _, err := s.access.Member(ctx, actor); err != nil {
			return nil, err
		}
	case models.AttachmentReceipt:
		if _, err := s.access.Require(ctx, actor, models.CapabilityManageFunds); err != nil {
			return nil, err
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "kind must be proof or receipt")
	}
	if upload.Content == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}

	mimeType, content, err := detectMime(upload)
	if err != nil {
		return nil, err
	}
	ext, allowed := s.mimeSet[mimeType]
	if !allowed {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file type "+mimeType+" not allowed")
	}
	if ext == "" {
		ext = strings.ToLower(filepath.Ext(upload.Filename))
	}

	relPath := path.Join(actor.ClassID, string(kind), uuid.NewString()+ext)
	size, err := s.storage.SaveStream(relPath, content, s.cfg.MaxFileSize)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("failed to store file (limit %d bytes)", s.cfg.MaxFileSize))
	}
	token, expiresAt, err := s.signer.Generate(actor.ClassID, relPath)
	if err != nil {
		_ = s.storage.Delete(relPath)
		return nil, internalError(err, "failed to sign attachment url")
	}

	s.logger.Info("attachment stored",
		zap.String("class_id", actor.ClassID),
		zap.String("kind", string(kind)),
		zap.String("path", relPath),
		zap.Int64("size", size),
	)
	return &models.Attachment{
		Kind:        kind,
		Path:        relPath,
		ContentType: mimeType,
		Size:        size,
		URL:         s.downloadURL(token),
		ExpiresAt:   expiresAt,
	}, nil
}

// SignURL issues a fresh download link for a stored attachment of the actor's class.
func (s *AttachmentService) SignURL(ctx context.Context, actor models.Actor, kind models.AttachmentKind, relPath string) (string, time.Time, error) {
	if _, err := s.access.Member(ctx, actor); err != nil {
		return "", time.Time{}, err
	}
	if err := s.CheckPath(actor.ClassID, kind, relPath); err != nil {
		return "", time.Time{}, err
	}
	token, expiresAt, err := s.signer.Generate(actor.ClassID, relPath)
	if err != nil {
		return "", time.Time{}, internalError(err, "failed to sign attachment url")
	}
	return s.downloadURL(token), expiresAt, nil
}

// Download validates a signed token and opens the referenced file.
func (s *AttachmentService) Download(_ context.Context, token string) (*AttachmentDownload, error) {
	if strings.TrimSpace(token) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "token is required")
	}
	classID, relPath, expiresAt, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired token")
	}
	if !strings.HasPrefix(relPath, classID+"/") {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attachment not found")
		}
		return nil, internalError(err, "failed to open attachment")
	}
	info, err := file.Stat()
	if err != nil {
		file.Close() //nolint:errcheck
		return nil, internalError(err, "failed to read attachment metadata")
	}
	return &AttachmentDownload{
		File:        file,
		Filename:    filepath.Base(relPath),
		ContentType: contentTypeFor(relPath),
		SizeBytes:   info.Size(),
		ExpiresAt:   expiresAt,
	}, nil
}

// CheckPath verifies that relPath points into the class's area for kind.
// Commands that reference an uploaded proof or receipt call it so a member
// cannot attach another class's file.
func (s *AttachmentService) CheckPath(classID string, kind models.AttachmentKind, relPath string) error {
	prefix := classID + "/" + string(kind) + "/"
	if path.Clean(relPath) != relPath || !strings.HasPrefix(relPath, prefix) || len(relPath) == len(prefix) {
		return appErrors.ForEntity(appErrors.Clone(appErrors.ErrValidation, "attachment path does not belong to this class"), relPath)
	}
	return nil
}

func (s *AttachmentService) downloadURL(token string) string {
	base := strings.TrimRight(s.cfg.APIPrefix, "/")
	return fmt.Sprintf("%s/attachments?token=%s", base, url.QueryEscape(token))
}

// detectMime sniffs the first bytes when the client did not send a type and
// returns a reader that still yields the whole stream.
func detectMime(upload AttachmentUpload) (string, io.Reader, error) {
	header := make([]byte, 512)
	n, err := io.ReadFull(upload.Content, header)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", nil, internalError(err, "failed to inspect file")
	}
	if n == 0 {
		return "", nil, appErrors.Clone(appErrors.ErrValidation, "empty file")
	}
	content := io.MultiReader(bytes.NewReader(header[:n]), upload.Content)
	mimeType := strings.ToLower(strings.TrimSpace(upload.MimeType))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = strings.ToLower(http.DetectContentType(header[:n]))
		if i := strings.Index(mimeType, ";"); i >= 0 {
			mimeType = mimeType[:i]
		}
	}
	return mimeType, content, nil
}

func mimeExtension(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "application/pdf":
		return ".pdf"
	default:
		return ""
	}
}

func contentTypeFor(relPath string) string {
	switch strings.ToLower(filepath.Ext(relPath)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
