package service

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classpal-api/internal/models"
	appErrors "github.com/noah-isme/classpal-api/pkg/errors"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func tokenFromURL(t *testing.T, raw string) string {
	t.Helper()
	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	return parsed.Query().Get("token")
}

func TestAttachmentUploadAndDownload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	att, err := env.attachments.Upload(ctx, actor("u1"), models.AttachmentProof, AttachmentUpload{Filename: "board.png", Content: bytes.NewReader(pngHeader)})
	require.NoError(t, err)
	assert.Equal(t, "image/png", att.ContentType)
	assert.True(t, strings.HasPrefix(att.Path, testClassID+"/proof/"))
	assert.True(t, strings.HasSuffix(att.Path, ".png"))
	assert.Equal(t, int64(len(pngHeader)), att.Size)
	assert.NoError(t, env.attachments.CheckPath(testClassID, models.AttachmentProof, att.Path))

	download, err := env.attachments.Download(ctx, tokenFromURL(t, att.URL))
	require.NoError(t, err)
	defer download.File.Close()
	body, err := io.ReadAll(download.File)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, body)
	assert.Equal(t, "image/png", download.ContentType)
}

func TestAttachmentUploadRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.attachments.Upload(ctx, actor("u1"), models.AttachmentReceipt, AttachmentUpload{Content: bytes.NewReader(pngHeader)})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = env.attachments.Upload(ctx, actor("u1"), models.AttachmentProof, AttachmentUpload{Content: strings.NewReader("#!/bin/sh\necho hi\n")})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	oversized := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 2048)...)
	_, err = env.attachments.Upload(ctx, actor("u1"), models.AttachmentProof, AttachmentUpload{Content: bytes.NewReader(oversized)})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = env.attachments.Upload(ctx, actor("u1"), "avatar", AttachmentUpload{Content: bytes.NewReader(pngHeader)})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	receipt, err := env.attachments.Upload(ctx, actor("tre"), models.AttachmentReceipt, AttachmentUpload{MimeType: "image/png", Content: bytes.NewReader(pngHeader)})
	require.NoError(t, err)
	assert.Equal(t, models.AttachmentReceipt, receipt.Kind)
}

func TestAttachmentCheckPath(t *testing.T) {
	env := newTestEnv(t)
	cases := map[string]bool{
		testClassID + "/proof/a.jpg":         true,
		testClassID + "/proof/":              false,
		testClassID + "/receipt/a.jpg":       false,
		"c2/proof/a.jpg":                     false,
		testClassID + "/proof/../../x/a.jpg": false,
		testClassID + "/proof//a.jpg":        false,
	}
	for path, ok := range cases {
		err := env.attachments.CheckPath(testClassID, models.AttachmentProof, path)
		if ok {
			assert.NoError(t, err, path)
		} else {
			assert.Error(t, err, path)
		}
	}
}

func TestAttachmentDownloadRejectsBadToken(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.attachments.Download(context.Background(), "c1.9999999999.Zm9v.deadbeef")
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = env.attachments.Download(context.Background(), "")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
