package common

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
	"github.com/raffleworks/backend/pkg/crypto"
	"github.com/raffleworks/backend/pkg/errorx"
	"github.com/raffleworks/backend/pkg/storage"
	"github.com/raffleworks/backend/pkg/xcontext"
)

// Every registration photo passes through this single validator, whatever
// path it arrived on.
var thumbnailWidths = []uint{512, 128}

// ValidatePhoto checks size and decodability and returns the detected
// format. The claimed mime type is ignored; only the actual bytes count.
func ValidatePhoto(ctx context.Context, data []byte) (image.Image, string, error) {
	maxSize := xcontext.Configs(ctx).File.MaxSize
	if int64(len(data)) > maxSize {
		return nil, "", errorx.New(errorx.BadRequest,
			"Photo exceeds the maximum size of %d bytes", maxSize)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", errorx.New(errorx.BadRequest, "Photo is not a valid image")
	}

	return img, format, nil
}

// ProcessPhoto validates the photo, renders thumbnails and uploads original
// plus thumbnails in one batch. It returns the storage key of the original.
func ProcessPhoto(
	ctx context.Context, fileStorage storage.Storage, externalID int64, data []byte,
) (string, error) {
	img, format, err := ValidatePhoto(ctx, data)
	if err != nil {
		return "", err
	}

	// Content-addressed names make re-uploads of the same photo land on the
	// same key.
	digest := crypto.SHA256(data)[:12]

	prefix := fmt.Sprintf("participants/%d", externalID)
	objects := []*storage.UploadObject{
		{
			Prefix:   prefix,
			FileName: fmt.Sprintf("photo_%s.%s", digest, format),
			Mime:     "image/" + format,
			Data:     data,
		},
	}

	for _, width := range thumbnailWidths {
		thumbnail := resize.Resize(width, 0, img, resize.Lanczos3)

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, thumbnail, nil); err != nil {
			xcontext.Logger(ctx).Errorf("Cannot encode %dpx thumbnail: %v", width, err)
			return "", errorx.Unknown
		}

		objects = append(objects, &storage.UploadObject{
			Prefix:   prefix,
			FileName: fmt.Sprintf("photo_%s_%d.jpg", digest, width),
			Mime:     "image/jpeg",
			Data:     buf.Bytes(),
		})
	}

	resps, err := fileStorage.BulkUpload(ctx, objects)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot upload photo: %v", err)
		return "", errorx.Unknown
	}

	return resps[0].FileName, nil
}
