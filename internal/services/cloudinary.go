package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// IllustrationFolder is the Cloudinary folder dream illustrations go to.
const IllustrationFolder = "knowreal/dreams"

// MaxIllustrationSize caps an uploaded illustration.
const MaxIllustrationSize = 10 << 20

// IllustrationUploader stores an image and returns its public URL.
type IllustrationUploader interface {
	UploadIllustration(ctx context.Context, ownerID string, fileHeader *multipart.FileHeader) (string, error)
}

type CloudinaryService struct {
	cld *cloudinary.Cloudinary
}

func NewCloudinaryService(cloudName, apiKey, apiSecret string) (*CloudinaryService, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}
	return &CloudinaryService{cld: cld}, nil
}

// UploadIllustration uploads an image into the owner's illustration folder.
func (s *CloudinaryService) UploadIllustration(ctx context.Context, ownerID string, fileHeader *multipart.FileHeader) (string, error) {
	if fileHeader.Size > MaxIllustrationSize {
		return "", fmt.Errorf("illustration is larger than %d bytes", MaxIllustrationSize)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	if !IsImage(fileBytes) {
		return "", fmt.Errorf("illustration must be an image")
	}

	uploadResult, err := s.cld.Upload.Upload(ctx, bytes.NewReader(fileBytes), uploader.UploadParams{
		Folder:       IllustrationFolder + "/" + ownerID,
		ResourceType: "image",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to Cloudinary: %w", err)
	}
	return uploadResult.SecureURL, nil
}

// IsImage sniffs the content type of data.
func IsImage(data []byte) bool {
	return strings.HasPrefix(http.DetectContentType(data), "image/")
}
