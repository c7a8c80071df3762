package file

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // PNG decoding
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/storage"
	"github.com/google/uuid"
	"golang.org/x/image/draw"
)

const (
	selfieMaxBytes     = 150 * 1024
	selfieMaxDimension = 1280
)

type FileService interface {
	// UploadAttendanceSelfie stores a check-in/out selfie as JPEG and returns its public URL
	UploadAttendanceSelfie(ctx context.Context, userID string, date time.Time, file io.Reader, filename string, kind string) (string, error)

	// DeleteFile removes a stored file by the URL or path UploadAttendanceSelfie returned
	DeleteFile(ctx context.Context, urlOrPath string) error
}

type fileServiceImpl struct {
	storage storage.FileStorage
}

func NewFileService(storage storage.FileStorage) FileService {
	return &fileServiceImpl{
		storage: storage,
	}
}

// UploadAttendanceSelfie down-scales and re-encodes the selfie to at most 150KB of JPEG.
func (s *fileServiceImpl) UploadAttendanceSelfie(ctx context.Context, userID string, date time.Time, file io.Reader, filename string, kind string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".jpg" && ext != ".jpeg" && ext != ".png" {
		return "", fmt.Errorf("invalid file type: only jpg, jpeg, png allowed")
	}

	buffer, err := io.ReadAll(file)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}

	compressed, err := compressImage(buffer, selfieMaxBytes)
	if err != nil {
		return "", fmt.Errorf("failed to compress image: %w", err)
	}

	// selfies/{date}/{userID}-{kind}-{uuid}.jpg
	newFilename := fmt.Sprintf("%s-%s-%s.jpg", sanitize(userID), kind, uuid.New().String())
	path := filepath.Join("selfies", date.Format("2006-01-02"), newFilename)

	uploadedPath, err := s.storage.Upload(ctx, bytes.NewReader(compressed), path, "image/jpeg")
	if err != nil {
		return "", fmt.Errorf("failed to upload attendance selfie: %w", err)
	}

	url, err := s.storage.GetURL(ctx, uploadedPath, 0)
	if err != nil {
		return "", fmt.Errorf("failed to build selfie url: %w", err)
	}
	return url, nil
}

func (s *fileServiceImpl) DeleteFile(ctx context.Context, urlOrPath string) error {
	return s.storage.Delete(ctx, s.storage.PathFromURL(urlOrPath))
}

// sanitize keeps user IDs from escaping the selfie directory.
func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, id)
}

// ==================== HELPER FUNCTIONS ====================

// compressImage bounds the longest edge to selfieMaxDimension, then lowers JPEG quality
// until the output fits in maxSize.
func compressImage(buffer []byte, maxSize int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(buffer))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	if w, h := bounds.Dx(), bounds.Dy(); w > selfieMaxDimension || h > selfieMaxDimension {
		scale := float64(selfieMaxDimension) / float64(max(w, h))
		img = resizeImage(img, max(1, int(float64(w)*scale)), max(1, int(float64(h)*scale)))
	}

	var compressed []byte
	for quality := 85; quality >= 50; quality -= 5 {
		buf := new(bytes.Buffer)
		if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("failed to encode JPEG: %w", err)
		}
		compressed = buf.Bytes()

		if len(compressed) <= maxSize {
			return compressed, nil
		}
	}

	// Still too large at the lowest quality, halve the dimensions once more
	b := img.Bounds()
	resized := resizeImage(img, max(1, b.Dx()/2), max(1, b.Dy()/2))
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, resized, &jpeg.Options{Quality: 70}); err != nil {
		return nil, fmt.Errorf("failed to encode resized image: %w", err)
	}
	return buf.Bytes(), nil
}

// resizeImage resizes an image to the specified dimensions using high-quality interpolation
func resizeImage(src image.Image, width, height int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}
