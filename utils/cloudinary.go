package utils

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/sirupsen/logrus"
)

// Cloudinary folders per resource.
const (
	FolderBusinesses = "businesses"
	FolderEvents     = "events"
	FolderJobs       = "jobs"
	FolderPosts      = "posts"
	FolderSponsors   = "sponsors"
	FolderAvatars    = "avatars"
)

func getCloudinaryInstance() (*cloudinary.Cloudinary, error) {
	return cloudinary.NewFromParams(
		os.Getenv("CLOUDINARY_CLOUD_NAME"),
		os.Getenv("CLOUDINARY_API_KEY"),
		os.Getenv("CLOUDINARY_API_SECRET"),
	)
}

// UploadToCloudinary stores the file under folder and returns its secure URL.
func UploadToCloudinary(file multipart.File, folder string) (string, error) {
	cld, err := getCloudinaryInstance()
	if err != nil {
		return "", fmt.Errorf("cloudinary config error: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	uploadResp, err := cld.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder: folder,
	})
	if err != nil {
		return "", fmt.Errorf("upload error: %w", err)
	}

	return uploadResp.SecureURL, nil
}

// UploadFormFiles uploads every file sent under field. Files are opened and
// closed one at a time; the first failure aborts the batch.
func UploadFormFiles(form *multipart.Form, field, folder string) ([]string, error) {
	if form == nil {
		return nil, nil
	}

	var urls []string
	for _, fileHeader := range form.File[field] {
		file, err := fileHeader.Open()
		if err != nil {
			return urls, fmt.Errorf("open %s: %w", fileHeader.Filename, err)
		}

		u, err := UploadToCloudinary(file, folder)
		file.Close()
		if err != nil {
			return urls, fmt.Errorf("%s: %w", fileHeader.Filename, err)
		}
		urls = append(urls, u)
	}
	return urls, nil
}

// DeleteFromCloudinary destroys the asset behind a full delivery URL.
func DeleteFromCloudinary(imageURL string) error {
	cld, err := getCloudinaryInstance()
	if err != nil {
		return fmt.Errorf("cloudinary config error: %w", err)
	}

	publicID, err := extractPublicID(imageURL)
	if err != nil {
		return fmt.Errorf("could not extract public ID: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err = cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID: publicID,
	})
	if err != nil {
		return fmt.Errorf("delete error: %w", err)
	}

	return nil
}

// DeleteImages removes assets best-effort; failures are only logged.
func DeleteImages(log logrus.FieldLogger, urls []string) {
	for _, img := range urls {
		if err := DeleteFromCloudinary(img); err != nil {
			log.WithError(err).WithField("image", img).Warn("cloudinary delete failed")
		}
	}
}

// extractPublicID turns
// https://res.cloudinary.com/demo/image/upload/v1234567890/events/abc123.jpg
// into events/abc123.
func extractPublicID(imageURL string) (string, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return "", err
	}

	parts := strings.Split(strings.Trim(parsedURL.Path, "/"), "/")

	idx := -1
	for i, p := range parts {
		if p == "upload" {
			idx = i
			break
		}
	}
	if idx < 0 || idx == len(parts)-1 {
		return "", fmt.Errorf("invalid cloudinary URL format")
	}

	rest := parts[idx+1:]
	if len(rest) > 1 && isVersionSegment(rest[0]) {
		rest = rest[1:]
	}

	last := rest[len(rest)-1]
	rest[len(rest)-1] = strings.TrimSuffix(last, path.Ext(last))

	return path.Join(rest...), nil
}

func isVersionSegment(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
