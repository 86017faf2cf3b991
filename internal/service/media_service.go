package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/h2non/filetype"
	gonanoid "github.com/matoous/go-nanoid/v2"
	cfg "github.com/platebook/platebook/configs"
)

// MediaService mirrors imported thumbnails into Cloudflare R2 so the app does
// not hotlink platform CDN URLs that expire.
type MediaService struct {
	config cfg.Config
	http   *http.Client
}

func NewMediaService(cfg cfg.Config) *MediaService {
	return &MediaService{
		config: cfg,
		http:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (m *MediaService) r2Client() (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(m.config.R2.AccessKey, m.config.R2.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", m.config.R2.AccountID))
	}), nil
}

// MirrorThumbnail downloads the remote image and stores a copy in R2,
// returning the object key. Callers treat failures as non-fatal.
func (m *MediaService) MirrorThumbnail(ctx context.Context, sourceURL string) (string, error) {
	if sourceURL == "" {
		return "", nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := m.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("thumbnail download returned status %d", resp.StatusCode)
	}

	fileBytes, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return "", err
	}

	contentType := "application/octet-stream"
	extension := ""
	if kind, err := filetype.Match(fileBytes); err == nil && kind != filetype.Unknown {
		contentType = kind.MIME.Value
		extension = "." + kind.Extension
	}

	id, err := gonanoid.New()
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("imports/thumbnails/%s%s", id, extension)

	if err := m.uploadToR2(ctx, key, fileBytes, contentType); err != nil {
		return "", err
	}

	return key, nil
}

func (m *MediaService) uploadToR2(ctx context.Context, key string, file []byte, contentType string) error {
	client, err := m.r2Client()
	if err != nil {
		return err
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(m.config.R2.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(file),
		ContentType: aws.String(contentType),
	}

	if _, err := client.PutObject(ctx, input); err != nil {
		slog.Info(err.Error())
		return err
	}

	return nil
}
