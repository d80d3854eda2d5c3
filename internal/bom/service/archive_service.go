package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

// ArchiveService 原始导出报表归档（对象存储）。client 为空时归档整体跳过。
type ArchiveService struct {
	client *minio.Client
	bucket string
}

func NewArchiveService(client *minio.Client, bucket string) *ArchiveService {
	return &ArchiveService{client: client, bucket: bucket}
}

// StoreReport 归档一份原始报表，返回对象key
func (s *ArchiveService) StoreReport(ctx context.Context, partNo string, raw []byte) (string, error) {
	if s.client == nil {
		return "", nil
	}
	key := fmt.Sprintf("bom-reports/%s/%s/%s.txt",
		time.Now().UTC().Format("2006-01-02"), partNo, uuid.New().String()[:8])
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(raw), int64(len(raw)),
		minio.PutObjectOptions{ContentType: "text/plain"})
	if err != nil {
		return "", fmt.Errorf("put report object: %w", err)
	}
	return key, nil
}

// FetchReport 取回一份归档报表
func (s *ArchiveService) FetchReport(ctx context.Context, key string) ([]byte, error) {
	if s.client == nil {
		return nil, fmt.Errorf("archive storage not configured")
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get report object: %w", err)
	}
	defer obj.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(obj); err != nil {
		return nil, fmt.Errorf("read report object: %w", err)
	}
	return buf.Bytes(), nil
}
