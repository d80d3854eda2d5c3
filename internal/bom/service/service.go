package service

import (
	"github.com/bitfantasy/nimo-bom/internal/bom/repository"
	"github.com/bitfantasy/nimo-bom/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Services 服务集合
type Services struct {
	Revision *RevisionService
	Export   *ExportService
	Archive  *ArchiveService
}

// NewServices 创建服务集合
func NewServices(repos *repository.Repositories, rdb *redis.Client, cfg *config.Config, logger *zap.Logger) *Services {
	// 初始化MinIO客户端，未配置时归档功能整体关闭
	var minioClient *minio.Client
	if cfg.MinIO.Endpoint != "" {
		var err error
		minioClient, err = minio.New(cfg.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.UseSSL,
		})
		if err != nil {
			logger.Warn("minio init failed, report archiving disabled", zap.Error(err))
			minioClient = nil
		}
	}
	archive := NewArchiveService(minioClient, cfg.MinIO.Bucket)

	return &Services{
		Revision: NewRevisionService(repos, archive, rdb, logger),
		Export:   NewExportService(repos.BOM),
		Archive:  archive,
	}
}
