// Package file_store 把 KnowledgeFile.oss_url 暂存为本地文件供解析使用
package file_store

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Malowking/agentchat/core/errors"
	"github.com/gogf/gf/v2/frame/g"
	"github.com/gogf/gf/v2/os/gfile"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectConfig storage.minio.*
type ObjectConfig struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	BucketName string
	SSL        bool
}

// Config storage.*
type Config struct {
	StagingDir string
	Timeout    time.Duration
	Minio      ObjectConfig
}

// LoadConfig 读取 storage.*
func LoadConfig(ctx context.Context) *Config {
	return &Config{
		StagingDir: g.Cfg().MustGet(ctx, "storage.staging_dir", "upload/knowledge_file").String(),
		Timeout:    g.Cfg().MustGet(ctx, "storage.download_timeout", "120s").Duration(),
		Minio: ObjectConfig{
			Endpoint:   g.Cfg().MustGet(ctx, "storage.minio.endpoint").String(),
			AccessKey:  g.Cfg().MustGet(ctx, "storage.minio.accessKey").String(),
			SecretKey:  g.Cfg().MustGet(ctx, "storage.minio.secretKey").String(),
			BucketName: g.Cfg().MustGet(ctx, "storage.minio.bucketName").String(),
			SSL:        g.Cfg().MustGet(ctx, "storage.minio.ssl", false).Bool(),
		},
	}
}

// Stager 支持 s3://bucket/key（minio）、http(s):// 和本地路径
type Stager struct {
	conf   *Config
	client *minio.Client // 未配置 minio 时为 nil
}

// NewStager 配置了 minio endpoint 时创建客户端并确认 bucket 存在
func NewStager(ctx context.Context, conf *Config) (*Stager, error) {
	if conf.StagingDir == "" {
		conf.StagingDir = "upload/knowledge_file"
	}
	if conf.Timeout <= 0 {
		conf.Timeout = 120 * time.Second
	}
	if err := gfile.Mkdir(conf.StagingDir); err != nil {
		return nil, errors.Newf(errors.ErrInternalError, "failed to create staging dir %s: %v", conf.StagingDir, err)
	}
	s := &Stager{conf: conf}
	if conf.Minio.Endpoint == "" {
		g.Log().Infof(ctx, "object storage not configured, only http and local oss_url are supported")
		return s, nil
	}

	client, err := minio.New(conf.Minio.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(conf.Minio.AccessKey, conf.Minio.SecretKey, ""),
		Secure: conf.Minio.SSL,
	})
	if err != nil {
		return nil, errors.Newf(errors.ErrInternalError, "failed to create MinIO client: %v", err)
	}
	if conf.Minio.BucketName != "" {
		exists, err := client.BucketExists(ctx, conf.Minio.BucketName)
		if err != nil {
			return nil, errors.Newf(errors.ErrInternalError, "failed to check if bucket exists: %v", err)
		}
		if !exists {
			g.Log().Warningf(ctx, "bucket '%s' does not exist", conf.Minio.BucketName)
		}
	}
	s.client = client
	return s, nil
}

// Stage 返回本地路径和是否为临时文件（临时文件由调用方 Cleanup）
func (s *Stager) Stage(ctx context.Context, knowledgeID, fileID, fileName, ossURL string) (string, bool, error) {
	u, err := url.Parse(ossURL)
	if err != nil || u.Scheme == "" || u.Scheme == "file" {
		path := ossURL
		if err == nil && u.Scheme == "file" {
			path = u.Path
		}
		if !gfile.Exists(path) {
			return "", false, errors.Newf(errors.ErrFileReadFailed, "file %s does not exist", path)
		}
		return path, false, nil
	}

	target := s.targetPath(knowledgeID, fileID, fileName, u.Path)
	if err := gfile.Mkdir(filepath.Dir(target)); err != nil {
		return "", false, errors.Newf(errors.ErrInternalError, "failed to create dir: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.conf.Timeout)
	defer cancel()
	switch u.Scheme {
	case "s3", "minio":
		err = s.fetchObject(ctx, u, target)
	case "http", "https":
		err = s.fetchHTTP(ctx, ossURL, target)
	default:
		err = errors.Newf(errors.ErrUnsupportedFormat, "unsupported oss_url scheme %s", u.Scheme)
	}
	if err != nil {
		_ = os.Remove(target)
		return "", false, err
	}
	g.Log().Debugf(ctx, "staged %s -> %s", ossURL, target)
	return target, true, nil
}

// Cleanup 删除 Stage 产生的临时文件
func (s *Stager) Cleanup(ctx context.Context, path string, temporary bool) {
	if !temporary || path == "" {
		return
	}
	if err := gfile.Remove(path); err != nil {
		g.Log().Warningf(ctx, "failed to remove staged file %s: %v", path, err)
	}
}

// targetPath upload/knowledge_file/<知识库id>/<文件id><后缀>
func (s *Stager) targetPath(knowledgeID, fileID, fileName, urlPath string) string {
	ext := filepath.Ext(fileName)
	if ext == "" {
		ext = filepath.Ext(urlPath)
	}
	return filepath.Join(s.conf.StagingDir, knowledgeID, fileID+strings.ToLower(ext))
}

func (s *Stager) fetchObject(ctx context.Context, u *url.URL, target string) error {
	if s.client == nil {
		return errors.New(errors.ErrConfigInvalid, "object storage is not configured")
	}
	bucket, key := u.Host, strings.TrimPrefix(u.Path, "/")
	if u.Scheme == "minio" || bucket == "" {
		bucket, key = s.conf.Minio.BucketName, strings.TrimPrefix(u.Host+u.Path, "/")
	}
	if err := s.client.FGetObject(ctx, bucket, key, target, minio.GetObjectOptions{}); err != nil {
		return errors.Newf(errors.ErrFileDownloadFailed, "failed to download %s/%s: %v", bucket, key, err)
	}
	return nil
}

func (s *Stager) fetchHTTP(ctx context.Context, rawURL, target string) error {
	c := g.Client()
	c.SetTimeout(s.conf.Timeout)
	resp, err := c.Get(ctx, rawURL)
	if err != nil {
		return errors.Newf(errors.ErrFileDownloadFailed, "failed to download %s: %v", rawURL, err)
	}
	defer resp.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Newf(errors.ErrFileDownloadFailed, "download %s: %s", rawURL, fmt.Sprint(resp.StatusCode))
	}
	if err := gfile.PutBytes(target, resp.ReadAll()); err != nil {
		return errors.Newf(errors.ErrFileDownloadFailed, "failed to write %s: %v", target, err)
	}
	return nil
}
