package database

import (
	"context"
	"fmt"
	"io"
	"strings"

	"media_pipeline/pkg/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	metaFileName = "filename"
	metaOwner    = "owner"
)

// MinIOStore implements BlobStore on one bucket, object names are handles
type MinIOStore struct {
	Client     *minio.Client
	BucketName string
}

var _ BlobStore = (*MinIOStore)(nil)

// NewMinIOConnection create a new minio store, d.RetryCount bounds the connect attempts
func NewMinIOConnection(ctx context.Context, d MinIOConnection) (*MinIOStore, error) {
	var mc *MinIOStore
	err := WithRetry(ctx, Connection{
		ConnectStr:    d.Endpoint,
		RetryCount:    d.RetryCount,
		RetryInterval: d.RetryInterval,
	}, fmt.Sprintf("minIO[%s/%s]", d.Endpoint, d.BucketName), func() error {
		var err error
		mc, err = NewMinioClient(ctx, d.Endpoint, d.User, d.Password, d.BucketName, d.UseSSL)
		return err
	})
	if err != nil {
		return nil, err
	}
	return mc, nil
}

// NewMinioClient create a new minio client and make sure the bucket exists
func NewMinioClient(ctx context.Context, endpoint, accessKey, secretKey, bucketName string, useSSL bool) (*MinIOStore, error) {
	minioClient, err := minio.New(endpoint,
		&minio.Options{
			Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
			Secure: useSSL,
		})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 失敗: %w", err)
	}

	// 檢查 bucket 是否存在
	exists, err := minioClient.BucketExists(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("檢查 bucket [%s] 失敗: %w", bucketName, err)
	}

	if !exists {
		if err = minioClient.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("建立 bucket [%s] 失敗: %w", bucketName, err)
		}
		logger.Log.Info(fmt.Sprintf("Bucket [%s] 建立成功", bucketName))
	}

	return &MinIOStore{
		Client:     minioClient,
		BucketName: bucketName,
	}, nil
}

// Put upload r under a fresh handle
func (m *MinIOStore) Put(ctx context.Context, r io.Reader, meta ObjectMeta) (string, error) {
	handle := NewHandle()
	_, err := m.Client.PutObject(ctx, m.BucketName, handle, r, -1, minio.PutObjectOptions{
		ContentType: meta.ContentType,
		UserMetadata: map[string]string{
			metaFileName: meta.FileName,
			metaOwner:    meta.Owner,
		},
	})
	if err != nil {
		return "", fmt.Errorf("minio put: %w", err)
	}
	return handle, nil
}

// Get open the object named handle
func (m *MinIOStore) Get(ctx context.Context, handle string) (*Object, error) {
	if _, err := ParseHandle(handle); err != nil {
		return nil, err
	}

	obj, err := m.Client.GetObject(ctx, m.BucketName, handle, minio.GetObjectOptions{})
	if err != nil {
		return nil, m.wrapErr("get", handle, err)
	}

	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, m.wrapErr("stat", handle, err)
	}

	return &Object{
		Handle: handle,
		Meta: ObjectMeta{
			FileName:    userMeta(info.UserMetadata, metaFileName),
			ContentType: info.ContentType,
			Owner:       userMeta(info.UserMetadata, metaOwner),
		},
		Size: info.Size,
		Body: obj,
	}, nil
}

// Delete remove the object, S3 treats a missing key as deleted
func (m *MinIOStore) Delete(ctx context.Context, handle string) error {
	if _, err := ParseHandle(handle); err != nil {
		return nil
	}
	if err := m.Client.RemoveObject(ctx, m.BucketName, handle, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("minio delete %s: %w", handle, err)
	}
	return nil
}

func (m *MinIOStore) wrapErr(op, handle string, err error) error {
	if isNoSuchKey(err) {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, handle)
	}
	return fmt.Errorf("minio %s %s: %w", op, handle, err)
}

func isNoSuchKey(err error) bool {
	if err == nil {
		return false
	}
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchObject"
}

// userMeta looks a key up ignoring the canonical header casing the server returns
func userMeta(meta map[string]string, key string) string {
	for k, v := range meta {
		if strings.EqualFold(k, key) || strings.EqualFold(k, "X-Amz-Meta-"+key) {
			return v
		}
	}
	return ""
}
