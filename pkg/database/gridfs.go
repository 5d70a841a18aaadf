package database

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// gridFSMeta is the metadata document kept on every GridFS file
type gridFSMeta struct {
	ContentType string `bson:"content_type,omitempty"`
	Owner       string `bson:"owner,omitempty"`
}

// GridFSStore implements BlobStore on the default "fs" GridFS bucket of one database.
// Safe for concurrent use.
type GridFSStore struct {
	db *mongo.Database
}

var _ BlobStore = (*GridFSStore)(nil)

// NewGridFSStore open the default "fs" bucket of db
func NewGridFSStore(db *MongoDB) (*GridFSStore, error) {
	if _, err := gridfs.NewBucket(db.Database); err != nil {
		return nil, fmt.Errorf("open gridfs bucket on %s: %w", db.Database.Name(), err)
	}
	return &GridFSStore{db: db.Database}, nil
}

// ParseHandle turns a 24-hex handle into its ObjectID, malformed handles are never found
func ParseHandle(handle string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(handle)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: malformed handle %q", ErrObjectNotFound, handle)
	}
	return id, nil
}

// NewHandle generate a fresh object handle
func NewHandle() string {
	return primitive.NewObjectID().Hex()
}

// bucket returns a bucket owned by one call. gridfs in this driver has no per-call context,
// so the ctx deadline is set on the bucket and never shared with another call.
func (s *GridFSStore) bucket(ctx context.Context) (*gridfs.Bucket, error) {
	b, err := gridfs.NewBucket(s.db)
	if err != nil {
		return nil, fmt.Errorf("open gridfs bucket: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := b.SetReadDeadline(deadline); err != nil {
			return nil, err
		}
		if err := b.SetWriteDeadline(deadline); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Put upload r as a new GridFS file
func (s *GridFSStore) Put(ctx context.Context, r io.Reader, meta ObjectMeta) (string, error) {
	id := primitive.NewObjectID()
	opts := options.GridFSUpload().SetMetadata(gridFSMeta{
		ContentType: meta.ContentType,
		Owner:       meta.Owner,
	})

	b, err := s.bucket(ctx)
	if err != nil {
		return "", err
	}
	if err := b.UploadFromStreamWithID(id, meta.FileName, r, opts); err != nil {
		return "", fmt.Errorf("gridfs upload: %w", err)
	}
	return id.Hex(), nil
}

// Get open a download stream for handle
func (s *GridFSStore) Get(ctx context.Context, handle string) (*Object, error) {
	id, err := ParseHandle(handle)
	if err != nil {
		return nil, err
	}

	b, err := s.bucket(ctx)
	if err != nil {
		return nil, err
	}
	stream, err := b.OpenDownloadStream(id)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, handle)
	}
	if err != nil {
		return nil, fmt.Errorf("gridfs open %s: %w", handle, err)
	}

	file := stream.GetFile()
	var m gridFSMeta
	if len(file.Metadata) > 0 {
		if err := bson.Unmarshal(file.Metadata, &m); err != nil {
			stream.Close()
			return nil, fmt.Errorf("gridfs metadata %s: %w", handle, err)
		}
	}

	return &Object{
		Handle: handle,
		Meta: ObjectMeta{
			FileName:    file.Name,
			ContentType: m.ContentType,
			Owner:       m.Owner,
		},
		Size: file.Length,
		Body: stream,
	}, nil
}

// Delete remove the file and its chunks, deleting a missing file is not an error
func (s *GridFSStore) Delete(ctx context.Context, handle string) error {
	id, err := ParseHandle(handle)
	if err != nil {
		return nil
	}

	b, err := s.bucket(ctx)
	if err != nil {
		return err
	}
	if err := b.Delete(id); err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
		return fmt.Errorf("gridfs delete %s: %w", handle, err)
	}
	return nil
}
