// Package storage keeps product and blog images in MongoDB GridFS.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrImageNotFound = errors.New("image not found")

type GridFSStore struct {
	db   *mongo.Database
	name string
}

func NewGridFSStore(db *mongo.Database, bucketName string) *GridFSStore {
	return &GridFSStore{db: db, name: bucketName}
}

// bucket opens a bucket per call: the v1 GridFS API takes deadlines instead
// of contexts and they are stored on the bucket itself.
func (s *GridFSStore) bucket(ctx context.Context) (*gridfs.Bucket, error) {
	b, err := gridfs.NewBucket(s.db, options.GridFSBucket().SetName(s.name))
	if err != nil {
		return nil, fmt.Errorf("failed to open gridfs bucket: %w", err)
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(30 * time.Second)
	}
	if err := b.SetWriteDeadline(deadline); err != nil {
		return nil, err
	}
	if err := b.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	return b, nil
}

// Upload stores r and returns the key used to fetch or delete it later.
func (s *GridFSStore) Upload(ctx context.Context, filename, contentType string, r io.Reader) (string, error) {
	b, err := s.bucket(ctx)
	if err != nil {
		return "", err
	}
	opts := options.GridFSUpload().SetMetadata(bson.M{"content_type": contentType})
	id, err := b.UploadFromStream(filename, r, opts)
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	return id.Hex(), nil
}

// Open returns the stored bytes and the content type given at upload.
func (s *GridFSStore) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	id, err := primitive.ObjectIDFromHex(key)
	if err != nil {
		return nil, "", ErrImageNotFound
	}
	b, err := s.bucket(ctx)
	if err != nil {
		return nil, "", err
	}
	stream, err := b.OpenDownloadStream(id)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, "", ErrImageNotFound
		}
		return nil, "", err
	}

	contentType := "application/octet-stream"
	var meta struct {
		ContentType string `bson:"content_type"`
	}
	if raw := stream.GetFile().Metadata; raw != nil {
		if err := bson.Unmarshal(raw, &meta); err == nil && meta.ContentType != "" {
			contentType = meta.ContentType
		}
	}
	return stream, contentType, nil
}

func (s *GridFSStore) Delete(ctx context.Context, key string) error {
	id, err := primitive.ObjectIDFromHex(key)
	if err != nil {
		return ErrImageNotFound
	}
	b, err := s.bucket(ctx)
	if err != nil {
		return err
	}
	if err := b.Delete(id); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return ErrImageNotFound
		}
		return err
	}
	return nil
}
