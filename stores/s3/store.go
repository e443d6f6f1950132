package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"

	"xbanner/core"
)

// binName labels the stored document, mirroring the cloud bin the browser
// editor synced to.
const binName = "xbanner-templates"

// bin is the envelope persisted as a single S3 object: the whole template
// collection travels together, so Pull/Push are one GET/PUT each.
type bin struct {
	Name      string                `json:"name"`
	Templates []*core.SavedTemplate `json:"templates"`
	UpdatedAt int64                 `json:"updatedAt"`
}

type s3Store struct {
	s3Client *s3.Client
	bucket   string
	key      string
}

// NewStore creates a new S3-based store. It implements both the local
// TemplateStore interface and the RemoteStore pull/push surface used by
// cloud sync.
func NewStore(bucketName string) *s3Store {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}
	return &s3Store{
		s3Client: s3.NewFromConfig(cfg),
		bucket:   bucketName,
		key:      binName + ".json",
	}
}

func (s *s3Store) read(ctx context.Context) (*bin, error) {
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return &bin{Name: binName}, nil
		}
		return nil, fmt.Errorf("failed to get template bin: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read template bin: %w", err)
	}
	var b bin
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse template bin: %w", err)
	}
	return &b, nil
}

func (s *s3Store) write(ctx context.Context, b *bin) error {
	b.Name = binName
	b.UpdatedAt = time.Now().UnixMilli()
	if b.Templates == nil {
		b.Templates = []*core.SavedTemplate{}
	}
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}
	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload template bin: %w", err)
	}
	return nil
}

// TemplateStore implementation

func (s *s3Store) List(ctx context.Context) ([]*core.SavedTemplate, error) {
	b, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return core.CapTemplates(b.Templates), nil
}

func (s *s3Store) Get(ctx context.Context, id string) (*core.SavedTemplate, error) {
	b, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range b.Templates {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, fmt.Errorf("template with id %s not found", id)
}

func (s *s3Store) Put(ctx context.Context, template *core.SavedTemplate) error {
	if template == nil || template.ID == "" {
		return fmt.Errorf("template ID cannot be empty for put operation")
	}
	b, err := s.read(ctx)
	if err != nil {
		return err
	}
	replaced := false
	for i, t := range b.Templates {
		if t.ID == template.ID {
			b.Templates[i] = template
			replaced = true
			break
		}
	}
	if !replaced {
		b.Templates = append(b.Templates, template)
	}
	b.Templates = core.CapTemplates(b.Templates)
	if err := s.write(ctx, b); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"template_id": template.ID,
		"bucket":      s.bucket,
	}).Info("Template saved")
	return nil
}

func (s *s3Store) Delete(ctx context.Context, id string) error {
	b, err := s.read(ctx)
	if err != nil {
		return err
	}
	kept := b.Templates[:0]
	for _, t := range b.Templates {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	b.Templates = kept
	return s.write(ctx, b)
}

func (s *s3Store) Replace(ctx context.Context, templates []*core.SavedTemplate) error {
	return s.write(ctx, &bin{Templates: core.CapTemplates(templates)})
}

// RemoteStore implementation

// EnsureConfigured provisions the bin object if it does not exist yet. It
// is idempotent; an existing bin is left untouched.
func (s *s3Store) EnsureConfigured(ctx context.Context) error {
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err == nil {
		resp.Body.Close()
		return nil
	}
	var noKey *s3types.NoSuchKey
	if !errors.As(err, &noKey) {
		return fmt.Errorf("failed to probe template bin: %w", err)
	}
	logrus.WithField("bucket", s.bucket).Info("Provisioning cloud template bin")
	return s.write(ctx, &bin{})
}

func (s *s3Store) Pull(ctx context.Context) ([]*core.SavedTemplate, error) {
	b, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return b.Templates, nil
}

func (s *s3Store) Push(ctx context.Context, templates []*core.SavedTemplate) error {
	return s.write(ctx, &bin{Templates: core.CapTemplates(templates)})
}
