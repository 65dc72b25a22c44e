// Package objectstore keeps records as JSON objects in an S3-compatible
// bucket, one object per record under <zone>/<type>/<key>.
//
// The object ETag is the record's change tag and saves are conditional on
// it, so concurrent writers are detected by the bucket. Batches are not
// atomic: a failed Save or Modify may leave earlier records written.
package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/dukerupert/shelflife/internal/record"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Config holds S3-compatible storage configuration. Passphrase and Salt
// are optional; when set every object is sealed before upload.
type Config struct {
	Endpoint   string
	Bucket     string
	Region     string
	AccessKey  string
	SecretKey  string
	Passphrase string
	Salt       []byte
}

// recordTypes lists the record types a key may be stored under.
var recordTypes = []record.Type{record.TypeItem, record.TypeList, record.TypePhoto}

type Store struct {
	client s3Client
	bucket string
	zone   string
	sealer *sealer
	now    func() time.Time
}

var _ record.Store = (*Store)(nil)

func New(cfg Config, zone string) (*Store, error) {
	if cfg.Bucket == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("object store not configured: bucket and credentials required")
	}
	return newStore(newS3Client(cfg), cfg, zone)
}

func newStore(client s3Client, cfg Config, zone string) (*Store, error) {
	s := &Store{client: client, bucket: cfg.Bucket, zone: zone, now: time.Now}
	if cfg.Passphrase != "" {
		sl, err := newSealer(cfg.Passphrase, cfg.Salt)
		if err != nil {
			return nil, fmt.Errorf("object sealing: %w", err)
		}
		s.sealer = sl
	}
	return s, nil
}

func newS3Client(cfg Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// object is the stored form of a record.
type object struct {
	Type       record.Type             `json:"type"`
	Key        record.Key              `json:"key"`
	Fields     map[string]record.Value `json:"fields"`
	CreatedAt  time.Time               `json:"created_at"`
	ModifiedAt time.Time               `json:"modified_at"`
}

func (s *Store) prefix(t record.Type) string {
	return s.zone + "/" + string(t) + "/"
}

func (s *Store) name(t record.Type, key record.Key) string {
	return s.prefix(t) + string(key)
}

func (s *Store) Query(ctx context.Context, t record.Type, pred record.Predicate) ([]*record.Record, error) {
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix(t)),
	})

	var records []*record.Record
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s objects: %w", t, err)
		}
		for _, obj := range page.Contents {
			key := record.Key(strings.TrimPrefix(aws.ToString(obj.Key), s.prefix(t)))
			r, err := s.get(ctx, t, key)
			if err != nil {
				return nil, err
			}
			// Deleted between list and get.
			if r == nil {
				continue
			}
			if pred.Match(r) {
				records = append(records, r)
			}
		}
	}
	return records, nil
}

func (s *Store) FetchByKey(ctx context.Context, key record.Key) (*record.Record, error) {
	for _, t := range recordTypes {
		r, err := s.get(ctx, t, key)
		if err != nil || r != nil {
			return r, err
		}
	}
	return nil, nil
}

func (s *Store) FetchByKeys(ctx context.Context, keys []record.Key) ([]*record.Record, error) {
	var out []*record.Record
	for _, k := range keys {
		r, err := s.FetchByKey(ctx, k)
		if err != nil {
			return nil, err
		}
		if r != nil {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) Save(ctx context.Context, records []*record.Record, policy record.SavePolicy) ([]*record.Record, error) {
	saved := make([]*record.Record, 0, len(records))
	for _, in := range records {
		r, err := s.save(ctx, in, policy)
		if err != nil {
			return nil, err
		}
		saved = append(saved, r)
	}
	return saved, nil
}

func (s *Store) Delete(ctx context.Context, keys []record.Key) ([]record.Key, error) {
	var deleted []record.Key
	for _, k := range keys {
		r, err := s.FetchByKey(ctx, k)
		if err != nil {
			return nil, err
		}
		if r == nil {
			continue
		}
		_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.name(r.Type, k)),
		})
		if err != nil {
			return nil, fmt.Errorf("delete %s: %w", k, err)
		}
		deleted = append(deleted, k)
	}
	return deleted, nil
}

func (s *Store) Modify(ctx context.Context, save []*record.Record, del []record.Key, policy record.SavePolicy) ([]*record.Record, []record.Key, error) {
	saved, err := s.Save(ctx, save, policy)
	if err != nil {
		return nil, nil, err
	}
	deleted, err := s.Delete(ctx, del)
	if err != nil {
		return nil, nil, err
	}
	return saved, deleted, nil
}

func (s *Store) save(ctx context.Context, in *record.Record, policy record.SavePolicy) (*record.Record, error) {
	stored, err := s.get(ctx, in.Type, in.Key)
	if err != nil {
		return nil, err
	}
	out, err := record.Merge(stored, in, policy)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	out.ModifiedAt = now
	if out.CreatedAt.IsZero() {
		out.CreatedAt = now
	}
	body, err := s.encode(out)
	if err != nil {
		return nil, err
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.name(out.Type, out.Key)),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String("application/json"),
	}
	if stored == nil {
		input.IfNoneMatch = aws.String("*")
	} else {
		input.IfMatch = aws.String(stored.ChangeTag)
	}

	res, err := s.client.PutObject(ctx, input)
	if err != nil {
		if isPreconditionFailed(err) {
			return nil, fmt.Errorf("save %s: %w", in.Key, record.ErrConflict)
		}
		return nil, fmt.Errorf("save %s: %w", in.Key, err)
	}
	out.ChangeTag = aws.ToString(res.ETag)
	return out, nil
}

// get returns nil when the object does not exist.
func (s *Store) get(ctx context.Context, t record.Type, key record.Key) (*record.Record, error) {
	name := s.name(t, key)
	res, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s: %w", name, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	r, err := s.decode(name, body)
	if err != nil {
		return nil, err
	}
	r.ChangeTag = aws.ToString(res.ETag)
	return r, nil
}

func (s *Store) encode(r *record.Record) ([]byte, error) {
	data, err := json.Marshal(object{
		Type:       r.Type,
		Key:        r.Key,
		Fields:     r.Fields,
		CreatedAt:  r.CreatedAt,
		ModifiedAt: r.ModifiedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", r.Key, err)
	}
	if s.sealer == nil {
		return data, nil
	}
	return s.sealer.seal(s.name(r.Type, r.Key), data)
}

func (s *Store) decode(name string, data []byte) (*record.Record, error) {
	if s.sealer != nil {
		var err error
		if data, err = s.sealer.open(name, data); err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
	}
	var obj object
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	r := record.New(obj.Type, obj.Key)
	for k, v := range obj.Fields {
		r.Fields[k] = v
	}
	r.CreatedAt = obj.CreatedAt
	r.ModifiedAt = obj.ModifiedAt
	return r, nil
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "PreconditionFailed"
	}
	return false
}
