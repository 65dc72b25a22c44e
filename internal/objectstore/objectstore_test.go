package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/dukerupert/shelflife/internal/record"
)

type mockObject struct {
	data []byte
	etag string
}

// mockS3Client implements s3Client for testing, including conditional puts.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string]mockObject
	seq     int
	putErr  error
	listErr error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string]mockObject)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, exists := m.objects[*input.Key]
	if aws.ToString(input.IfNoneMatch) == "*" && exists {
		return nil, &smithy.GenericAPIError{Code: "PreconditionFailed"}
	}
	if input.IfMatch != nil && (!exists || cur.etag != *input.IfMatch) {
		return nil, &smithy.GenericAPIError{Code: "PreconditionFailed"}
	}
	data, _ := io.ReadAll(input.Body)
	m.seq++
	etag := `"` + strconv.Itoa(m.seq) + `"`
	m.objects[*input.Key] = mockObject{data: data, etag: etag}
	return &s3.PutObjectOutput{ETag: aws.String(etag)}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[*input.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader(obj.data)),
		ETag: aws.String(obj.etag),
	}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3Client) ListObjectsV2(_ context.Context, input *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for name := range m.objects {
		if strings.HasPrefix(name, aws.ToString(input.Prefix)) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, name := range names {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(name)})
	}
	return out, nil
}

func setupStore(t *testing.T, cfg Config) (*Store, *mockS3Client) {
	t.Helper()
	mock := newMockS3()
	cfg.Bucket = "shelflife"
	s, err := newStore(mock, cfg, "home")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s, mock
}

func listRecord(key, name string) *record.Record {
	r := record.New(record.TypeList, record.Key(key))
	r.Set("name", record.String(name))
	return r
}

func TestSaveAndFetch(t *testing.T) {
	s, mock := setupStore(t, Config{})
	ctx := context.Background()

	saved, err := s.Save(ctx, []*record.Record{listRecord("list_a", "Fridge")}, record.SaveIfUnchanged)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved[0].ChangeTag == "" {
		t.Error("expected etag as change tag")
	}
	if _, ok := mock.objects["home/list/list_a"]; !ok {
		t.Errorf("objects = %v", mock.objects)
	}

	got, err := s.FetchByKey(ctx, "list_a")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got == nil || got.Type != record.TypeList {
		t.Fatalf("got %+v", got)
	}
	if name, _ := got.String("name"); name != "Fridge" {
		t.Errorf("name = %q", name)
	}
	if got.ChangeTag != saved[0].ChangeTag {
		t.Errorf("tag = %q, want %q", got.ChangeTag, saved[0].ChangeTag)
	}
}

func TestConcurrentWriterIsConflict(t *testing.T) {
	s, mock := setupStore(t, Config{})
	ctx := context.Background()
	saved, _ := s.Save(ctx, []*record.Record{listRecord("list_a", "Fridge")}, record.SaveIfUnchanged)

	stale := saved[0].Clone()
	stale.Set("name", record.String("Freezer"))

	// Someone else rewrites the object after our read.
	mock.mu.Lock()
	obj := mock.objects["home/list/list_a"]
	obj.etag = `"other"`
	mock.objects["home/list/list_a"] = obj
	mock.mu.Unlock()

	_, err := s.Save(ctx, []*record.Record{stale}, record.SaveIfUnchanged)
	if !errors.Is(err, record.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestSaveChangedKeysAfterRemoteDeleteIsNotFound(t *testing.T) {
	s, _ := setupStore(t, Config{})
	ctx := context.Background()
	saved, _ := s.Save(ctx, []*record.Record{listRecord("list_a", "Fridge")}, record.SaveIfUnchanged)
	if _, err := s.Delete(ctx, []record.Key{"list_a"}); err != nil {
		t.Fatal(err)
	}

	edit := saved[0].Clone()
	edit.Set("name", record.String("Freezer"))
	_, err := s.Save(ctx, []*record.Record{edit}, record.SaveChangedKeys)
	if !errors.Is(err, record.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestQueryListsByTypePrefix(t *testing.T) {
	s, _ := setupStore(t, Config{})
	ctx := context.Background()
	item := record.New(record.TypeItem, "item_1")
	item.Set("list", record.Ref(record.TypeList, "list_a"))
	s.Save(ctx, []*record.Record{listRecord("list_a", "Fridge"), listRecord("list_b", "Pantry"), item}, record.SaveIfUnchanged)

	lists, err := s.Query(ctx, record.TypeList, record.All())
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if keys := record.Keys(lists); len(keys) != 2 || keys[0] != "list_a" || keys[1] != "list_b" {
		t.Errorf("keys = %v", keys)
	}

	items, err := s.Query(ctx, record.TypeItem, record.Equal("list", record.Ref(record.TypeList, "list_b")))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("items = %v", record.Keys(items))
	}
}

func TestDeleteReportsExisting(t *testing.T) {
	s, _ := setupStore(t, Config{})
	ctx := context.Background()
	s.Save(ctx, []*record.Record{listRecord("list_a", "Fridge")}, record.SaveIfUnchanged)

	deleted, err := s.Delete(ctx, []record.Key{"list_a", "list_zz"})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(deleted) != 1 || deleted[0] != "list_a" {
		t.Errorf("deleted = %v", deleted)
	}
}

func TestSealedObjects(t *testing.T) {
	salt := []byte("0123456789abcdef")
	s, mock := setupStore(t, Config{Passphrase: "correct horse", Salt: salt})
	ctx := context.Background()

	if _, err := s.Save(ctx, []*record.Record{listRecord("list_a", "Secret pantry")}, record.SaveIfUnchanged); err != nil {
		t.Fatalf("save: %v", err)
	}
	if bytes.Contains(mock.objects["home/list/list_a"].data, []byte("Secret pantry")) {
		t.Error("object stored in plaintext")
	}

	got, err := s.FetchByKey(ctx, "list_a")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if name, _ := got.String("name"); name != "Secret pantry" {
		t.Errorf("name = %q", name)
	}

	wrong, err := newStore(mock, Config{Bucket: "shelflife", Passphrase: "wrong", Salt: salt}, "home")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wrong.FetchByKey(ctx, "list_a"); err == nil {
		t.Error("expected decrypt error with wrong passphrase")
	}
}

func TestSealerRejectsSwappedObjects(t *testing.T) {
	sl, err := newSealer("pw", []byte("0123456789abcdef"))
	if err != nil {
		t.Fatal(err)
	}
	sealed, err := sl.seal("home/list/a", []byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sl.open("home/list/b", sealed); err == nil {
		t.Error("expected error opening under another name")
	}
	plain, err := sl.open("home/list/a", sealed)
	if err != nil || string(plain) != "hello" {
		t.Errorf("open = %q, %v", plain, err)
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := New(Config{Bucket: "b"}, "home"); err == nil {
		t.Error("expected error without credentials")
	}
}
