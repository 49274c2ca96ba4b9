package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"resume-ingest-go/internal/config"
	"resume-ingest-go/internal/processor"
	"resume-ingest-go/internal/storage"
	"resume-ingest-go/internal/storage/models"
	"resume-ingest-go/internal/types"
	"resume-ingest-go/internal/utils"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockDedupStore struct {
	mu          sync.Mutex
	Set         map[string]bool
	Submissions map[string]string
	Removed     []string
	CheckErr    error
	ExpirySet   bool
}

func newMockDedup() *MockDedupStore {
	return &MockDedupStore{Set: map[string]bool{}, Submissions: map[string]string{}}
}

func (m *MockDedupStore) CheckAndAddRawFileMD5(ctx context.Context, md5Hex string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CheckErr != nil {
		return false, m.CheckErr
	}
	exists := m.Set[md5Hex]
	m.Set[md5Hex] = true
	return exists, nil
}

func (m *MockDedupStore) RemoveRawFileMD5(ctx context.Context, md5Hex string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Set, md5Hex)
	delete(m.Submissions, md5Hex)
	m.Removed = append(m.Removed, md5Hex)
	return nil
}

func (m *MockDedupStore) RememberSubmission(ctx context.Context, md5Hex, submissionUUID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Submissions[md5Hex] = submissionUUID
	return nil
}

func (m *MockDedupStore) SubmissionForMD5(ctx context.Context, md5Hex string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Submissions[md5Hex], nil
}

func (m *MockDedupStore) EnsureMD5SetExpiry(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ExpirySet {
		return false, nil
	}
	m.ExpirySet = true
	return true, nil
}

type MockFileStore struct {
	Objects   map[string][]byte
	Deleted   []string
	UploadErr error
}

func (m *MockFileStore) UploadResumeFile(ctx context.Context, submissionUUID, fileExt string, reader io.Reader, fileSize int64) (string, error) {
	if m.UploadErr != nil {
		return "", m.UploadErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	key := storage.ResumeObjectKey(submissionUUID, fileExt)
	m.Objects[key] = data
	return key, nil
}

func (m *MockFileStore) DeleteResumeFile(ctx context.Context, objectKey string) error {
	delete(m.Objects, objectKey)
	m.Deleted = append(m.Deleted, objectKey)
	return nil
}

type publishedMessage struct {
	Exchange   string
	RoutingKey string
	Body       []byte
}

// MockQueue 记录发布的消息，StartConsumer 把已发布的消息交给处理函数
type MockQueue struct {
	mu         sync.Mutex
	Published  []publishedMessage
	PublishErr error
	Results    []bool
}

func (m *MockQueue) PublishJSON(ctx context.Context, exchangeName, routingKey string, data interface{}, persistent bool) error {
	if m.PublishErr != nil {
		return m.PublishErr
	}
	body, err := json.Marshal(data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Published = append(m.Published, publishedMessage{exchangeName, routingKey, body})
	return nil
}

func (m *MockQueue) StartConsumer(ctx context.Context, queueName string, prefetchCount int, handler storage.MessageHandler) (<-chan struct{}, error) {
	done := make(chan struct{})
	m.mu.Lock()
	msgs := append([]publishedMessage(nil), m.Published...)
	m.Published = nil
	m.mu.Unlock()
	go func() {
		defer close(done)
		for _, msg := range msgs {
			ok := handler(ctx, msg.Body)
			m.mu.Lock()
			m.Results = append(m.Results, ok)
			m.mu.Unlock()
		}
	}()
	return done, nil
}

type MockIngester struct {
	mu       sync.Mutex
	Messages []storage.ResumeUploadMessage
	Outcome  *processor.IngestOutcome
	Err      error
}

func (m *MockIngester) ProcessUploadedResume(ctx context.Context, msg storage.ResumeUploadMessage) (*processor.IngestOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, msg)
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Outcome != nil {
		return m.Outcome, nil
	}
	return &processor.IngestOutcome{ResumeID: "resume-1", Eligible: true}, nil
}

type MockDocumentProcessor struct {
	Result *processor.ProcessResult
	Err    error
}

func (m *MockDocumentProcessor) Process(ctx context.Context, doc types.RawDocument) (*processor.ProcessResult, error) {
	return m.Result, m.Err
}

type MockFailureLister struct {
	Rows []models.FailedUpload
}

func (m *MockFailureLister) ListFailedUploads(ctx context.Context, uploaderID string, limit int) ([]models.FailedUpload, error) {
	var out []models.FailedUpload
	for _, r := range m.Rows {
		if uploaderID == "" || r.UploaderID == uploaderID {
			out = append(out, r)
		}
	}
	return out, nil
}

type MockHealth struct {
	Status map[string]error
}

func (m *MockHealth) Ping(ctx context.Context) map[string]error { return m.Status }

type handlerFixture struct {
	dedup    *MockDedupStore
	files    *MockFileStore
	queue    *MockQueue
	ingest   *MockIngester
	proc     *MockDocumentProcessor
	failures *MockFailureLister
	health   *MockHealth
	cfg      *config.Config
	h        *ResumeHandler
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.MaxUploadMB = 1
	cfg.Server.DefaultUploader = "system"
	cfg.RabbitMQ.ResumeEventsExchange = "resume.events"
	cfg.RabbitMQ.UploadedRoutingKey = "resume.uploaded"
	cfg.RabbitMQ.RawResumeQueue = "q.raw"
	cfg.RabbitMQ.PrefetchCount = 2
	return cfg
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	f := &handlerFixture{
		dedup:    newMockDedup(),
		files:    &MockFileStore{Objects: map[string][]byte{}},
		queue:    &MockQueue{},
		ingest:   &MockIngester{},
		proc:     &MockDocumentProcessor{},
		failures: &MockFailureLister{},
		health:   &MockHealth{Status: map[string]error{"mysql": nil}},
		cfg:      testConfig(),
	}
	f.h = NewResumeHandler(f.cfg, Deps{
		Dedup:     f.dedup,
		Files:     f.files,
		Queue:     f.queue,
		Processor: f.proc,
		Ingest:    f.ingest,
		Failures:  f.failures,
		Health:    f.health,
	})
	f.h.logger = zerolog.Nop()
	return f
}

func rtfUpload(content string) UploadRequest {
	return UploadRequest{
		Reader:    bytes.NewReader([]byte(content)),
		FileSize:  int64(len(content)),
		FileName:  "Ivanov.RTF",
		VacancyID: "vac-1",
	}
}

func TestUploadPublishesMessage(t *testing.T) {
	f := newHandlerFixture(t)
	content := "{\\rtf1 resume}"

	resp, err := f.h.HandleResumeUpload(context.Background(), rtfUpload(content))
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, resp.Status)
	assert.NotEmpty(t, resp.SubmissionUUID)

	key := storage.ResumeObjectKey(resp.SubmissionUUID, ".RTF")
	assert.Equal(t, []byte(content), f.files.Objects[key])
	assert.Equal(t, resp.SubmissionUUID, f.dedup.Submissions[utils.CalculateMD5([]byte(content))])

	require.Len(t, f.queue.Published, 1)
	pub := f.queue.Published[0]
	assert.Equal(t, "resume.events", pub.Exchange)
	assert.Equal(t, "resume.uploaded", pub.RoutingKey)

	var msg storage.ResumeUploadMessage
	require.NoError(t, json.Unmarshal(pub.Body, &msg))
	assert.Equal(t, resp.SubmissionUUID, msg.SubmissionUUID)
	assert.Equal(t, "Ivanov.RTF", msg.OriginalFilename)
	assert.Equal(t, key, msg.OriginalFilePathOSS)
	assert.Equal(t, "vac-1", msg.VacancyID)
	assert.Equal(t, "system", msg.UploaderID)
	assert.Equal(t, utils.CalculateMD5([]byte(content)), msg.RawFileMD5)
}

func TestUploadDuplicateReturnsExistingSubmission(t *testing.T) {
	f := newHandlerFixture(t)

	first, err := f.h.HandleResumeUpload(context.Background(), rtfUpload("same"))
	require.NoError(t, err)

	second, err := f.h.HandleResumeUpload(context.Background(), rtfUpload("same"))
	require.NoError(t, err)
	assert.Equal(t, StatusDuplicateSkipped, second.Status)
	assert.Equal(t, first.SubmissionUUID, second.SubmissionUUID)
	assert.Len(t, f.queue.Published, 1)
}

func TestUploadRejectsUnsupportedFormat(t *testing.T) {
	f := newHandlerFixture(t)
	req := rtfUpload("%PDF-1.4")
	req.FileName = "resume.pdf"

	_, err := f.h.HandleResumeUpload(context.Background(), req)
	var rejected *UploadRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.ErrorIs(t, err, processor.ErrUnsupportedFormat)
	assert.Equal(t, processor.MsgCannotProcessFile, rejected.Message)
	assert.Empty(t, f.dedup.Set)
	assert.Empty(t, f.queue.Published)
}

func TestUploadRejectsHTMLWithoutSource(t *testing.T) {
	f := newHandlerFixture(t)
	req := rtfUpload("<html></html>")
	req.FileName = "resume.html"

	_, err := f.h.HandleResumeUpload(context.Background(), req)
	assert.ErrorIs(t, err, processor.ErrUnsupportedSource)

	req = rtfUpload("<html></html>")
	req.FileName = "resume.html"
	req.DeclaredSource = "hh"
	resp, err := f.h.HandleResumeUpload(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, resp.Status)
}

func TestUploadSizeLimits(t *testing.T) {
	f := newHandlerFixture(t)

	big := bytes.Repeat([]byte("a"), (1<<20)+1)
	_, err := f.h.HandleResumeUpload(context.Background(), UploadRequest{
		Reader: bytes.NewReader(big), FileSize: int64(len(big)), FileName: "a.txt",
	})
	assert.ErrorIs(t, err, ErrFileTooLarge)

	// 声明的大小不可信，按实际读取的字节判断
	_, err = f.h.HandleResumeUpload(context.Background(), UploadRequest{
		Reader: bytes.NewReader(big), FileSize: 10, FileName: "a.txt",
	})
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = f.h.HandleResumeUpload(context.Background(), UploadRequest{
		Reader: bytes.NewReader(nil), FileName: "a.txt",
	})
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestUploadPublishFailureRollsBack(t *testing.T) {
	f := newHandlerFixture(t)
	f.queue.PublishErr = errors.New("channel closed")

	_, err := f.h.HandleResumeUpload(context.Background(), rtfUpload("content"))
	require.Error(t, err)
	assert.Len(t, f.files.Deleted, 1)
	assert.Empty(t, f.files.Objects)
	assert.Equal(t, []string{utils.CalculateMD5([]byte("content"))}, f.dedup.Removed)
	assert.Empty(t, f.dedup.Set)
}

func TestUploadStorageFailureRollsBackMD5(t *testing.T) {
	f := newHandlerFixture(t)
	f.files.UploadErr = errors.New("minio down")

	_, err := f.h.HandleResumeUpload(context.Background(), rtfUpload("content"))
	require.Error(t, err)
	assert.Empty(t, f.dedup.Set)
	assert.Empty(t, f.queue.Published)
}

func TestUploadDedupFailure(t *testing.T) {
	f := newHandlerFixture(t)
	f.dedup.CheckErr = errors.New("redis down")

	_, err := f.h.HandleResumeUpload(context.Background(), rtfUpload("content"))
	require.Error(t, err)
	assert.Empty(t, f.files.Objects)
}

func TestUploadWithoutStorage(t *testing.T) {
	h := NewResumeHandler(testConfig(), Deps{})
	_, err := h.HandleResumeUpload(context.Background(), rtfUpload("x"))
	assert.ErrorIs(t, err, processor.ErrStorageNotInit)
}

func TestHandleParse(t *testing.T) {
	f := newHandlerFixture(t)
	f.proc.Result = &processor.ProcessResult{
		Record:     &types.CandidateRecord{FirstName: types.StringPtr("Иван")},
		Validation: types.ValidationResult{PhoneValid: false, EmailValid: true, Message: "bad phone"},
		FromCache:  true,
	}

	resp, err := f.h.HandleParse(context.Background(), types.RawDocument{Data: []byte("x"), FileName: "a.txt"})
	require.NoError(t, err)
	assert.Equal(t, "Иван", types.Deref(resp.Record.FirstName))
	assert.False(t, resp.Eligible)
	assert.True(t, resp.FromCache)

	f.proc.Result = nil
	f.proc.Err = processor.NewParseError("a.txt", "no parser")
	_, err = f.h.HandleParse(context.Background(), types.RawDocument{Data: []byte("x"), FileName: "a.txt"})
	assert.ErrorIs(t, err, processor.ErrNoParserMatched)
}

func TestListFailedUploadsAndHealth(t *testing.T) {
	f := newHandlerFixture(t)
	f.failures.Rows = []models.FailedUpload{
		{SubmissionUUID: "a", UploaderID: "hr-1"},
		{SubmissionUUID: "b", UploaderID: "hr-2"},
	}

	rows, err := f.h.ListFailedUploads(context.Background(), "hr-2", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "b", rows[0].SubmissionUUID)

	status, ok := f.h.HealthStatus(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "ok", status["mysql"])

	f.health.Status["redis"] = errors.New("connection refused")
	status, ok = f.h.HealthStatus(context.Background())
	assert.False(t, ok)
	assert.Equal(t, "connection refused", status["redis"])
}

func TestUploadConsumerRoundTrip(t *testing.T) {
	f := newHandlerFixture(t)

	_, err := f.h.HandleResumeUpload(context.Background(), rtfUpload("first"))
	require.NoError(t, err)
	_, err = f.h.HandleResumeUpload(context.Background(), rtfUpload("second"))
	require.NoError(t, err)
	f.queue.Published = append(f.queue.Published, publishedMessage{Body: []byte("not json")})

	require.NoError(t, f.h.StartResumeUploadConsumer(context.Background(), 1))
	f.h.WaitConsumers()

	assert.Len(t, f.ingest.Messages, 2)
	// 格式错误的消息直接确认
	assert.Equal(t, []bool{true, true, true}, f.queue.Results)
}

func TestUploadConsumerRequestsRedelivery(t *testing.T) {
	f := newHandlerFixture(t)
	f.ingest.Err = errors.New("mysql down")

	_, err := f.h.HandleResumeUpload(context.Background(), rtfUpload("first"))
	require.NoError(t, err)

	require.NoError(t, f.h.StartResumeUploadConsumer(context.Background(), 1))
	f.h.WaitConsumers()
	assert.Equal(t, []bool{false}, f.queue.Results)
}

func TestUploadConsumerFailureOutcomeIsAcked(t *testing.T) {
	f := newHandlerFixture(t)
	f.ingest.Outcome = &processor.IngestOutcome{Failure: processor.NewParseError("a.rtf", "")}

	assert.True(t, f.h.handleUploadMessage(context.Background(), []byte(`{"submission_uuid":"s"}`)))
}

func TestMD5CleanupTask(t *testing.T) {
	f := newHandlerFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		f.h.StartMD5CleanupTask(ctx, time.Hour)
		close(done)
	}()

	require.Eventually(t, func() bool {
		f.dedup.mu.Lock()
		defer f.dedup.mu.Unlock()
		return f.dedup.ExpirySet
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("清理任务未退出")
	}
}
