package processor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"resume-ingest-go/internal/config"
	"resume-ingest-go/internal/extractor"
	"resume-ingest-go/internal/types"
	"resume-ingest-go/internal/validator"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockLineSource 模拟文本行提取
type MockLineSource struct {
	Lines []string
	Err   error
	Calls int
}

func (m *MockLineSource) ExtractLines(ctx context.Context, data []byte, fileName string, docType types.DocumentType) ([]string, error) {
	m.Calls++
	return m.Lines, m.Err
}

// MockResolver 模拟解析链
type MockResolver struct {
	Record *types.CandidateRecord
	Err    error
}

func (m *MockResolver) Resolve(lines []string, docType types.DocumentType) (*types.CandidateRecord, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	rec := *m.Record
	rec.DocumentType = docType
	return &rec, nil
}

// MockHTMLExtractor 模拟HTML提取
type MockHTMLExtractor struct {
	Record     *types.CandidateRecord
	Err        error
	LastSource types.SourceSite
}

func (m *MockHTMLExtractor) ExtractRecord(data []byte, source types.SourceSite) (*types.CandidateRecord, error) {
	m.LastSource = source
	return m.Record, m.Err
}

// MockParsedCache 内存中的解析缓存
type MockParsedCache struct {
	mu     sync.Mutex
	items  map[string]*types.CandidateRecord
	GetErr error
}

func NewMockParsedCache() *MockParsedCache {
	return &MockParsedCache{items: make(map[string]*types.CandidateRecord)}
}

func (m *MockParsedCache) GetParsedRecord(ctx context.Context, key string) (*types.CandidateRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	return m.items[key], nil
}

func (m *MockParsedCache) SetParsedRecord(ctx context.Context, key string, rec *types.CandidateRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = rec
	return nil
}

func sampleRecord() *types.CandidateRecord {
	return &types.CandidateRecord{
		FirstName:       types.StringPtr("Иван"),
		LastName:        types.StringPtr("Иванов"),
		DesiredPosition: types.StringPtr("Программист"),
		Phone:           types.StringPtr("79161234567"),
		Email:           types.StringPtr("ivan@example.com"),
		SourceSite:      types.SourceHeadHunter,
	}
}

func newTestProcessor(comp *Components) *ResumeProcessor {
	return NewResumeProcessorV2(comp, nil, WithsetLogger(zerolog.Nop()))
}

func TestProcessRejectsPDF(t *testing.T) {
	lines := &MockLineSource{}
	rp := newTestProcessor(&Components{LineExtractor: lines, Resolver: &MockResolver{Record: sampleRecord()}})

	result, err := rp.Process(context.Background(), types.RawDocument{Data: []byte("%PDF-1.4"), FileName: "resume.pdf"})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
	assert.Equal(t, KindUnsupportedFormat, KindOf(err))
	assert.Equal(t, MsgCannotProcessFile, UserMessage(err))
	assert.Equal(t, 0, lines.Calls)

	var perr *ResumeProcessError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "detect", perr.Op)
	assert.Equal(t, "resume.pdf", perr.FileName)
}

func TestProcessTextRoute(t *testing.T) {
	rp := newTestProcessor(&Components{
		LineExtractor: &MockLineSource{Lines: []string{"a", "b"}},
		Resolver:      &MockResolver{Record: sampleRecord()},
	})

	result, err := rp.Process(context.Background(), types.RawDocument{Data: []byte("x"), FileName: "cv.rtf"})
	require.NoError(t, err)
	assert.Equal(t, types.DocumentRTF, result.Record.DocumentType)
	assert.True(t, result.Validation.Valid())
	assert.False(t, result.FromCache)
}

func TestProcessValidationIsNotAnError(t *testing.T) {
	rec := sampleRecord()
	rec.Phone = types.StringPtr("123")
	rec.Email = nil
	rp := newTestProcessor(&Components{
		LineExtractor: &MockLineSource{Lines: []string{"a"}},
		Resolver:      &MockResolver{Record: rec},
	})

	result, err := rp.Process(context.Background(), types.RawDocument{Data: []byte("x"), FileName: "cv.txt"})
	require.NoError(t, err)
	assert.False(t, result.Validation.PhoneValid)
	assert.False(t, result.Validation.EmailValid)
	assert.Contains(t, result.Validation.Message, validator.MsgPhoneInvalid)
	assert.Contains(t, result.Validation.Message, validator.MsgEmailMissing)
}

func TestProcessExtractionFailure(t *testing.T) {
	rp := newTestProcessor(&Components{
		LineExtractor: &MockLineSource{Err: errors.New("tika down")},
		Resolver:      &MockResolver{Record: sampleRecord()},
	})

	_, err := rp.Process(context.Background(), types.RawDocument{Data: []byte("x"), FileName: "cv.doc"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExtraction))
	assert.Equal(t, KindExtraction, KindOf(err))
	assert.Equal(t, MsgCannotProcessFile, UserMessage(err))
	assert.Contains(t, err.Error(), "tika down")
}

func TestProcessNoParserMatched(t *testing.T) {
	rp := newTestProcessor(&Components{
		LineExtractor: &MockLineSource{Lines: []string{"a"}},
		Resolver:      &MockResolver{Err: ErrNoParserMatched},
	})

	_, err := rp.Process(context.Background(), types.RawDocument{Data: []byte("x"), FileName: "cv.xls"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoParserMatched))
	assert.Equal(t, MsgCannotExtractData, UserMessage(err))
}

func TestProcessHTMLRoute(t *testing.T) {
	html := &MockHTMLExtractor{Record: sampleRecord()}
	rp := newTestProcessor(&Components{HTMLExtractor: html})

	result, err := rp.Process(context.Background(), types.RawDocument{
		Data: []byte("<html></html>"), FileName: "export.html", DeclaredSource: "superjob",
	})
	require.NoError(t, err)
	assert.Equal(t, types.SourceSuperJob, html.LastSource)
	assert.NotNil(t, result.Record)
}

func TestProcessHTMLErrors(t *testing.T) {
	t.Run("unknown source", func(t *testing.T) {
		rp := newTestProcessor(&Components{HTMLExtractor: &MockHTMLExtractor{Record: sampleRecord()}})
		_, err := rp.Process(context.Background(), types.RawDocument{Data: []byte("<p>"), FileName: "a.htm", DeclaredSource: "linkedin"})
		assert.True(t, errors.Is(err, ErrUnsupportedSource))
		assert.Equal(t, MsgCannotProcessFile, UserMessage(err))
	})

	t.Run("required fields missing", func(t *testing.T) {
		rec := sampleRecord()
		rec.DesiredPosition = nil
		rp := newTestProcessor(&Components{HTMLExtractor: &MockHTMLExtractor{Record: rec}})
		_, err := rp.Process(context.Background(), types.RawDocument{Data: []byte("<p>"), FileName: "a.html", DeclaredSource: "hh"})
		assert.True(t, errors.Is(err, ErrNoParserMatched))
	})

	t.Run("extractor error", func(t *testing.T) {
		rp := newTestProcessor(&Components{HTMLExtractor: &MockHTMLExtractor{Err: errors.New("bad markup")}})
		_, err := rp.Process(context.Background(), types.RawDocument{Data: []byte("<p>"), FileName: "a.html", DeclaredSource: "hh"})
		assert.True(t, errors.Is(err, ErrExtraction))
	})
}

func TestProcessUsesParsedCache(t *testing.T) {
	lines := &MockLineSource{Lines: []string{"a"}}
	cache := NewMockParsedCache()
	rp := newTestProcessor(&Components{
		LineExtractor: lines,
		Resolver:      &MockResolver{Record: sampleRecord()},
		Cache:         cache,
	})
	doc := types.RawDocument{Data: []byte("same bytes"), FileName: "cv.txt"}

	first, err := rp.Process(context.Background(), doc)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := rp.Process(context.Background(), doc)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Record, second.Record)
	assert.Equal(t, first.Validation, second.Validation)
	assert.Equal(t, 1, lines.Calls)

	// 同样的内容换一种格式不共用缓存
	_, err = rp.Process(context.Background(), types.RawDocument{Data: []byte("same bytes"), FileName: "cv.rtf"})
	require.NoError(t, err)
	assert.Equal(t, 2, lines.Calls)
}

func TestProcessCacheErrorFallsBackToParsing(t *testing.T) {
	cache := NewMockParsedCache()
	cache.GetErr = errors.New("redis down")
	rp := newTestProcessor(&Components{
		LineExtractor: &MockLineSource{Lines: []string{"a"}},
		Resolver:      &MockResolver{Record: sampleRecord()},
		Cache:         cache,
	})

	result, err := rp.Process(context.Background(), types.RawDocument{Data: []byte("x"), FileName: "cv.txt"})
	require.NoError(t, err)
	assert.False(t, result.FromCache)
}

func TestProcessMissingComponents(t *testing.T) {
	rp := newTestProcessor(nil)
	_, err := rp.Process(context.Background(), types.RawDocument{Data: []byte("x"), FileName: "cv.txt"})
	assert.True(t, errors.Is(err, ErrExtraction))
}

func TestParsedCacheKey(t *testing.T) {
	a := ParsedCacheKey([]byte("x"), extractor.Detection{DocType: types.DocumentHTML, Source: types.SourceAvito})
	b := ParsedCacheKey([]byte("x"), extractor.Detection{DocType: types.DocumentHTML, Source: types.SourceRabota})
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "9dd4e461268c8034f5c8564e155c67a6:"))
}

func TestCreateProcessorFromConfigParsesPlainText(t *testing.T) {
	cfg := &config.Config{
		Parser:     config.ParserConfig{Order: []string{"hh", "avito", "superjob", "rabota"}},
		Processing: config.ProcessingConfig{DocumentTimeout: "5s"},
	}
	rp, err := CreateProcessorFromConfig(cfg)
	require.NoError(t, err)

	text := strings.Join([]string{
		"Иванов Иван Иванович",
		"Мужчина, родился 15 марта 1990",
		"ivan@example.com",
		"Желаемая должность и зарплата",
		"Программист",
		"Занятость: полная",
		"Зарплата: 50000 руб",
	}, "\n")

	result, err := rp.Process(context.Background(), types.RawDocument{Data: []byte(text), FileName: "ivanov.txt"})
	require.NoError(t, err)
	assert.Equal(t, types.SourceHeadHunter, result.Record.SourceSite)
	assert.Equal(t, "Иван", types.Deref(result.Record.FirstName))
	assert.Equal(t, "Программист", types.Deref(result.Record.DesiredPosition))
	assert.False(t, result.Validation.PhoneValid)
	assert.True(t, result.Validation.EmailValid)
}

func TestCreateProcessorFromConfigErrors(t *testing.T) {
	_, err := CreateProcessorFromConfig(nil)
	assert.Error(t, err)

	_, err = CreateProcessorFromConfig(&config.Config{Parser: config.ParserConfig{Order: []string{"linkedin"}}})
	assert.Error(t, err)

	_, err = CreateProcessorFromConfig(&config.Config{Parser: config.ParserConfig{RTFArtifactPattern: "("}})
	assert.Error(t, err)
}

func TestProcessConcurrent(t *testing.T) {
	rp := newTestProcessor(&Components{
		LineExtractor: &MockLineSourceSafe{Lines: []string{"a"}},
		Resolver:      &MockResolver{Record: sampleRecord()},
		Cache:         NewMockParsedCache(),
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := rp.Process(context.Background(), types.RawDocument{Data: []byte("x"), FileName: "cv.txt"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

// MockLineSourceSafe 并发安全的文本行提取
type MockLineSourceSafe struct {
	Lines []string
}

func (m *MockLineSourceSafe) ExtractLines(ctx context.Context, data []byte, fileName string, docType types.DocumentType) ([]string, error) {
	return m.Lines, nil
}
