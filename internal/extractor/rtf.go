package extractor

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// DefaultArtifactPattern 某些导出工具写入的残缺转义：\' 后只跟一位十六进制数字
const DefaultArtifactPattern = `\\'[0-9a-fA-F]([^0-9a-fA-F]|$)`

// DefaultCodePage 未声明 \ansicpg 时使用的代码页
const DefaultCodePage = 1251

// 这些目标组的内容不属于正文
var skipDestinations = map[string]bool{
	"fonttbl": true, "colortbl": true, "stylesheet": true, "info": true,
	"pict": true, "object": true, "objdata": true, "header": true,
	"headerl": true, "headerr": true, "headerf": true, "footer": true,
	"footerl": true, "footerr": true, "footerf": true, "themedata": true,
	"datastore": true, "latentstyles": true, "xmlnstbl": true,
	"listtable": true, "listoverridetable": true, "rsidtbl": true,
	"generator": true, "filetbl": true, "revtbl": true, "fldinst": true,
	"colorschememapping": true, "pgdsctbl": true, "shppict": true,
	"nonshppict": true, "bkmkstart": true, "bkmkend": true,
}

var symbolWords = map[string]rune{
	"emdash": '—', "endash": '–', "bullet": '•',
	"lquote": '‘', "rquote": '’', "ldblquote": '“', "rdblquote": '”',
	"emspace": ' ', "enspace": ' ', "qmspace": ' ',
}

var codePages = map[int]encoding.Encoding{
	866:   charmap.CodePage866,
	1250:  charmap.Windows1250,
	1251:  charmap.Windows1251,
	1252:  charmap.Windows1252,
	10007: charmap.MacintoshCyrillic,
}

// RTFDecoder 把RTF字节流解码为纯文本，无状态，可并发使用
type RTFDecoder struct {
	artifactRe *regexp.Regexp
}

// NewRTFDecoder 创建解码器，pattern为空时使用DefaultArtifactPattern
// pattern的第一个捕获组（若有）会被保留，用于保住残缺转义后面的字符
func NewRTFDecoder(pattern string) (*RTFDecoder, error) {
	if pattern == "" {
		pattern = DefaultArtifactPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("编译RTF残缺转义正则失败: %w", err)
	}
	return &RTFDecoder{artifactRe: re}, nil
}

// StripArtifacts 预清理会中断解码的残缺转义
func (d *RTFDecoder) StripArtifacts(data []byte) []byte {
	if d.artifactRe.NumSubexp() > 0 {
		return d.artifactRe.ReplaceAll(data, []byte("$1"))
	}
	return d.artifactRe.ReplaceAll(data, nil)
}

// DecodeText 解码RTF，返回以换行分隔的文本
func (d *RTFDecoder) DecodeText(data []byte) (string, error) {
	data = d.StripArtifacts(data)
	trimmed := bytes.TrimLeft(data, " \t\r\n\ufeff")
	if !bytes.HasPrefix(trimmed, []byte(`{\rtf`)) {
		return "", fmt.Errorf("%w: 缺少RTF文件头", ErrExtraction)
	}

	st := &rtfScanner{data: trimmed, cur: rtfGroup{uc: 1}, codePage: DefaultCodePage}
	if err := st.run(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	return st.out.String(), nil
}

type rtfGroup struct {
	skip bool
	uc   int // \uN 之后需要跳过的替代字符数
}

type rtfScanner struct {
	data     []byte
	pos      int
	cur      rtfGroup
	stack    []rtfGroup
	codePage int
	pending  []byte // 待按代码页解码的单字节字符
	skipNext int
	out      strings.Builder
}

func (s *rtfScanner) run() error {
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		switch c {
		case '{':
			s.stack = append(s.stack, s.cur)
			s.pos++
		case '}':
			if len(s.stack) == 0 {
				return fmt.Errorf("位置 %d 处的右括号没有匹配", s.pos)
			}
			s.cur = s.stack[len(s.stack)-1]
			s.stack = s.stack[:len(s.stack)-1]
			s.pos++
		case '\\':
			if err := s.control(); err != nil {
				return err
			}
		case '\r', '\n':
			s.pos++
		default:
			s.emitByte(c)
			s.pos++
		}
	}
	return s.flush()
}

func (s *rtfScanner) control() error {
	if s.pos+1 >= len(s.data) {
		s.pos++
		return nil
	}
	next := s.data[s.pos+1]
	switch {
	case next == '\\' || next == '{' || next == '}':
		s.emitByte(next)
		s.pos += 2
	case next == '\'':
		if s.pos+4 > len(s.data) {
			return fmt.Errorf("位置 %d 处的十六进制转义被截断", s.pos)
		}
		v, err := strconv.ParseUint(string(s.data[s.pos+2:s.pos+4]), 16, 8)
		if err != nil {
			return fmt.Errorf("位置 %d 处的十六进制转义非法: %w", s.pos, err)
		}
		s.emitByte(byte(v))
		s.pos += 4
	case next == '*':
		s.cur.skip = true
		s.pos += 2
	case next == '~':
		s.emitByte(' ')
		s.pos += 2
	case next == '_':
		s.emitByte('-')
		s.pos += 2
	case next == '\r' || next == '\n':
		s.emitByte('\n')
		s.pos += 2
	case isASCIILetter(next):
		return s.word()
	default:
		s.pos += 2
	}
	return nil
}

func (s *rtfScanner) word() error {
	start := s.pos + 1
	end := start
	for end < len(s.data) && isASCIILetter(s.data[end]) {
		end++
	}
	name := string(s.data[start:end])

	paramStart := end
	if end < len(s.data) && s.data[end] == '-' {
		end++
	}
	for end < len(s.data) && s.data[end] >= '0' && s.data[end] <= '9' {
		end++
	}
	param, hasParam := 0, false
	if end > paramStart {
		if v, err := strconv.Atoi(string(s.data[paramStart:end])); err == nil {
			param, hasParam = v, true
		}
	}
	// 控制字后的单个空格是分隔符
	if end < len(s.data) && s.data[end] == ' ' {
		end++
	}
	s.pos = end

	return s.handleWord(name, param, hasParam)
}

func (s *rtfScanner) handleWord(name string, param int, hasParam bool) error {
	if skipDestinations[name] {
		s.cur.skip = true
		return nil
	}
	if r, ok := symbolWords[name]; ok {
		return s.emitRune(r)
	}
	switch name {
	case "ansicpg":
		if !hasParam {
			return nil
		}
		// 切换代码页前先按旧代码页解码已缓存的字节
		if err := s.flush(); err != nil {
			return err
		}
		s.codePage = param
	case "par", "line", "row", "cell", "sect", "page":
		s.emitByte('\n')
	case "tab":
		s.emitByte('\t')
	case "uc":
		if hasParam && param >= 0 {
			s.cur.uc = param
		}
	case "u":
		if !hasParam {
			return nil
		}
		if param < 0 {
			param += 65536
		}
		if err := s.emitRune(rune(param)); err != nil {
			return err
		}
		s.skipNext = s.cur.uc
	}
	return nil
}

func (s *rtfScanner) emitByte(b byte) {
	if s.skipNext > 0 {
		s.skipNext--
		return
	}
	if s.cur.skip {
		return
	}
	s.pending = append(s.pending, b)
}

func (s *rtfScanner) emitRune(r rune) error {
	if s.cur.skip {
		return nil
	}
	if err := s.flush(); err != nil {
		return err
	}
	s.out.WriteRune(r)
	return nil
}

func (s *rtfScanner) flush() error {
	if len(s.pending) == 0 {
		return nil
	}
	enc, ok := codePages[s.codePage]
	if !ok {
		enc = codePages[DefaultCodePage]
	}
	decoded, err := enc.NewDecoder().Bytes(s.pending)
	s.pending = s.pending[:0]
	if err != nil {
		return fmt.Errorf("按代码页 %d 解码失败: %w", s.codePage, err)
	}
	s.out.Write(decoded)
	return nil
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
