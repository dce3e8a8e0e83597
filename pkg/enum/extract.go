package enum

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/bodgit/sevenzip"
	"github.com/ledongthuc/pdf"
)

// ExtractedContent is the text of one member of a document or archive.
type ExtractedContent struct {
	Name    string // member within the file, e.g. "word/document.xml"
	Content []byte
}

type extractFunc func(content []byte, limit int64) ([]ExtractedContent, error)

// extractors maps a lower-case extension to its text extractor.
var extractors = map[string]extractFunc{
	".docx": extractDOCX,
	".xlsx": extractXLSX,
	".pdf":  extractPDF,
	".zip":  extractZip,
	".7z":   extract7z,
}

// ExtractFormats lists the formats ExtractText understands, without dots.
func ExtractFormats() []string {
	formats := make([]string, 0, len(extractors))
	for ext := range extractors {
		formats = append(formats, strings.TrimPrefix(ext, "."))
	}
	sort.Strings(formats)
	return formats
}

// ParseExtractFormats validates a comma-separated format list ("all" selects
// every format) and returns it normalized.
func ParseExtractFormats(list string) (string, error) {
	list = strings.ToLower(strings.TrimSpace(list))
	if list == "" || list == "all" {
		return list, nil
	}
	var formats []string
	for _, f := range strings.Split(list, ",") {
		f = strings.TrimPrefix(strings.TrimSpace(f), ".")
		if f == "" {
			continue
		}
		if _, ok := extractors["."+f]; !ok {
			return "", fmt.Errorf("unknown extract format %q (supported: %s)", f, strings.Join(ExtractFormats(), ", "))
		}
		formats = append(formats, f)
	}
	return strings.Join(formats, ","), nil
}

// ExtractText returns the text held by a document or the text members of an
// archive, chosen by the extension of path. limit caps the size of a single
// member; larger members are skipped (0 = no limit).
func ExtractText(path string, content []byte, limit int64) ([]ExtractedContent, error) {
	ext := strings.ToLower(filepath.Ext(path))
	extract, ok := extractors[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported file type: %s", ext)
	}
	return extract(content, limit)
}

// shouldExtract reports whether path has a format selected by formats.
func shouldExtract(formats, path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := extractors[ext]; !ok || formats == "" {
		return false
	}
	if formats == "all" {
		return true
	}
	for _, f := range strings.Split(formats, ",") {
		if "."+f == ext {
			return true
		}
	}
	return false
}

func extractDOCX(content []byte, limit int64) ([]ExtractedContent, error) {
	return officeText(content, limit, func(name string) bool {
		return name == "word/document.xml"
	})
}

func extractXLSX(content []byte, limit int64) ([]ExtractedContent, error) {
	return officeText(content, limit, func(name string) bool {
		return name == "xl/sharedStrings.xml" ||
			strings.HasPrefix(name, "xl/worksheets/sheet") && strings.HasSuffix(name, ".xml")
	})
}

// officeText collects the character data of the selected XML parts of an
// Office Open XML package.
func officeText(content []byte, limit int64, keep func(name string) bool) ([]ExtractedContent, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("opening office document: %w", err)
	}

	var out []ExtractedContent
	for _, f := range zr.File {
		if !keep(f.Name) {
			continue
		}
		data, err := readMember(f.Open, limit)
		if err != nil || data == nil {
			continue
		}
		if text := xmlText(data); text != "" {
			out = append(out, ExtractedContent{Name: f.Name, Content: []byte(text)})
		}
	}
	return out, nil
}

func extractPDF(content []byte, _ int64) (out []ExtractedContent, err error) {
	// the pdf reader panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("reading pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}

	var text strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		s, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text.WriteString(s)
		text.WriteByte('\n')
	}

	if strings.TrimSpace(text.String()) == "" {
		return nil, nil
	}
	return []ExtractedContent{{Name: "text", Content: []byte(text.String())}}, nil
}

// archiveMember is one entry of a zip or 7z archive.
type archiveMember struct {
	name string
	dir  bool
	open func() (io.ReadCloser, error)
}

func extractZip(content []byte, limit int64) ([]ExtractedContent, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("opening zip archive: %w", err)
	}
	members := make([]archiveMember, 0, len(zr.File))
	for _, f := range zr.File {
		members = append(members, archiveMember{name: f.Name, dir: f.FileInfo().IsDir(), open: f.Open})
	}
	return textMembers(members, limit), nil
}

func extract7z(content []byte, limit int64) ([]ExtractedContent, error) {
	r, err := sevenzip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("opening 7z archive: %w", err)
	}
	members := make([]archiveMember, 0, len(r.File))
	for _, f := range r.File {
		members = append(members, archiveMember{name: f.Name, dir: f.FileInfo().IsDir(), open: f.Open})
	}
	return textMembers(members, limit), nil
}

// textMembers reads the non-empty text members. Directories, binary members
// and members over limit are skipped.
func textMembers(members []archiveMember, limit int64) []ExtractedContent {
	var out []ExtractedContent
	for _, m := range members {
		if m.dir {
			continue
		}
		data, err := readMember(m.open, limit)
		if err != nil || len(data) == 0 || isBinary(data) {
			continue
		}
		out = append(out, ExtractedContent{Name: m.name, Content: data})
	}
	return out
}

// readMember reads one member, or returns nil when it is larger than limit.
func readMember(open func() (io.ReadCloser, error), limit int64) ([]byte, error) {
	rc, err := open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	if limit <= 0 {
		return io.ReadAll(rc)
	}
	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, nil
	}
	return data, nil
}

// xmlText joins the non-blank character data of an XML document with single
// spaces.
func xmlText(data []byte) string {
	var text strings.Builder
	decoder := xml.NewDecoder(bytes.NewReader(data))
	for {
		token, err := decoder.Token()
		if err != nil {
			break
		}
		cd, ok := token.(xml.CharData)
		if !ok {
			continue
		}
		s := collapseSpace(string(cd))
		if s == "" {
			continue
		}
		if text.Len() > 0 {
			text.WriteByte(' ')
		}
		text.WriteString(s)
	}
	return text.String()
}

// collapseSpace folds whitespace runs to one space and drops non-printable
// runes.
func collapseSpace(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			if !space {
				b.WriteByte(' ')
				space = true
			}
		case unicode.IsPrint(r):
			b.WriteRune(r)
			space = false
		}
	}
	return strings.TrimSpace(b.String())
}
