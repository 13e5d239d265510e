package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
)

var (
	wordRunRe  = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>`)
	slideRunRe = regexp.MustCompile(`<a:t(?:\s[^>]*)?>([^<]*)</a:t>`)
	slideNumRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
	xmlEscapes = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'")
)

// DOCX reads the text runs of word/document.xml, one line per paragraph.
type DOCX struct{}

func (DOCX) Extract(_ context.Context, data []byte) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open docx: %w", err)
	}
	defer r.Close()

	content := r.Editable().GetContent()
	var text strings.Builder
	for _, paragraph := range strings.Split(content, "</w:p>") {
		line := runsText(paragraph, wordRunRe, "")
		if strings.TrimSpace(line) == "" {
			continue
		}
		text.WriteString(line)
		text.WriteString("\n")
	}
	return text.String(), nil
}

// PPTX reads the text runs of every slide in slide order.
type PPTX struct{}

func (PPTX) Extract(ctx context.Context, data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pptx: %w", err)
	}

	type slide struct {
		num  int
		file *zip.File
	}
	var slides []slide
	for _, f := range zr.File {
		m := slideNumRe.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{num: num, file: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var text strings.Builder
	for _, s := range slides {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		rc, err := s.file.Open()
		if err != nil {
			log.Warn().Err(err).Int("slide", s.num).Msg("Skipping unreadable slide")
			continue
		}
		xml, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			log.Warn().Err(err).Int("slide", s.num).Msg("Skipping unreadable slide")
			continue
		}
		if slideText := runsText(string(xml), slideRunRe, " "); strings.TrimSpace(slideText) != "" {
			fmt.Fprintf(&text, "## Slide %d\n%s\n", s.num, slideText)
		}
	}
	return text.String(), nil
}

// Spreadsheet renders every sheet as tab separated rows. Workbooks xlsx
// cannot read (macro-enabled and template variants) go through excelize.
type Spreadsheet struct{}

func (Spreadsheet) Extract(_ context.Context, data []byte) (string, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		log.Debug().Err(err).Msg("xlsx could not open workbook, trying excelize")
		return excelizeText(data)
	}

	var text strings.Builder
	for _, sheet := range f.Sheets {
		fmt.Fprintf(&text, "## Sheet: %s\n", sheet.Name)
		for _, row := range sheet.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				cells = append(cells, cell.String())
			}
			text.WriteString(strings.Join(cells, "\t"))
			text.WriteString("\n")
		}
	}
	return text.String(), nil
}

func excelizeText(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer f.Close()

	var text strings.Builder
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			log.Warn().Err(err).Str("sheet", sheetName).Msg("Skipping unreadable sheet")
			continue
		}
		fmt.Fprintf(&text, "## Sheet: %s\n", sheetName)
		for _, row := range rows {
			text.WriteString(strings.Join(row, "\t"))
			text.WriteString("\n")
		}
	}
	return text.String(), nil
}

// PlainText returns the bytes as text, replacing invalid UTF-8.
type PlainText struct{}

func (PlainText) Extract(_ context.Context, data []byte) (string, error) {
	return strings.ToValidUTF8(string(data), "�"), nil
}

func runsText(xml string, re *regexp.Regexp, sep string) string {
	var parts []string
	for _, m := range re.FindAllStringSubmatch(xml, -1) {
		parts = append(parts, xmlEscapes.Replace(m[1]))
	}
	return strings.Join(parts, sep)
}
