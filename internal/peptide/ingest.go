package peptide

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/epiworks/episeek/internal/model"

	"github.com/xuri/excelize/v2"
)

// Load reads a peptide or protein list from path and returns the validated
// key set. The format is picked by extension: FASTA (.fasta, .fa, .faa),
// tab-separated (.tsv, .txt), comma-separated (.csv) or a spreadsheet
// (.xlsx). Unknown extensions are tried as tab-separated. With window set,
// every input sequence is expanded into all substrings inside f's length
// window before validation; otherwise each input row is one candidate.
func Load(path string, f Filter, window bool) ([]model.Key, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open peptide input: %w", err)
	}
	defer func() {
		_ = fh.Close()
	}()

	var candidates []string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".fasta", ".fa", ".faa":
		candidates, err = readFASTA(fh)
	case ".csv":
		candidates, err = readTabular(fh, ',')
	case ".xlsx":
		candidates, err = readWorkbook(fh)
	case ".tsv", ".txt":
		candidates, err = readTabular(fh, '\t')
	default:
		slog.Warn("unknown input extension, trying tab-separated", "path", path)
		candidates, err = readTabular(fh, '\t')
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if window {
		var expanded []string
		for _, seq := range candidates {
			expanded = append(expanded, Windows(Normalize(seq), f.Min, f.Max)...)
		}
		candidates = expanded
	}

	keys := Keys(candidates, f)
	if len(keys) == 0 {
		return nil, fmt.Errorf("%s: %w", path, model.ErrNoSequence)
	}
	slog.Info("peptide input loaded",
		"path", path, "candidates", len(candidates), "keys", len(keys))
	return keys, nil
}

// readFASTA returns one string per record, headers dropped, sequence lines
// of a record joined. Characters outside the amino acid alphabet are
// removed so a sequence with separator junk still yields its residues;
// validation later decides whether the survivor is usable.
func readFASTA(r io.Reader) ([]string, error) {
	var (
		seqs []string
		cur  strings.Builder
		open bool
	)
	flush := func() {
		if open && cur.Len() > 0 {
			seqs = append(seqs, cur.String())
		}
		cur.Reset()
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
		case strings.HasPrefix(line, ">"):
			flush()
			open = true
		case open:
			cur.WriteString(stripNonResidues(line))
		default:
			return nil, fmt.Errorf("sequence data before first FASTA header")
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	flush()
	if len(seqs) == 0 {
		return nil, fmt.Errorf("no FASTA records found")
	}
	return seqs, nil
}

func stripNonResidues(line string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune("ACDEFGHIKLMNPQRSTVWY", r) {
			return r
		}
		return -1
	}, strings.ToUpper(line))
}

// readTabular flattens every cell of a delimited file into one candidate
// list. Rows may have differing widths; there is no header convention in
// the wild, so none is assumed.
func readTabular(r io.Reader, sep rune) ([]string, error) {
	cr := csv.NewReader(r)
	cr.Comma = sep
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var cells []string
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		for _, field := range record {
			if field = strings.TrimSpace(field); field != "" {
				cells = append(cells, field)
			}
		}
	}
	return cells, nil
}

// readWorkbook reads the first sheet of an xlsx workbook. A column headed
// "peptide" wins; failing that, the first column whose body looks like
// sequences; failing that, the first column.
func readWorkbook(r io.Reader) ([]string, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = wb.Close()
	}()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheets[0])
	}

	col, skipHeader := pickColumn(rows)
	var cells []string
	for i, row := range rows {
		if i == 0 && skipHeader {
			continue
		}
		if col < len(row) {
			if cell := strings.TrimSpace(row[col]); cell != "" {
				cells = append(cells, cell)
			}
		}
	}
	return cells, nil
}

func pickColumn(rows [][]string) (col int, skipHeader bool) {
	for i, head := range rows[0] {
		if strings.EqualFold(strings.TrimSpace(head), "peptide") {
			return i, true
		}
	}
	for _, row := range rows[1:] {
		for i, cell := range row {
			if alphabetRe.MatchString(Normalize(cell)) {
				headerIsSeq := i < len(rows[0]) && alphabetRe.MatchString(Normalize(rows[0][i]))
				return i, !headerIsSeq
			}
		}
	}
	return 0, false
}
