package peptide

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/epiworks/episeek/internal/model"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestKeys(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		scenario   string
		candidates []string
		want       []model.Key
	}{
		{
			scenario:   "valid peptides pass in order",
			candidates: []string{"SIINFEKL", "GILGFVFTL"},
			want:       []model.Key{"SIINFEKL", "GILGFVFTL"},
		},
		{
			scenario:   "lowercase and padding normalized",
			candidates: []string{" siinfekl\t"},
			want:       []model.Key{"SIINFEKL"},
		},
		{
			scenario:   "duplicates collapse to first occurrence",
			candidates: []string{"SIINFEKL", "GILGFVFTL", "siinfekl"},
			want:       []model.Key{"SIINFEKL", "GILGFVFTL"},
		},
		{
			scenario:   "length window enforced",
			candidates: []string{"SIINFEK", "SIINFEKL", "SIINFEKLSIINFEKL"},
			want:       []model.Key{"SIINFEKL"},
		},
		{
			scenario:   "ambiguity codes rejected",
			candidates: []string{"SIINFEKX", "SIINFEKB", "SIINFEKL"},
			want:       []model.Key{"SIINFEKL"},
		},
	} {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, Keys(tc.candidates, DefaultFilter))
		})
	}
}

func TestWindows(t *testing.T) {
	t.Parallel()
	got := Windows("ABCDE", 3, 4)
	require.Equal(t, []string{"ABC", "BCD", "CDE", "ABCD", "BCDE"}, got)

	require.Empty(t, Windows("ABC", 4, 5), "sequence shorter than the window")
}

func TestLoadFASTA(t *testing.T) {
	t.Parallel()
	path := writeInput(t, "input.fasta", ">seq1 test protein\nMSTNGERDFG\n>seq2\nMKLLSIVATV\n")

	keys, err := Load(path, DefaultFilter, false)
	require.NoError(t, err)
	require.Equal(t, []model.Key{"MSTNGERDFG", "MKLLSIVATV"}, keys)
}

func TestLoadFASTAMultilineRecord(t *testing.T) {
	t.Parallel()
	path := writeInput(t, "input.fa", ">seq1\nMSTNG\nERDFG\n")

	keys, err := Load(path, DefaultFilter, false)
	require.NoError(t, err)
	require.Equal(t, []model.Key{"MSTNGERDFG"}, keys)
}

func TestLoadFASTAWindowed(t *testing.T) {
	t.Parallel()
	path := writeInput(t, "input.fasta", ">seq1\nMSTNGERDF\n")

	keys, err := Load(path, Filter{Min: 8, Max: 9}, true)
	require.NoError(t, err)
	require.Equal(t, []model.Key{"MSTNGERD", "STNGERDF", "MSTNGERDF"}, keys)
}

func TestLoadTSV(t *testing.T) {
	t.Parallel()
	path := writeInput(t, "input.tsv", "SIINFEKL\tGILGFVFTL\nNLVPMVATV\n")

	keys, err := Load(path, DefaultFilter, false)
	require.NoError(t, err)
	require.Equal(t, []model.Key{"SIINFEKL", "GILGFVFTL", "NLVPMVATV"}, keys)
}

func TestLoadCSV(t *testing.T) {
	t.Parallel()
	path := writeInput(t, "input.csv", "SIINFEKL,GILGFVFTL\nnot-a-peptide,NLVPMVATV\n")

	keys, err := Load(path, DefaultFilter, false)
	require.NoError(t, err)
	require.Equal(t, []model.Key{"SIINFEKL", "GILGFVFTL", "NLVPMVATV"}, keys)
}

func TestLoadWorkbook(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "input.xlsx")

	wb := excelize.NewFile()
	sheet := wb.GetSheetName(0)
	require.NoError(t, wb.SetCellValue(sheet, "A1", "id"))
	require.NoError(t, wb.SetCellValue(sheet, "B1", "peptide"))
	require.NoError(t, wb.SetCellValue(sheet, "A2", "p1"))
	require.NoError(t, wb.SetCellValue(sheet, "B2", "SIINFEKL"))
	require.NoError(t, wb.SetCellValue(sheet, "A3", "p2"))
	require.NoError(t, wb.SetCellValue(sheet, "B3", "GILGFVFTL"))
	require.NoError(t, wb.SaveAs(path))
	require.NoError(t, wb.Close())

	keys, err := Load(path, DefaultFilter, false)
	require.NoError(t, err)
	require.Equal(t, []model.Key{"SIINFEKL", "GILGFVFTL"}, keys)
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := Load(filepath.Join(t.TempDir(), "absent.fasta"), DefaultFilter, false)
		require.Error(t, err)
	})

	t.Run("no record survives filtering", func(t *testing.T) {
		t.Parallel()
		path := writeInput(t, "short.tsv", "AAA\nGG\n")
		_, err := Load(path, DefaultFilter, false)
		require.ErrorIs(t, err, model.ErrNoSequence)
	})

	t.Run("sequence before header", func(t *testing.T) {
		t.Parallel()
		path := writeInput(t, "broken.fasta", "MSTNGERDFG\n>seq1\nMKLLSIVATV\n")
		_, err := Load(path, DefaultFilter, false)
		require.ErrorContains(t, err, "FASTA header")
	})
}

func TestProps(t *testing.T) {
	t.Parallel()
	p := Props("SIINFEKL")

	require.Equal(t, 8, p.Length)
	require.InDelta(t, 963.14, p.MW, 0.05)
	require.InDelta(t, 0.4875, p.Gravy, 1e-9)
	require.InDelta(t, 0.125, p.Aromaticity, 1e-9)
	// two I plus one L out of eight residues
	require.InDelta(t, 146.25, p.AliphaticIndex, 1e-6)
	// one acidic E against one basic K plus the terminus imbalance
	require.Greater(t, p.PI, 4.0)
	require.Less(t, p.PI, 9.0)
}

func TestPropsInstability(t *testing.T) {
	t.Parallel()
	// all dipeptides carry the neutral weight
	p := Props("AAAAAAAA")
	require.InDelta(t, 8.75, p.Instability, 1e-9)

	require.Zero(t, Props("A").Instability)
}

func TestPropsChargeMonotonicity(t *testing.T) {
	t.Parallel()
	counts := map[byte]int{'D': 1, 'E': 1, 'K': 1, 'R': 1, 'H': 1}
	require.Greater(t, netCharge(counts, 2.0), netCharge(counts, 7.0))
	require.Greater(t, netCharge(counts, 7.0), netCharge(counts, 12.0))
}

func TestPropsBasicVsAcidicPI(t *testing.T) {
	t.Parallel()
	basic := Props("KKKKRRRR")
	acidic := Props("DDDDEEEE")
	require.Greater(t, basic.PI, 9.0)
	require.Less(t, acidic.PI, 5.0)
}

func TestOutcomes(t *testing.T) {
	t.Parallel()
	out := Outcomes([]model.Key{"SIINFEKL", "GILGFVFTL"})
	require.Len(t, out, 2)
	for _, o := range out {
		require.True(t, o.OK())
	}
	require.Equal(t, 8, out["SIINFEKL"].Value.(model.PhysChem).Length)
}
