package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/epiworks/episeek/internal/model"

	"github.com/stretchr/testify/require"
)

var stdParams = model.Params{Allele: "HLA-A*02:01", Method: "nn_align"}

func TestExtractNumber(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		scenario string
		body     string
		want     float64
		ok       bool
	}{
		{
			scenario: "primary field wins",
			body:     `{"score": 0.42, "immunogenicity": 9.9}`,
			want:     0.42, ok: true,
		},
		{
			scenario: "secondary field when primary absent",
			body:     `{"immunogenicity": "1.5"}`,
			want:     1.5, ok: true,
		},
		{
			scenario: "free text scan as last resort",
			body:     "predicted score: 0.17 (model v2)",
			want:     0.17, ok: true,
		},
		{
			scenario: "nothing numeric",
			body:     "service temporarily confused",
			ok:       false,
		},
	} {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()
			got, ok := ExtractNumber([]byte(tc.body),
				JSONNumberField("score"),
				JSONNumberField("immunogenicity"),
				FreeTextNumber(4096),
			)
			require.Equal(t, tc.ok, ok)
			if tc.ok {
				require.InDelta(t, tc.want, got, 1e-9)
			}
		})
	}
}

func TestFreeTextNumberBounded(t *testing.T) {
	t.Parallel()
	body := make([]byte, 8192)
	for i := range body {
		body[i] = 'x'
	}
	body = append(body, []byte(" 42")...)

	_, ok := FreeTextNumber(4096)([]byte(string(body)))
	require.False(t, ok, "number past the scan limit must not be found")
}

// affinityStub scores peptides of length 8 to 10 with a fixed IC50 and
// rejects everything else, mimicking a predictor that only supports a
// length window.
func affinityStub(t *testing.T, ic50 float64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		seq := r.PostForm.Get("sequence_text")
		if len(seq) < 8 || len(seq) > 10 {
			http.Error(w, "unsupported peptide length", http.StatusUnprocessableEntity)
			return
		}
		w.Write([]byte("allele\tpeptide\tic50\tpercentile_rank\n" +
			r.PostForm.Get("allele") + "\t" + seq + "\t" +
			strconv.FormatFloat(ic50, 'f', 1, 64) + "\t3.2\n"))
	}))
}

func TestAffinityCall(t *testing.T) {
	t.Parallel()
	srv := affinityStub(t, 42.0)
	t.Cleanup(srv.Close)

	a := NewAffinity(srv.URL, time.Second, srv.Client())

	for _, tc := range []struct {
		key        model.Key
		wantOK     bool
		wantReason model.Reason
	}{
		{key: "SIINFEKL", wantOK: true},
		{key: "GILGFVFTL", wantOK: true},
		{key: "AAAAAAAAAAAAAAAA", wantOK: false, wantReason: model.ReasonRejected},
	} {
		t.Run(string(tc.key), func(t *testing.T) {
			t.Parallel()
			out := a.Call(context.Background(), tc.key, stdParams)
			require.Equal(t, tc.wantOK, out.OK())
			if tc.wantOK {
				aff, ok := out.Value.(model.Affinity)
				require.True(t, ok)
				require.InDelta(t, 42.0, aff.IC50, 1e-9)
				require.Equal(t, "HLA-A*02:01", aff.Allele)
				require.InDelta(t, 3.2, aff.Percentile, 1e-9)
			} else {
				require.Equal(t, tc.wantReason, out.Reason)
			}
		})
	}
}

func TestAffinityNASentinel(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("allele\tpeptide\tic50\nHLA-A*02:01\tSIINFEKL\tNA\n"))
	}))
	defer srv.Close()

	a := NewAffinity(srv.URL, time.Second, srv.Client())
	out := a.Call(context.Background(), "SIINFEKL", stdParams)
	require.False(t, out.OK())
	require.Equal(t, model.ReasonRejected, out.Reason)
}

func TestAffinityBareNumberResponse(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("137.5\n"))
	}))
	defer srv.Close()

	a := NewAffinity(srv.URL, time.Second, srv.Client())
	out := a.Call(context.Background(), "SIINFEKL", stdParams)
	require.True(t, out.OK())
	require.InDelta(t, 137.5, out.Value.(model.Affinity).IC50, 1e-9)
}

func TestAffinityGarbageResponse(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html>maintenance window</html>"))
	}))
	defer srv.Close()

	a := NewAffinity(srv.URL, time.Second, srv.Client())
	out := a.Call(context.Background(), "SIINFEKL", stdParams)
	require.False(t, out.OK())
	require.Equal(t, model.ReasonUnparsable, out.Reason)
}

func TestImmunoFallbackOrder(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		scenario string
		body     string
		want     float64
	}{
		{scenario: "current deployment", body: `{"score": 0.31}`, want: 0.31},
		{scenario: "legacy field", body: `{"immunogenicity": 0.44}`, want: 0.44},
		{scenario: "plain text", body: "immunogenicity = 0.02", want: 0.02},
	} {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			m := NewImmuno(srv.URL, time.Second, srv.Client())
			out := m.Call(context.Background(), "SIINFEKL", model.Params{})
			require.True(t, out.OK())
			require.InDelta(t, tc.want, out.Value.(model.Immunogenicity).Score, 1e-9)
		})
	}
}

func TestAnnotCall(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		scenario string
		body     string
		want     model.Annotation
	}{
		{
			scenario: "flat record",
			body:     `{"protein_name": "Ovalbumin", "gene": "SERPINB14", "organism": "Gallus gallus"}`,
			want:     model.Annotation{Protein: "Ovalbumin", Gene: "SERPINB14", Organism: "Gallus gallus"},
		},
		{
			scenario: "uniprot shaped record",
			body: `{"proteinDescription":{"recommendedName":{"fullName":{"value":"Ovalbumin"}}},` +
				`"genes":[{"geneName":{"value":"SERPINB14"}}],` +
				`"organism":{"scientificName":"Gallus gallus"}}`,
			want: model.Annotation{Protein: "Ovalbumin", Gene: "SERPINB14", Organism: "Gallus gallus"},
		},
	} {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/SIINFEKL", r.URL.Path)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			a := NewAnnot(srv.URL, time.Second, srv.Client())
			out := a.Call(context.Background(), "SIINFEKL", model.Params{})
			require.True(t, out.OK())
			require.Equal(t, tc.want, out.Value)
		})
	}
}

func TestAnnotNoName(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"organism":{"scientificName":"Gallus gallus"}}`))
	}))
	defer srv.Close()

	a := NewAnnot(srv.URL, time.Second, srv.Client())
	out := a.Call(context.Background(), "SIINFEKL", model.Params{})
	require.False(t, out.OK())
	require.Equal(t, model.ReasonUnparsable, out.Reason)
}

func TestClassification(t *testing.T) {
	t.Parallel()

	t.Run("server error is transport", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusBadGateway)
		}))
		defer srv.Close()

		m := NewImmuno(srv.URL, time.Second, srv.Client())
		out := m.Call(context.Background(), "SIINFEKL", model.Params{})
		require.Equal(t, model.ReasonTransport, out.Reason)
	})

	t.Run("client error is rejection", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "no such peptide", http.StatusNotFound)
		}))
		defer srv.Close()

		a := NewAnnot(srv.URL, time.Second, srv.Client())
		out := a.Call(context.Background(), "SIINFEKL", model.Params{})
		require.Equal(t, model.ReasonRejected, out.Reason)
	})

	t.Run("slow service times out", func(t *testing.T) {
		t.Parallel()
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			<-release
		}))
		defer srv.Close()
		defer close(release)

		m := NewImmuno(srv.URL, 50*time.Millisecond, srv.Client())
		out := m.Call(context.Background(), "SIINFEKL", model.Params{})
		require.Equal(t, model.ReasonTimeout, out.Reason)
	})

	t.Run("unreachable endpoint is transport", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		srv.Close()

		m := NewImmuno(srv.URL, time.Second, nil)
		out := m.Call(context.Background(), "SIINFEKL", model.Params{})
		require.Equal(t, model.ReasonTransport, out.Reason)
	})
}

func TestPing(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}))
	defer srv.Close()

	up := NewImmuno(srv.URL, time.Second, srv.Client())
	require.NoError(t, up.Ping(context.Background()),
		"any HTTP answer means the service is up")

	dead := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	dead.Close()
	down := NewImmuno(dead.URL, time.Second, nil)
	require.Error(t, down.Ping(context.Background()))
}
