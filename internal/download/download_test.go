package download

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/volcanic-ash-alert/internal/advisory"
	"github.com/JakeFAU/volcanic-ash-alert/internal/hash/sha256"
	"github.com/JakeFAU/volcanic-ash-alert/internal/ledger/workdir"
)

type stubFetcher struct {
	bodies map[string][]byte
	fail   map[string]error
	calls  []string
}

func (s *stubFetcher) Fetch(_ context.Context, url string) (advisory.Response, error) {
	s.calls = append(s.calls, url)
	if err, ok := s.fail[url]; ok {
		return advisory.Response{}, err
	}
	return advisory.Response{URL: url, StatusCode: 200, Body: s.bodies[url], Duration: time.Millisecond}, nil
}

func testSelection() advisory.Selection {
	entry := advisory.Entry{Name: "V_20240101000000/", Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return advisory.NewSelection("http://vaac.test/advisory/2024/", entry)
}

func newDownloader(f advisory.Fetcher, fs afero.Fs) *Downloader {
	return New(f, workdir.New(fs), fs, sha256.New(), zap.NewNop())
}

func TestDownloadWritesBothAssets(t *testing.T) {
	t.Parallel()

	sel := testSelection()
	fs := afero.NewMemMapFs()
	f := &stubFetcher{bodies: map[string][]byte{sel.ImageURL: []byte("png"), sel.DataURL: []byte("a,b\n")}}

	res, err := newDownloader(f, fs).Download(context.Background(), &sel)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, []string{sel.ImageURL, sel.DataURL}, f.calls)
	assert.Equal(t, []string{"V_20240101000000_vag.png", "V_20240101000000_vag.csv"}, res.Paths())

	img, err := afero.ReadFile(fs, "V_20240101000000_vag.png")
	require.NoError(t, err)
	assert.Equal(t, "png", string(img))
	csv, err := afero.ReadFile(fs, "V_20240101000000_vag.csv")
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(csv))

	require.Len(t, res.Assets, 2)
	assert.Equal(t, KindImage, res.Assets[0].Kind)
	assert.Equal(t, 3, res.Assets[0].Bytes)
	assert.Equal(t, "sha256:", res.Assets[0].Digest[:len("sha256:")])
	assert.Len(t, res.Assets[0].Digest, len("sha256:")+64)
}

func TestDownloadKeepsLatin1BytesAndContentType(t *testing.T) {
	t.Parallel()

	sel := testSelection()
	fs := afero.NewMemMapFs()
	latin1 := []byte{0x6c, 0x61, 0x74, 0x2c, 0xe9, 0x0a}
	f := &typedFetcher{
		stubFetcher: stubFetcher{bodies: map[string][]byte{sel.ImageURL: []byte("png"), sel.DataURL: latin1}},
		types:       map[string]string{sel.ImageURL: "image/png", sel.DataURL: "text/csv"},
	}

	d := newDownloader(f, fs)
	res, err := d.Download(context.Background(), &sel)
	require.NoError(t, err)

	csv, err := afero.ReadFile(fs, sel.DataName)
	require.NoError(t, err)
	assert.Equal(t, latin1, csv)
	require.Len(t, res.Assets, 2)
	assert.Equal(t, "image/png", res.Assets[0].ContentType)
	assert.Equal(t, "text/csv", res.Assets[1].ContentType)

	require.NoError(t, d.Verify(res.Assets[1], csv))
	err = d.Verify(res.Assets[1], []byte("lat,\xc3\xa9\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), sel.DataName)
}

type typedFetcher struct {
	stubFetcher
	types map[string]string
}

func (f *typedFetcher) Fetch(ctx context.Context, url string) (advisory.Response, error) {
	resp, err := f.stubFetcher.Fetch(ctx, url)
	resp.ContentType = f.types[url]
	return resp, err
}

func TestDownloadSkipsSeenSelection(t *testing.T) {
	t.Parallel()

	sel := testSelection()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, sel.ImageName, []byte("old"), 0o644))
	f := &stubFetcher{}

	res, err := newDownloader(f, fs).Download(context.Background(), &sel)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Empty(t, res.Assets)
	assert.Empty(t, f.calls)

	img, err := afero.ReadFile(fs, sel.ImageName)
	require.NoError(t, err)
	assert.Equal(t, "old", string(img))
}

func TestDownloadFailureWritesNothing(t *testing.T) {
	t.Parallel()

	sel := testSelection()
	tests := []struct {
		name string
		fail string
	}{
		{name: "image fails", fail: sel.ImageURL},
		{name: "data fails", fail: sel.DataURL},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			fs := afero.NewMemMapFs()
			f := &stubFetcher{
				bodies: map[string][]byte{sel.ImageURL: []byte("png"), sel.DataURL: []byte("csv")},
				fail:   map[string]error{tc.fail: errors.New("status 404: Not Found")},
			}
			s := sel
			_, err := newDownloader(f, fs).Download(context.Background(), &s)
			require.Error(t, err)

			for _, name := range []string{sel.ImageName, sel.DataName} {
				ok, err := afero.Exists(fs, name)
				require.NoError(t, err)
				assert.False(t, ok, name)
			}
		})
	}
}

func TestDownloadRequiresSelection(t *testing.T) {
	t.Parallel()

	_, err := newDownloader(&stubFetcher{}, afero.NewMemMapFs()).Download(context.Background(), nil)
	require.ErrorIs(t, err, advisory.ErrNoSelection)
}

type brokenLedger struct{}

func (brokenLedger) Seen(context.Context, string) (bool, error) { return false, errors.New("redis down") }
func (brokenLedger) Mark(context.Context, string) error         { return nil }

func TestDownloadLedgerError(t *testing.T) {
	t.Parallel()

	sel := testSelection()
	f := &stubFetcher{}
	d := New(f, brokenLedger{}, afero.NewMemMapFs(), sha256.New(), nil)
	_, err := d.Download(context.Background(), &sel)
	require.Error(t, err)
	assert.Empty(t, f.calls)
}
