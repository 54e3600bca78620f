package datasets

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/corpusworks/dataset-repo/common"
	"github.com/corpusworks/dataset-repo/common/rcontext"
	"github.com/corpusworks/dataset-repo/remotes"
	"github.com/corpusworks/dataset-repo/verify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	clipAudio = "RIFFdata for clip1"
	clipLabel = "0.0,1.0,dog_bark"
)

func md5OfBytes(t *testing.T, b []byte) string {
	t.Helper()
	sum, err := verify.DigestReader(bytes.NewReader(b))
	require.NoError(t, err)
	return sum
}

func fixtureZip(t *testing.T) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)
	// fixed entry order keeps the archive bytes (and so its checksum) stable
	for _, entry := range []struct{ name, body string }{
		{"audio/clip1.wav", clipAudio},
		{"labels/clip1.csv", clipLabel},
	} {
		f, err := w.Create(entry.name)
		require.NoError(t, err)
		_, err = f.Write([]byte(entry.body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func fixtureManifest(t *testing.T) []byte {
	t.Helper()
	return []byte(fmt.Sprintf(`{
		"version": "1.0",
		"items": {
			"clip1": {
				"files": {
					"audio": {"relative_path": "audio/clip1.wav", "checksum": "%s"},
					"annotation": {"relative_path": "labels/clip1.csv", "checksum": "%s"}
				}
			}
		}
	}`, md5OfBytes(t, []byte(clipAudio)), md5OfBytes(t, []byte(clipLabel))))
}

// fixtureServer serves the dataset fixture and counts requests.
func fixtureServer(t *testing.T, requests *int64) *httptest.Server {
	t.Helper()
	archive := fixtureZip(t)
	manifestDoc := fixtureManifest(t)
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(requests, 1)
		switch r.URL.Path {
		case "/corpus.zip":
			_, _ = w.Write(archive)
		case "/manifest.json":
			_, _ = w.Write(manifestDoc)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func fixtureDefinition(t *testing.T, name string, serverURL string) Definition {
	t.Helper()
	return Definition{
		Name:    name,
		Version: "1.0",
		Remotes: remotes.Table{
			"corpus": remotes.Single(remotes.Descriptor{
				Filename: "corpus.zip",
				URL:      serverURL + "/corpus.zip",
				Checksum: md5OfBytes(t, fixtureZip(t)),
			}),
		},
	}
}

func writeLocalManifest(t *testing.T, root string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(root, 0755))
	require.NoError(t, ioutil.WriteFile(filepath.Join(root, "manifest.json"), fixtureManifest(t), 0644))
}

func testCtx(t *testing.T) rcontext.RequestContext {
	t.Helper()
	ctx := rcontext.Initial()
	ctx.Config.Downloads.MaxAttempts = 2
	ctx.Config.Downloads.TimeoutSeconds = 10
	return ctx
}

func TestDownloadThenValidate(t *testing.T) {
	var requests int64
	server := fixtureServer(t, &requests)
	defer server.Close()

	root := t.TempDir()
	writeLocalManifest(t, root)
	ds := New(testCtx(t), fixtureDefinition(t, "test-ds-roundtrip", server.URL), root)

	summary, err := ds.Download(DownloadOptions{})
	require.NoError(t, err)
	assert.True(t, summary.Ok())
	assert.Equal(t, []string{"corpus"}, summary.KeysWithStatus(KeyDownloaded))
	assert.Equal(t, int64(1), atomic.LoadInt64(&requests))

	report, err := ds.Validate()
	require.NoError(t, err)
	assert.True(t, report.OK())
}

func TestDownloadIsIdempotent(t *testing.T) {
	var requests int64
	server := fixtureServer(t, &requests)
	defer server.Close()

	root := t.TempDir()
	writeLocalManifest(t, root)
	ds := New(testCtx(t), fixtureDefinition(t, "test-ds-idempotent", server.URL), root)

	summary, err := ds.Download(DownloadOptions{})
	require.NoError(t, err)
	require.True(t, summary.Ok())
	require.Equal(t, int64(1), atomic.LoadInt64(&requests))

	// the second run finds every artifact verified on disk: no network, no
	// extraction, same terminal guarantee
	summary, err = ds.Download(DownloadOptions{})
	require.NoError(t, err)
	assert.True(t, summary.Ok())
	assert.Equal(t, []string{"corpus"}, summary.KeysWithStatus(KeyAlreadyPresent))
	assert.Equal(t, int64(1), atomic.LoadInt64(&requests))
}

func TestDownloadForceRefetches(t *testing.T) {
	var requests int64
	server := fixtureServer(t, &requests)
	defer server.Close()

	root := t.TempDir()
	writeLocalManifest(t, root)
	ds := New(testCtx(t), fixtureDefinition(t, "test-ds-force", server.URL), root)

	_, err := ds.Download(DownloadOptions{})
	require.NoError(t, err)

	summary, err := ds.Download(DownloadOptions{ForceOverwrite: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"corpus"}, summary.KeysWithStatus(KeyDownloaded))
	assert.Equal(t, int64(2), atomic.LoadInt64(&requests))
}

func TestDownloadUnknownKey(t *testing.T) {
	var requests int64
	server := fixtureServer(t, &requests)
	defer server.Close()

	root := t.TempDir()
	ds := New(testCtx(t), fixtureDefinition(t, "test-ds-unknown-key", server.URL), root)

	_, err := ds.Download(DownloadOptions{Keys: []string{"nope"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrUnknownKey)
	assert.Equal(t, int64(0), atomic.LoadInt64(&requests))
}

func TestDownloadRestrictedKey(t *testing.T) {
	var requests int64
	server := fixtureServer(t, &requests)
	defer server.Close()

	root := t.TempDir()
	writeLocalManifest(t, root)
	def := fixtureDefinition(t, "test-ds-restricted", server.URL)
	def.Remotes["private"] = remotes.Single(remotes.Descriptor{
		Filename:   "private.zip",
		URL:        server.URL + "/private.zip",
		Checksum:   "aa",
		Restricted: true,
	})
	def.InfoMessage = "The private recordings must be requested from the maintainers."
	ds := New(testCtx(t), def, root)

	summary, err := ds.Download(DownloadOptions{})
	require.NoError(t, err)
	assert.True(t, summary.Ok())
	assert.Equal(t, []string{"corpus"}, summary.KeysWithStatus(KeyDownloaded))
	assert.Equal(t, []string{"private"}, summary.KeysWithStatus(KeyRestricted))
}

func TestDownloadGroupMemberFailureBlocksExtraction(t *testing.T) {
	archive := fixtureZip(t)
	var requests int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		if r.URL.Path == "/good.zip" {
			_, _ = w.Write(archive)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	root := t.TempDir()
	def := Definition{
		Name: "test-ds-group-failure",
		Remotes: remotes.Table{
			"part1": remotes.Remote{
				Parts: []remotes.Descriptor{{
					Filename: "part1.zip",
					URL:      server.URL + "/good.zip",
					Checksum: md5OfBytes(t, archive),
				}},
				GroupKey: "bundle",
			},
			"part2": remotes.Remote{
				Parts: []remotes.Descriptor{{
					Filename: "part2.zip",
					URL:      server.URL + "/good.zip",
					Checksum: md5OfBytes(t, archive),
				}},
				GroupKey: "bundle",
			},
			"part3": remotes.Remote{
				Parts: []remotes.Descriptor{{
					Filename: "part3.zip",
					URL:      server.URL + "/gone.zip",
					Checksum: "aa",
				}},
				GroupKey: "bundle",
			},
		},
	}
	ds := New(testCtx(t), def, root)

	// selecting one member expands to the whole group
	summary, err := ds.Download(DownloadOptions{Keys: []string{"part1"}})
	require.NoError(t, err)
	assert.False(t, summary.Ok())
	assert.Len(t, summary.Results, 3)

	// two of three verified: neither is extracted
	for _, key := range []string{"part1", "part2"} {
		result := summary.Results[key]
		assert.Equal(t, KeyFailed, result.Status)
		assert.ErrorIs(t, result.Err, common.ErrGroupIncomplete)
	}
	assert.Equal(t, KeyFailed, summary.Results["part3"].Status)

	_, err = os.Stat(filepath.Join(root, "audio", "clip1.wav"))
	assert.True(t, os.IsNotExist(err))
	// but the verified artifacts stay on disk for the next attempt
	_, err = os.Stat(filepath.Join(root, "part1.zip"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "part2.zip"))
	assert.NoError(t, err)
}

func TestDownloadGroupWithRestrictedMemberIsWhollyRestricted(t *testing.T) {
	archive := fixtureZip(t)
	var requests int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		_, _ = w.Write(archive)
	}))
	defer server.Close()

	root := t.TempDir()
	def := Definition{
		Name: "test-ds-group-restricted",
		Remotes: remotes.Table{
			"public": remotes.Remote{
				Parts: []remotes.Descriptor{{
					Filename: "public.zip",
					URL:      server.URL + "/public.zip",
					Checksum: md5OfBytes(t, archive),
				}},
				GroupKey: "bundle",
			},
			"private": remotes.Remote{
				Parts: []remotes.Descriptor{{
					Filename:   "private.zip",
					URL:        server.URL + "/private.zip",
					Checksum:   "aa",
					Restricted: true,
				}},
				GroupKey: "bundle",
			},
		},
	}
	ds := New(testCtx(t), def, root)

	summary, err := ds.Download(DownloadOptions{})
	require.NoError(t, err)
	assert.True(t, summary.Ok())
	assert.Equal(t, []string{"private", "public"}, summary.KeysWithStatus(KeyRestricted))

	// the public artifact is fetched but not extracted without its sibling
	_, err = os.Stat(filepath.Join(root, "audio", "clip1.wav"))
	assert.True(t, os.IsNotExist(err))
}

func TestDownloadFetchesRemoteManifest(t *testing.T) {
	var requests int64
	server := fixtureServer(t, &requests)
	defer server.Close()

	root := t.TempDir()
	def := fixtureDefinition(t, "test-ds-remote-manifest", server.URL)
	def.ManifestRemote = &remotes.Descriptor{
		Filename: "manifest.json",
		URL:      server.URL + "/manifest.json",
		Checksum: md5OfBytes(t, fixtureManifest(t)),
	}
	ds := New(testCtx(t), def, root)

	// before downloading, the manifest is unavailable and says so
	_, err := ds.Manifest()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did you run Download?")

	summary, err := ds.Download(DownloadOptions{})
	require.NoError(t, err)
	assert.True(t, summary.Ok())
	assert.Contains(t, summary.Results, IndexKey)

	m, err := ds.Manifest()
	require.NoError(t, err)
	assert.Equal(t, []string{"clip1"}, m.ItemIDs())

	report, err := ds.Validate()
	require.NoError(t, err)
	assert.True(t, report.OK())
}

func TestValidateReportsMissingFiles(t *testing.T) {
	root := t.TempDir()
	writeLocalManifest(t, root)
	ds := New(testCtx(t), Definition{Name: "test-ds-validate-missing"}, root)

	report, err := ds.Validate()
	require.NoError(t, err)
	assert.False(t, report.OK())
	assert.Equal(t, []string{"audio/clip1.wav", "labels/clip1.csv"}, report.Missing())
}

func TestClipAccessors(t *testing.T) {
	var requests int64
	server := fixtureServer(t, &requests)
	defer server.Close()

	root := t.TempDir()
	writeLocalManifest(t, root)
	ds := New(testCtx(t), fixtureDefinition(t, "test-ds-clips", server.URL), root)

	_, err := ds.Download(DownloadOptions{})
	require.NoError(t, err)

	ids, err := ds.ClipIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"clip1"}, ids)

	_, err = ds.Clip("ghost")
	assert.ErrorIs(t, err, common.ErrUnknownItem)

	clip, err := ds.Clip("clip1")
	require.NoError(t, err)

	roles, err := clip.Roles()
	require.NoError(t, err)
	assert.Equal(t, []string{"annotation", "audio"}, roles)

	p, err := clip.Path("audio")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "audio", "clip1.wav"), p)

	f, err := clip.Open("audio")
	require.NoError(t, err)
	b, err := io.ReadAll(f)
	require.NoError(t, f.Close())
	require.NoError(t, err)
	assert.Equal(t, clipAudio, string(b))

	_, err = clip.Path("transcript")
	assert.ErrorIs(t, err, common.ErrUnknownRole)
}

func TestAnnotationIsMemoized(t *testing.T) {
	var requests int64
	server := fixtureServer(t, &requests)
	defer server.Close()

	root := t.TempDir()
	writeLocalManifest(t, root)
	ds := New(testCtx(t), fixtureDefinition(t, "test-ds-memo", server.URL), root)

	_, err := ds.Download(DownloadOptions{})
	require.NoError(t, err)

	clip, err := ds.Clip("clip1")
	require.NoError(t, err)

	var parses int64
	parse := func(r io.Reader) (interface{}, error) {
		atomic.AddInt64(&parses, 1)
		b, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}

	first, err := clip.Annotation("annotation", parse)
	require.NoError(t, err)
	assert.Equal(t, clipLabel, first)

	second, err := clip.Annotation("annotation", parse)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), atomic.LoadInt64(&parses))

	// a different role is a different memo entry
	_, err = clip.Annotation("audio", parse)
	require.NoError(t, err)
	assert.Equal(t, int64(2), atomic.LoadInt64(&parses))
}

func TestDownloadNothingDeclared(t *testing.T) {
	ds := New(testCtx(t), Definition{Name: "test-ds-empty"}, t.TempDir())
	_, err := ds.Download(DownloadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to download")
}
