package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ruteri/content-attestation-engine/interfaces"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testContent = []byte("attested document body")

func testFileLocator(t *testing.T, uri string) interfaces.ContentLocator {
	t.Helper()
	locator, err := interfaces.NewContentLocator(uri, interfaces.ComputeDigest(testContent))
	require.NoError(t, err)
	return locator
}

// fakeSource serves fixed bytes for one scheme.
type fakeSource struct {
	name      string
	scheme    string
	available bool
	data      []byte
	err       error
	calls     int
}

func (f *fakeSource) Fetch(_ context.Context, _ interfaces.ContentLocator) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

func (f *fakeSource) CanServe(locator interfaces.ContentLocator) bool {
	return locator.Scheme() == f.scheme
}

func (f *fakeSource) Available(_ context.Context) bool { return f.available }
func (f *fakeSource) Name() string                     { return f.name }
func (f *fakeSource) LocationURI() string              { return f.scheme + "://" + f.name }

func TestMultiSourceFirstGoodSourceWins(t *testing.T) {
	primary := &fakeSource{name: "primary", scheme: "file", available: true, data: testContent}
	secondary := &fakeSource{name: "secondary", scheme: "file", available: true, data: testContent}

	multi := NewMultiSource([]interfaces.ContentSource{primary, secondary}, testLogger())

	data, err := multi.Fetch(context.Background(), testFileLocator(t, "file:///srv/docs/a.txt"))
	require.NoError(t, err)
	require.Equal(t, testContent, data)
	require.Equal(t, 1, primary.calls)
	require.Zero(t, secondary.calls)
}

func TestMultiSourceFallsBackOnError(t *testing.T) {
	primary := &fakeSource{name: "primary", scheme: "file", available: true, err: interfaces.ErrContentNotFound}
	secondary := &fakeSource{name: "secondary", scheme: "file", available: true, data: testContent}

	multi := NewMultiSource([]interfaces.ContentSource{primary, secondary}, testLogger())

	data, err := multi.Fetch(context.Background(), testFileLocator(t, "file:///srv/docs/a.txt"))
	require.NoError(t, err)
	require.Equal(t, testContent, data)
	require.Equal(t, 1, primary.calls)
	require.Equal(t, 1, secondary.calls)
}

func TestMultiSourceSkipsCorruptMirror(t *testing.T) {
	corrupt := &fakeSource{name: "corrupt", scheme: "file", available: true, data: []byte("tampered body")}
	honest := &fakeSource{name: "honest", scheme: "file", available: true, data: testContent}

	multi := NewMultiSource([]interfaces.ContentSource{corrupt, honest}, testLogger())

	data, err := multi.Fetch(context.Background(), testFileLocator(t, "file:///srv/docs/a.txt"))
	require.NoError(t, err)
	require.Equal(t, testContent, data)
	require.Equal(t, 1, corrupt.calls)
	require.Equal(t, 1, honest.calls)
}

func TestMultiSourceSkipsUnavailable(t *testing.T) {
	down := &fakeSource{name: "down", scheme: "file", available: false, data: testContent}
	up := &fakeSource{name: "up", scheme: "file", available: true, data: testContent}

	multi := NewMultiSource([]interfaces.ContentSource{down, up}, testLogger())

	data, err := multi.Fetch(context.Background(), testFileLocator(t, "file:///srv/docs/a.txt"))
	require.NoError(t, err)
	require.Equal(t, testContent, data)
	require.Zero(t, down.calls)
	require.Equal(t, 1, up.calls)
}

func TestMultiSourceAllFail(t *testing.T) {
	failing := &fakeSource{name: "failing", scheme: "file", available: true, err: errors.New("disk error")}
	corrupt := &fakeSource{name: "corrupt", scheme: "file", available: true, data: []byte("tampered body")}

	multi := NewMultiSource([]interfaces.ContentSource{failing, corrupt}, testLogger())

	_, err := multi.Fetch(context.Background(), testFileLocator(t, "file:///srv/docs/a.txt"))
	require.Error(t, err)
	require.ErrorIs(t, err, interfaces.ErrDigestMismatch)
	require.Contains(t, err.Error(), "failing")
	require.Contains(t, err.Error(), "corrupt")
}

func TestMultiSourceNoSourceServesScheme(t *testing.T) {
	fileOnly := &fakeSource{name: "file-only", scheme: "file", available: true, data: testContent}
	multi := NewMultiSource([]interfaces.ContentSource{fileOnly}, testLogger())

	locator, err := interfaces.NewContentLocator("ipfs://bafybeihdocument", interfaces.ComputeDigest(testContent))
	require.NoError(t, err)

	_, err = multi.Fetch(context.Background(), locator)
	require.ErrorIs(t, err, interfaces.ErrCannotServe)
	require.Zero(t, fileOnly.calls)
}

func TestMultiSourceComposition(t *testing.T) {
	fileSource := &fakeSource{name: "files", scheme: "file", available: false}
	webSource := &fakeSource{name: "web", scheme: "https", available: true}

	multi := NewMultiSource([]interfaces.ContentSource{fileSource, webSource}, testLogger())

	require.True(t, multi.CanServe(testFileLocator(t, "file:///srv/docs/a.txt")))
	require.False(t, multi.CanServe(testFileLocator(t, "s3://bucket/key")))
	require.True(t, multi.Available(context.Background()))
	require.Equal(t, "multi-source", multi.Name())
	require.Equal(t, "multi:[file://files,https://web]", multi.LocationURI())
}
