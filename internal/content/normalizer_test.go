package content

// Normalizer tests use a local httptest server standing in for the upload
// store and remote image hosts.

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnichat/gateway/internal/chat"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

func newFixtureServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/img.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngBytes)
	})
	mux.HandleFunc("/notes.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("meeting at noon"))
	})
	mux.HandleFunc("/gone.txt", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// TestPrepare_TextPassthrough verifies text items survive untouched.
func TestPrepare_TextPassthrough(t *testing.T) {
	n := NewNormalizer()

	items, err := n.Prepare(context.Background(), []chat.MessageContent{
		chat.TextContent("hello"),
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, KindText, items[0].Kind)
	assert.Equal(t, "hello", items[0].Text)
}

// TestPrepare_ImageFetchAndEncode verifies a remote image becomes a base64
// payload with the server's MIME type, order preserved.
func TestPrepare_ImageFetchAndEncode(t *testing.T) {
	srv := newFixtureServer(t)
	n := NewNormalizer(WithHTTPClient(srv.Client()))

	items, err := n.Prepare(context.Background(), []chat.MessageContent{
		chat.TextContent("look at this"),
		chat.ImageContent(srv.URL + "/img.png"),
	})
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, KindText, items[0].Kind)
	require.Equal(t, KindImage, items[1].Kind)
	assert.Equal(t, "image/png", items[1].ImageMIME)
	assert.Equal(t, base64.StdEncoding.EncodeToString(pngBytes), items[1].ImageB64)
}

// TestPrepare_ImageFetchFailure verifies a failed image fetch surfaces an
// ImageFetchError naming the URL.
func TestPrepare_ImageFetchFailure(t *testing.T) {
	srv := newFixtureServer(t)
	n := NewNormalizer(WithHTTPClient(srv.Client()))
	url := srv.URL + "/missing.png"

	_, err := n.Prepare(context.Background(), []chat.MessageContent{
		chat.ImageContent(url),
	})
	require.Error(t, err)

	var fetchErr *ImageFetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, url, fetchErr.URL)
}

// TestPrepare_DataURLImageSkipsFetch verifies a data: URL image is decoded
// in place without any network call.
func TestPrepare_DataURLImageSkipsFetch(t *testing.T) {
	n := NewNormalizer(WithHTTPClient(&http.Client{
		Transport: failingTransport{},
	}))

	payload := base64.StdEncoding.EncodeToString(pngBytes)
	items, err := n.Prepare(context.Background(), []chat.MessageContent{
		chat.ImageContent("data:image/png;base64," + payload),
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, payload, items[0].ImageB64)
	assert.Equal(t, "image/png", items[0].ImageMIME)
}

type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("no network in this test")
}

// TestPrepare_TextFileInlined verifies a text attachment is fetched and
// inlined with the file-content header.
func TestPrepare_TextFileInlined(t *testing.T) {
	srv := newFixtureServer(t)
	n := NewNormalizer(WithHTTPClient(srv.Client()))

	items, err := n.Prepare(context.Background(), []chat.MessageContent{
		chat.FileContent(chat.FileAttachment{
			Name:     "notes.txt",
			URL:      srv.URL + "/notes.txt",
			MIMEType: "text/plain",
		}),
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, KindText, items[0].Kind)
	assert.Contains(t, items[0].Text, "File content (notes.txt, text/plain):")
	assert.Contains(t, items[0].Text, "meeting at noon")
}

// TestPrepare_TextFileFetchFailureDegrades verifies a failed text file
// fetch inlines the unavailable placeholder instead of failing the call.
func TestPrepare_TextFileFetchFailureDegrades(t *testing.T) {
	srv := newFixtureServer(t)
	n := NewNormalizer(WithHTTPClient(srv.Client()))

	items, err := n.Prepare(context.Background(), []chat.MessageContent{
		chat.FileContent(chat.FileAttachment{
			Name:     "gone.txt",
			URL:      srv.URL + "/gone.txt",
			MIMEType: "text/plain",
		}),
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Contains(t, items[0].Text, "Unable to retrieve file: gone.txt")
}

// TestPrepare_BinaryFileNeverFetched verifies non-text files get a
// descriptive placeholder with no network call.
func TestPrepare_BinaryFileNeverFetched(t *testing.T) {
	n := NewNormalizer(WithHTTPClient(&http.Client{Transport: failingTransport{}}))

	items, err := n.Prepare(context.Background(), []chat.MessageContent{
		chat.FileContent(chat.FileAttachment{
			Name:     "deck.pdf",
			URL:      "http://files.invalid/deck.pdf",
			MIMEType: "application/pdf",
			Size:     245760,
		}),
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "[Attached file: deck.pdf (application/pdf, 240 KB)]", items[0].Text)
}

// TestToOpenAIParts_TextAndImage verifies the OpenAI part shaping:
// one text item and one image item yield exactly two parts in order, the
// image part holding a data: URL.
func TestToOpenAIParts_TextAndImage(t *testing.T) {
	srv := newFixtureServer(t)
	n := NewNormalizer(WithHTTPClient(srv.Client()))

	prepared, err := n.Prepare(context.Background(), []chat.MessageContent{
		chat.TextContent("what is this?"),
		chat.ImageContent(srv.URL + "/img.png"),
	})
	require.NoError(t, err)

	parts := ToOpenAIParts(prepared)
	require.Len(t, parts, 2)
	assert.Equal(t, openai.ChatMessagePartTypeText, parts[0].Type)
	assert.Equal(t, "what is this?", parts[0].Text)
	require.Equal(t, openai.ChatMessagePartTypeImageURL, parts[1].Type)
	assert.True(t, strings.HasPrefix(parts[1].ImageURL.URL, "data:image/png;base64,"))
}

// TestToAnthropicBlocks_ImageSource verifies images become source.base64
// blocks with the media type.
func TestToAnthropicBlocks_ImageSource(t *testing.T) {
	blocks := ToAnthropicBlocks([]Prepared{
		{Kind: KindText, Text: "hi"},
		{Kind: KindImage, ImageB64: "QUJD", ImageMIME: "image/jpeg"},
	})
	require.Len(t, blocks, 2)
	assert.Equal(t, "text", blocks[0].Type)
	require.Equal(t, "image", blocks[1].Type)
	require.NotNil(t, blocks[1].Source)
	assert.Equal(t, "base64", blocks[1].Source.Type)
	assert.Equal(t, "image/jpeg", blocks[1].Source.MediaType)
	assert.Equal(t, "QUJD", blocks[1].Source.Data)
}

// TestToGeminiParts_NativeInlineData verifies images become inlineData
// parts instead of stringified placeholders.
func TestToGeminiParts_NativeInlineData(t *testing.T) {
	parts := ToGeminiParts([]Prepared{
		{Kind: KindImage, ImageB64: "QUJD", ImageMIME: "image/webp"},
	})
	require.Len(t, parts, 1)
	require.NotNil(t, parts[0].InlineData)
	assert.Equal(t, "image/webp", parts[0].InlineData.MIMEType)
	assert.Equal(t, "QUJD", parts[0].InlineData.Data)
}
