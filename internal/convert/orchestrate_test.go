package convert

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sn2notion/sn2notion/internal/blocks"
	"github.com/sn2notion/sn2notion/internal/richtext"
)

// fakeBlockStore is an in-memory BlockStore: AppendChildren records which
// parent each batch landed under (so a test can assert per-host ordering)
// and UpdateRichText records the host's final stripped runs. failAppends,
// keyed by parent id, makes a configured number of AppendChildren calls to
// that parent fail before succeeding, to exercise Do's retry loop.
type fakeBlockStore struct {
	mu          sync.Mutex
	appends     map[string][][]notionapi.Block
	updates     map[string][]notionapi.RichText
	failAppends map[string]int
}

func newFakeBlockStore() *fakeBlockStore {
	return &fakeBlockStore{
		appends:     make(map[string][][]notionapi.Block),
		updates:     make(map[string][]notionapi.RichText),
		failAppends: make(map[string]int),
	}
}

func (f *fakeBlockStore) CreatePage(ctx context.Context, payload []notionapi.Block) (string, []notionapi.Block, error) {
	return "page1", payload, nil
}

func (f *fakeBlockStore) AppendChildren(ctx context.Context, parentID string, children []notionapi.Block) ([]notionapi.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAppends[parentID] > 0 {
		f.failAppends[parentID]--
		return nil, &ConvertError{Op: "append_children", Category: CategoryNetwork, Cause: errors.New("transient failure")}
	}
	f.appends[parentID] = append(f.appends[parentID], children)
	return children, nil
}

func (f *fakeBlockStore) UpdateRichText(ctx context.Context, blockID string, host notionapi.Block, runs []notionapi.RichText) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates[blockID] = runs
	return nil
}

// fakeBlockFetcher hands back a fixed block per id, for ResumeOrchestrate.
type fakeBlockFetcher struct {
	blocks map[string]notionapi.Block
}

func (f *fakeBlockFetcher) GetBlock(ctx context.Context, blockID string) (notionapi.Block, error) {
	b, ok := f.blocks[blockID]
	if !ok {
		return nil, errors.New("no such block")
	}
	return b, nil
}

func paragraphHost(id, marker string) *notionapi.ParagraphBlock {
	return &notionapi.ParagraphBlock{
		BasicBlock: notionapi.BasicBlock{Object: notionapi.ObjectTypeBlock, Type: notionapi.BlockTypeParagraph, ID: notionapi.BlockID(id)},
		Paragraph: notionapi.Paragraph{
			RichText: []notionapi.RichText{{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: "see related (marker:" + marker + ")"}}},
		},
	}
}

func deferredParagraph(text string) []*blocks.Block {
	return []*blocks.Block{{Kind: blocks.KindParagraph, Runs: []richtext.Run{{Content: text}}}}
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseBackoff: 0, MaxBackoff: 0}
}

func TestOrchestrate_StripsOnlyAfterSuccessfulAppend(t *testing.T) {
	store := newFakeBlockStore()
	host := paragraphHost("host1", "aaaa")
	hosts := map[string]HostInfo{"aaaa": {ID: "host1", Block: host}}
	markerMap := map[string][]*blocks.Block{"aaaa": deferredParagraph("deferred content")}

	results := Orchestrate(context.Background(), store, fastPolicy(), 2, markerMap, hosts, nil)

	require.Len(t, results, 1)
	assert.True(t, results[0].Resolved)
	assert.NoError(t, results[0].Err)

	require.Len(t, store.appends["host1"], 1)
	require.Len(t, store.updates["host1"], 1)
	assert.NotContains(t, store.updates["host1"][0].Text.Content, "marker:aaaa")
}

func TestOrchestrate_PermanentFailureLeavesMarkerAndOtherMarkersProceed(t *testing.T) {
	store := newFakeBlockStore()
	store.failAppends["bad-host"] = 10 // exceeds MaxAttempts, never recovers

	hosts := map[string]HostInfo{
		"bad":  {ID: "bad-host", Block: paragraphHost("bad-host", "bad")},
		"good": {ID: "good-host", Block: paragraphHost("good-host", "good")},
	}
	markerMap := map[string][]*blocks.Block{
		"bad":  deferredParagraph("never lands"),
		"good": deferredParagraph("lands fine"),
	}

	results := Orchestrate(context.Background(), store, fastPolicy(), 2, markerMap, hosts, nil)
	require.Len(t, results, 2)

	byMarker := make(map[string]MarkerResolution)
	for _, r := range results {
		byMarker[r.Marker] = r
	}

	bad := byMarker["bad"]
	assert.False(t, bad.Resolved)
	require.Error(t, bad.Err)
	var appendFailed *OrchestrationAppendFailed
	require.ErrorAs(t, bad.Err, &appendFailed)
	assert.Equal(t, "bad-host", appendFailed.HostID)
	assert.Equal(t, "bad", appendFailed.Marker)
	// No strip update was ever issued for the host whose append never succeeded.
	assert.Nil(t, store.updates["bad-host"])

	good := byMarker["good"]
	assert.True(t, good.Resolved)
	assert.NoError(t, good.Err)
	assert.NotNil(t, store.updates["good-host"])
}

func TestOrchestrate_MarkersSharingHostAllAppend(t *testing.T) {
	store := newFakeBlockStore()
	host := paragraphHost("host1", "m1")
	hosts := map[string]HostInfo{
		"m1": {ID: "host1", Block: host},
		"m2": {ID: "host1", Block: host},
		"m3": {ID: "host1", Block: host},
	}
	// map iteration order is random, but Orchestrate fans out per-marker
	// tasks against workerpool.Process, which preserves input order in its
	// results; appends to the same host still land in whatever order the
	// pool happens to schedule them in, since nothing here serializes
	// concurrent appends to one host beyond the fake store's own mutex.
	markerMap := map[string][]*blocks.Block{
		"m1": deferredParagraph("first"),
		"m2": deferredParagraph("second"),
		"m3": deferredParagraph("third"),
	}

	results := Orchestrate(context.Background(), store, fastPolicy(), 1, markerMap, hosts, nil)
	require.Len(t, results, 3)
	assert.Len(t, store.appends["host1"], 3)
}

func TestOrchestrate_UnresolvedHostSkipped(t *testing.T) {
	store := newFakeBlockStore()
	markerMap := map[string][]*blocks.Block{"orphan": deferredParagraph("nowhere to go")}

	results := Orchestrate(context.Background(), store, fastPolicy(), 1, markerMap, map[string]HostInfo{}, nil)
	require.Len(t, results, 1)
	assert.False(t, results[0].Resolved)
	assert.NoError(t, results[0].Err)
	assert.Empty(t, store.appends)
}

func TestResumeOrchestrate_FetchesHostAndAppends(t *testing.T) {
	store := newFakeBlockStore()
	host := paragraphHost("resumed-host", "rm")
	fetcher := &fakeBlockFetcher{blocks: map[string]notionapi.Block{"resumed-host": host}}

	pending := []PendingMarker{{Marker: "rm", HostID: "resumed-host", Children: deferredParagraph("resumed content")}}
	results := ResumeOrchestrate(context.Background(), store, fetcher, fastPolicy(), 1, pending, nil)

	require.Len(t, results, 1)
	assert.True(t, results[0].Resolved)
	require.Len(t, store.appends["resumed-host"], 1)
}

func TestResumeOrchestrate_FetchFailureReportedAsUnresolved(t *testing.T) {
	store := newFakeBlockStore()
	fetcher := &fakeBlockFetcher{blocks: map[string]notionapi.Block{}}

	pending := []PendingMarker{{Marker: "rm", HostID: "missing-host", Children: deferredParagraph("content")}}
	results := ResumeOrchestrate(context.Background(), store, fetcher, fastPolicy(), 1, pending, nil)

	require.Len(t, results, 1)
	assert.False(t, results[0].Resolved)
	require.Error(t, results[0].Err)
	var appendFailed *OrchestrationAppendFailed
	assert.ErrorAs(t, results[0].Err, &appendFailed)
}

func TestDo_RetriesRetryableCategoryThenSucceeds(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastPolicy(), func(attempt int) error {
		attempts++
		if attempt < 2 {
			return &ConvertError{Op: "append_children", Category: CategoryNetwork, Cause: errors.New("transient")}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestDo_NonRetryableCategoryFailsImmediately(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastPolicy(), func(attempt int) error {
		attempts++
		return &ConvertError{Op: "append_children", Category: CategoryValidation, Cause: errors.New("bad request")}
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDo_ExhaustsMaxAttempts(t *testing.T) {
	attempts := 0
	policy := RetryPolicy{MaxAttempts: 3, BaseBackoff: 0, MaxBackoff: 0}
	err := Do(context.Background(), policy, func(attempt int) error {
		attempts++
		return &ConvertError{Op: "append_children", Category: CategoryRateLimited, Cause: errors.New("still limited")}
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_ContextCancelledAbortsImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := Do(ctx, fastPolicy(), func(attempt int) error {
		attempts++
		return nil
	})
	require.Error(t, err)
	var cancelled *CancelledOrTimeout
	require.ErrorAs(t, err, &cancelled)
	assert.Equal(t, 0, attempts)
}

// fakeImageUploader uploads successfully for any URL not in failFor.
type fakeImageUploader struct {
	failFor map[string]bool
}

func (u *fakeImageUploader) Upload(ctx context.Context, url, altText string) (string, error) {
	if u.failFor[url] {
		return "", errors.New("upload failed")
	}
	return "uploaded:" + url, nil
}

func TestUploadImages_RewritesSourceOnSuccess(t *testing.T) {
	payload := []*blocks.Block{
		{Kind: blocks.KindImage, Source: blocks.ImageSource{External: "http://example.com/a.png"}},
	}
	uploader := &fakeImageUploader{failFor: map[string]bool{}}

	fallbacks := UploadImages(context.Background(), uploader, 2, payload)

	assert.Equal(t, 0, fallbacks)
	assert.Equal(t, "uploaded:http://example.com/a.png", payload[0].Source.UploadID)
	assert.Empty(t, payload[0].Source.External)
}

func TestUploadImages_FallsBackToExternalOnFailure(t *testing.T) {
	payload := []*blocks.Block{
		{Kind: blocks.KindImage, Source: blocks.ImageSource{External: "http://example.com/bad.png"}},
	}
	uploader := &fakeImageUploader{failFor: map[string]bool{"http://example.com/bad.png": true}}

	fallbacks := UploadImages(context.Background(), uploader, 2, payload)

	assert.Equal(t, 1, fallbacks)
	assert.Equal(t, "http://example.com/bad.png", payload[0].Source.External)
	assert.Empty(t, payload[0].Source.UploadID)
}

func TestUploadImages_NilUploaderIsNoOp(t *testing.T) {
	payload := []*blocks.Block{
		{Kind: blocks.KindImage, Source: blocks.ImageSource{External: "http://example.com/a.png"}},
	}

	fallbacks := UploadImages(context.Background(), nil, 2, payload)

	assert.Equal(t, 0, fallbacks)
	assert.Equal(t, "http://example.com/a.png", payload[0].Source.External)
}

func TestUploadImages_RecursesIntoChildren(t *testing.T) {
	payload := []*blocks.Block{
		{Kind: blocks.KindParagraph, Children: []*blocks.Block{
			{Kind: blocks.KindImage, Source: blocks.ImageSource{External: "http://example.com/nested.png"}},
		}},
	}
	uploader := &fakeImageUploader{failFor: map[string]bool{}}

	fallbacks := UploadImages(context.Background(), uploader, 2, payload)

	assert.Equal(t, 0, fallbacks)
	assert.Equal(t, "uploaded:http://example.com/nested.png", payload[0].Children[0].Source.UploadID)
}
