package service

import (
	"context"
	"fmt"
	"time"

	"adaptive-quiz-backend/internal/apperror"
	"adaptive-quiz-backend/internal/cache"
	"adaptive-quiz-backend/internal/metrics"
	"adaptive-quiz-backend/internal/model"
	"adaptive-quiz-backend/internal/repository"
	"adaptive-quiz-backend/internal/textanalysis"
)

// history tiers, as record offsets into the newest-first history
const (
	recentTierEnd = 5
	midTierEnd    = 20
	olderTierEnd  = 50
)

type HistoryOptions struct {
	// HistoryLimit is how many records are read per rebuild, at least 50.
	HistoryLimit int
	CacheSize    int
	Bucket       time.Duration
	Now          func() time.Time
	Metrics      *metrics.Metrics
}

type avoidanceKey struct {
	learnerID uint
	bucket    int64
}

type categoryKeywords struct {
	categoryID uint
	model.CategoryKeywords
}

// tieredHistory is the cached form of an avoidance context. It keeps
// category ids so the mid tier can be reordered per request.
type tieredHistory struct {
	recent []model.RecentSummary
	mid    []categoryKeywords
	older  []string
}

// HistoryAggregator compresses a learner's question history into the
// avoidance context used to steer generation away from repeats.
type HistoryAggregator struct {
	questions repository.QuestionRepository
	cache     *cache.FIFO[avoidanceKey, *tieredHistory]
	limit     int
	bucket    time.Duration
	now       func() time.Time
	metrics   *metrics.Metrics
}

func NewHistoryAggregator(questions repository.QuestionRepository, opts HistoryOptions) *HistoryAggregator {
	if opts.HistoryLimit < olderTierEnd {
		opts.HistoryLimit = olderTierEnd
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 100
	}
	if opts.Bucket <= 0 {
		opts.Bucket = 10 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &HistoryAggregator{
		questions: questions,
		cache:     cache.NewFIFO[avoidanceKey, *tieredHistory](opts.CacheSize),
		limit:     opts.HistoryLimit,
		bucket:    opts.Bucket,
		now:       opts.Now,
		metrics:   opts.Metrics,
	}
}

// AvoidanceContext returns the learner's tiers, rebuilt at most once per
// time bucket. When currentCategoryID is non-zero its mid-tier keywords
// are listed first.
func (h *HistoryAggregator) AvoidanceContext(ctx context.Context, learnerID, currentCategoryID uint) (model.AvoidanceContext, error) {
	key := avoidanceKey{learnerID: learnerID, bucket: wallClockBucket(h.now(), h.bucket)}

	tiers, ok := h.cache.Get(key)
	h.metrics.AvoidanceCacheLookup(ok)
	if !ok {
		records, err := h.questions.FindRecentQuestionRecords(ctx, learnerID, h.limit)
		if err != nil {
			return model.AvoidanceContext{}, apperror.Persistence("load question history", err)
		}
		tiers = buildTiers(records)
		h.cache.Set(key, tiers)
	}
	return tiers.project(currentCategoryID), nil
}

// wallClockBucket floors t on the clock of its own location, so 10:03 and
// 10:07 share a bucket even where the UTC offset is not a whole bucket.
func wallClockBucket(t time.Time, bucket time.Duration) int64 {
	_, offset := t.Zone()
	return t.Add(time.Duration(offset) * time.Second).Truncate(bucket).Unix()
}

func buildTiers(records []model.QuestionRecord) *tieredHistory {
	t := &tieredHistory{}

	for _, r := range tier(records, 0, recentTierEnd) {
		if r.Summary == "" {
			continue
		}
		t.recent = append(t.recent, model.RecentSummary{Text: r.Summary, CategoryName: categoryName(r)})
	}

	index := make(map[uint]int)
	seen := make(map[uint]map[string]struct{})
	for _, r := range tier(records, recentTierEnd, midTierEnd) {
		keywords := conceptKeywords(r)
		if len(keywords) == 0 {
			continue
		}
		i, ok := index[r.CategoryID]
		if !ok {
			i = len(t.mid)
			index[r.CategoryID] = i
			seen[r.CategoryID] = make(map[string]struct{})
			t.mid = append(t.mid, categoryKeywords{
				categoryID:       r.CategoryID,
				CategoryKeywords: model.CategoryKeywords{CategoryName: categoryName(r)},
			})
		}
		for _, kw := range keywords {
			if _, dup := seen[r.CategoryID][kw]; dup {
				continue
			}
			seen[r.CategoryID][kw] = struct{}{}
			t.mid[i].Keywords = append(t.mid[i].Keywords, kw)
		}
	}

	older := make(map[string]struct{})
	for _, r := range tier(records, midTierEnd, olderTierEnd) {
		for _, kw := range conceptKeywords(r) {
			if _, dup := older[kw]; dup {
				continue
			}
			older[kw] = struct{}{}
			t.older = append(t.older, kw)
		}
	}
	return t
}

// project copies the cached tiers into a fresh context so callers can
// never mutate the cache.
func (t *tieredHistory) project(currentCategoryID uint) model.AvoidanceContext {
	out := model.AvoidanceContext{
		RecentSummaries:    append([]model.RecentSummary(nil), t.recent...),
		StructuredKeywords: make([]model.CategoryKeywords, 0, len(t.mid)),
		OlderKeywords:      append([]string(nil), t.older...),
	}

	if currentCategoryID != 0 {
		for _, ck := range t.mid {
			if ck.categoryID == currentCategoryID {
				out.StructuredKeywords = append(out.StructuredKeywords, copyKeywords(ck))
			}
		}
	}
	for _, ck := range t.mid {
		if currentCategoryID != 0 && ck.categoryID == currentCategoryID {
			continue
		}
		out.StructuredKeywords = append(out.StructuredKeywords, copyKeywords(ck))
	}
	return out
}

func copyKeywords(ck categoryKeywords) model.CategoryKeywords {
	return model.CategoryKeywords{
		CategoryName: ck.CategoryName,
		Keywords:     append([]string(nil), ck.Keywords...),
	}
}

func tier(records []model.QuestionRecord, from, to int) []model.QuestionRecord {
	if from >= len(records) {
		return nil
	}
	if to > len(records) {
		to = len(records)
	}
	return records[from:to]
}

// conceptKeywords returns the record's keywords, skipping abstract hashes
// that are content fingerprints rather than keyword lists.
func conceptKeywords(r model.QuestionRecord) []string {
	if r.AbstractHash == "" || textanalysis.LooksLikeContentHash(r.AbstractHash) {
		return nil
	}
	return textanalysis.SplitKeywords(r.AbstractHash)
}

func categoryName(r model.QuestionRecord) string {
	if r.Category != nil && r.Category.Name != "" {
		return r.Category.Name
	}
	return fmt.Sprintf("category %d", r.CategoryID)
}
