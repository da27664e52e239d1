package service

import (
	"os"
	"sync"
	"time"

	"content_sync/internal/domain"
	"content_sync/internal/testutil"
)

var baseDay = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

func rawArticle(id string, status domain.Status, day int) domain.RawContent {
	created := testutil.Day(baseDay, day)
	return domain.RawContent{
		ID:        testutil.Ptr(id),
		Kind:      testutil.Ptr(string(domain.KindArticle)),
		Status:    testutil.Ptr(string(status)),
		Title:     testutil.Ptr("Article " + id),
		Body:      testutil.Ptr("<p>Body of " + id + "</p>"),
		Category:  testutil.Ptr("Culture"),
		Region:    testutil.Ptr("North"),
		ImageURL:  testutil.Ptr("https://img.example.com/" + id + ".jpg"),
		CreatedAt: &created,
		UpdatedAt: &created,
	}
}

func rawEvent(id string, status domain.Status, day, startDay int) domain.RawContent {
	r := rawArticle(id, status, day)
	r.Kind = testutil.Ptr(string(domain.KindEvent))
	r.Title = testutil.Ptr("Event " + id)
	starts := testutil.Day(baseDay, startDay)
	r.StartsAt = &starts
	return r
}

func article(id string, day int) domain.Content {
	created := testutil.Day(baseDay, day)
	return domain.Content{
		ID:         id,
		Kind:       domain.KindArticle,
		Status:     domain.StatusPublished,
		Title:      "Article " + id,
		Excerpt:    "Body of " + id,
		Category:   "Culture",
		Categories: []string{},
		Tags:       []string{},
		Region:     "North",
		ImageURL:   "https://img.example.com/" + id + ".jpg",
		CreatedAt:  created,
		UpdatedAt:  created,
	}
}

func event(id string, day, startDay int) domain.Content {
	c := article(id, day)
	c.Kind = domain.KindEvent
	c.Title = "Event " + id
	starts := testutil.Day(baseDay, startDay)
	c.StartsAt = &starts
	return c
}

func ids(records []domain.Content) []string {
	out := make([]string, 0, len(records))
	for _, c := range records {
		out = append(out, c.ID)
	}
	return out
}

type recordingObserver struct {
	mu    sync.Mutex
	full  []domain.SyncResult
	quick []string
}

func (o *recordingObserver) FullSyncCompleted(result domain.SyncResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.full = append(o.full, result)
}

func (o *recordingObserver) QuickSyncCompleted(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.quick = append(o.quick, id)
}

func writeFile(path, data string) error {
	return os.WriteFile(path, []byte(data), 0o644)
}
