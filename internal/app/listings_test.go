package app_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"hotelbook/internal/app"
	"hotelbook/internal/domain"
)

func draft() domain.ListingDraft {
	return domain.ListingDraft{
		Name: "Sea View", City: "Porto", Country: "Portugal", Description: "d", Type: "Boutique",
		AdultCount: 2, ChildCount: 1, Facilities: []string{"wifi", "pool"}, PricePerNight: 90, StarRating: 4,
	}
}

func newService(repo *memRepo, store *fakeStore, cache *fakeCache, ev *fakeEvents) *app.ListingService {
	var c domain.Cache
	if cache != nil {
		c = cache
	}
	var e domain.EventPublisher
	if ev != nil {
		e = ev
	}
	return app.NewListingService(repo, app.NewImageUploader(store, 0), c, e, time.Minute)
}

func TestCreate_StampsOwnerAndImages(t *testing.T) {
	repo, store, ev := &memRepo{}, &fakeStore{}, &fakeEvents{}
	svc := newService(repo, store, nil, ev)

	l, err := svc.Create(context.Background(), "u1", draft(), []domain.Image{img("a", "one"), img("b", "two")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if l.ID == "" || l.OwnerID != "u1" {
		t.Fatalf("unexpected listing: %+v", l)
	}
	if len(l.ImageURLs) != 2 || l.ImageURLs[0] != "https://img.test/one" {
		t.Fatalf("images: %v", l.ImageURLs)
	}
	if l.LastUpdated.IsZero() {
		t.Fatalf("lastUpdated not set")
	}
	if len(ev.subjects) != 1 || ev.subjects[0] != app.SubjectListingCreated {
		t.Fatalf("events: %v", ev.subjects)
	}
}

func TestCreate_UploadFailurePersistsNothing(t *testing.T) {
	repo := &memRepo{}
	svc := newService(repo, &fakeStore{failOn: "two"}, nil, nil)

	_, err := svc.Create(context.Background(), "u1", draft(), []domain.Image{img("a", "one"), img("b", "two")})
	if !errors.Is(err, domain.ErrUploadFailed) {
		t.Fatalf("expected ErrUploadFailed, got %v", err)
	}
	if repo.count() != 0 {
		t.Fatalf("listing must not be persisted")
	}
}

func TestCreate_OversizedPersistsNothing(t *testing.T) {
	repo, store := &memRepo{}, &fakeStore{}
	svc := newService(repo, store, nil, nil)
	big := domain.Image{Name: "big", ContentType: "image/png", Data: bytes.Repeat([]byte{0}, domain.MaxImageBytes+1)}

	_, err := svc.Create(context.Background(), "u1", draft(), []domain.Image{img("a", "one"), big, img("c", "three")})
	if !errors.Is(err, domain.ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
	if repo.count() != 0 || store.calls.Load() != 0 {
		t.Fatalf("nothing should be written: repo=%d uploads=%d", repo.count(), store.calls.Load())
	}
}

func TestCreate_TooManyImages(t *testing.T) {
	store := &fakeStore{}
	svc := newService(&memRepo{}, store, nil, nil)
	imgs := make([]domain.Image, domain.MaxImagesPerListing+1)
	for i := range imgs {
		imgs[i] = img("x", "x")
	}
	_, err := svc.Create(context.Background(), "u1", draft(), imgs)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if store.calls.Load() != 0 {
		t.Fatalf("no uploads expected")
	}
}

func TestCreate_RequiresOwner(t *testing.T) {
	repo := &memRepo{}
	_, err := newService(repo, &fakeStore{}, nil, nil).Create(context.Background(), "", draft(), nil)
	if !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if repo.calls.Load() != 0 {
		t.Fatalf("store touched before auth")
	}
}

func TestCreate_InvalidDraftWritesNothing(t *testing.T) {
	repo, store := &memRepo{}, &fakeStore{}
	d := draft()
	d.Type = ""
	d.AdultCount = 0

	_, err := newService(repo, store, nil, nil).Create(context.Background(), "u1", d, []domain.Image{img("a", "one")})
	var ve *domain.ValidationError
	if !errors.As(err, &ve) || !ve.Has("type") || !ve.Has("adultCount") {
		t.Fatalf("expected field errors for type and adultCount, got %v", err)
	}
	if repo.count() != 0 || store.calls.Load() != 0 {
		t.Fatalf("nothing should be written: repo=%d uploads=%d", repo.count(), store.calls.Load())
	}
}

func TestOwnershipGate_OtherUsersListingIsNotFound(t *testing.T) {
	repo := &memRepo{}
	repo.add(domain.Listing{ID: "h1", OwnerID: "alice"})
	svc := newService(repo, &fakeStore{}, nil, nil)
	ctx := context.Background()

	if _, err := svc.MineByID(ctx, "alice", "h1"); err != nil {
		t.Fatalf("owner lookup: %v", err)
	}
	_, errOther := svc.MineByID(ctx, "bob", "h1")
	_, errMissing := svc.MineByID(ctx, "bob", "nope")
	if !errors.Is(errOther, domain.ErrNotFound) || !errors.Is(errMissing, domain.ErrNotFound) {
		t.Fatalf("expected NotFound for both, got %v / %v", errOther, errMissing)
	}
	if errOther.Error() != errMissing.Error() {
		t.Fatalf("foreign and missing listings must be indistinguishable: %q vs %q", errOther, errMissing)
	}

	_, err := svc.Update(ctx, "bob", "h1", app.UpdateListingInput{Draft: draft()})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("update of foreign listing: %v", err)
	}
}

func TestMine_OnlyOwned(t *testing.T) {
	repo := &memRepo{}
	repo.add(domain.Listing{OwnerID: "alice"}, domain.Listing{OwnerID: "bob"}, domain.Listing{OwnerID: "alice"})
	ls, err := newService(repo, &fakeStore{}, nil, nil).Mine(context.Background(), "alice")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(ls) != 2 {
		t.Fatalf("expected 2 owned listings, got %d", len(ls))
	}
	for _, l := range ls {
		if l.OwnerID != "alice" {
			t.Fatalf("foreign listing leaked: %+v", l)
		}
	}
}

func TestUpdate_NewImagesBeforeKept(t *testing.T) {
	repo, cache, ev := &memRepo{}, &fakeCache{}, &fakeEvents{}
	repo.add(domain.Listing{ID: "h1", OwnerID: "alice", ImageURLs: []string{"old1", "old2", "old3"}})
	svc := newService(repo, &fakeStore{}, cache, ev)
	_ = cache.Set(context.Background(), "listing:h1", domain.Listing{ID: "h1"}, time.Minute)

	l, err := svc.Update(context.Background(), "alice", "h1", app.UpdateListingInput{
		Draft:         draft(),
		KeepImageURLs: []string{"old3", "injected", "old1"},
		NewImages:     []domain.Image{img("n", "new")},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	want := []string{"https://img.test/new", "old3", "old1"}
	if len(l.ImageURLs) != len(want) {
		t.Fatalf("images: %v", l.ImageURLs)
	}
	for i := range want {
		if l.ImageURLs[i] != want[i] {
			t.Fatalf("images: got %v want %v", l.ImageURLs, want)
		}
	}
	if l.OwnerID != "alice" || l.Name != "Sea View" {
		t.Fatalf("fields not updated or owner changed: %+v", l)
	}
	if len(cache.dels) != 1 || cache.dels[0] != "listing:h1" {
		t.Fatalf("cache not invalidated: %v", cache.dels)
	}
	if len(ev.subjects) != 1 || ev.subjects[0] != app.SubjectListingUpdated {
		t.Fatalf("events: %v", ev.subjects)
	}
}

func TestUpdate_TotalImagesBounded(t *testing.T) {
	repo, store := &memRepo{}, &fakeStore{}
	repo.add(domain.Listing{ID: "h1", OwnerID: "alice", ImageURLs: []string{"a", "b", "c", "d", "e"}})
	svc := newService(repo, store, nil, nil)

	_, err := svc.Update(context.Background(), "alice", "h1", app.UpdateListingInput{
		Draft:         draft(),
		KeepImageURLs: []string{"a", "b", "c", "d", "e"},
		NewImages:     []domain.Image{img("x", "x"), img("y", "y")},
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if store.calls.Load() != 0 {
		t.Fatalf("no uploads expected")
	}
}

func TestUpdate_UploadFailureLeavesListingUntouched(t *testing.T) {
	repo := &memRepo{}
	repo.add(domain.Listing{ID: "h1", OwnerID: "alice", Name: "Before", ImageURLs: []string{"old"}})
	svc := newService(repo, &fakeStore{failOn: "bad"}, nil, nil)

	_, err := svc.Update(context.Background(), "alice", "h1", app.UpdateListingInput{
		Draft:         draft(),
		KeepImageURLs: []string{"old"},
		NewImages:     []domain.Image{img("x", "bad")},
	})
	if !errors.Is(err, domain.ErrUploadFailed) {
		t.Fatalf("expected ErrUploadFailed, got %v", err)
	}
	l, _ := repo.FindByID(context.Background(), "h1")
	if l.Name != "Before" || len(l.ImageURLs) != 1 {
		t.Fatalf("listing changed after failed upload: %+v", l)
	}
}

func TestGet_CacheMissThenHit(t *testing.T) {
	repo, cache := &memRepo{}, &fakeCache{}
	repo.add(domain.Listing{ID: "h1", Name: "Cached"})
	svc := newService(repo, &fakeStore{}, cache, nil)
	ctx := context.Background()

	l, err := svc.Get(ctx, "h1")
	if err != nil || l.Name != "Cached" {
		t.Fatalf("first get: %+v %v", l, err)
	}
	before := repo.calls.Load()
	if _, err := svc.Get(ctx, "h1"); err != nil {
		t.Fatalf("second get: %v", err)
	}
	if repo.calls.Load() != before {
		t.Fatalf("second get should hit cache")
	}

	if _, err := svc.Get(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdate_ImageKeepListNilVersusEmpty(t *testing.T) {
	ctx := context.Background()

	repo := &memRepo{}
	repo.add(domain.Listing{ID: "h1", OwnerID: "alice", ImageURLs: []string{"old1", "old2"}})
	svc := newService(repo, &fakeStore{}, nil, nil)

	l, err := svc.Update(ctx, "alice", "h1", app.UpdateListingInput{Draft: draft(), NewImages: []domain.Image{img("n", "new")}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(l.ImageURLs) != 3 || l.ImageURLs[0] != "https://img.test/new" || l.ImageURLs[2] != "old2" {
		t.Fatalf("nil keep list should retain all existing images: %v", l.ImageURLs)
	}

	l, err = svc.Update(ctx, "alice", "h1", app.UpdateListingInput{Draft: draft(), KeepImageURLs: []string{}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(l.ImageURLs) != 0 {
		t.Fatalf("empty keep list should drop all images: %v", l.ImageURLs)
	}
}

func TestUpdate_InvalidDraftLeavesListingUntouched(t *testing.T) {
	repo, store := &memRepo{}, &fakeStore{}
	repo.add(domain.Listing{ID: "h1", OwnerID: "alice", Name: "Before"})
	d := draft()
	d.StarRating = 7

	_, err := newService(repo, store, nil, nil).Update(context.Background(), "alice", "h1",
		app.UpdateListingInput{Draft: d, NewImages: []domain.Image{img("n", "new")}})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	l, _ := repo.FindByID(context.Background(), "h1")
	if l.Name != "Before" || store.calls.Load() != 0 {
		t.Fatalf("listing changed or uploads ran: %+v uploads=%d", l, store.calls.Load())
	}
}

func TestUpdate_ConcurrentImageChangeIsNotLost(t *testing.T) {
	repo := &memRepo{}
	repo.add(domain.Listing{ID: "h1", OwnerID: "alice", ImageURLs: []string{"old1"}})
	var updates int
	repo.onUpdate = func() {
		updates++
		if updates == 1 {
			// another writer lands between our read and our write
			repo.setImages("h1", []string{"other", "old1"})
		}
	}
	svc := newService(repo, &fakeStore{}, nil, nil)

	l, err := svc.Update(context.Background(), "alice", "h1", app.UpdateListingInput{
		Draft:     draft(),
		NewImages: []domain.Image{img("n", "new")},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	want := []string{"https://img.test/new", "other", "old1"}
	if len(l.ImageURLs) != len(want) {
		t.Fatalf("images: got %v want %v", l.ImageURLs, want)
	}
	for i := range want {
		if l.ImageURLs[i] != want[i] {
			t.Fatalf("images: got %v want %v", l.ImageURLs, want)
		}
	}
	if updates != 2 {
		t.Fatalf("expected one retry, got %d update calls", updates)
	}
}

func TestUpdate_PersistentConflictGivesUp(t *testing.T) {
	repo := &memRepo{}
	repo.add(domain.Listing{ID: "h1", OwnerID: "alice", ImageURLs: []string{"old1"}})
	var updates int
	repo.onUpdate = func() {
		updates++
		repo.setImages("h1", []string{fmt.Sprintf("churn%d", updates)})
	}

	_, err := newService(repo, &fakeStore{}, nil, nil).Update(context.Background(), "alice", "h1",
		app.UpdateListingInput{Draft: draft()})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if updates != 3 {
		t.Fatalf("expected 3 attempts, got %d", updates)
	}
}

func TestGet_CacheWriteFailureStillServes(t *testing.T) {
	repo := &memRepo{}
	repo.add(domain.Listing{ID: "h1", Name: "Cached"})
	cache := &fakeCache{setErr: errors.New("redis down")}

	l, err := newService(repo, &fakeStore{}, cache, nil).Get(context.Background(), "h1")
	if err != nil || l.Name != "Cached" {
		t.Fatalf("get: %+v %v", l, err)
	}
}
