package entities

import (
	"context"
	"errors"
	"testing"
)

type fakeRepo struct {
	byID    map[int64]Entity
	nextID  int64
	updated map[int64]Entity
	seedErr error
}

func newFakeRepo(seed ...Entity) *fakeRepo {
	f := &fakeRepo{byID: make(map[int64]Entity), updated: make(map[int64]Entity), nextID: 1}
	for _, e := range seed {
		f.byID[e.ID] = e
		if e.ID >= f.nextID {
			f.nextID = e.ID + 1
		}
	}
	return f
}

func (f *fakeRepo) List(ctx context.Context) ([]Entity, error) {
	var out []Entity
	for _, e := range f.byID {
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeRepo) Get(ctx context.Context, id int64) (Entity, error) {
	e, ok := f.byID[id]
	if !ok {
		return Entity{}, ErrNotFound
	}
	return e, nil
}

func (f *fakeRepo) GetByCode(ctx context.Context, code string) (Entity, error) {
	for _, e := range f.byID {
		if e.Code == code {
			return e, nil
		}
	}
	return Entity{}, ErrNotFound
}

func (f *fakeRepo) Create(ctx context.Context, entity Entity) (Entity, error) {
	entity.ID = f.nextID
	f.nextID++
	f.byID[entity.ID] = entity
	return entity, nil
}

func (f *fakeRepo) Update(ctx context.Context, id int64, entity Entity) error {
	if _, ok := f.byID[id]; !ok {
		return ErrNotFound
	}
	entity.ID = id
	f.byID[id] = entity
	f.updated[id] = entity
	return nil
}

func (f *fakeRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := f.byID[id]; !ok {
		return ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeRepo) Descendants(ctx context.Context, id int64) ([]Entity, error) {
	root, ok := f.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := []Entity{root}
	frontier := []int64{id}
	for len(frontier) > 0 {
		next := frontier[:0:0]
		for _, e := range f.byID {
			for _, pid := range frontier {
				if e.ParentID != nil && *e.ParentID == pid {
					out = append(out, e)
					next = append(next, e.ID)
				}
			}
		}
		frontier = next
	}
	return out, nil
}

type fakeSeeder struct {
	currencies []string
	err        error
}

func (f *fakeSeeder) EnsureCurrency(ctx context.Context, currency string) error {
	f.currencies = append(f.currencies, currency)
	return f.err
}

func ptr(v int64) *int64 { return &v }

func TestCreateSeedsRateForForeignCurrency(t *testing.T) {
	repo := newFakeRepo()
	seeder := &fakeSeeder{}
	svc := NewService(repo, seeder, "USD", nil)

	created, err := svc.Create(context.Background(), Entity{Code: "IN01", Name: "India Ops", Currency: "INR"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected assigned id")
	}
	if len(seeder.currencies) != 1 || seeder.currencies[0] != "INR" {
		t.Fatalf("expected INR seeded, got %v", seeder.currencies)
	}
}

func TestCreateSkipsSeedForReportingCurrency(t *testing.T) {
	repo := newFakeRepo()
	seeder := &fakeSeeder{}
	svc := NewService(repo, seeder, "USD", nil)

	if _, err := svc.Create(context.Background(), Entity{Code: "US01", Name: "US HQ", Currency: "USD"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(seeder.currencies) != 0 {
		t.Fatalf("expected no seeding for reporting currency, got %v", seeder.currencies)
	}
}

func TestCreateRejectsBadCurrency(t *testing.T) {
	svc := NewService(newFakeRepo(), nil, "USD", nil)
	if _, err := svc.Create(context.Background(), Entity{Code: "X", Name: "X", Currency: "USDIN"}); err == nil {
		t.Fatal("expected error for non-ISO currency")
	}
}

func TestUpdateRejectsSelfParent(t *testing.T) {
	repo := newFakeRepo(Entity{ID: 1, Code: "A", Name: "A", Currency: "USD"})
	svc := NewService(repo, nil, "USD", nil)

	err := svc.Update(context.Background(), 1, Entity{Code: "A", Name: "A", Currency: "USD", ParentID: ptr(1)})
	if !errors.Is(err, ErrSelfParent) {
		t.Fatalf("expected ErrSelfParent got %v", err)
	}
}

func TestUpdateRejectsCycle(t *testing.T) {
	// A -> B -> C; re-parenting A under C closes the loop.
	repo := newFakeRepo(
		Entity{ID: 1, Code: "A", Name: "A", Currency: "USD"},
		Entity{ID: 2, Code: "B", Name: "B", Currency: "USD", ParentID: ptr(1)},
		Entity{ID: 3, Code: "C", Name: "C", Currency: "USD", ParentID: ptr(2)},
	)
	svc := NewService(repo, nil, "USD", nil)

	err := svc.Update(context.Background(), 1, Entity{Code: "A", Name: "A", Currency: "USD", ParentID: ptr(3)})
	if !errors.Is(err, ErrHierarchyCycle) {
		t.Fatalf("expected ErrHierarchyCycle got %v", err)
	}
}

func TestUpdateAllowsValidParent(t *testing.T) {
	repo := newFakeRepo(
		Entity{ID: 1, Code: "A", Name: "A", Currency: "USD"},
		Entity{ID: 2, Code: "B", Name: "B", Currency: "USD"},
	)
	svc := NewService(repo, nil, "USD", nil)

	if err := svc.Update(context.Background(), 2, Entity{Code: "B", Name: "B", Currency: "USD", ParentID: ptr(1)}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got := repo.updated[2]; got.ParentID == nil || *got.ParentID != 1 {
		t.Fatalf("expected parent 1, got %+v", got.ParentID)
	}
}

func TestUpdateRejectsMissingParent(t *testing.T) {
	repo := newFakeRepo(Entity{ID: 1, Code: "A", Name: "A", Currency: "USD"})
	svc := NewService(repo, nil, "USD", nil)

	err := svc.Update(context.Background(), 1, Entity{Code: "A", Name: "A", Currency: "USD", ParentID: ptr(99)})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound got %v", err)
	}
}

func TestDescendantCodes(t *testing.T) {
	repo := newFakeRepo(
		Entity{ID: 1, Code: "ROOT", Name: "Root", Currency: "USD"},
		Entity{ID: 2, Code: "CHILD1", Name: "C1", Currency: "USD", ParentID: ptr(1)},
		Entity{ID: 3, Code: "CHILD2", Name: "C2", Currency: "USD", ParentID: ptr(1)},
		Entity{ID: 4, Code: "GRAND", Name: "G", Currency: "USD", ParentID: ptr(2)},
		Entity{ID: 5, Code: "OTHER", Name: "O", Currency: "USD"},
	)
	svc := NewService(repo, nil, "USD", nil)

	codes, err := svc.DescendantCodes(context.Background(), 1)
	if err != nil {
		t.Fatalf("DescendantCodes() error = %v", err)
	}
	want := map[string]bool{"ROOT": true, "CHILD1": true, "CHILD2": true, "GRAND": true}
	if len(codes) != len(want) {
		t.Fatalf("expected %d codes got %v", len(want), codes)
	}
	for _, c := range codes {
		if !want[c] {
			t.Fatalf("unexpected code %q", c)
		}
	}
}
