package terceros

import (
	"context"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/contalibre/contalibre/internal/sanitize"
)

type stubRepo struct {
	parties      map[int64]Party
	transactions map[int64]int64
	nextID       int64
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		parties:      make(map[int64]Party),
		transactions: make(map[int64]int64),
		nextID:       1,
	}
}

func (r *stubRepo) List(context.Context) ([]Party, error) {
	out := make([]Party, 0, len(r.parties))
	for _, p := range r.parties {
		out = append(out, p)
	}
	return out, nil
}

func (r *stubRepo) ListByActive(_ context.Context, active bool) ([]Party, error) {
	var out []Party
	for _, p := range r.parties {
		if p.Active == active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *stubRepo) Get(_ context.Context, id int64) (Party, error) {
	p, ok := r.parties[id]
	if !ok {
		return Party{}, ErrPartyNotFound
	}
	return p, nil
}

func (r *stubRepo) Exists(_ context.Context, id int64) (bool, error) {
	_, ok := r.parties[id]
	return ok, nil
}

func (r *stubRepo) ExistsByDocumentNumber(_ context.Context, number string) (bool, error) {
	for _, p := range r.parties {
		if p.DocumentNumber == number {
			return true, nil
		}
	}
	return false, nil
}

func (r *stubRepo) Create(_ context.Context, in PartyInput) (Party, error) {
	p := Party{
		ID:             r.nextID,
		Name:           in.Name,
		DocumentType:   in.DocumentType,
		DocumentNumber: in.DocumentNumber,
		Email:          in.Email,
		Phone:          in.Phone,
		Address:        in.Address,
		Active:         true,
	}
	r.nextID++
	r.parties[p.ID] = p
	return p, nil
}

func (r *stubRepo) Update(_ context.Context, id int64, in PartyInput) (Party, error) {
	p, ok := r.parties[id]
	if !ok {
		return Party{}, ErrPartyNotFound
	}
	p.Name = in.Name
	p.DocumentType = in.DocumentType
	p.DocumentNumber = in.DocumentNumber
	p.Email = in.Email
	p.Phone = in.Phone
	p.Address = in.Address
	r.parties[id] = p
	return p, nil
}

func (r *stubRepo) SetActive(_ context.Context, id int64, active bool) (Party, error) {
	p, ok := r.parties[id]
	if !ok {
		return Party{}, ErrPartyNotFound
	}
	p.Active = active
	r.parties[id] = p
	return p, nil
}

func (r *stubRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.parties[id]; !ok {
		return ErrPartyNotFound
	}
	delete(r.parties, id)
	return nil
}

func (r *stubRepo) CountTransactions(_ context.Context, id int64) (int64, error) {
	return r.transactions[id], nil
}

func (r *stubRepo) Search(context.Context, []string) ([]Party, error) {
	return nil, nil
}

func (r *stubRepo) ListByDocumentType(_ context.Context, t DocumentType) ([]Party, error) {
	var out []Party
	for _, p := range r.parties {
		if p.DocumentType == t {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *stubRepo) ListWithTransactionsBetween(context.Context, time.Time, time.Time) ([]Party, error) {
	return nil, nil
}

func validInput() PartyInput {
	return PartyInput{
		Name:           "Proveedor Uno",
		DocumentType:   DocNIT,
		DocumentNumber: "900123456",
		Email:          "contacto@proveedor.co",
		Phone:          "+57 (1) 234-5678",
	}
}

func TestCreateRejectsDuplicateDocument(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	if _, err := svc.Create(ctx, validInput()); err != nil {
		t.Fatalf("first create: %v", err)
	}
	in := validInput()
	in.Name = "Otro Proveedor"
	_, err := svc.Create(ctx, in)
	if !errors.Is(err, ErrDuplicateDocument) {
		t.Fatalf("expected ErrDuplicateDocument, got %v", err)
	}
}

func TestUpdateAllowsKeepingOwnDocument(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	p, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	in := validInput()
	in.Name = "Proveedor Renombrado"
	updated, err := svc.Update(ctx, p.ID, in)
	if err != nil {
		t.Fatalf("update with own document: %v", err)
	}
	if updated.Name != "Proveedor Renombrado" {
		t.Fatalf("name not updated: %q", updated.Name)
	}
}

func TestUpdateRejectsDocumentOfAnotherParty(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	if _, err := svc.Create(ctx, validInput()); err != nil {
		t.Fatalf("create first: %v", err)
	}
	other := validInput()
	other.Name = "Cliente Dos"
	other.DocumentNumber = "800999888"
	p2, err := svc.Create(ctx, other)
	if err != nil {
		t.Fatalf("create second: %v", err)
	}

	in := other
	in.DocumentNumber = "900123456"
	_, err = svc.Update(ctx, p2.ID, in)
	if !errors.Is(err, ErrDuplicateDocument) {
		t.Fatalf("expected ErrDuplicateDocument, got %v", err)
	}
}

func TestDeleteRejectsPartyWithTransactions(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	p, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	repo.transactions[p.ID] = 3

	err = svc.Delete(ctx, p.ID)
	if !errors.Is(err, ErrHasTransactions) {
		t.Fatalf("expected ErrHasTransactions, got %v", err)
	}
	if _, err := svc.Get(ctx, p.ID); err != nil {
		t.Fatalf("party must survive failed delete: %v", err)
	}
}

func TestDeleteRemovesPartyWithoutTransactions(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	p, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Delete(ctx, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, p.ID); !errors.Is(err, ErrPartyNotFound) {
		t.Fatalf("expected ErrPartyNotFound after delete, got %v", err)
	}
}

func TestValidateRejectsBadInput(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*PartyInput)
	}{
		{"blank name", func(in *PartyInput) { in.Name = "   " }},
		{"unknown document type", func(in *PartyInput) { in.DocumentType = "XX" }},
		{"blank document number", func(in *PartyInput) { in.DocumentNumber = "" }},
		{"phone with letters", func(in *PartyInput) { in.Phone = "call me" }},
	}
	for _, tc := range cases {
		in := validInput()
		tc.mutate(&in)
		if err := in.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestParseDocumentTypeIsCaseInsensitive(t *testing.T) {
	got, err := ParseDocumentType(" nit ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != DocNIT {
		t.Fatalf("expected NIT, got %s", got)
	}
	if _, err := ParseDocumentType("dni"); !errors.Is(err, ErrInvalidDocumentType) {
		t.Fatalf("expected ErrInvalidDocumentType, got %v", err)
	}
}

func TestSearchPatternsFoldAccents(t *testing.T) {
	patterns := searchPatterns("  Pérez ")
	if len(patterns) != 2 {
		t.Fatalf("expected raw and folded pattern, got %v", patterns)
	}
	if patterns[0] != "%Pérez%" || patterns[1] != "%Perez%" {
		t.Fatalf("unexpected patterns %v", patterns)
	}

	plain := searchPatterns("Gomez")
	if len(plain) != 1 || plain[0] != "%Gomez%" {
		t.Fatalf("plain query must yield a single pattern, got %v", plain)
	}
}

func TestColumnFoldingMatchesQueryFolding(t *testing.T) {
	// An unaccented query like "Perez" can only match a stored "Pérez" when
	// the SQL side strips the same accents foldQuery strips. The translate
	// table therefore has to agree with the transformer, character by
	// character.
	if len([]rune(searchAccented)) != len([]rune(searchPlain)) {
		t.Fatalf("accent tables differ in length: %d vs %d",
			len([]rune(searchAccented)), len([]rune(searchPlain)))
	}
	if got := foldQuery(searchAccented); got != searchPlain {
		t.Fatalf("translate table disagrees with query folding: %s", got)
	}

	want := "translate(nombre, '" + searchAccented + "', '" + searchPlain + "')"
	if got := foldedColumn("nombre"); got != want {
		t.Fatalf("unexpected folded column expression: %s", got)
	}
}

func TestPhoneIsEncryptedAtRest(t *testing.T) {
	cipher, err := sanitize.NewCipher(hex.EncodeToString([]byte("0123456789abcdef0123456789abcdef")))
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}
	repo := newStubRepo()
	svc := NewService(repo, cipher)
	ctx := context.Background()

	p, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Phone != "+57 (1) 234-5678" {
		t.Fatalf("service must return the clear phone, got %q", p.Phone)
	}
	stored := repo.parties[p.ID]
	if stored.Phone == "+57 (1) 234-5678" {
		t.Fatal("stored phone must be encrypted")
	}

	fetched, err := svc.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fetched.Phone != "+57 (1) 234-5678" {
		t.Fatalf("phone round trip failed: %q", fetched.Phone)
	}
}
