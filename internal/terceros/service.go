package terceros

import (
	"context"
	"fmt"
	"time"
)

// FieldCipher encrypts field values at rest. Phone numbers are stored
// encrypted; every read path decrypts them before returning.
type FieldCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(encoded string) (string, error)
}

// Service coordinates party maintenance and queries.
type Service struct {
	repo   Repository
	cipher FieldCipher
}

// NewService constructs the registry service. A nil cipher stores phone
// numbers in clear text.
func NewService(repo Repository, cipher FieldCipher) *Service {
	return &Service{repo: repo, cipher: cipher}
}

func (s *Service) sealPhone(in PartyInput) (PartyInput, error) {
	if s.cipher == nil || in.Phone == "" {
		return in, nil
	}
	sealed, err := s.cipher.Encrypt(in.Phone)
	if err != nil {
		return PartyInput{}, fmt.Errorf("terceros: encrypt phone: %w", err)
	}
	in.Phone = sealed
	return in, nil
}

func (s *Service) openPhone(p Party, err error) (Party, error) {
	if err != nil {
		return Party{}, err
	}
	if s.cipher == nil || p.Phone == "" {
		return p, nil
	}
	phone, err := s.cipher.Decrypt(p.Phone)
	if err != nil {
		return Party{}, fmt.Errorf("terceros: decrypt phone: %w", err)
	}
	p.Phone = phone
	return p, nil
}

func (s *Service) openPhones(parties []Party, err error) ([]Party, error) {
	if err != nil {
		return nil, err
	}
	for i := range parties {
		parties[i], err = s.openPhone(parties[i], nil)
		if err != nil {
			return nil, err
		}
	}
	return parties, nil
}

// Create registers a new party. Document numbers are globally unique.
func (s *Service) Create(ctx context.Context, in PartyInput) (Party, error) {
	if err := in.Validate(); err != nil {
		return Party{}, err
	}
	exists, err := s.repo.ExistsByDocumentNumber(ctx, in.DocumentNumber)
	if err != nil {
		return Party{}, err
	}
	if exists {
		return Party{}, fmt.Errorf("%w: %s", ErrDuplicateDocument, in.DocumentNumber)
	}
	sealed, err := s.sealPhone(in)
	if err != nil {
		return Party{}, err
	}
	return s.openPhone(s.repo.Create(ctx, sealed))
}

// Update replaces the mutable fields of a party, re-validating document
// uniqueness while excluding the party itself.
func (s *Service) Update(ctx context.Context, id int64, in PartyInput) (Party, error) {
	if err := in.Validate(); err != nil {
		return Party{}, err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Party{}, err
	}
	if current.DocumentNumber != in.DocumentNumber {
		exists, err := s.repo.ExistsByDocumentNumber(ctx, in.DocumentNumber)
		if err != nil {
			return Party{}, err
		}
		if exists {
			return Party{}, fmt.Errorf("%w: %s", ErrDuplicateDocument, in.DocumentNumber)
		}
	}
	sealed, err := s.sealPhone(in)
	if err != nil {
		return Party{}, err
	}
	return s.openPhone(s.repo.Update(ctx, id, sealed))
}

// Delete removes a party. Parties owning at least one transaction cannot be
// deleted; that is a conflict, not a cascade.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	count, err := s.repo.CountTransactions(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: %d transactions", ErrHasTransactions, count)
	}
	return s.repo.Delete(ctx, id)
}

// Activate flips the active flag on, independent of transaction history.
func (s *Service) Activate(ctx context.Context, id int64) (Party, error) {
	return s.openPhone(s.repo.SetActive(ctx, id, true))
}

// Deactivate flips the active flag off.
func (s *Service) Deactivate(ctx context.Context, id int64) (Party, error) {
	return s.openPhone(s.repo.SetActive(ctx, id, false))
}

// Get returns one party by id.
func (s *Service) Get(ctx context.Context, id int64) (Party, error) {
	return s.openPhone(s.repo.Get(ctx, id))
}

// Exists reports whether the party id resolves.
func (s *Service) Exists(ctx context.Context, id int64) (bool, error) {
	return s.repo.Exists(ctx, id)
}

// List returns every party ordered by name.
func (s *Service) List(ctx context.Context) ([]Party, error) {
	return s.openPhones(s.repo.List(ctx))
}

// ListByActive returns parties filtered by the active flag.
func (s *Service) ListByActive(ctx context.Context, active bool) ([]Party, error) {
	return s.openPhones(s.repo.ListByActive(ctx, active))
}

// Search runs a case- and accent-insensitive substring match across name,
// email and document number.
func (s *Service) Search(ctx context.Context, q string) ([]Party, error) {
	return s.openPhones(s.repo.Search(ctx, searchPatterns(q)))
}

// ListByDocumentType returns parties with the given document type.
func (s *Service) ListByDocumentType(ctx context.Context, raw string) ([]Party, error) {
	t, err := ParseDocumentType(raw)
	if err != nil {
		return nil, err
	}
	return s.openPhones(s.repo.ListByDocumentType(ctx, t))
}

// ListWithTransactionsInRange returns parties owning at least one
// transaction dated within [start, end], ordered by name.
func (s *Service) ListWithTransactionsInRange(ctx context.Context, start, end time.Time) ([]Party, error) {
	return s.openPhones(s.repo.ListWithTransactionsBetween(ctx, start, end))
}
