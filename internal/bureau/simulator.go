package bureau

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"loanflow/pkg/domain"
)

const simulatorID = "simulator"

// Simulator is a deterministic in-process bureau for development and tests.
// Registered records win; any other PAN gets data derived from its hash, so
// the same PAN always produces the same report.
type Simulator struct {
	Latency time.Duration

	mu         sync.RWMutex
	identities map[string]IdentityVerification
	reports    map[string]CreditReport
	failures   map[string]*ProviderError
	now        func() time.Time
}

func NewSimulator() *Simulator {
	return &Simulator{
		identities: make(map[string]IdentityVerification),
		reports:    make(map[string]CreditReport),
		failures:   make(map[string]*ProviderError),
		now:        time.Now,
	}
}

// RegisterIdentity fixes the identity record returned for a PAN.
func (s *Simulator) RegisterIdentity(v IdentityVerification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[strings.ToUpper(v.PAN)] = v
}

// RegisterReport fixes the credit report returned for a PAN.
func (s *Simulator) RegisterReport(r CreditReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[strings.ToUpper(r.PAN)] = r
}

// FailFor makes every call for key (a PAN or secondary id) fail with category.
func (s *Simulator) FailFor(key string, category ErrorCategory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[strings.ToUpper(key)] = NewProviderError(category, simulatorID, "simulated failure", nil)
}

func (s *Simulator) wait(ctx context.Context, key string) error {
	if s.Latency > 0 {
		select {
		case <-ctx.Done():
			return NewProviderError(ErrorTimeout, simulatorID, "request cancelled", ctx.Err())
		case <-time.After(s.Latency):
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if pe, ok := s.failures[strings.ToUpper(key)]; ok {
		return pe
	}
	return nil
}

// Verify echoes the query for unknown PANs, marking well-formed PANs valid.
func (s *Simulator) Verify(ctx context.Context, q IdentityQuery) (*IdentityVerification, error) {
	if err := s.wait(ctx, q.PAN); err != nil {
		return nil, err
	}
	s.mu.RLock()
	v, ok := s.identities[strings.ToUpper(q.PAN)]
	s.mu.RUnlock()
	if !ok {
		_, perr := domain.ParsePAN(q.PAN)
		v = IdentityVerification{
			IsValid:     perr == nil,
			FullName:    strings.ToUpper(strings.TrimSpace(q.FullName)),
			DateOfBirth: q.DateOfBirth,
			PAN:         strings.ToUpper(strings.TrimSpace(q.PAN)),
		}
	}
	v.CheckedAt = s.now().UTC()
	return &v, nil
}

func (s *Simulator) VerifySecondary(ctx context.Context, secondaryID string) (*SecondaryVerification, error) {
	if err := s.wait(ctx, secondaryID); err != nil {
		return nil, err
	}
	last4 := domain.Last4(secondaryID)
	if last4 == "" {
		return &SecondaryVerification{Verified: false, CheckedAt: s.now().UTC()}, nil
	}
	return &SecondaryVerification{
		Verified:  true,
		MaskedID:  "XXXX-XXXX-" + last4,
		CheckedAt: s.now().UTC(),
	}, nil
}

// FetchReport returns the registered report or one derived from the PAN hash.
func (s *Simulator) FetchReport(ctx context.Context, pan string) (*CreditReport, error) {
	if err := s.wait(ctx, pan); err != nil {
		return nil, err
	}
	key := strings.ToUpper(strings.TrimSpace(pan))
	s.mu.RLock()
	r, ok := s.reports[key]
	s.mu.RUnlock()
	if !ok {
		if key == "" {
			return nil, NewProviderError(ErrorNotFound, simulatorID, "no report for empty pan", nil)
		}
		r = deriveReport(key)
	}
	r.FetchedAt = s.now().UTC()
	return &r, nil
}

func deriveReport(pan string) CreditReport {
	h := fnv.New64a()
	_, _ = fmt.Fprint(h, pan)
	sum := h.Sum64()
	return CreditReport{
		PAN:                 pan,
		CIBILScore:          300 + int(sum%601),
		CreditHistoryLength: int(sum>>10) % 180,
		PaymentHistory:      float64(80 + int(sum>>20)%21),
		CreditUtilization:   float64(int(sum>>30) % 100),
		RecentInquiries:     int(sum>>40) % 8,
		Defaults:            int(sum>>50) % 2,
	}
}
