package usecase

import (
	"fmt"
	"sort"

	"github.com/fairyhunter13/openweather-proxy/internal/domain"
)

// Selector chooses the ordered list of credentials to try for one upstream
// attempt, based on the shared ledger snapshot for the given day.
type Selector struct {
	creds      []domain.Credential
	ledger     domain.Ledger
	dailyLimit int64
}

// NewSelector constructs a Selector over an immutable credential list.
func NewSelector(creds []domain.Credential, ledger domain.Ledger, dailyLimit int64) *Selector {
	return &Selector{creds: creds, ledger: ledger, dailyLimit: dailyLimit}
}

// Credentials returns the full configured pool.
func (s *Selector) Credentials() []domain.Credential { return s.creds }

// CredentialIDs returns the derived IDs in priority order.
func (s *Selector) CredentialIDs() []string {
	ids := make([]string, len(s.creds))
	for i, c := range s.creds {
		ids[i] = c.ID
	}
	return ids
}

// SelectAll returns the selectable credentials for day, least-used first with
// priority as the deterministic tie-break. A credential is selectable iff its
// usage is below the daily limit and its consecutive errors are below
// domain.MaxErrors. Randomization is deliberately absent: determinism keeps
// concurrent selection across workers debuggable.
func (s *Selector) SelectAll(ctx domain.Context, day string) ([]domain.Credential, error) {
	snapshot, err := s.ledger.ListAvailable(ctx, s.CredentialIDs(), day)
	if err != nil {
		return nil, fmt.Errorf("op=selector.SelectAll: %w", err)
	}

	byID := make(map[string]domain.CredentialStatus, len(snapshot))
	for _, st := range snapshot {
		byID[st.ID] = st
	}

	type ranked struct {
		cred  domain.Credential
		usage int64
	}
	eligible := make([]ranked, 0, len(s.creds))
	for _, c := range s.creds {
		st := byID[c.ID]
		if st.Usage >= s.dailyLimit || st.Errors >= domain.MaxErrors {
			continue
		}
		eligible = append(eligible, ranked{cred: c, usage: st.Usage})
	}
	if len(eligible) == 0 {
		return nil, domain.ErrNoCredentials
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].usage != eligible[j].usage {
			return eligible[i].usage < eligible[j].usage
		}
		return eligible[i].cred.Priority < eligible[j].cred.Priority
	})

	out := make([]domain.Credential, len(eligible))
	for i, r := range eligible {
		out[i] = r.cred
	}
	return out, nil
}
