package account

import "github.com/maildeck/maildeck/internal/mailerr"

// Registry holds the configured accounts in registration order. It is a
// single-owner structure mutated only through the connection manager and
// performs no locking of its own.
type Registry struct {
	accounts []*Account
	index    map[string]*Account
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]*Account)}
}

// Add validates the account and registers it. Adding an id that is already
// present is a no-op: the first registration wins.
func (r *Registry) Add(acct *Account) error {
	if err := acct.Validate(); err != nil {
		return err
	}
	if _, ok := r.index[acct.ID]; ok {
		return nil
	}
	r.accounts = append(r.accounts, acct)
	r.index[acct.ID] = acct
	return nil
}

// Remove deletes the account with the given id. Unknown ids are an error.
func (r *Registry) Remove(id string) error {
	if _, ok := r.index[id]; !ok {
		return mailerr.Errorf(mailerr.Configuration, "registry.remove", "account not found: %s", id)
	}
	delete(r.index, id)
	for i, acct := range r.accounts {
		if acct.ID == id {
			r.accounts = append(r.accounts[:i], r.accounts[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns the account with the given id.
func (r *Registry) Get(id string) (*Account, bool) {
	acct, ok := r.index[id]
	return acct, ok
}

// All returns the accounts in registration order.
func (r *Registry) All() []*Account {
	return r.accounts
}

// Enabled returns the enabled accounts in registration order.
func (r *Registry) Enabled() []*Account {
	var out []*Account
	for _, acct := range r.accounts {
		if acct.Enabled {
			out = append(out, acct)
		}
	}
	return out
}

// Len returns the number of registered accounts.
func (r *Registry) Len() int {
	return len(r.accounts)
}
