package merchant

import (
	"fmt"
	"sort"

	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/order/domain"
)

type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Account is a merchant sub-account at the provider.
type Account struct {
	Key         string
	Credentials Credentials
}

// Directory resolves the sub-account that collects each fee type.
type Directory struct {
	accounts map[domain.FeeType]Account
}

func NewDirectory(accounts map[domain.FeeType]Account) (*Directory, error) {
	out := make(map[domain.FeeType]Account, len(accounts))
	for fee, acct := range accounts {
		if acct.Credentials.ClientID == "" || acct.Credentials.ClientSecret == "" {
			return nil, fmt.Errorf("account for fee type %s: client id and secret are required", fee)
		}
		if acct.Key == "" {
			acct.Key = string(fee)
		}
		out[fee] = acct
	}
	return &Directory{accounts: out}, nil
}

func (d *Directory) AccountFor(fee domain.FeeType) (Account, error) {
	acct, ok := d.accounts[fee]
	if !ok {
		return Account{}, fmt.Errorf("%w: %s", domain.ErrUnknownFeeType, fee)
	}
	return acct, nil
}

func (d *Directory) CredentialsFor(fee domain.FeeType) (Credentials, error) {
	acct, err := d.AccountFor(fee)
	if err != nil {
		return Credentials{}, err
	}
	return acct.Credentials, nil
}

// Secrets lists the distinct client secrets, used to verify webhook
// signatures whose sub-account is not known before the body is parsed.
func (d *Directory) Secrets() []string {
	seen := make(map[string]struct{}, len(d.accounts))
	out := make([]string, 0, len(d.accounts))
	for _, acct := range d.accounts {
		if _, ok := seen[acct.Credentials.ClientSecret]; ok {
			continue
		}
		seen[acct.Credentials.ClientSecret] = struct{}{}
		out = append(out, acct.Credentials.ClientSecret)
	}
	sort.Strings(out)
	return out
}
