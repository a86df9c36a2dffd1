package tokens

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ErrClassification means the tax lookup itself failed. Routing must not
// guess in that case.
var ErrClassification = errors.New("token classification failed")

// Classifier tells whether a token must be routed through the tax-enforcing router.
type Classifier interface {
	IsTaxToken(ctx context.Context, token common.Address) (bool, error)
}

// Static is a fixed set of tax tokens from config.
type Static map[common.Address]struct{}

func NewStatic(addrs []string) (Static, error) {
	s := make(Static, len(addrs))
	for _, a := range addrs {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if !common.IsHexAddress(a) {
			return nil, fmt.Errorf("bad tax token address %q", a)
		}
		s[common.HexToAddress(a)] = struct{}{}
	}
	return s, nil
}

func (s Static) IsTaxToken(_ context.Context, token common.Address) (bool, error) {
	_, ok := s[token]
	return ok, nil
}

// Any reports a tax token when any of its classifiers does. Sources are asked
// in order and the first error stops the lookup.
type Any []Classifier

func (a Any) IsTaxToken(ctx context.Context, token common.Address) (bool, error) {
	for _, c := range a {
		ok, err := c.IsTaxToken(ctx, token)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
