/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package notary

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/hyperledger-labs/license-ledger/pkg/utils/errors"
	"github.com/hyperledger-labs/license-ledger/platform/common/services/logging"
	"github.com/hyperledger-labs/license-ledger/platform/license/states"
	"github.com/hyperledger-labs/license-ledger/platform/license/transaction"
	"github.com/hyperledger-labs/license-ledger/platform/view/driver"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/metrics"
	"github.com/hyperledger-labs/license-ledger/platform/view/view"
)

var logger = logging.MustGetLogger("license.notary")

const (
	spentPrefix     = "spent~"
	notarizedPrefix = "notarized~"
)

// ErrWrongNotary is returned when a transaction names another notary
var ErrWrongNotary = errors.New("transaction assigned to another notary")

// ConflictError is returned when a consumed license version was already consumed by another transaction
type ConflictError struct {
	TxID       string          `json:"txID"`
	LicenseID  string          `json:"licenseID"`
	Ref        states.StateRef `json:"ref"`
	ConsumedBy string          `json:"consumedBy"`
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("Conflict: version [%s] of license [%s] already consumed by [%s]", e.Ref, e.LicenseID, e.ConsumedBy)
}

// ErrRejected is returned when the notary refuses a transaction for a reason other than a conflict
var ErrRejected = errors.New("Rejected")

// IsConflict returns the conflict carried by err, if any
func IsConflict(err error) (*ConflictError, bool) {
	var c *ConflictError
	if errors.As(err, &c) {
		return c, true
	}
	return nil, false
}

// Gateway is the uniqueness authority seen by the parties
type Gateway interface {
	// Notarize checks that no consumed version was consumed before and returns the notary signature.
	// It returns a *ConflictError otherwise.
	Notarize(ctx context.Context, tx *transaction.Transaction) ([]byte, error)
}

// Service marks consumed versions as spent, in a total order, and signs the transactions it accepts.
// Submitting again an accepted transaction returns a fresh signature and changes nothing.
type Service struct {
	me        view.Identity
	signer    driver.Signer
	verifiers transaction.VerifierProvider
	store     driver.KeyValueStore
	metrics   *Metrics

	mutex sync.Mutex
}

func NewService(me view.Identity, signer driver.Signer, verifiers transaction.VerifierProvider, store driver.KeyValueStore, mp metrics.Provider) *Service {
	return &Service{
		me:        me,
		signer:    signer,
		verifiers: verifiers,
		store:     store,
		metrics:   newMetrics(mp),
	}
}

func (s *Service) Identity() view.Identity {
	return s.me
}

func (s *Service) Notarize(ctx context.Context, tx *transaction.Transaction) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrapf(err, "notarization of [%s] abandoned", tx.ID)
	}
	if err := s.check(tx); err != nil {
		s.metrics.Requests.With(string(tx.Kind()), "rejected").Add(1)
		return nil, err
	}

	s.mutex.Lock()
	err := s.store.Update(func(w driver.KeyValueWriter) error {
		done, err := w.Get(notarizedPrefix + tx.ID)
		if err != nil {
			return err
		}
		if done != nil {
			logger.Debugf("transaction [%s] already notarized", tx.ID)
			return nil
		}
		for _, c := range tx.Consumed {
			by, err := w.Get(spentPrefix + c.Ref.String())
			if err != nil {
				return err
			}
			if by != nil {
				return &ConflictError{TxID: tx.ID, LicenseID: c.State.ID, Ref: c.Ref, ConsumedBy: string(by)}
			}
		}
		for _, c := range tx.Consumed {
			if err := w.Put(spentPrefix+c.Ref.String(), []byte(tx.ID)); err != nil {
				return err
			}
		}
		return w.Put(notarizedPrefix+tx.ID, []byte(tx.Kind()))
	})
	s.mutex.Unlock()

	if err != nil {
		if c, ok := IsConflict(err); ok {
			logger.Infof("rejected [%s]: %s", tx.ID, c)
			s.metrics.Requests.With(string(tx.Kind()), "conflict").Add(1)
			return nil, c
		}
		s.metrics.Requests.With(string(tx.Kind()), "failed").Add(1)
		return nil, errors.WithMessagef(err, "failed notarizing [%s]", tx.ID)
	}

	sigma, err := s.signer.Sign([]byte(tx.ID))
	if err != nil {
		return nil, errors.Wrapf(err, "failed signing [%s]", tx.ID)
	}
	s.metrics.Requests.With(string(tx.Kind()), "notarized").Add(1)
	logger.Debugf("notarized [%s]", tx.ID)
	return sigma, nil
}

func (s *Service) check(tx *transaction.Transaction) error {
	if !tx.Notary.Equal(s.me) {
		return errors.Wrapf(ErrWrongNotary, "[%s] names [%s]", tx.ID, tx.Notary)
	}
	if err := tx.CheckID(); err != nil {
		return err
	}
	for _, c := range tx.Consumed {
		if c == nil || c.State == nil {
			return errors.Errorf("transaction [%s] consumes an empty state", tx.ID)
		}
	}
	if !tx.IsFullySigned() {
		return errors.Errorf("transaction [%s] is missing signatures", tx.ID)
	}
	return tx.VerifySignatures(s.verifiers)
}

func (s *Service) Close() error {
	return s.store.Close()
}

var serviceType = reflect.TypeOf((*Service)(nil))

// GetService returns the notary service registered in the passed service provider
func GetService(sp view.ServiceProvider) (*Service, error) {
	s, err := sp.GetService(serviceType)
	if err != nil {
		return nil, errors.Wrap(err, "failed getting notary service")
	}
	return s.(*Service), nil
}
