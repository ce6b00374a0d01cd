/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package vault

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/hyperledger-labs/license-ledger/pkg/utils/errors"
	"github.com/hyperledger-labs/license-ledger/platform/common/services/logging"
	"github.com/hyperledger-labs/license-ledger/platform/license/states"
	"github.com/hyperledger-labs/license-ledger/platform/license/transaction"
	"github.com/hyperledger-labs/license-ledger/platform/view/driver"
	"github.com/hyperledger-labs/license-ledger/platform/view/view"
)

var logger = logging.MustGetLogger("license.vault")

// ErrNotFound is returned when a license has no live version or a transaction is unknown
var ErrNotFound = errors.New("NotFound")

const (
	txPrefix      = "tx~"
	versionPrefix = "lic~"
	countPrefix   = "count~"
	spentPrefix   = "spent~"
	pendingPrefix = "pending~"
)

// Version is one immutable entry of the version chain of a license.
// Seq is the position in the chain and is assigned when the chain is read.
type Version struct {
	Seq   int              `json:"seq"`
	State *states.License  `json:"state"`
	Ref   states.StateRef  `json:"ref"`
	Prev  *states.StateRef `json:"prev,omitempty"`
}

// PendingDelivery is a notarized transaction a participant has not acknowledged yet.
// The party can be the local one when recording the transaction failed.
type PendingDelivery struct {
	TxID  string        `json:"txID"`
	Party view.Identity `json:"party"`
	Tx    []byte        `json:"tx"`
}

// Transaction returns the transaction to deliver
func (p *PendingDelivery) Transaction() (*transaction.Transaction, error) {
	return transaction.FromBytes(p.Tx)
}

// Vault keeps the finalized transactions of a party and the version chains of the licenses they touch.
// Versions are never overwritten: a transfer adds a new version, a scrap marks the last one as spent.
// The chain follows the consumed references, not the order transactions were recorded in.
type Vault struct {
	store driver.KeyValueStore
}

func New(store driver.KeyValueStore) *Vault {
	return &Vault{store: store}
}

// Record stores a finalized transaction. Recording the same transaction twice is a no-op.
func (v *Vault) Record(tx *transaction.Transaction) error {
	raw, err := tx.Bytes()
	if err != nil {
		return err
	}
	err = v.store.Update(func(w driver.KeyValueWriter) error {
		existing, err := w.Get(txKey(tx.ID))
		if err != nil {
			return err
		}
		if existing != nil {
			logger.Debugf("transaction [%s] already recorded", tx.ID)
			return nil
		}
		for _, c := range tx.Consumed {
			key := spentKey(c.Ref)
			by, err := w.Get(key)
			if err != nil {
				return err
			}
			if by != nil {
				logger.Warnf("[%s] already consumed by [%s], now by [%s]", c.Ref, string(by), tx.ID)
			}
			if err := w.Put(key, []byte(tx.ID)); err != nil {
				return err
			}
		}
		for i, l := range tx.Produced {
			if err := addVersion(w, l, tx.OutputRef(i), predecessor(tx, l.ID)); err != nil {
				return err
			}
		}
		return w.Put(txKey(tx.ID), raw)
	})
	if err != nil {
		return errors.WithMessagef(err, "failed recording transaction [%s]", tx.ID)
	}
	logger.Debugf("recorded [%s] transaction [%s] for license [%s]", tx.Kind(), tx.ID, tx.LicenseID())
	return nil
}

// predecessor returns the reference of the version of license id the transaction consumes
func predecessor(tx *transaction.Transaction, id string) *states.StateRef {
	for _, c := range tx.Consumed {
		if c != nil && c.State != nil && c.State.ID == id {
			ref := c.Ref
			return &ref
		}
	}
	return nil
}

func addVersion(w driver.KeyValueWriter, l *states.License, ref states.StateRef, prev *states.StateRef) error {
	count, err := w.Get(countKey(l.ID))
	if err != nil {
		return err
	}
	n := 0
	if count != nil {
		if n, err = strconv.Atoi(string(count)); err != nil {
			return errors.Wrapf(err, "invalid version count for license [%s]", l.ID)
		}
	}
	raw, err := json.Marshal(&Version{State: l, Ref: ref, Prev: prev})
	if err != nil {
		return errors.Wrapf(err, "failed marshalling version of license [%s]", l.ID)
	}
	if err := w.Put(versionKey(l.ID, n), raw); err != nil {
		return err
	}
	return w.Put(countKey(l.ID), []byte(strconv.Itoa(n+1)))
}

// FindLive returns the current version of the license, ErrNotFound if it does not exist or was scrapped
func (v *Vault) FindLive(id string) (*states.StateAndRef, error) {
	chain, err := v.History(id)
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "license [%s]", id)
	}
	tip := chain[len(chain)-1]
	spentBy, err := v.store.Get(spentKey(tip.Ref))
	if err != nil {
		return nil, err
	}
	if spentBy != nil {
		return nil, errors.Wrapf(ErrNotFound, "license [%s] consumed by [%s]", id, string(spentBy))
	}
	return &states.StateAndRef{State: tip.State, Ref: tip.Ref}, nil
}

// History returns the versions of the license known to this party, oldest first.
// Versions are linked through the reference each one consumed.
// When a link is missing, the known segments are ordered with the issued one first and then by arrival.
func (v *Vault) History(id string) ([]*Version, error) {
	keys, err := v.store.Keys(versionPrefix + id + "~")
	if err != nil {
		return nil, err
	}
	arrived := make([]*Version, 0, len(keys))
	known := make(map[states.StateRef]bool, len(keys))
	next := make(map[states.StateRef]*Version, len(keys))
	for _, key := range keys {
		version, err := v.version(key)
		if err != nil {
			return nil, err
		}
		arrived = append(arrived, version)
		known[version.Ref] = true
		if version.Prev != nil {
			next[*version.Prev] = version
		}
	}

	var roots []*Version
	for _, version := range arrived {
		switch {
		case version.Prev == nil:
			roots = append([]*Version{version}, roots...)
		case !known[*version.Prev]:
			roots = append(roots, version)
		}
	}

	res := make([]*Version, 0, len(arrived))
	visited := make(map[states.StateRef]bool, len(arrived))
	for _, root := range roots {
		for cur := root; cur != nil && !visited[cur.Ref]; cur = next[cur.Ref] {
			visited[cur.Ref] = true
			cur.Seq = len(res)
			res = append(res, cur)
		}
	}
	return res, nil
}

// IsSpent returns the id of the transaction that consumed ref, if any
func (v *Vault) IsSpent(ref states.StateRef) (string, bool, error) {
	by, err := v.store.Get(spentKey(ref))
	if err != nil {
		return "", false, err
	}
	return string(by), by != nil, nil
}

func (v *Vault) GetTransaction(txID string) (*transaction.Transaction, error) {
	raw, err := v.store.Get(txKey(txID))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.Wrapf(ErrNotFound, "transaction [%s]", txID)
	}
	return transaction.FromBytes(raw)
}

// AddPending remembers that parties still have to receive the transaction.
// The transaction is kept with each entry since it might not be recorded locally.
func (v *Vault) AddPending(tx *transaction.Transaction, parties ...view.Identity) error {
	txRaw, err := tx.Bytes()
	if err != nil {
		return err
	}
	return v.store.Update(func(w driver.KeyValueWriter) error {
		for _, party := range parties {
			raw, err := json.Marshal(&PendingDelivery{TxID: tx.ID, Party: party, Tx: txRaw})
			if err != nil {
				return errors.Wrap(err, "failed marshalling pending delivery")
			}
			if err := w.Put(pendingKey(tx.ID, party), raw); err != nil {
				return err
			}
		}
		return nil
	})
}

func (v *Vault) RemovePending(txID string, party view.Identity) error {
	return v.store.Update(func(w driver.KeyValueWriter) error {
		return w.Delete(pendingKey(txID, party))
	})
}

// Pending returns the deliveries still to be done
func (v *Vault) Pending() ([]*PendingDelivery, error) {
	keys, err := v.store.Keys(pendingPrefix)
	if err != nil {
		return nil, err
	}
	res := make([]*PendingDelivery, 0, len(keys))
	for _, key := range keys {
		raw, err := v.store.Get(key)
		if err != nil {
			return nil, err
		}
		if raw == nil {
			continue
		}
		p := &PendingDelivery{}
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, errors.Wrapf(err, "failed unmarshalling [%s]", key)
		}
		res = append(res, p)
	}
	return res, nil
}

func (v *Vault) Close() error {
	return v.store.Close()
}

func (v *Vault) version(key string) (*Version, error) {
	raw, err := v.store.Get(key)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.Wrapf(ErrNotFound, "version [%s]", strings.TrimPrefix(key, versionPrefix))
	}
	version := &Version{}
	if err := json.Unmarshal(raw, version); err != nil {
		return nil, errors.Wrapf(err, "failed unmarshalling version [%s]", key)
	}
	return version, nil
}

func txKey(txID string) string { return txPrefix + txID }

func countKey(id string) string { return countPrefix + id }

func versionKey(id string, seq int) string { return fmt.Sprintf("%s%s~%010d", versionPrefix, id, seq) }

func spentKey(ref states.StateRef) string { return spentPrefix + ref.String() }

func pendingKey(txID string, party view.Identity) string {
	return pendingPrefix + txID + "~" + party.UniqueID()
}

var vaultType = reflect.TypeOf((*Vault)(nil))

// GetVault returns the vault registered in the passed service provider
func GetVault(sp view.ServiceProvider) (*Vault, error) {
	s, err := sp.GetService(vaultType)
	if err != nil {
		return nil, errors.Wrap(err, "failed getting vault")
	}
	return s.(*Vault), nil
}
