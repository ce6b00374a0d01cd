/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package utils

import (
	"bytes"
	"fmt"

	"github.com/hyperledger-labs/license-ledger/pkg/utils/errors"
	"github.com/hyperledger-labs/license-ledger/platform/view/services/registry"
	"go.uber.org/dig"
)

type invoker interface {
	Invoke(function interface{}, opts ...dig.InvokeOption) error
}

// Visualize returns the dot representation of the container graph
func Visualize(c *dig.Container) string {
	var w bytes.Buffer
	if err := dig.Visualize(c, &w); err != nil {
		return fmt.Sprintf("could not visualize: [%v]", err)
	}
	return w.String()
}

// Register copies the instance of T built by the container into the service registry,
// where views look their collaborators up
func Register[T any](c invoker) error {
	err := c.Invoke(func(registry *registry.ServiceProvider, service T) error {
		return registry.RegisterService(service)
	})
	if err != nil {
		return errors.Wrapf(err, "failed registering type %T", *new(T))
	}
	return nil
}

// ProvideAll provides every constructor and joins the errors
func ProvideAll(c *dig.Container, constructors ...interface{}) error {
	errs := make([]error, len(constructors))
	for i, constructor := range constructors {
		errs[i] = c.Provide(constructor)
	}
	return errors.Join(errs...)
}

// Identity returns a constructor passing its input through, used together with dig.As
func Identity[T any]() func(T) T {
	return func(t T) T {
		return t
	}
}
