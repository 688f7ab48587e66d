package main

import (
	"context"
	"errors"

	"github.com/desertthunder/sputnik/internal/shared"
)

// exitCode maps err onto spec.md's CLI exit codes: 0 success, 1
// configuration error, 2 registry error, 3 catalog-A error, 4 any other
// typed error, 130 user interrupt.
func exitCode(err error) int {
	if err == nil {
		return 0
	}

	if errors.Is(err, context.Canceled) {
		return 130
	}

	var configErr *shared.ConfigError
	if errors.As(err, &configErr) {
		return 1
	}

	var registryErr *shared.RegistryError
	if errors.As(err, &registryErr) {
		return 2
	}

	var catalogAErr *shared.CatalogAError
	if errors.As(err, &catalogAErr) {
		return 3
	}

	return 4
}
