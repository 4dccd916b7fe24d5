// Copyright 2026 The CyberCode Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cybercodeedulabs/cybercode-backend/internal/compute"
	"github.com/cybercodeedulabs/cybercode-backend/internal/tenant"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// wrap annotates err and marks constraint and lock conflicts with
// compute.ErrStoreConflict so callers can report them as retryable.
// Foreign key violations become the not-found error of the missing parent.
func wrap(msg string, err error) error {
	if isConflict(err) {
		return fmt.Errorf("%s: %w: %w", msg, compute.ErrStoreConflict, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
		missing := tenant.ErrOrganizationNotFound
		if strings.Contains(pgErr.ConstraintName, "owner_account") {
			missing = tenant.ErrAccountNotFound
		}
		return fmt.Errorf("%s: %w: %w", msg, missing, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func isConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgerrcode.UniqueViolation,
		pgerrcode.SerializationFailure,
		pgerrcode.DeadlockDetected,
		pgerrcode.LockNotAvailable:
		return true
	}
	return false
}
