// Copyright (c) 2026 Fixoo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package dberr_test

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/fixoo/internal/platform/apperr"
	"github.com/taibuivan/fixoo/internal/platform/dberr"
)

func TestWrap(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"pgx_no_rows", pgx.ErrNoRows, apperr.CodeNotFound},
		{"sql_no_rows", fmt.Errorf("scan: %w", sql.ErrNoRows), apperr.CodeNotFound},
		{"pg_unique", &pgconn.PgError{Code: pgerrcode.UniqueViolation}, apperr.CodeAlreadyExists},
		{"pg_other", &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation}, apperr.CodeInternal},
		{"unknown", errors.New("connection reset"), apperr.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, apperr.HasCode(dberr.Wrap(tt.err, "test_action"), tt.code))
		})
	}

	assert.NoError(t, dberr.Wrap(nil, "test_action"))
}

func TestWrap_KeepsCause(t *testing.T) {
	cause := errors.New("boom")
	err := dberr.Wrap(cause, "test_action")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, apperr.As(err).Cause.Error(), "test_action")
}
