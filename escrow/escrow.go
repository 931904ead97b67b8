// Copyright (c) 2026 Callum-CMc.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package escrow

import (
	"database/sql"
	"errors"
	"fmt"
)

// CustodyAccount holds pooled entry fees and funded prizes.
// AdminAccount is the treasury account prize funding is pulled from.
const (
	CustodyAccount = "custody"
	AdminAccount   = "admin"
)

// ErrTransferFailed is returned when a pull or push cannot complete
// (unknown account or insufficient balance). Callers must treat it as
// abort-with-full-rollback.
var ErrTransferFailed = errors.New("escrow transfer failed")

// Ledger is the custodial funds collaborator. Pull moves value from an
// account into custody; Push moves value from custody to an account.
// Both run on the caller's transaction so the operation either fully
// commits or leaves no trace.
type Ledger interface {
	Pull(tx *sql.Tx, from string, amount int64) error
	Push(tx *sql.Tx, to string, amount int64) error
	Deposit(tx *sql.Tx, to string, amount int64) error
	Balance(db *sql.DB, id string) (int64, error)
}

// SQLLedger implements Ledger over the account table.
type SQLLedger struct{}

func NewSQLLedger() *SQLLedger {
	return &SQLLedger{}
}

// Pull debits from and credits custody. Fails with ErrTransferFailed
// when the source is missing or underfunded.
func (l *SQLLedger) Pull(tx *sql.Tx, from string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: non-positive amount", ErrTransferFailed)
	}
	res, err := tx.Exec(`
		UPDATE account SET balance = balance - $1
		WHERE id = $2 AND balance >= $1
	`, amount, from)
	if err != nil {
		return fmt.Errorf("debit %s: %w", from, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("debit %s: %w", from, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: insufficient balance in %s", ErrTransferFailed, from)
	}
	return l.credit(tx, CustodyAccount, amount)
}

// Push debits custody and credits to, creating the destination account
// if it does not exist yet.
func (l *SQLLedger) Push(tx *sql.Tx, to string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: non-positive amount", ErrTransferFailed)
	}
	res, err := tx.Exec(`
		UPDATE account SET balance = balance - $1
		WHERE id = $2 AND balance >= $1
	`, amount, CustodyAccount)
	if err != nil {
		return fmt.Errorf("debit custody: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("debit custody: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: insufficient custody balance", ErrTransferFailed)
	}
	return l.credit(tx, to, amount)
}

// Deposit credits an account from outside the system (treasury top-up).
func (l *SQLLedger) Deposit(tx *sql.Tx, to string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: non-positive amount", ErrTransferFailed)
	}
	return l.credit(tx, to, amount)
}

// Balance reads an account balance; unknown accounts read as zero.
func (l *SQLLedger) Balance(db *sql.DB, id string) (int64, error) {
	var balance int64
	err := db.QueryRow(`SELECT balance FROM account WHERE id = $1`, id).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("balance %s: %w", id, err)
	}
	return balance, nil
}

func (l *SQLLedger) credit(tx *sql.Tx, id string, amount int64) error {
	res, err := tx.Exec(`UPDATE account SET balance = balance + $1 WHERE id = $2`, amount, id)
	if err != nil {
		return fmt.Errorf("credit %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("credit %s: %w", id, err)
	}
	if n == 0 {
		if _, err := tx.Exec(`INSERT INTO account (id, balance) VALUES ($1, $2)`, id, amount); err != nil {
			return fmt.Errorf("create account %s: %w", id, err)
		}
	}
	return nil
}
