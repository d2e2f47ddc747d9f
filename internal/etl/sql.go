package etl

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/BartekS5/donorsync/pkg/database"
	"github.com/BartekS5/donorsync/pkg/models"
	"github.com/BartekS5/donorsync/pkg/utils"
)

// SQLSource reads the source-of-record address table.
type SQLSource struct {
	DB     *sql.DB
	Schema *models.Schema
}

func (s *SQLSource) FetchAll(ctx context.Context) ([]models.SourceAddress, error) {
	src := s.Schema.Source
	cols := []string{src.StreetNumber, src.UnitNumber, src.StreetName, src.StreetType,
		src.StreetDirection, src.PostalCode, src.City, src.Province}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), src.Table)

	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, classify("source query", err)
	}
	defer rows.Close()

	var out []models.SourceAddress
	for rows.Next() {
		columns := make([]interface{}, len(cols))
		columnPointers := make([]interface{}, len(cols))
		for i := range columns {
			columnPointers[i] = &columns[i]
		}
		if err := rows.Scan(columnPointers...); err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		out = append(out, models.SourceAddress{
			StreetNumber:    utils.ToString(columns[0]),
			UnitNumber:      utils.ToString(columns[1]),
			StreetName:      utils.ToString(columns[2]),
			StreetType:      utils.ToString(columns[3]),
			StreetDirection: utils.ToString(columns[4]),
			PostalCode:      utils.ToString(columns[5]),
			City:            utils.ToString(columns[6]),
			Province:        utils.ToString(columns[7]),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, classify("source query", err)
	}
	return out, nil
}

// SQLStore is the target store. Every statement runs inside one lazily
// opened transaction that lasts until the next Commit or Rollback. Each
// write runs behind its own savepoint; a failed write is rolled back to it
// and the transaction stays usable.
type SQLStore struct {
	db      *sql.DB
	dialect database.Dialect
	schema  *models.Schema

	mu sync.Mutex
	tx *sql.Tx

	// wmu serialises writes so each one owns the savepoint around it.
	wmu sync.Mutex
}

// writeSavepoint guards a single write, so a failed statement does not
// leave the transaction aborted for the writes after it.
const writeSavepoint = "donorsync_write"

func NewSQLStore(db *sql.DB, dialect database.Dialect, schema *models.Schema) *SQLStore {
	return &SQLStore{db: db, dialect: dialect, schema: schema}
}

func (s *SQLStore) txn(ctx context.Context) (*sql.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx != nil {
		return s.tx, nil
	}
	// The transaction outlives the context of whichever call opened it.
	tx, err := s.db.BeginTx(context.WithoutCancel(ctx), nil)
	if err != nil {
		return nil, &ConnectionError{Op: "begin", Err: err}
	}
	s.tx = tx
	return tx, nil
}

func (s *SQLStore) FetchAllExisting(ctx context.Context) ([]models.Address, error) {
	a := s.schema.Address
	query := fmt.Sprintf("SELECT %s, %s, %s, %s, %s, %s, %s, %s, %s FROM %s",
		a.ID, a.UnitNum, a.StreetNumber, a.StreetName, a.StreetType,
		a.StreetDirection, a.PostalCode, a.City, a.Province, a.Table)

	tx, err := s.txn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, classify("fetch addresses", err)
	}
	defer rows.Close()

	var out []models.Address
	for rows.Next() {
		var (
			rec                           models.Address
			unit, dir                     sql.NullString
			num                           sql.NullInt64
			name, typ, postal, city, prov sql.NullString
		)
		if err := rows.Scan(&rec.ID, &unit, &num, &name, &typ, &dir, &postal, &city, &prov); err != nil {
			return nil, fmt.Errorf("failed to scan address row: %w", err)
		}
		if unit.Valid {
			rec.UnitNum = &unit.String
		}
		if num.Valid {
			rec.StreetNumber = &num.Int64
		}
		if dir.Valid {
			rec.StreetDirection = &dir.String
		}
		rec.StreetName, rec.StreetType, rec.PostalCode = name.String, typ.String, postal.String
		rec.City, rec.Province = city.String, prov.String
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("fetch addresses", err)
	}
	return out, nil
}

func (s *SQLStore) FetchMax(ctx context.Context, entity models.Entity) (int64, bool, error) {
	table, id, err := s.schema.Table(entity)
	if err != nil {
		return 0, false, err
	}
	tx, err := s.txn(ctx)
	if err != nil {
		return 0, false, err
	}
	var max sql.NullInt64
	query := fmt.Sprintf("SELECT MAX(%s) FROM %s", id, table)
	if err := tx.QueryRowContext(ctx, query).Scan(&max); err != nil {
		return 0, false, classify("fetch max", err)
	}
	return max.Int64, max.Valid, nil
}

func (s *SQLStore) Exists(ctx context.Context, entity models.Entity, id int64) (bool, error) {
	table, col, err := s.schema.Table(entity)
	if err != nil {
		return false, err
	}
	tx, err := s.txn(ctx)
	if err != nil {
		return false, err
	}
	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = %s", table, col, s.dialect.Placeholder(1))
	if err := tx.QueryRowContext(ctx, query, id).Scan(&count); err != nil {
		return false, classify("exists", err)
	}
	return count > 0, nil
}

func (s *SQLStore) ResolveOwnerChain(ctx context.Context, volunteerID int64) (int64, error) {
	v := s.schema.Volunteer
	tx, err := s.txn(ctx)
	if err != nil {
		return 0, err
	}
	var leader int64
	query := fmt.Sprintf("SELECT COALESCE(%s, %s) FROM %s WHERE %s = %s",
		v.GroupLeader, v.ID, v.Table, v.ID, s.dialect.Placeholder(1))
	err = tx.QueryRowContext(ctx, query, volunteerID).Scan(&leader)
	if errors.Is(err, sql.ErrNoRows) {
		return volunteerID, nil
	}
	if err != nil {
		return 0, classify("resolve owner", err)
	}
	return leader, nil
}

func (s *SQLStore) InsertAddress(ctx context.Context, rec models.Address) error {
	a := s.schema.Address
	cols := []string{a.ID, a.UnitNum, a.StreetNumber, a.StreetName, a.StreetType,
		a.StreetDirection, a.PostalCode, a.City, a.Province}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", a.Table,
		strings.Join(cols, ", "), strings.Join(s.dialect.Placeholders(1, len(cols)), ", "))
	return s.exec(ctx, "insert address", query,
		rec.ID, nullable(rec.UnitNum), nullable(rec.StreetNumber), rec.StreetName, rec.StreetType,
		nullable(rec.StreetDirection), rec.PostalCode, rec.City, rec.Province)
}

func (s *SQLStore) UpdateAddress(ctx context.Context, id int64, rec models.Address) error {
	a := s.schema.Address
	cols := []string{a.UnitNum, a.StreetNumber, a.StreetName, a.StreetType,
		a.StreetDirection, a.PostalCode, a.City, a.Province}
	setClauses := make([]string, len(cols))
	for i, col := range cols {
		setClauses[i] = fmt.Sprintf("%s = %s", col, s.dialect.Placeholder(i+1))
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s", a.Table,
		strings.Join(setClauses, ", "), a.ID, s.dialect.Placeholder(len(cols)+1))
	return s.exec(ctx, "update address", query,
		nullable(rec.UnitNum), nullable(rec.StreetNumber), rec.StreetName, rec.StreetType,
		nullable(rec.StreetDirection), rec.PostalCode, rec.City, rec.Province, id)
}

func (s *SQLStore) InsertDonation(ctx context.Context, d models.Donation) error {
	ds := s.schema.Donation
	cols := []string{ds.ID, ds.FirstName, ds.LastName, ds.AddressID, ds.Date, ds.Amount, ds.VolunteerID}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", ds.Table,
		strings.Join(cols, ", "), strings.Join(s.dialect.Placeholders(1, len(cols)), ", "))
	return s.exec(ctx, "insert donation", query,
		nullable(d.ID), nullable(d.FirstName), nullable(d.LastName), nullable(d.AddressID),
		nullable(d.Date), nullable(d.Amount), nullable(d.VolunteerID))
}

func (s *SQLStore) exec(ctx context.Context, op, query string, args ...interface{}) error {
	tx, err := s.txn(ctx)
	if err != nil {
		return err
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if _, err := tx.ExecContext(ctx, s.dialect.Savepoint(writeSavepoint)); err != nil {
		return &ConnectionError{Op: op + " savepoint", Err: err}
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		if IsConnectionError(err) {
			return classify(op, err)
		}
		if _, rerr := tx.ExecContext(context.WithoutCancel(ctx), s.dialect.RollbackTo(writeSavepoint)); rerr != nil {
			return &ConnectionError{Op: op + " rollback to savepoint", Err: rerr}
		}
		return err
	}
	if release := s.dialect.ReleaseSavepoint(writeSavepoint); release != "" {
		if _, err := tx.ExecContext(ctx, release); err != nil {
			return classify(op+" release savepoint", err)
		}
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: no rows affected", op)
	}
	return nil
}

func (s *SQLStore) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(); err != nil {
		return &ConnectionError{Op: "commit", Err: err}
	}
	return nil
}

func (s *SQLStore) Rollback(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

func nullable[T any](p *T) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
